// Package tracing records the transactions carried out by bus drivers as
// tasks, and summarizes or stores them.
package tracing

// A Tracer receives the life cycle of the tasks of the domains it is
// attached to. StartTask and StepTask receive partial tasks; tracers keep
// what they need from them.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}
