package tracing

import "github.com/sarchlab/busvip/sim/timing"

// A TaskStep represents a milestone in the processing of task
type TaskStep struct {
	Time timing.VTimeInSec `json:"time"`
	What string            `json:"what"`
}

// A Task is a piece of work that a component carries out, such as a bus
// transaction.
type Task struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id"`
	Kind      string            `json:"kind"`
	What      string            `json:"what"`
	Location  string            `json:"location"`
	StartTime timing.VTimeInSec `json:"start_time"`
	EndTime   timing.VTimeInSec `json:"end_time"`
	Steps     []TaskStep        `json:"steps"`
	Detail    any               `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// KindIs returns a filter that accepts the tasks of the given kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}
