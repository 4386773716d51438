package tracing

import (
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/hooking"
)

// NamedHookable is a hookable with a name, such as a bus driver. Tasks
// take the name of the domain as their location.
type NamedHookable interface {
	hooking.Hookable
	Name() string
	InvokeHook(ctx hooking.HookCtx)
}

// Hook positions of the task life cycle. The hook item is a Task.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "TaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "TaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "TaskEnd"}
)

// StartTask tells the tracers hooked to the domain that a task has
// started. Detail is passed to the tracers untouched.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail any,
) {
	if domain.NumHooks() == 0 {
		return
	}

	mustBeValidTask(id, domain, kind, what)

	invoke(domain, HookPosTaskStart, Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Location: domain.Name(),
		Detail:   detail,
	})
}

// AddTaskStep tells the tracers that a task has reached a step. The
// tracers stamp the step with the current time.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	invoke(domain, HookPosTaskStep, Task{
		ID:    id,
		Steps: []TaskStep{{What: what}},
	})
}

// EndTask tells the tracers that a task has completed.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	invoke(domain, HookPosTaskEnd, Task{ID: id})
}

func invoke(domain NamedHookable, pos *hooking.HookPos, task Task) {
	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   task,
	})
}

func mustBeValidTask(id string, domain NamedHookable, kind, what string) {
	switch {
	case id == "":
		log.Panic("tracing: task id must not be empty")
	case kind == "":
		log.Panicf("tracing: task %s has no kind", id)
	case what == "":
		log.Panicf("tracing: task %s has no what", id)
	case domain.Name() == "":
		log.Panicf("tracing: task %s is started by an unnamed domain", id)
	}
}
