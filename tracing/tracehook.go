package tracing

import (
	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/hooking"
)

// CollectTrace attaches a tracer to a domain. Attaching the same tracer to
// a domain twice panics.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, h := range domain.Hooks() {
		if th, ok := h.(*traceHook); ok && th.t == tracer {
			log.Panicf("tracing: domain %s already has tracer %T",
				domain.Name(), tracer)
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// traceHook forwards the task life cycle of a domain to a tracer.
type traceHook struct {
	t Tracer
}

func (h *traceHook) Func(ctx hooking.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosTaskStart:
		h.t.StartTask(task)
	case HookPosTaskStep:
		h.t.StepTask(task)
	case HookPosTaskEnd:
		h.t.EndTask(task)
	}
}
