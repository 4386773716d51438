package timing

import (
	"reflect"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/hooking"
)

// EventLogger is an engine hook that counts the handled events and writes
// each of them to a logger at trace level.
type EventLogger struct {
	logger log.FieldLogger
	count  uint64
}

// NewEventLogger returns an EventLogger that writes to logger. A nil
// logger only counts.
func NewEventLogger(logger log.FieldLogger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Count returns the number of events handled so far.
func (h *EventLogger) Count() uint64 {
	return h.count
}

type named interface {
	Name() string
}

// Func counts and logs the event that is about to be handled.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.count++

	if !h.tracing() {
		return
	}

	fields := log.Fields{
		"time":  float64(evt.Time()),
		"event": reflect.TypeOf(evt).String(),
	}

	if n, ok := evt.Handler().(named); ok {
		fields["handler"] = n.Name()
	}

	h.logger.WithFields(fields).Trace("event")
}

func (h *EventLogger) tracing() bool {
	switch l := h.logger.(type) {
	case nil:
		return false
	case *log.Logger:
		return l.IsLevelEnabled(log.TraceLevel)
	case *log.Entry:
		return l.Logger.IsLevelEnabled(log.TraceLevel)
	}

	return true
}
