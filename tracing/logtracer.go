package tracing

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sarchlab/busvip/sim/timing"
)

// LogTracer logs every completed task as one structured entry.
type LogTracer struct {
	timeTeller    timing.TimeTeller
	logger        log.FieldLogger
	level         log.Level
	lock          sync.Mutex
	inflightTasks map[string]*Task
}

// NewLogTracer creates a LogTracer that writes entries at the given level.
func NewLogTracer(
	timeTeller timing.TimeTeller,
	logger log.FieldLogger,
	level log.Level,
) *LogTracer {
	return &LogTracer{
		timeTeller:    timeTeller,
		logger:        logger,
		level:         level,
		inflightTasks: make(map[string]*Task),
	}
}

// StartTask records the start of a task
func (t *LogTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.inflightTasks[task.ID] = &task
	t.lock.Unlock()
}

// StepTask records the time that a task reaches a step
func (t *LogTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	original, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	for _, s := range task.Steps {
		s.Time = now
		original.Steps = append(original.Steps, s)
	}
}

// EndTask logs the task
func (t *LogTracer) EndTask(task Task) {
	t.lock.Lock()
	original, ok := t.inflightTasks[task.ID]
	delete(t.inflightTasks, task.ID)
	t.lock.Unlock()

	if !ok {
		return
	}

	original.EndTime = t.timeTeller.CurrentTime()

	steps := make([]string, 0, len(original.Steps))
	for _, s := range original.Steps {
		steps = append(steps, s.What)
	}

	entry := t.logger.WithFields(log.Fields{
		"id":       original.ID,
		"kind":     original.Kind,
		"what":     original.What,
		"location": original.Location,
		"start":    float64(original.StartTime),
		"end":      float64(original.EndTime),
		"steps":    strings.Join(steps, ","),
	})

	switch t.level {
	case log.TraceLevel:
		entry.Trace("task")
	case log.DebugLevel:
		entry.Debug("task")
	default:
		entry.Info("task")
	}
}
