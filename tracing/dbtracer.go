package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/busvip/sim/timing"
)

// TraceWriter can write tasks into a storage, such as a database.
type TraceWriter interface {
	Init()
	Write(task Task)
	Flush()
}

// DBTracer is a tracer that can store tasks into a database. DBTracers can
// connect with different backends so that the tasks can be stored in
// different types of databases.
type DBTracer struct {
	lock       sync.Mutex
	timeTeller timing.TimeTeller
	backend    TraceWriter

	startTime, endTime timing.VTimeInSec

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer. The backend is flushed when the
// program exits.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	backend TraceWriter,
) *DBTracer {
	backend.Init()

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to the tasks that overlap with the time
// range. Zero leaves a side of the range open.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	original, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	for _, s := range task.Steps {
		s.Time = now
		original.Steps = append(original.Steps, s)
	}

	t.tracingTasks[task.ID] = original
}

// EndTask marks the end of a task and writes it to the backend.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	task.EndTime = t.timeTeller.CurrentTime()

	original, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	if t.startTime > 0 && task.EndTime < t.startTime {
		return
	}

	original.EndTime = task.EndTime
	t.backend.Write(original)
}

// Terminate writes the unfinished tasks, ending them at the current time,
// and flushes the backend.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.CurrentTime()
	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.backend.Write(task)
	}

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}
