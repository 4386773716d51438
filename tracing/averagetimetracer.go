package tracing

import (
	"sync"

	"github.com/sarchlab/busvip/sim/timing"
)

// AverageTimeTracer measures how long the tasks accepted by its filter
// take, from start to end. The bench uses it for the transaction latency
// of each bus.
type AverageTimeTracer struct {
	timeTeller timing.TimeTeller
	filter     TaskFilter

	lock      sync.Mutex
	starts    map[string]timing.VTimeInSec
	totalTime timing.VTimeInSec
	maxTime   timing.VTimeInSec
	count     uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer. A nil filter accepts
// all the tasks.
func NewAverageTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		starts:     make(map[string]timing.VTimeInSec),
	}
}

// AverageTime returns the mean duration of the completed tasks, or 0 if
// none has completed.
func (t *AverageTimeTracer) AverageTime() timing.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.totalTime / timing.VTimeInSec(t.count)
}

// MaxTime returns the longest duration of a completed task.
func (t *AverageTimeTracer) MaxTime() timing.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxTime
}

// TotalCount returns the number of completed tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.count
}

// StartTask remembers when an accepted task starts.
func (t *AverageTimeTracer) StartTask(task Task) {
	now := t.timeTeller.CurrentTime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.starts[task.ID] = now
	t.lock.Unlock()
}

// StepTask ignores steps.
func (t *AverageTimeTracer) StepTask(_ Task) {}

// EndTask accounts the duration of a task that was started.
func (t *AverageTimeTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.starts[task.ID]
	if !ok {
		return
	}

	delete(t.starts, task.ID)

	d := now - start
	t.totalTime += d
	t.count++

	if d > t.maxTime {
		t.maxTime = d
	}
}
