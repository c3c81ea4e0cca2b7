package tracing

import (
	"sync"

	"github.com/sarchlab/busim/timing"
)

// TraceWriter stores completed tasks.
type TraceWriter interface {
	Init() error
	Write(task Task)
	Flush() error
}

// DBTracer is a tracer that stores completed tasks through a TraceWriter, so
// that the tasks can be kept in memory or in a database.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    TraceWriter
	filter     TaskFilter

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	backend TraceWriter,
) *DBTracer {
	return &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}
}

// WithFilter keeps only the tasks accepted by filter.
func (t *DBTracer) WithFilter(filter TaskFilter) *DBTracer {
	t.filter = filter
	return t
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	task.StartTime = t.timeTeller.CurrentTime()
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.tracingTasks[task.ID] = task
}

// EndTask marks the end of a task and hands it to the backend.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	originalTask.EndTime = t.timeTeller.CurrentTime()
	if task.Error != "" {
		originalTask.Error = task.Error
	}

	delete(t.tracingTasks, task.ID)
	t.backend.Write(originalTask)
}

// NumInflight returns the number of started tasks that have not ended.
func (t *DBTracer) NumInflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.tracingTasks)
}

// Terminate flushes the backend.
func (t *DBTracer) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.backend.Flush()
}

// MemoryTraceWriter keeps completed tasks in memory.
type MemoryTraceWriter struct {
	mu    sync.Mutex
	tasks []Task
}

// NewMemoryTraceWriter creates an empty MemoryTraceWriter.
func NewMemoryTraceWriter() *MemoryTraceWriter {
	return &MemoryTraceWriter{}
}

// Init does nothing.
func (w *MemoryTraceWriter) Init() error {
	return nil
}

// Write appends a task.
func (w *MemoryTraceWriter) Write(task Task) {
	w.mu.Lock()
	w.tasks = append(w.tasks, task)
	w.mu.Unlock()
}

// Flush does nothing.
func (w *MemoryTraceWriter) Flush() error {
	return nil
}

// Tasks returns a copy of the tasks written so far, in completion order.
func (w *MemoryTraceWriter) Tasks() []Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	dup := make([]Task, len(w.tasks))
	copy(dup, w.tasks)

	return dup
}
