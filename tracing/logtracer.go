package tracing

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/busim/timing"
)

// LogTracer logs the start and the end of every task.
type LogTracer struct {
	timeTeller timing.TimeTeller
	logger     logrus.FieldLogger
	level      logrus.Level
}

// NewLogTracer creates a LogTracer writing at debug level.
func NewLogTracer(
	timeTeller timing.TimeTeller,
	logger logrus.FieldLogger,
) *LogTracer {
	return &LogTracer{
		timeTeller: timeTeller,
		logger:     logger,
		level:      logrus.DebugLevel,
	}
}

// WithLevel changes the level the tracer logs at.
func (t *LogTracer) WithLevel(level logrus.Level) *LogTracer {
	t.level = level
	return t
}

// StartTask logs the start of a task.
func (t *LogTracer) StartTask(task Task) {
	t.entry(task).Log(t.level, "task start")
}

// EndTask logs the end of a task. Failed tasks are logged at warning level.
func (t *LogTracer) EndTask(task Task) {
	entry := t.entry(task)
	if task.Error != "" {
		entry.WithField("error", task.Error).Warn("task end")
		return
	}

	entry.Log(t.level, "task end")
}

func (t *LogTracer) entry(task Task) *logrus.Entry {
	fields := logrus.Fields{
		"cycle": t.timeTeller.CurrentTime(),
		"id":    task.ID,
	}

	if task.Kind != "" {
		fields["kind"] = task.Kind
	}

	if task.What != "" {
		fields["what"] = task.What
	}

	if task.Where != "" {
		fields["where"] = task.Where
		fields["addr"] = task.Address
	}

	return t.logger.WithFields(fields)
}
