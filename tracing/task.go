package tracing

import "github.com/sarchlab/busim/timing"

// Task kinds derived from request lifecycle positions.
const (
	TaskKindReqOut      = "req_out"
	TaskKindReqIn       = "req_in"
	TaskKindReqRejected = "req_rejected"
)

// A Task is the span between two lifecycle positions of one request.
type Task struct {
	ID        string              `json:"id"`
	ParentID  string              `json:"parent_id"`
	Kind      string              `json:"kind"`
	What      string              `json:"what"`
	Where     string              `json:"where"`
	Address   int64               `json:"address"`
	StartTime timing.VTimeInCycle `json:"start_time"`
	EndTime   timing.VTimeInCycle `json:"end_time"`
	Error     string              `json:"error,omitempty"`
}

// Duration returns the number of cycles the task took.
func (t Task) Duration() timing.VTimeInCycle {
	return t.EndTime - t.StartTime
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool
