package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/busim/hooking"
)

// A Tracer can collect task traces
type Tracer interface {
	StartTask(task Task)
	EndTask(task Task)
}

// CollectTrace let the tracer to collect trace from a domain
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook turns request lifecycle positions into tasks.
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	req, ok := ctx.Item.(Req)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosReqInitiate:
		h.t.StartTask(taskFromReq(req, TaskKindReqOut))
	case HookPosReqReceive:
		h.t.StartTask(taskFromReq(req, TaskKindReqIn))
	case HookPosReqComplete, HookPosReqFinalize:
		h.t.EndTask(taskFromReq(req, ""))
	case HookPosReqRejected:
		task := taskFromReq(req, TaskKindReqRejected)
		h.t.StartTask(task)
		h.t.EndTask(task)
	}
}

func taskFromReq(req Req, kind string) Task {
	task := Task{
		ID:      req.ID,
		Kind:    kind,
		What:    req.Kind,
		Where:   req.Where,
		Address: req.Address,
	}

	if req.Err != nil {
		task.Error = req.Err.Error()
	}

	return task
}
