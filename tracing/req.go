package tracing

import "github.com/sarchlab/busim/hooking"

// Request kinds.
const (
	KindRead  = "read"
	KindWrite = "write"
)

// Req is the hook item describing one request at a lifecycle position.
type Req struct {
	ID      string
	Kind    string
	Where   string
	Address int64
	Width   string
	Data    int64
	Err     error
}

// NamedHookable represent something both have a name and can be hooked
type NamedHookable interface {
	Name() string
	hooking.Hookable
}

// TraceReqInitiate notifies the hooks of domain that a request was admitted.
func TraceReqInitiate(domain NamedHookable, req Req) {
	traceReq(domain, HookPosReqInitiate, req)
}

// TraceReqReceive notifies the hooks of domain that it started serving a
// request.
func TraceReqReceive(domain NamedHookable, req Req) {
	traceReq(domain, HookPosReqReceive, req)
}

// TraceReqComplete notifies the hooks of domain that it finished serving a
// request.
func TraceReqComplete(domain NamedHookable, req Req) {
	traceReq(domain, HookPosReqComplete, req)
}

// TraceReqFinalize notifies the hooks of domain that a request result was
// delivered.
func TraceReqFinalize(domain NamedHookable, req Req) {
	traceReq(domain, HookPosReqFinalize, req)
}

// TraceReqRejected notifies the hooks of domain that a request was refused.
func TraceReqRejected(domain NamedHookable, req Req) {
	traceReq(domain, HookPosReqRejected, req)
}

func traceReq(domain NamedHookable, pos *hooking.HookPos, req Req) {
	if domain.NumHooks() == 0 {
		return
	}

	if req.ID == "" {
		panic("request id must not be empty")
	}

	if req.Where == "" {
		req.Where = domain.Name()
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   req,
	})
}
