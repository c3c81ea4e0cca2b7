package tracing

import "github.com/sarchlab/busim/hooking"

// Hook positions for request lifecycle events
var (
	// HookPosReqInitiate is triggered when the bus admits a request
	HookPosReqInitiate = &hooking.HookPos{Name: "ReqInitiate"}

	// HookPosReqReceive is triggered when a device starts serving a request
	HookPosReqReceive = &hooking.HookPos{Name: "ReqReceive"}

	// HookPosReqComplete is triggered when a device finishes serving a request
	HookPosReqComplete = &hooking.HookPos{Name: "ReqComplete"}

	// HookPosReqFinalize is triggered when the bus delivers the result
	HookPosReqFinalize = &hooking.HookPos{Name: "ReqFinalize"}

	// HookPosReqRejected is triggered when the bus refuses a request without
	// starting it
	HookPosReqRejected = &hooking.HookPos{Name: "ReqRejected"}
)
