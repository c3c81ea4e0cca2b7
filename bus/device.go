package bus

import "github.com/sarchlab/busim/future"

// Device is anything that can serve reads and writes arriving over the bus.
// Both operations return immediately; the result is completed later, usually
// from inside a clock tick.
type Device interface {
	Read(address Value, width Width) *future.Future[Value]
	Write(address Value, data Value) *future.Future[struct{}]
}
