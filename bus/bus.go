// Package bus provides the shared address space of the simulated system.
//
// A Bus decodes absolute addresses to the AddressMappedDevice whose window
// covers them and lets at most one operation be in flight at any time.
// Contenders are rejected, never queued, so that callers can tell "retry the
// same address later" (ContentionError) from "try a different address"
// (DecodingError).
//
// Device windows are not checked against each other. When windows overlap,
// the first device in registration order wins.
package bus

import (
	"github.com/sarchlab/busim/future"
	"github.com/sarchlab/busim/hooking"
	"github.com/sarchlab/busim/idgen"
	"github.com/sarchlab/busim/tracing"
)

// ArbitrationState tells if the bus is serving an operation.
type ArbitrationState int

// The two arbitration states.
const (
	Idle ArbitrationState = iota
	InFlight
)

func (s ArbitrationState) String() string {
	if s == InFlight {
		return "in-flight"
	}

	return "idle"
}

// Bus composes an ordered set of address-mapped devices.
type Bus struct {
	*hooking.HookableBase

	name    string
	idGen   idgen.Generator
	devices []*AddressMappedDevice
	state   ArbitrationState
}

// NewBus creates a bus named "Bus" over the given devices.
func NewBus(devices ...*AddressMappedDevice) *Bus {
	return MakeBuilder().WithDevices(devices...).Build("Bus")
}

// Name returns the name of the bus.
func (b *Bus) Name() string {
	return b.name
}

// Devices returns the devices in decoding order.
func (b *Bus) Devices() []*AddressMappedDevice {
	return b.devices
}

// State returns the arbitration state.
func (b *Bus) State() ArbitrationState {
	return b.state
}

// Busy tells if an operation is in flight.
func (b *Bus) Busy() bool {
	return b.state == InFlight
}

// Decode returns the first device whose window covers addr.
func (b *Bus) Decode(addr Value) (*AddressMappedDevice, bool) {
	for _, d := range b.devices {
		if d.AddressInRange(addr) {
			return d, true
		}
	}

	return nil, false
}

// Read reads through the device that owns addr.
func (b *Bus) Read(addr Value, width Width) *future.Future[Value] {
	req := tracing.Req{
		Kind:    tracing.KindRead,
		Address: addr.Int(),
		Width:   width.String(),
	}

	return acquire(b, req, addr,
		func(d *AddressMappedDevice) *future.Future[Value] {
			return d.Read(addr, width)
		},
		func(v Value) int64 { return v.Int() },
	)
}

// Write writes through the device that owns addr.
func (b *Bus) Write(addr Value, data Value) *future.Future[struct{}] {
	req := tracing.Req{
		Kind:    tracing.KindWrite,
		Address: addr.Int(),
		Width:   data.Width().String(),
		Data:    data.Int(),
	}

	return acquire(b, req, addr,
		func(d *AddressMappedDevice) *future.Future[struct{}] {
			return d.Write(addr, data)
		},
		nil,
	)
}

// acquire admits one operation. The bus stays InFlight from the moment op is
// invoked until the future op returned completes, and is released before the
// caller's future is completed.
func acquire[T any](
	b *Bus,
	req tracing.Req,
	addr Value,
	op func(d *AddressMappedDevice) *future.Future[T],
	dataOf func(T) int64,
) *future.Future[T] {
	req.ID = b.idGen.Generate()

	if b.state == InFlight {
		return reject[T](b, req, &ContentionError{Bus: b.name, Address: addr})
	}

	device, found := b.Decode(addr)
	if !found {
		return reject[T](b, req, &DecodingError{Bus: b.name, Address: addr})
	}

	b.state = InFlight
	tracing.TraceReqInitiate(b, req)

	result := future.New[T]()
	invoke(b, op, device, addr).OnComplete(func(v T, err error) {
		b.state = Idle

		req.Err = err
		if err == nil && dataOf != nil {
			req.Data = dataOf(v)
		}
		tracing.TraceReqFinalize(b, req)

		if err != nil {
			result.Reject(err)
			return
		}

		result.Resolve(v)
	})

	return result
}

// invoke calls op and turns a panic or a missing result into a rejected
// future.
func invoke[T any](
	b *Bus,
	op func(d *AddressMappedDevice) *future.Future[T],
	device *AddressMappedDevice,
	addr Value,
) (f *future.Future[T]) {
	defer func() {
		if r := recover(); r != nil {
			f = future.Rejected[T](&DeviceError{Bus: b.name, Address: addr, Cause: r})
		}
	}()

	f = op(device)
	if f == nil {
		f = future.Rejected[T](&DeviceError{
			Bus:     b.name,
			Address: addr,
			Cause:   "device returned no result",
		})
	}

	return f
}

func reject[T any](b *Bus, req tracing.Req, err error) *future.Future[T] {
	req.Err = err
	tracing.TraceReqRejected(b, req)

	return future.Rejected[T](err)
}

var _ Device = (*Bus)(nil)
