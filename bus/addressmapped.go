package bus

import (
	"github.com/sarchlab/busim/future"
)

// AddressMappedDevice gives a device the absolute address window
// [start, start+size). Addresses inside the window are translated to
// window-relative addresses before they reach the device.
type AddressMappedDevice struct {
	start, end int64
	device     Device
}

// NewAddressMappedDevice maps device into the window starting at start and
// covering size addresses.
func NewAddressMappedDevice(
	start, size int64,
	device Device,
) *AddressMappedDevice {
	if device == nil {
		panic("bus: cannot map a nil device")
	}

	if size < 0 {
		panic("bus: window size must not be negative")
	}

	return &AddressMappedDevice{
		start:  start,
		end:    start + size,
		device: device,
	}
}

// Start returns the first address of the window.
func (d *AddressMappedDevice) Start() int64 {
	return d.start
}

// End returns the first address past the window.
func (d *AddressMappedDevice) End() int64 {
	return d.end
}

// Device returns the wrapped device.
func (d *AddressMappedDevice) Device() Device {
	return d.device
}

// AddressInRange tells if addr falls inside the window.
func (d *AddressMappedDevice) AddressInRange(addr Value) bool {
	return d.start <= addr.Int() && addr.Int() < d.end
}

// Read forwards a read to the wrapped device with the relative address.
func (d *AddressMappedDevice) Read(
	addr Value,
	width Width,
) *future.Future[Value] {
	if !d.AddressInRange(addr) {
		return future.Rejected[Value](d.addressError(addr))
	}

	return d.device.Read(d.relative(addr), width)
}

// Write forwards a write to the wrapped device with the relative address and
// the original data.
func (d *AddressMappedDevice) Write(
	addr Value,
	data Value,
) *future.Future[struct{}] {
	if !d.AddressInRange(addr) {
		return future.Rejected[struct{}](d.addressError(addr))
	}

	return d.device.Write(d.relative(addr), data)
}

func (d *AddressMappedDevice) relative(addr Value) Value {
	return addr.Offset(-d.start)
}

func (d *AddressMappedDevice) addressError(addr Value) error {
	return &AddressError{Address: addr, Start: d.start, End: d.end}
}

var _ Device = (*AddressMappedDevice)(nil)
