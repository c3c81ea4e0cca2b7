package bus

import (
	"github.com/sarchlab/busim/hooking"
	"github.com/sarchlab/busim/idgen"
)

// Builder creates buses.
type Builder struct {
	devices []*AddressMappedDevice
	idGen   idgen.Generator
}

// MakeBuilder returns a Builder without devices.
func MakeBuilder() Builder {
	return Builder{}
}

// WithDevice appends a device to the decoding order.
func (b Builder) WithDevice(d *AddressMappedDevice) Builder {
	b.devices = append(b.devices[:len(b.devices):len(b.devices)], d)
	return b
}

// WithDevices appends devices to the decoding order.
func (b Builder) WithDevices(ds ...*AddressMappedDevice) Builder {
	for _, d := range ds {
		b = b.WithDevice(d)
	}

	return b
}

// WithIDGenerator sets the generator that labels requests. By default the
// bus numbers its requests sequentially, prefixed with its name.
func (b Builder) WithIDGenerator(g idgen.Generator) Builder {
	b.idGen = g
	return b
}

// Build creates the bus.
func (b Builder) Build(name string) *Bus {
	for _, d := range b.devices {
		if d == nil {
			panic("bus: cannot attach a nil device")
		}
	}

	bus := &Bus{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		idGen:        b.idGen,
		devices:      append([]*AddressMappedDevice(nil), b.devices...),
		state:        Idle,
	}

	if bus.idGen == nil {
		bus.idGen = idgen.NewSequentialWithPrefix(name)
	}

	return bus
}
