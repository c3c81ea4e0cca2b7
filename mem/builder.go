package mem

import (
	"encoding/binary"

	"github.com/sarchlab/busim/hooking"
	"github.com/sarchlab/busim/idgen"
)

// Builder creates memories.
type Builder struct {
	capacity uint64
	latency  int
	order    binary.ByteOrder
	storage  *Storage
	idGen    idgen.Generator
}

// MakeBuilder returns a Builder of a 4 KB little-endian memory with a latency
// of 2 cycles.
func MakeBuilder() Builder {
	return Builder{
		capacity: 4 * KB,
		latency:  2,
		order:    binary.LittleEndian,
	}
}

// WithCapacity sets the size of the buffer in bytes.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithLatency sets the number of cycles a request spends in the service slot
// before its transfer happens.
func (b Builder) WithLatency(cycles int) Builder {
	b.latency = cycles
	return b
}

// WithByteOrder sets the layout of multi-byte values.
func (b Builder) WithByteOrder(order binary.ByteOrder) Builder {
	b.order = order
	return b
}

// WithStorage makes the memory use an existing storage. Capacity and byte
// order are then taken from the storage.
func (b Builder) WithStorage(s *Storage) Builder {
	b.storage = s
	return b
}

// WithIDGenerator sets the generator that labels requests.
func (b Builder) WithIDGenerator(g idgen.Generator) Builder {
	b.idGen = g
	return b
}

// Build creates a memory. It panics if the latency is negative.
func (b Builder) Build(name string) *Memory {
	if b.latency < 0 {
		panic("mem: latency must not be negative")
	}

	m := &Memory{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		latency:      b.latency,
		storage:      b.storage,
		idGen:        b.idGen,
	}

	if m.storage == nil {
		m.storage = NewStorage(b.capacity, b.order)
	}

	if m.idGen == nil {
		m.idGen = idgen.NewSequentialWithPrefix(name)
	}

	return m
}
