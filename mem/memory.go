// Package mem provides a latency-pipeline memory that is reachable as a bus
// device and advanced by the clock.
//
// Requests wait in a FIFO queue. A request is promoted into the single
// service slot during Settle, counts its latency down during Activate, and
// is transferred to or from storage during Deactivate once the countdown
// reaches zero. The next request is not promoted until the current one
// completes.
package mem

import (
	"github.com/sarchlab/busim/bus"
	"github.com/sarchlab/busim/future"
	"github.com/sarchlab/busim/hooking"
	"github.com/sarchlab/busim/idgen"
	"github.com/sarchlab/busim/timing"
	"github.com/sarchlab/busim/tracing"
)

type transaction struct {
	req       tracing.Req
	isRead    bool
	address   int64
	width     bus.Width
	data      bus.Value
	countdown int

	readResult  *future.Future[bus.Value]
	writeResult *future.Future[struct{}]
}

func (t *transaction) fail(err error) {
	if t.isRead {
		t.readResult.Reject(err)
		return
	}

	t.writeResult.Reject(err)
}

// Memory is a byte-addressable device with a fixed access latency.
type Memory struct {
	*hooking.HookableBase

	name    string
	latency int
	storage *Storage
	idGen   idgen.Generator

	queue       []*transaction
	current     *transaction
	lastRead    bus.Value
	hasLastRead bool
}

// Name returns the name of the memory.
func (m *Memory) Name() string {
	return m.name
}

// Latency returns the number of cycles a promoted request counts down.
func (m *Memory) Latency() int {
	return m.latency
}

// Storage returns the buffer behind the memory. Direct access bypasses the
// pipeline.
func (m *Memory) Storage() *Storage {
	return m.storage
}

// QueueLen returns the number of requests waiting for promotion.
func (m *Memory) QueueLen() int {
	return len(m.queue)
}

// InFlight tells if a request occupies the service slot.
func (m *Memory) InFlight() bool {
	return m.current != nil
}

// LastRead returns the most recent value loaded by a read. The second return
// value is false if no read has completed yet.
func (m *Memory) LastRead() (bus.Value, bool) {
	return m.lastRead, m.hasLastRead
}

// Read queues a load of width bytes at addr. The storage is not touched
// until the request reaches the head of the pipeline.
func (m *Memory) Read(addr bus.Value, width bus.Width) *future.Future[bus.Value] {
	t := &transaction{
		req: tracing.Req{
			ID:      m.idGen.Generate(),
			Kind:    tracing.KindRead,
			Address: addr.Int(),
			Width:   width.String(),
		},
		isRead:     true,
		address:    addr.Int(),
		width:      width,
		readResult: future.New[bus.Value](),
	}

	m.queue = append(m.queue, t)

	return t.readResult
}

// Write queues a store of data at addr. The number of bytes stored is given
// by the width of data.
func (m *Memory) Write(addr bus.Value, data bus.Value) *future.Future[struct{}] {
	t := &transaction{
		req: tracing.Req{
			ID:      m.idGen.Generate(),
			Kind:    tracing.KindWrite,
			Address: addr.Int(),
			Width:   data.Width().String(),
			Data:    data.Int(),
		},
		address:     addr.Int(),
		width:       data.Width(),
		data:        data,
		writeResult: future.New[struct{}](),
	}

	m.queue = append(m.queue, t)

	return t.writeResult
}

// Activate counts the latency of the current request down.
func (m *Memory) Activate() {
	if m.current != nil && m.current.countdown > 0 {
		m.current.countdown--
	}
}

// Settle promotes the head of the queue if the service slot is free.
func (m *Memory) Settle() {
	if m.current != nil || len(m.queue) == 0 {
		return
	}

	m.current = m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	m.current.countdown = m.latency

	tracing.TraceReqReceive(m, m.current.req)
}

// Deactivate performs the transfer of the current request once its latency
// has elapsed.
func (m *Memory) Deactivate() {
	if m.current == nil || m.current.countdown > 0 {
		return
	}

	t := m.current
	m.current = nil

	if t.isRead {
		m.finishRead(t)
	} else {
		m.finishWrite(t)
	}
}

func (m *Memory) finishRead(t *transaction) {
	loaded, err := m.load(t.address, t.width)
	if err != nil {
		m.complete(t, err)
		return
	}

	v := bus.NewValue(t.width, loaded)
	m.lastRead = v
	m.hasLastRead = true

	t.req.Data = loaded
	m.complete(t, nil)
	t.readResult.Resolve(v)
}

func (m *Memory) finishWrite(t *transaction) {
	if err := m.store(t.address, t.data); err != nil {
		m.complete(t, err)
		return
	}

	m.complete(t, nil)
	t.writeResult.Resolve(struct{}{})
}

func (m *Memory) complete(t *transaction, err error) {
	t.req.Err = err
	tracing.TraceReqComplete(m, t.req)

	if err != nil {
		t.fail(err)
	}
}

func (m *Memory) load(address int64, width bus.Width) (int64, error) {
	switch width {
	case bus.WidthByte:
		v, err := m.storage.Read8(address)
		return int64(v), err
	case bus.WidthHalfWord:
		v, err := m.storage.Read16(address)
		return int64(v), err
	default:
		v, err := m.storage.Read32(address)
		return int64(v), err
	}
}

func (m *Memory) store(address int64, data bus.Value) error {
	v := data.Masked()

	switch data.Width() {
	case bus.WidthByte:
		return m.storage.Write8(address, uint8(v))
	case bus.WidthHalfWord:
		return m.storage.Write16(address, uint16(v))
	default:
		return m.storage.Write32(address, v)
	}
}

var (
	_ bus.Device      = (*Memory)(nil)
	_ timing.Discrete = (*Memory)(nil)
)
