// Package system assembles memories, a bus and a clock from a config and
// drives accesses through them.
package system

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/busim/bus"
	"github.com/sarchlab/busim/config"
	"github.com/sarchlab/busim/future"
	"github.com/sarchlab/busim/mem"
	"github.com/sarchlab/busim/timing"
	"github.com/sarchlab/busim/tracing"
)

// System is a bus with memories behind it and the clock that advances them.
type System struct {
	cfg      config.Config
	clock    *timing.Clock
	bus      *bus.Bus
	memories []*mem.Memory
	windows  []*bus.AddressMappedDevice

	latency  *tracing.AverageTimeTracer
	dbTracer *tracing.DBTracer
	writer   tracing.TraceWriter
}

// Build validates cfg and wires the system it describes. The logger receives
// request traces when cfg.Trace.Log is set.
func Build(cfg config.Config, logger logrus.FieldLogger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{cfg: cfg}

	busBuilder := bus.MakeBuilder()
	for _, d := range cfg.Devices {
		order, err := d.Order()
		if err != nil {
			return nil, errors.Wrapf(err, "device %s", d.Name)
		}

		m := mem.MakeBuilder().
			WithCapacity(d.Capacity).
			WithLatency(d.Latency).
			WithByteOrder(order).
			Build(d.Name)

		window := bus.NewAddressMappedDevice(d.Start, d.Size, m)

		s.memories = append(s.memories, m)
		s.windows = append(s.windows, window)
		busBuilder = busBuilder.WithDevice(window)
	}

	s.bus = busBuilder.Build("Bus")
	s.clock = timing.NewClock()
	for _, m := range s.memories {
		s.clock.Register(m)
	}

	s.latency = tracing.NewAverageTimeTracer(s.clock,
		func(t tracing.Task) bool { return t.Kind == tracing.TaskKindReqOut })
	tracing.CollectTrace(s.bus, s.latency)

	if cfg.Trace.Log && logger != nil {
		lt := tracing.NewLogTracer(s.clock, logger)
		s.collectAll(lt)
	}

	if cfg.Trace.SQLite != "" {
		if err := s.attachWriter(tracing.NewSQLiteTraceWriter(cfg.Trace.SQLite)); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// AttachTraceWriter records the tasks of every component through w.
func (s *System) AttachTraceWriter(w tracing.TraceWriter) error {
	if s.dbTracer != nil {
		return errors.New("a trace writer is already attached")
	}

	return s.attachWriter(w)
}

func (s *System) attachWriter(w tracing.TraceWriter) error {
	if err := w.Init(); err != nil {
		return errors.Wrap(err, "initializing trace writer")
	}

	s.writer = w
	s.dbTracer = tracing.NewDBTracer(s.clock, w)
	s.collectAll(s.dbTracer)

	return nil
}

func (s *System) collectAll(t tracing.Tracer) {
	tracing.CollectTrace(s.bus, t)

	for _, m := range s.memories {
		tracing.CollectTrace(m, t)
	}
}

// Config returns the config the system was built from.
func (s *System) Config() config.Config {
	return s.cfg
}

// Clock returns the clock.
func (s *System) Clock() *timing.Clock {
	return s.clock
}

// Bus returns the bus.
func (s *System) Bus() *bus.Bus {
	return s.bus
}

// Memories returns the memories in bus order.
func (s *System) Memories() []*mem.Memory {
	return s.memories
}

// Windows returns the address-mapped devices in bus order.
func (s *System) Windows() []*bus.AddressMappedDevice {
	return s.windows
}

// Memory finds a memory by name.
func (s *System) Memory(name string) (*mem.Memory, bool) {
	for _, m := range s.memories {
		if m.Name() == name {
			return m, true
		}
	}

	return nil, false
}

// AverageLatency returns the average number of cycles between the bus
// admitting a request and delivering its result, and how many requests were
// counted.
func (s *System) AverageLatency() (float64, uint64) {
	return s.latency.AverageTime(), s.latency.TotalCount()
}

// Read reads through the bus and ticks until the result is available. It
// returns the number of ticks spent.
func (s *System) Read(addr bus.Value, width bus.Width) (bus.Value, int, error) {
	return Await(s.clock, s.bus.Read(addr, width), s.cfg.Clock.MaxTicksPerAccess)
}

// Write writes through the bus and ticks until the write completes. It
// returns the number of ticks spent.
func (s *System) Write(addr bus.Value, data bus.Value) (int, error) {
	_, ticks, err := Await(s.clock, s.bus.Write(addr, data),
		s.cfg.Clock.MaxTicksPerAccess)

	return ticks, err
}

// Close flushes the trace writer, if any.
func (s *System) Close() error {
	if s.dbTracer == nil {
		return nil
	}

	return s.dbTracer.Terminate()
}

// Await ticks clock until f completes, at most maxTicks times.
func Await[T any](
	clock *timing.Clock,
	f *future.Future[T],
	maxTicks int,
) (T, int, error) {
	ticks, err := clock.RunUntil(f.Done, maxTicks)
	if err != nil {
		var zero T
		return zero, ticks, err
	}

	v, err := f.Result()

	return v, ticks, err
}

// AddressMap describes the windows of the system, one line per device.
func (s *System) AddressMap() []string {
	lines := make([]string, 0, len(s.cfg.Devices))
	for _, d := range s.cfg.Devices {
		lines = append(lines, fmt.Sprintf(
			"%-12s [%#08x, %#08x) capacity=%#x latency=%d order=%s",
			d.Name, d.Start, d.End(), d.Capacity, d.Latency, d.ByteOrder))
	}

	return lines
}
