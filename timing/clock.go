// Package timing drives discrete devices through the three-phase clock
// protocol.
//
// Every Tick is a complete sweep: Activate on every device in registration
// order, then Settle on every device, then Deactivate on every device. No
// device observes a sibling's phase-3 effects during its own phase 2, and no
// device's phase 3 runs while a sibling still has unsettled events from the
// same tick. Partial ticks do not exist.
package timing

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/busim/hooking"
)

// VTimeInCycle counts completed clock ticks.
type VTimeInCycle uint64

// TimeTeller exposes the current simulation cycle.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}

// Activate is the first phase of a tick.
type Activate interface {
	Activate()
}

// Settle is the second phase of a tick, where devices process their queued
// events.
type Settle interface {
	Settle()
}

// Deactivate is the third phase of a tick, where devices apply the outcome of
// the tick.
type Deactivate interface {
	Deactivate()
}

// Discrete is a device that is advanced by the clock.
type Discrete interface {
	Activate
	Settle
	Deactivate
}

// ErrTickBudgetExhausted is returned by RunUntil when the condition does not
// hold after the allowed number of ticks.
var ErrTickBudgetExhausted = errors.New("timing: tick budget exhausted")

// HookPosBeforeTick is triggered before the activate phase. The item is the
// cycle number of the tick about to run.
var HookPosBeforeTick = &hooking.HookPos{Name: "BeforeTick"}

// HookPosAfterTick is triggered after the deactivate phase. The item is the
// cycle number of the tick that just completed.
var HookPosAfterTick = &hooking.HookPos{Name: "AfterTick"}

// Clock drives an ordered list of discrete devices. The devices are shared
// references; the same instances are usually reachable as bus devices too.
type Clock struct {
	*hooking.HookableBase

	devices []Discrete
	now     VTimeInCycle
}

// NewClock creates a clock driving the given devices in the given order.
func NewClock(devices ...Discrete) *Clock {
	c := &Clock{
		HookableBase: hooking.NewHookableBase(),
	}

	for _, d := range devices {
		c.Register(d)
	}

	return c
}

// Register appends a device to the clock. It must only be used at wiring
// time, never from inside a tick.
func (c *Clock) Register(d Discrete) {
	if d == nil {
		panic("timing: cannot register a nil device")
	}

	c.devices = append(c.devices, d)
}

// Devices returns the devices in tick order.
func (c *Clock) Devices() []Discrete {
	return c.devices
}

// CurrentTime returns the number of completed ticks.
func (c *Clock) CurrentTime() VTimeInCycle {
	return c.now
}

// Tick runs one full three-phase sweep over all devices.
func (c *Clock) Tick() {
	c.invoke(HookPosBeforeTick, c.now+1)

	for _, d := range c.devices {
		d.Activate()
	}

	for _, d := range c.devices {
		d.Settle()
	}

	for _, d := range c.devices {
		d.Deactivate()
	}

	c.now++

	c.invoke(HookPosAfterTick, c.now)
}

// TickN runs n ticks.
func (c *Clock) TickN(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// RunUntil ticks until done reports true, checking before every tick. It
// returns the number of ticks run. If done still reports false after
// maxTicks ticks, it returns ErrTickBudgetExhausted.
func (c *Clock) RunUntil(done func() bool, maxTicks int) (int, error) {
	for n := 0; ; n++ {
		if done() {
			return n, nil
		}

		if n >= maxTicks {
			return n, errors.Wrapf(ErrTickBudgetExhausted,
				"condition not met after %d ticks", maxTicks)
		}

		c.Tick()
	}
}

func (c *Clock) invoke(pos *hooking.HookPos, cycle VTimeInCycle) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   cycle,
	})
}

var _ TimeTeller = (*Clock)(nil)
