// Package clock keeps the kernel's monotonic tick count, the only notion of
// elapsed time the core has.
package clock

import "github.com/joshuapare/kcore/kernel/platform"

// Frequency is the timer interrupt rate in Hz: the RTC periodic interrupt
// programmed with rate selector 1 (MC146818).
const Frequency = 256

// Clock is a 32-bit tick counter advanced once per timer interrupt. It is
// never reset; at 256 Hz it wraps after about 194 days.
type Clock struct {
	mask platform.Mask
	hz   uint32
	tick uint32
}

// New creates a clock ticking at hz, read under mask.
func New(mask platform.Mask, hz uint32) *Clock {
	if hz == 0 {
		hz = Frequency
	}
	return &Clock{mask: mask, hz: hz}
}

// Now returns the current tick inside a guarded section.
func (c *Clock) Now() uint32 {
	var t uint32
	platform.Guard(c.mask, func() {
		t = c.tick
	})
	return t
}

// Frequency returns the tick rate in Hz.
func (c *Clock) Frequency() uint32 {
	return c.hz
}

// Ticks converts seconds to ticks with 32-bit wrapping arithmetic.
func (c *Clock) Ticks(seconds uint32) uint32 {
	return seconds * c.hz
}

// Advance increments the tick and returns the new value. It must only be
// called from the timer interrupt, where interrupts are already masked.
func (c *Clock) Advance() uint32 {
	c.tick++
	return c.tick
}
