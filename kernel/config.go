package kernel

import (
	"fmt"

	"github.com/joshuapare/kcore/kernel/clock"
	"github.com/joshuapare/kcore/kernel/future"
	"github.com/joshuapare/kcore/kernel/platform"
)

// Config holds the boot-time tunables of the runtime.
type Config struct {
	// TickHz is the timer interrupt rate the clock converts seconds with.
	TickHz uint32

	// RegistryCapacity bounds the number of sleep futures awaited at once.
	RegistryCapacity int

	// TimerVector is where OnTick is installed.
	TimerVector platform.Vector

	// UARTVector is where OnWakeEvent is installed.
	UARTVector platform.Vector
}

// DefaultConfig returns the configuration of the reference machine.
func DefaultConfig() Config {
	return Config{
		TickHz:           clock.Frequency,
		RegistryCapacity: future.DefaultCapacity,
		TimerVector:      platform.VectorTimer,
		UARTVector:       platform.VectorUART,
	}
}

// Validate checks the configuration for values Boot cannot work with.
func (c Config) Validate() error {
	if c.TickHz == 0 {
		return fmt.Errorf("%w: tick rate must be positive", ErrBadConfig)
	}
	if c.RegistryCapacity <= 0 {
		return fmt.Errorf("%w: registry capacity %d", ErrBadConfig, c.RegistryCapacity)
	}
	if c.TimerVector == c.UARTVector {
		return fmt.Errorf("%w: timer and UART share vector 0x%02X", ErrBadConfig, uint8(c.TimerVector))
	}
	return nil
}
