package platform

import (
	"io"
	"sync"
	"time"
)

// UART simulates the transmit side of a 16550 serial port. A byte written to
// the transmit holding register stays there until the transmission completes,
// at which point the register reads empty again and a transmit-complete
// interrupt is raised.
type UART struct {
	m      *Machine
	vector Vector
	out    io.Writer

	// byteTime is how long one byte takes to shift out. Zero means the
	// transmission only completes when Complete is called.
	byteTime time.Duration

	mu      sync.Mutex
	pending bool
	holding byte
}

// NewUART attaches a UART to m that raises vector on transmit completion and
// writes transmitted bytes to out.
func NewUART(m *Machine, vector Vector, out io.Writer, byteTime time.Duration) *UART {
	if out == nil {
		out = io.Discard
	}
	return &UART{m: m, vector: vector, out: out, byteTime: byteTime}
}

// TransmitterEmpty reports whether the transmit holding register can accept a
// byte (the THRE bit of the line status register).
func (u *UART) TransmitterEmpty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.pending
}

// Transmit loads b into the transmit holding register.
func (u *UART) Transmit(b byte) error {
	u.mu.Lock()
	if u.pending {
		u.mu.Unlock()
		return ErrTransmitterBusy
	}
	u.pending = true
	u.holding = b
	u.mu.Unlock()

	if u.byteTime > 0 {
		time.AfterFunc(u.byteTime, func() { u.Complete() })
	}
	return nil
}

// Complete finishes the pending transmission, if any, and raises the
// transmit-complete interrupt. It reports whether a byte was sent.
func (u *UART) Complete() bool {
	u.mu.Lock()
	if !u.pending {
		u.mu.Unlock()
		return false
	}
	_, _ = u.out.Write([]byte{u.holding})
	u.pending = false
	u.mu.Unlock()

	u.m.Raise(u.vector)
	return true
}
