package platform

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/kcore/internal/logger"
)

// Machine is a simulated single-CPU machine.
type Machine struct {
	// mask is held while interrupts are disabled. masking counts callers
	// waiting in DisableInterrupts; delivery stands back while it is nonzero.
	mask    sync.Mutex
	masking atomic.Int32

	mu        sync.Mutex
	cond      *sync.Cond
	handlers  map[Vector]Handler
	delivered uint64 // interrupts serviced so far
	observed  uint64 // value of delivered when Halt last returned

	console io.Writer
	halts   atomic.Uint64
}

var _ Platform = (*Machine)(nil)

// NewMachine creates a machine whose console output goes to console.
// A nil console discards output.
func NewMachine(console io.Writer) *Machine {
	if console == nil {
		console = io.Discard
	}
	m := &Machine{
		handlers: make(map[Vector]Handler),
		console:  console,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// DisableInterrupts masks interrupt delivery.
func (m *Machine) DisableInterrupts() {
	m.masking.Add(1)
	m.mask.Lock()
	m.masking.Add(-1)
}

// EnableInterrupts unmasks interrupt delivery.
func (m *Machine) EnableInterrupts() {
	m.mask.Unlock()
}

// Halt blocks until an interrupt has been serviced since the previous Halt
// returned.
func (m *Machine) Halt() {
	m.halts.Add(1)
	m.mu.Lock()
	for m.delivered == m.observed {
		m.cond.Wait()
	}
	m.observed = m.delivered
	m.mu.Unlock()
}

// Halts returns how many times Halt has been entered.
func (m *Machine) Halts() uint64 {
	return m.halts.Load()
}

// Register installs h for vector v, replacing any previous handler.
func (m *Machine) Register(v Vector, h Handler) {
	m.mu.Lock()
	m.handlers[v] = h
	m.mu.Unlock()
	logger.Debug("interrupt registered", "vector", fmt.Sprintf("0x%02X", uint8(v)))
}

// Raise delivers interrupt v. It waits until interrupts are enabled, runs the
// handler with interrupts masked and then wakes a halted CPU. It reports
// whether a handler was installed; the CPU wakes either way.
func (m *Machine) Raise(v Vector) bool {
	m.mu.Lock()
	h := m.handlers[v]
	m.mu.Unlock()

	if h != nil {
		m.service(h)
	}

	m.mu.Lock()
	m.delivered++
	m.cond.Broadcast()
	m.mu.Unlock()
	return h != nil
}

// service runs h with interrupts masked. A pending DisableInterrupts goes
// first, so a stream of interrupts cannot starve foreground code.
func (m *Machine) service(h Handler) {
	for m.masking.Load() > 0 {
		runtime.Gosched()
	}
	m.mask.Lock()
	defer m.mask.Unlock()
	h()
}

// Step raises v n times in a row.
func (m *Machine) Step(v Vector, n int) {
	for range n {
		m.Raise(v)
	}
}

// RunTimer raises v hz times per second until ctx is done.
func (m *Machine) RunTimer(ctx context.Context, v Vector, hz uint32) {
	if hz == 0 {
		return
	}
	t := time.NewTicker(time.Second / time.Duration(hz))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Raise(v)
		}
	}
}

// Fatal reports msg on the log and the console, then panics with a
// *FatalError.
func (m *Machine) Fatal(msg string) {
	logger.Error("kernel panic", "msg", msg)
	fmt.Fprintf(m.console, "\npanic called with error: %s\n", msg)
	panic(&FatalError{Msg: msg})
}
