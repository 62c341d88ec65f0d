// Package arena backs a boot.Arena with real memory on the hosted simulator.
// On unix the bytes come from an anonymous private mapping so the heap works
// on page-backed memory the Go runtime never scans or moves. Elsewhere a
// plain slice is used.
package arena

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kcore/kernel/boot"
)

var (
	// ErrTooLarge indicates the arena does not fit the host address space.
	ErrTooLarge = errors.New("arena: too large to map")

	// ErrClosed indicates the memory was already released.
	ErrClosed = errors.New("arena: closed")
)

// Memory is the byte view of an arena. Offset 0 is the arena base.
type Memory struct {
	arena   boot.Arena
	data    []byte
	release func([]byte) error
}

// Map reserves host memory for a.
func Map(a boot.Arena) (*Memory, error) {
	if a.Size > uint64(^uint(0)>>1) || a.Size > boot.MaxArenaSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, a.Size)
	}
	data, release, err := mapBytes(int(a.Size))
	if err != nil {
		return nil, fmt.Errorf("arena: map %d bytes: %w", a.Size, err)
	}
	return &Memory{arena: a, data: data, release: release}, nil
}

// Arena returns the descriptor this memory backs.
func (m *Memory) Arena() boot.Arena {
	return m.arena
}

// Bytes returns the arena contents. The slice is invalid after Close.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Addr converts an arena offset to a physical address.
func (m *Memory) Addr(off uint32) uint64 {
	return m.arena.Base + uint64(off)
}

// Offset converts a physical address to an arena offset. The end address is
// accepted: a zero-size block at the top of the arena starts there.
func (m *Memory) Offset(addr uint64) (uint32, bool) {
	if addr < m.arena.Base || addr > m.arena.End() {
		return 0, false
	}
	return uint32(addr - m.arena.Base), true
}

// Close releases the host memory.
func (m *Memory) Close() error {
	if m.data == nil {
		return ErrClosed
	}
	data := m.data
	m.data = nil
	return m.release(data)
}
