package alloc

import (
	"fmt"

	"github.com/joshuapare/kcore/internal/format"
	"github.com/joshuapare/kcore/kernel/platform"
)

// Snapshot copies the free list.
func (a *Allocator) Snapshot() (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	platform.Guard(a.mask, func() {
		s, err = a.snapshotLocked()
	})
	return s, err
}

func (a *Allocator) snapshotLocked() (Snapshot, error) {
	if !a.ready {
		return nil, ErrNotInitialized
	}
	var s Snapshot
	prevEnd := uint64(0)
	for off := a.head; off != format.NilLink; {
		if len(s) > 0 && uint64(off) <= uint64(s[len(s)-1].Offset) {
			return nil, fmt.Errorf("%w: free list not ascending at 0x%X", ErrCorrupt, off)
		}
		h, err := format.ReadHeader(a.mem, off)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(s) > 0 && uint64(off) < prevEnd {
			return nil, fmt.Errorf("%w: free segment 0x%X overlaps its predecessor", ErrCorrupt, off)
		}
		s = append(s, FreeSegment{Offset: off, Size: h.Size})
		prevEnd = format.End(off, h)
		off = h.Link
	}
	return s, nil
}

// Walk calls fn for every segment in address order.
func (a *Allocator) Walk(fn func(Segment) error) error {
	var err error
	platform.Guard(a.mask, func() {
		err = a.walkLocked(fn)
	})
	return err
}

func (a *Allocator) walkLocked(fn func(Segment) error) error {
	free, err := a.snapshotLocked()
	if err != nil {
		return err
	}

	next := 0
	size := uint64(len(a.mem))
	for off := uint64(0); off < size; {
		h, err := format.ReadHeader(a.mem, uint32(off))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		seg := Segment{Offset: uint32(off), Size: h.Size}
		if next < len(free) && free[next].Offset == seg.Offset {
			seg.Free = true
			next++
		}
		if seg.End() > size {
			return fmt.Errorf("%w: segment 0x%X ends past the arena", ErrCorrupt, seg.Offset)
		}
		if err := fn(seg); err != nil {
			return err
		}
		off = seg.End()
	}
	if next != len(free) {
		return fmt.Errorf("%w: free segment 0x%X is not on a segment boundary",
			ErrCorrupt, free[next].Offset)
	}
	return nil
}

// Usage tiles the arena and summarizes it.
func (a *Allocator) Usage() (Usage, error) {
	var (
		u   Usage
		err error
	)
	platform.Guard(a.mask, func() {
		u, err = a.usageLocked()
	})
	return u, err
}

func (a *Allocator) usageLocked() (Usage, error) {
	u := Usage{ArenaSize: uint64(len(a.mem))}
	err := a.walkLocked(func(s Segment) error {
		if s.Free {
			u.FreeSegments++
			u.FreeBytes += uint64(s.Size)
			if s.Size > u.LargestFree {
				u.LargestFree = s.Size
			}
			return nil
		}
		u.AllocatedSegments++
		u.AllocatedBytes += uint64(s.Size)
		return nil
	})
	return u, err
}

// Verify checks the heap invariants: the free list is address-ascending, no
// two consecutive free segments touch, the segments tile the arena exactly,
// and free bytes + allocated bytes + headers add up to the arena size.
func (a *Allocator) Verify() error {
	var err error
	platform.Guard(a.mask, func() {
		err = a.verifyLocked()
	})
	return err
}

func (a *Allocator) verifyLocked() error {
	free, err := a.snapshotLocked()
	if err != nil {
		return err
	}
	if len(free) == 0 || free[0].Offset != 0 {
		return fmt.Errorf("%w: free list head is not at the arena base", ErrCorrupt)
	}
	for i := 1; i < len(free); i++ {
		prev := free[i-1]
		if uint64(prev.Offset)+format.HeaderSize+uint64(prev.Size) == uint64(free[i].Offset) {
			return fmt.Errorf("%w: free segments 0x%X and 0x%X are adjacent",
				ErrCorrupt, prev.Offset, free[i].Offset)
		}
	}

	u, err := a.usageLocked()
	if err != nil {
		return err
	}
	if total := u.FreeBytes + u.AllocatedBytes + u.HeaderBytes(); total != u.ArenaSize {
		return fmt.Errorf("%w: segments account for %d of %d bytes", ErrCorrupt, total, u.ArenaSize)
	}
	return nil
}
