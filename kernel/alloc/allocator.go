package alloc

import (
	"fmt"
	"os"

	"github.com/joshuapare/kcore/internal/format"
	"github.com/joshuapare/kcore/internal/logger"
	"github.com/joshuapare/kcore/kernel/boot"
	"github.com/joshuapare/kcore/kernel/platform"
)

// Runtime debug flag for allocation logging - controlled by KCORE_LOG_ALLOC env var.
var logAlloc = os.Getenv("KCORE_LOG_ALLOC") != ""

// Allocator is the segment-list heap. The zero value is not usable; create
// one with New and call Init once.
type Allocator struct {
	mask platform.Mask

	mem   []byte
	base  uint64 // physical address of offset 0
	head  uint32 // offset of the lowest free segment
	ready bool

	stats Stats
}

// New creates an allocator whose operations run guarded on mask.
func New(mask platform.Mask) *Allocator {
	return &Allocator{mask: mask, head: format.NilLink}
}

// Init installs a single free segment spanning the arena. mem holds the
// arena bytes, offset 0 being a.Base.
func (a *Allocator) Init(arena boot.Arena, mem []byte) error {
	var err error
	platform.Guard(a.mask, func() {
		err = a.initLocked(arena, mem)
	})
	return err
}

func (a *Allocator) initLocked(arena boot.Arena, mem []byte) error {
	if a.ready {
		return ErrAlreadyInitialized
	}
	if uint64(len(mem)) < arena.Size {
		return fmt.Errorf("%w: %d < %d", ErrArenaMismatch, len(mem), arena.Size)
	}
	if arena.Size <= format.HeaderSize || arena.Size > boot.MaxArenaSize {
		return fmt.Errorf("%w: arena of %d bytes", ErrArenaMismatch, arena.Size)
	}

	a.mem = mem[:arena.Size]
	a.base = arena.Base
	a.head = 0
	a.stats = Stats{}
	if err := format.PutHeader(a.mem, 0, format.Header{
		Size: uint32(arena.Usable()),
		Link: format.NilLink,
	}); err != nil {
		return err
	}
	a.ready = true

	logger.Debug("heap initialized", "base", fmt.Sprintf("0x%X", a.base), "free", arena.Usable())
	return nil
}

// Alloc reserves at least size bytes and returns the payload reference and a
// slice over the payload. The slice has length size; its capacity reaches the
// end of the segment.
func (a *Allocator) Alloc(size uint32) (Ref, []byte, error) {
	var (
		ref     Ref
		payload []byte
		err     error
	)
	platform.Guard(a.mask, func() {
		ref, payload, err = a.allocLocked(size)
	})
	return ref, payload, err
}

func (a *Allocator) allocLocked(size uint32) (Ref, []byte, error) {
	if !a.ready {
		return 0, nil, ErrNotInitialized
	}

	for off := a.head; off != format.NilLink; {
		h, err := format.ReadHeader(a.mem, off)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		hdr, ok := a.carve(off, h, size)
		if !ok {
			a.stats.SegmentsSkipped++
			off = h.Link
			continue
		}

		end := format.End(off, h)
		consumed := uint32(end - uint64(hdr))
		if err := format.PutHeader(a.mem, hdr, format.Header{
			Size: consumed - format.HeaderSize,
			Link: format.NilLink,
		}); err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if err := format.PutSize(a.mem, off, h.Size-consumed); err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		a.stats.AllocCalls++
		a.stats.BytesAllocated += uint64(consumed)

		ref := Ref(hdr + format.HeaderSize)
		if logAlloc {
			logger.Debug("alloc",
				"requested", size,
				"ref", fmt.Sprintf("0x%X", uint32(ref)),
				"span", consumed-format.HeaderSize,
				"donor", fmt.Sprintf("0x%X", off),
				"donor_left", h.Size-consumed)
		}
		return ref, a.mem[ref : uint32(ref)+size : end], nil
	}

	a.stats.AllocFailures++
	return 0, nil, fmt.Errorf("%w: %d bytes", ErrNoSpace, size)
}

// carve computes where an allocation of size bytes would place its header
// inside the free segment at off. It reports false when the segment is too
// small, which includes the case where the new header would overlap the
// donor's own header.
func (a *Allocator) carve(off uint32, h format.Header, size uint32) (uint32, bool) {
	endAddr := a.base + format.End(off, h)
	if uint64(size) > endAddr {
		return 0, false
	}
	payloadAddr := format.AlignDown(endAddr - uint64(size))
	lowest := a.base + uint64(off) + 2*format.HeaderSize
	if payloadAddr < lowest {
		return 0, false
	}
	return uint32(payloadAddr - format.HeaderSize - a.base), true
}

// Free releases the allocation at ref and merges it with its free neighbors.
func (a *Allocator) Free(ref Ref) error {
	var err error
	platform.Guard(a.mask, func() {
		err = a.freeLocked(ref)
	})
	return err
}

func (a *Allocator) freeLocked(ref Ref) error {
	if !a.ready {
		return ErrNotInitialized
	}
	// Offset 0 always holds the list head, so no payload starts below 16. A
	// zero-size block at the arena top has its payload at the arena end.
	if uint32(ref) < 2*format.HeaderSize || uint64(ref) > uint64(len(a.mem)) {
		return fmt.Errorf("%w: 0x%X outside arena", ErrBadRef, uint32(ref))
	}
	if (a.base+uint64(ref))&format.AlignmentMask != 0 {
		return fmt.Errorf("%w: 0x%X misaligned", ErrBadRef, uint32(ref))
	}

	off := ref.Header()
	h, err := format.ReadHeader(a.mem, off)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRef, err)
	}
	if h.Link != format.NilLink {
		return fmt.Errorf("%w: 0x%X is not an allocated segment", ErrBadRef, uint32(ref))
	}
	if format.End(off, h) > uint64(len(a.mem)) {
		return fmt.Errorf("%w: 0x%X spans past arena end", ErrBadRef, uint32(ref))
	}

	if err := a.insertLocked(off, h.Size); err != nil {
		return err
	}

	a.stats.FreeCalls++
	a.stats.BytesFreed += uint64(h.Size) + format.HeaderSize
	if logAlloc {
		logger.Debug("free", "ref", fmt.Sprintf("0x%X", uint32(ref)), "size", h.Size)
	}
	return nil
}

// insertLocked splices the segment at seg into the free list after the last
// node below it, then merges it with its successor and its predecessor.
func (a *Allocator) insertLocked(seg uint32, size uint32) error {
	if a.head == format.NilLink || seg <= a.head {
		return fmt.Errorf("%w: segment 0x%X", ErrNoSplice, seg)
	}
	segEnd := uint64(seg) + format.HeaderSize + uint64(size)

	for cur := a.head; cur != format.NilLink; {
		ch, err := format.ReadHeader(a.mem, cur)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if ch.Link != format.NilLink && ch.Link <= seg {
			cur = ch.Link
			continue
		}

		// cur < seg < ch.Link: the released span must sit between them.
		if format.End(cur, ch) > uint64(seg) {
			return fmt.Errorf("%w: 0x%X overlaps free segment 0x%X", ErrBadRef, seg, cur)
		}
		if ch.Link != format.NilLink && segEnd > uint64(ch.Link) {
			return fmt.Errorf("%w: 0x%X overlaps free segment 0x%X", ErrBadRef, seg, ch.Link)
		}

		if err := format.PutHeader(a.mem, seg, format.Header{Size: size, Link: ch.Link}); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if err := format.PutLink(a.mem, cur, seg); err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		merged, err := a.mergeLocked(seg, ch.Link)
		if err != nil {
			return err
		}
		if merged {
			a.stats.CoalesceForward++
		}
		merged, err = a.mergeLocked(cur, seg)
		if err != nil {
			return err
		}
		if merged {
			a.stats.CoalesceBackward++
		}
		return nil
	}
	return fmt.Errorf("%w: segment 0x%X", ErrNoSplice, seg)
}

// mergeLocked folds segment hi into lo when lo ends exactly where hi starts.
// hi's header ceases to exist.
func (a *Allocator) mergeLocked(lo, hi uint32) (bool, error) {
	if hi == format.NilLink {
		return false, nil
	}
	lh, err := format.ReadHeader(a.mem, lo)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if format.End(lo, lh) != uint64(hi) {
		return false, nil
	}
	hh, err := format.ReadHeader(a.mem, hi)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := format.PutHeader(a.mem, lo, format.Header{
		Size: lh.Size + format.HeaderSize + hh.Size,
		Link: hh.Link,
	}); err != nil {
		return false, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return true, nil
}

// Base returns the physical address of arena offset 0.
func (a *Allocator) Base() uint64 {
	return a.base
}

// Addr converts a reference to the physical address of its payload.
func (a *Allocator) Addr(ref Ref) uint64 {
	return a.base + uint64(ref)
}

// Stats returns a copy of the activity counters.
func (a *Allocator) Stats() Stats {
	var s Stats
	platform.Guard(a.mask, func() {
		s = a.stats
	})
	return s
}
