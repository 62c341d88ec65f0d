package alloc

import "github.com/joshuapare/kcore/internal/format"

// Ref is the arena offset of an allocation's first payload byte.
type Ref uint32

// Header returns the arena offset of the segment header preceding r.
func (r Ref) Header() uint32 {
	return uint32(r) - format.HeaderSize
}

// Segment describes one tile of the arena.
type Segment struct {
	Offset uint32 // arena offset of the header
	Size   uint32 // usable bytes after the header
	Free   bool
}

// End returns the offset one past the segment.
func (s Segment) End() uint64 {
	return uint64(s.Offset) + format.HeaderSize + uint64(s.Size)
}

// FreeSegment is one entry of a free list snapshot.
type FreeSegment struct {
	Offset uint32
	Size   uint32
}

// Snapshot is a copy of the free list in list order.
type Snapshot []FreeSegment

// Equal reports whether two snapshots list the same segments in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Stats counts allocator activity since Init.
type Stats struct {
	AllocCalls       int    // Alloc calls that succeeded
	AllocFailures    int    // Alloc calls that found no fitting segment
	FreeCalls        int    // Free calls that succeeded
	BytesAllocated   uint64 // bytes consumed by allocations, headers included
	BytesFreed       uint64 // bytes returned by frees, headers included
	SegmentsSkipped  int    // free segments passed over as too small
	CoalesceForward  int    // released segment merged into its successor
	CoalesceBackward int    // predecessor merged with the released segment
}

// Usage summarizes how the arena is currently tiled.
type Usage struct {
	ArenaSize         uint64
	FreeBytes         uint64 // usable bytes in free segments
	AllocatedBytes    uint64 // usable bytes in allocated segments
	FreeSegments      int
	AllocatedSegments int
	LargestFree       uint32
}

// HeaderBytes is the space taken by segment headers.
func (u Usage) HeaderBytes() uint64 {
	return uint64(u.FreeSegments+u.AllocatedSegments) * format.HeaderSize
}
