package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kcore/internal/format"
	"github.com/joshuapare/kcore/kernel/boot"
	"github.com/joshuapare/kcore/kernel/platform"
)

func Test_Init_SingleSegmentSpansArena(t *testing.T) {
	a := newTestHeap(t, 1024)

	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 1016})
	require.NoError(t, a.Verify())
	require.Equal(t, uint64(testArenaBase), a.Base())
}

func Test_Init_Twice(t *testing.T) {
	a := newTestHeap(t, 1024)

	err := a.Init(boot.Arena{Base: testArenaBase, Size: 1024}, make([]byte, 1024))
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func Test_Init_Rejects(t *testing.T) {
	a := New(platform.NewMachine(nil))

	err := a.Init(boot.Arena{Base: testArenaBase, Size: 1024}, make([]byte, 512))
	require.ErrorIs(t, err, ErrArenaMismatch)

	err = a.Init(boot.Arena{Base: testArenaBase, Size: format.HeaderSize}, make([]byte, 8))
	require.ErrorIs(t, err, ErrArenaMismatch)

	// A failed Init leaves the allocator uninitialized.
	require.NoError(t, a.Init(boot.Arena{Base: testArenaBase, Size: 64}, make([]byte, 64)))
}

func Test_NotInitialized(t *testing.T) {
	a := New(platform.NewMachine(nil))

	_, _, err := a.Alloc(8)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, a.Free(16), ErrNotInitialized)
	_, err = a.Snapshot()
	require.ErrorIs(t, err, ErrNotInitialized)
}

// Test_Alloc_CarvesFromTop verifies blocks are cut from the high end of the
// donor, leaving the donor header where it was.
func Test_Alloc_CarvesFromTop(t *testing.T) {
	a := newTestHeap(t, 1024)

	ref1, p1, err := a.Alloc(40)
	require.NoError(t, err)
	require.Equal(t, Ref(984), ref1)
	require.Len(t, p1, 40)
	require.Equal(t, 40, cap(p1))
	requireAllocated(t, a, ref1, 40)
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 968})

	// 976 - 100 = 876 rounds down to 872; the 4 padding bytes stay in the block.
	ref2, p2, err := a.Alloc(100)
	require.NoError(t, err)
	require.Equal(t, Ref(872), ref2)
	require.Len(t, p2, 100)
	require.Equal(t, 104, cap(p2))
	requireAllocated(t, a, ref2, 104)
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 856})

	require.NoError(t, a.Verify())
	require.Equal(t, uint64(testArenaBase+984), a.Addr(ref1))
}

func Test_Alloc_PayloadIsolation(t *testing.T) {
	a := newTestHeap(t, 1024)

	_, p1, err := a.Alloc(24)
	require.NoError(t, err)
	_, p2, err := a.Alloc(24)
	require.NoError(t, err)

	for i := range p1 {
		p1[i] = 0xAA
	}
	for i := range p2 {
		p2[i] = 0xBB
	}
	for i := range p1 {
		require.Equal(t, byte(0xAA), p1[i], "payload 1 corrupted at %d", i)
	}
	require.NoError(t, a.Verify())
}

func Test_Alloc_AlignsPhysicalAddress(t *testing.T) {
	// Kernel images rarely end on an 8-byte boundary.
	a := newTestHeapAt(t, testArenaBase+3, 1024)

	for _, size := range []uint32{1, 7, 13, 40, 100} {
		ref, p, err := a.Alloc(size)
		require.NoError(t, err)
		require.Zero(t, a.Addr(ref)%format.Alignment, "size %d at 0x%X", size, a.Addr(ref))
		require.GreaterOrEqual(t, cap(p), int(size))
	}
	require.NoError(t, a.Verify())
}

func Test_Alloc_LargestFit(t *testing.T) {
	a := newTestHeap(t, 1024)

	// The new header needs its own 8 bytes above the donor header.
	_, _, err := a.Alloc(1009)
	require.ErrorIs(t, err, ErrNoSpace)

	ref, _, err := a.Alloc(1008)
	require.NoError(t, err)
	require.Equal(t, Ref(16), ref)
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 0})

	_, _, err = a.Alloc(0)
	require.ErrorIs(t, err, ErrNoSpace)
	require.Equal(t, 2, a.Stats().AllocFailures)

	require.NoError(t, a.Free(ref))
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 1016})
}

func Test_Alloc_FirstFitSkipsSmallSegments(t *testing.T) {
	a := newTestHeap(t, 1024)

	big, _, err := a.Alloc(800)
	require.NoError(t, err)
	_, _, err = a.Alloc(100)
	require.NoError(t, err)
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 96})

	require.NoError(t, a.Free(big))
	requireSnapshot(t, a,
		FreeSegment{Offset: 0, Size: 96},
		FreeSegment{Offset: 216, Size: 800},
	)

	ref, _, err := a.Alloc(500)
	require.NoError(t, err)
	require.Equal(t, Ref(520), ref)
	require.Equal(t, 1, a.Stats().SegmentsSkipped)
	requireSnapshot(t, a,
		FreeSegment{Offset: 0, Size: 96},
		FreeSegment{Offset: 216, Size: 288},
	)
	require.NoError(t, a.Verify())
}

func Test_Free_CoalescesBothSides(t *testing.T) {
	a := newTestHeap(t, 1024)

	r1, _, err := a.Alloc(40) // 976..1024
	require.NoError(t, err)
	r2, _, err := a.Alloc(40) // 928..976
	require.NoError(t, err)
	r3, _, err := a.Alloc(40) // 880..928
	require.NoError(t, err)

	require.NoError(t, a.Free(r1))
	require.NoError(t, a.Free(r3))
	requireSnapshot(t, a,
		FreeSegment{Offset: 0, Size: 920},
		FreeSegment{Offset: 976, Size: 40},
	)

	// r2 touches the head on its left and r1 on its right.
	require.NoError(t, a.Free(r2))
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 1016})

	s := a.Stats()
	require.Equal(t, 1, s.CoalesceForward)
	require.Equal(t, 2, s.CoalesceBackward)
	require.Equal(t, 3, s.FreeCalls)
	require.Equal(t, s.BytesAllocated, s.BytesFreed)
}

func Test_Free_RejectsBadRefs(t *testing.T) {
	a := newTestHeap(t, 1024)

	ref, _, err := a.Alloc(40)
	require.NoError(t, err)

	require.ErrorIs(t, a.Free(0), ErrBadRef)
	require.ErrorIs(t, a.Free(8), ErrBadRef)
	require.ErrorIs(t, a.Free(4096), ErrBadRef)
	require.ErrorIs(t, a.Free(ref+4), ErrBadRef)

	require.NoError(t, a.Free(ref))
	// The block merged into the head; freeing it again overlaps a free segment.
	require.ErrorIs(t, a.Free(ref), ErrBadRef)

	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 1016})
	require.NoError(t, a.Verify())
}

func Test_Free_DoubleFreeOfListNode(t *testing.T) {
	a := newTestHeap(t, 1024)

	r1, _, err := a.Alloc(40)
	require.NoError(t, err)
	_, _, err = a.Alloc(40)
	require.NoError(t, err)

	require.NoError(t, a.Free(r1))
	requireSnapshot(t, a,
		FreeSegment{Offset: 0, Size: 920},
		FreeSegment{Offset: 976, Size: 40},
	)

	// r1 is now the list tail with a nil link, so only the overlap check catches it.
	require.ErrorIs(t, a.Free(r1), ErrBadRef)
	require.NoError(t, a.Verify())
}

func Test_Verify_DetectsAdjacency(t *testing.T) {
	a := newTestHeap(t, 1024)

	ref, _, err := a.Alloc(40)
	require.NoError(t, err)

	// Hand-link the block into the list without merging it.
	require.NoError(t, format.PutLink(a.mem, 0, ref.Header()))
	require.NoError(t, format.PutLink(a.mem, ref.Header(), format.NilLink))

	require.ErrorIs(t, a.Verify(), ErrCorrupt)
}

func Test_Verify_DetectsBrokenTiling(t *testing.T) {
	a := newTestHeap(t, 1024)

	ref, _, err := a.Alloc(40)
	require.NoError(t, err)
	require.NoError(t, format.PutSize(a.mem, ref.Header(), 48))

	require.ErrorIs(t, a.Verify(), ErrCorrupt)
}

func Test_Usage(t *testing.T) {
	a := newTestHeap(t, 1024)

	_, _, err := a.Alloc(40)
	require.NoError(t, err)
	_, _, err = a.Alloc(100)
	require.NoError(t, err)

	u, err := a.Usage()
	require.NoError(t, err)
	require.Equal(t, Usage{
		ArenaSize:         1024,
		FreeBytes:         856,
		AllocatedBytes:    144,
		FreeSegments:      1,
		AllocatedSegments: 2,
		LargestFree:       856,
	}, u)
	require.Equal(t, uint64(24), u.HeaderBytes())

	var segs []Segment
	require.NoError(t, a.Walk(func(s Segment) error {
		segs = append(segs, s)
		return nil
	}))
	require.Equal(t, []Segment{
		{Offset: 0, Size: 856, Free: true},
		{Offset: 864, Size: 104},
		{Offset: 976, Size: 40},
	}, segs)
}

func Test_Alloc_ZeroSizeAtArenaTop(t *testing.T) {
	a := newTestHeap(t, 1024)

	ref, p, err := a.Alloc(0)
	require.NoError(t, err)
	require.Equal(t, Ref(1024), ref)
	require.Empty(t, p)
	requireAllocated(t, a, ref, 0)
	require.NoError(t, a.Verify())

	require.NoError(t, a.Free(ref))
	requireSnapshot(t, a, FreeSegment{Offset: 0, Size: 1016})
}
