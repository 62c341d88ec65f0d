package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kcore/internal/format"
	"github.com/joshuapare/kcore/kernel/boot"
	"github.com/joshuapare/kcore/kernel/platform"
)

// testArenaBase is an 8-byte aligned physical base so arena offsets and
// physical addresses share alignment.
const testArenaBase = 0x200000

// newTestHeap creates an initialized heap over a fresh arena of size bytes.
func newTestHeap(t testing.TB, size uint64) *Allocator {
	t.Helper()
	return newTestHeapAt(t, testArenaBase, size)
}

func newTestHeapAt(t testing.TB, base, size uint64) *Allocator {
	t.Helper()
	a := New(platform.NewMachine(nil))
	require.NoError(t, a.Init(boot.Arena{Base: base, Size: size}, make([]byte, size)))
	return a
}

// requireSnapshot asserts the free list equals want.
func requireSnapshot(t testing.TB, a *Allocator, want ...FreeSegment) {
	t.Helper()
	got, err := a.Snapshot()
	require.NoError(t, err)
	require.Equal(t, Snapshot(want), got)
}

// requireAllocated asserts ref is preceded by an allocated header of size bytes.
func requireAllocated(t testing.TB, a *Allocator, ref Ref, size uint32) {
	t.Helper()
	h, err := format.ReadHeader(a.mem, ref.Header())
	require.NoError(t, err)
	require.Equal(t, format.Header{Size: size, Link: format.NilLink}, h)
}
