package future

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kcore/kernel/alloc"
	"github.com/joshuapare/kcore/kernel/platform"
)

func sleepAt(ctx alloc.Ref) Future {
	return Future{kind: KindSleep, ctx: ctx, slot: make([]byte, sleepContextSize), sleepReady: DeadlineReached}
}

func TestRegistryPushAndRemoveKeepOrder(t *testing.T) {
	r := NewRegistry(3)
	require.Equal(t, 3, r.Cap())

	require.NoError(t, r.Push(sleepAt(16)))
	require.NoError(t, r.Push(sleepAt(32)))
	require.NoError(t, r.Push(sleepAt(48)))
	require.ErrorIs(t, r.Push(sleepAt(64)), ErrRegistryFull)

	require.True(t, r.Remove(16))
	require.False(t, r.Remove(16))
	first, ok := r.First()
	require.True(t, ok)
	require.Equal(t, alloc.Ref(32), first.ctx)

	require.True(t, r.Remove(48))
	require.Equal(t, 1, r.Len())
	require.NoError(t, r.Push(sleepAt(64)))

	require.True(t, r.Remove(32))
	require.True(t, r.Remove(64))
	_, ok = r.First()
	require.False(t, ok)
}

func TestRegistryDefaultCapacity(t *testing.T) {
	r := NewRegistry(0)
	require.Equal(t, DefaultCapacity, r.Cap())
}

// TestOnTickConsultsOnlyFirstEntry pins the single-outstanding-sleep
// behavior: a later-registered future with an earlier deadline does not wake
// the executor until the first entry's deadline passes.
func TestOnTickConsultsOnlyFirstEntry(t *testing.T) {
	rig := newRig(t, DefaultCapacity)

	late, err := rig.exec.NewSleep(2, nil) // tick 512
	require.NoError(t, err)
	early, err := rig.exec.NewSleep(1, nil) // tick 256
	require.NoError(t, err)

	platform.Guard(rig.m, func() {
		require.NoError(t, rig.exec.registry.Push(late))
		require.NoError(t, rig.exec.registry.Push(early))
	})
	require.Equal(t, 2, rig.exec.Pending())

	rig.m.Step(platform.VectorTimer, 300)
	require.Equal(t, uint32(300), rig.clk.Now())
	require.False(t, rig.exec.Woken(), "woken by a future that is not first")

	rig.m.Step(platform.VectorTimer, 212)
	require.True(t, rig.exec.Woken())

	// Once the first entry is gone the remaining one is consulted.
	platform.Guard(rig.m, func() {
		require.True(t, rig.exec.registry.Remove(late.ctx))
	})
	rig.exec.wake.Store(false)
	rig.m.Raise(platform.VectorTimer)
	require.True(t, rig.exec.Woken())
}

func TestOnWakeEventSetsFlag(t *testing.T) {
	rig := newRig(t, DefaultCapacity)

	require.False(t, rig.exec.Woken())
	rig.m.Raise(platform.VectorUART)
	require.True(t, rig.exec.Woken())
}

func TestOnTickWithEmptyRegistryOnlyAdvancesClock(t *testing.T) {
	rig := newRig(t, DefaultCapacity)

	rig.m.Step(platform.VectorTimer, 10)
	require.Equal(t, uint32(10), rig.clk.Now())
	require.False(t, rig.exec.Woken())
}
