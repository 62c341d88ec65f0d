package arena

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kcore/kernel/boot"
)

func TestMapAndClose(t *testing.T) {
	a := boot.Arena{Base: 0x120000, Size: 8192}
	m, err := Map(a)
	require.NoError(t, err)

	require.Len(t, m.Bytes(), 8192)
	require.Equal(t, a, m.Arena())

	// Fresh mappings are zero-filled and writable.
	data := m.Bytes()
	require.Zero(t, data[0])
	data[8191] = 0x5A
	require.Equal(t, byte(0x5A), m.Bytes()[8191])

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Close(), ErrClosed)
	require.Nil(t, m.Bytes())
}

func TestAddrOffset(t *testing.T) {
	m, err := Map(boot.Arena{Base: 0x1000, Size: 64})
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, uint64(0x1010), m.Addr(0x10))

	off, ok := m.Offset(0x1010)
	require.True(t, ok)
	require.Equal(t, uint32(0x10), off)

	_, ok = m.Offset(0xFFF)
	require.False(t, ok)
	off, ok = m.Offset(0x1040)
	require.True(t, ok)
	require.Equal(t, uint32(64), off)
	_, ok = m.Offset(0x1041)
	require.False(t, ok)
}

func TestMapTooLarge(t *testing.T) {
	_, err := Map(boot.Arena{Base: 0, Size: boot.MaxArenaSize + 1})
	require.ErrorIs(t, err, ErrTooLarge)
}
