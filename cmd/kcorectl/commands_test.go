package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kcore/kernel/alloc"
)

// arenaSize is the arena left by resetFlags: RAM above 1 MiB minus the image.
const arenaSize = 2<<20 - 1<<20 - 0x40000

func TestAllocCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		release  string
		wantFree alloc.Snapshot
		wantErr  bool
	}{
		{
			name:    "keep blocks",
			args:    []string{"40", "100"},
			release: "none",
		},
		{
			name:     "release in order",
			args:     []string{"40", "100"},
			release:  "order",
			wantFree: alloc.Snapshot{{Offset: 0, Size: arenaSize - 8}},
		},
		{
			name:     "release in reverse",
			args:     []string{"40", "100", "0x200"},
			release:  "reverse",
			wantFree: alloc.Snapshot{{Offset: 0, Size: arenaSize - 8}},
		},
		{
			name:    "bad size",
			args:    []string{"forty"},
			release: "none",
			wantErr: true,
		},
		{
			name:    "bad release order",
			args:    []string{"40"},
			release: "sideways",
			wantErr: true,
		},
		{
			name:    "exhaustion is fatal",
			args:    []string{"16777216"},
			release: "none",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			jsonOut = true
			allocRelease = tt.release

			output, err := captureOutput(t, func() error {
				return runAlloc(tt.args)
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			var report AllocReport
			decodeJSON(t, output, &report)
			require.Len(t, report.Blocks, len(tt.args))
			for _, b := range report.Blocks {
				require.GreaterOrEqual(t, uint(b.Span), b.Requested)
			}
			if tt.wantFree != nil {
				require.Equal(t, tt.wantFree, report.FreeList)
			}
			require.Equal(t, uint64(arenaSize), report.Usage.ArenaSize)
		})
	}
}

func TestAllocCommandText(t *testing.T) {
	resetFlags(t)

	output, err := captureOutput(t, func() error {
		return runAlloc([]string{"40", "100"})
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"Free list:", "alloc 40", "alloc 100", "largest free"})
}

func TestSleepCommand(t *testing.T) {
	resetFlags(t)
	jsonOut = true

	output, err := captureOutput(t, func() error {
		return runSleep(context.Background(), []string{"2"})
	})
	require.NoError(t, err)

	var report SleepReport
	decodeJSON(t, output, &report)
	require.Equal(t, uint32(2), report.Seconds)
	require.GreaterOrEqual(t, report.Target-report.StartTick, uint32(512))
	require.GreaterOrEqual(t, report.EndTick, report.Target)
	require.Positive(t, report.Halts)
}

func TestSleepCommandRejectsBadSeconds(t *testing.T) {
	resetFlags(t)

	_, err := captureOutput(t, func() error {
		return runSleep(context.Background(), []string{"-1"})
	})
	require.Error(t, err)
}

func TestMemmapCommand(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	memmapWrite = filepath.Join(t.TempDir(), "mmap.bin")

	output, err := captureOutput(t, runMemmap)
	require.NoError(t, err)

	var report MemmapReport
	decodeJSON(t, output, &report)
	require.Len(t, report.Entries, 4)
	require.Equal(t, "available", report.Entries[3].Type)
	require.Equal(t, "0x140000", report.ArenaBase)
	require.Equal(t, uint64(arenaSize), report.ArenaSize)
	require.Empty(t, report.Error)

	// The written buffer parses back to the same map.
	memmapFile = memmapWrite
	memmapWrite = ""
	output, err = captureOutput(t, runMemmap)
	require.NoError(t, err)

	var reread MemmapReport
	decodeJSON(t, output, &reread)
	require.Equal(t, report, reread)
}

func TestMemmapCommandNoArena(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	memSize = 512 << 10

	output, err := captureOutput(t, runMemmap)
	require.NoError(t, err)

	var report MemmapReport
	decodeJSON(t, output, &report)
	require.Contains(t, report.Error, "no memory map entry at kernel image start")
}

func TestSerialCommand(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	serialBaud = 1 << 20

	output, err := captureOutput(t, func() error {
		return runSerial([]string{"hello"})
	})
	require.NoError(t, err)

	var report SerialReport
	decodeJSON(t, output, &report)
	require.Equal(t, "hello", report.Text)
	require.Equal(t, 5, report.Bytes)
}

func TestSerialCommandRejectsBadBaud(t *testing.T) {
	resetFlags(t)
	serialBaud = 0

	_, err := captureOutput(t, func() error {
		return runSerial([]string{"x"})
	})
	require.Error(t, err)
}
