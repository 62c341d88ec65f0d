package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/kcore/kernel/alloc"
)

const (
	freeCell = "░"
	usedCell = "█"
)

// renderHeapMap draws the arena as width cells, each showing whether the
// segment under its midpoint is free or allocated.
func renderHeapMap(segs []alloc.Segment, arenaSize uint64, width int) string {
	if width <= 0 || arenaSize == 0 || len(segs) == 0 {
		return ""
	}
	var b strings.Builder
	seg := 0
	for cell := range width {
		mid := (uint64(cell)*2 + 1) * arenaSize / uint64(width*2)
		for seg < len(segs)-1 && segs[seg].End() <= mid {
			seg++
		}
		if segs[seg].Free {
			b.WriteString(freeCellStyle.Render(freeCell))
		} else {
			b.WriteString(usedCellStyle.Render(usedCell))
		}
	}
	return b.String()
}

// renderUsage formats heap usage as label/value rows.
func renderUsage(u alloc.Usage) string {
	rows := []struct {
		label string
		value string
	}{
		{"arena", fmt.Sprintf("%d bytes", u.ArenaSize)},
		{"free", fmt.Sprintf("%d bytes in %d segments", u.FreeBytes, u.FreeSegments)},
		{"allocated", fmt.Sprintf("%d bytes in %d segments", u.AllocatedBytes, u.AllocatedSegments)},
		{"headers", fmt.Sprintf("%d bytes", u.HeaderBytes())},
		{"largest free", fmt.Sprintf("%d bytes", u.LargestFree)},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r.label), valueStyle.Render(r.value)))
	}
	return strings.Join(lines, "\n")
}

// collectSegments walks the heap into a slice.
func collectSegments(a *alloc.Allocator) ([]alloc.Segment, error) {
	var segs []alloc.Segment
	err := a.Walk(func(s alloc.Segment) error {
		segs = append(segs, s)
		return nil
	})
	return segs, err
}
