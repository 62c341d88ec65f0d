package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kcore/kernel/boot"
)

var (
	memmapFile  string
	memmapWrite string
)

func init() {
	cmd := newMemmapCmd()
	cmd.Flags().StringVar(&memmapFile, "file", "", "Read a raw multiboot memory map buffer instead of the simulated PC map")
	cmd.Flags().StringVar(&memmapWrite, "write", "", "Write the map as a raw multiboot buffer to this path")
	rootCmd.AddCommand(cmd)
}

func newMemmapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memmap",
		Short: "Show the boot memory map and the heap arena chosen from it",
		Long: `The memmap command prints the boot memory map and the arena the heap would
own: the remainder of the region the kernel image is loaded into.

Example:
  kcorectl memmap
  kcorectl memmap --mem 67108864 --image-size 0x80000
  kcorectl memmap --write mmap.bin
  kcorectl memmap --file mmap.bin --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemmap()
		},
	}
	return cmd
}

// MemmapEntry is one region in the memmap report.
type MemmapEntry struct {
	Base   string `json:"base"`
	Length uint64 `json:"length"`
	Type   string `json:"type"`
}

// MemmapReport is the JSON form of the memmap command output.
type MemmapReport struct {
	Entries    []MemmapEntry `json:"entries"`
	ImageStart string        `json:"image_start"`
	ImageEnd   string        `json:"image_end"`
	ArenaBase  string        `json:"arena_base,omitempty"`
	ArenaSize  uint64        `json:"arena_size,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func runMemmap() error {
	entries := boot.PCMemoryMap(memSize)
	if memmapFile != "" {
		data, err := os.ReadFile(memmapFile)
		if err != nil {
			return fmt.Errorf("failed to read memory map: %w", err)
		}
		if entries, err = boot.ParseMultibootMap(data); err != nil {
			return err
		}
		printVerbose("Parsed %d entries from %s\n", len(entries), memmapFile)
	}

	if memmapWrite != "" {
		if err := os.WriteFile(memmapWrite, boot.EncodeMultibootMap(entries), 0o644); err != nil {
			return fmt.Errorf("failed to write memory map: %w", err)
		}
		printVerbose("Wrote %d entries to %s\n", len(entries), memmapWrite)
	}

	img := machineImage()
	report := MemmapReport{
		ImageStart: fmt.Sprintf("0x%X", img.Start),
		ImageEnd:   fmt.Sprintf("0x%X", img.End),
	}
	for _, e := range entries {
		report.Entries = append(report.Entries, MemmapEntry{
			Base:   fmt.Sprintf("0x%X", e.Base),
			Length: e.Length,
			Type:   e.Type.String(),
		})
	}
	a, err := boot.FindArena(entries, img)
	if err != nil {
		report.Error = err.Error()
	} else {
		report.ArenaBase = fmt.Sprintf("0x%X", a.Base)
		report.ArenaSize = a.Size
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("%s\n", headerStyle.Render("Memory map"))
	for _, e := range report.Entries {
		printInfo("  %-12s %12d bytes  %s\n", e.Base, e.Length, e.Type)
	}
	printInfo("\n%s\n", statusLine("kernel image", report.ImageStart+" - "+report.ImageEnd))
	if report.Error != "" {
		printInfo("%s\n", statusLine("arena", errorStyle.Render(report.Error)))
		return nil
	}
	printInfo("%s\n", statusLine("arena", a.String()))
	return nil
}
