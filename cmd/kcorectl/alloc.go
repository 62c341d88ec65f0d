package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kcore/kernel"
	"github.com/joshuapare/kcore/kernel/alloc"
)

var (
	allocRelease string
	allocMap     int
)

func init() {
	cmd := newAllocCmd()
	cmd.Flags().StringVar(&allocRelease, "release", "none", "Release the blocks afterwards: none, order or reverse")
	cmd.Flags().IntVar(&allocMap, "map-width", 64, "Width of the heap map (0 disables it)")
	rootCmd.AddCommand(cmd)
}

func newAllocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alloc <size>...",
		Short: "Allocate blocks and show the resulting heap",
		Long: `The alloc command boots the machine, allocates one block per size argument
and prints where each block landed, the free list and a map of the arena.

Example:
  kcorectl alloc 40 100
  kcorectl alloc 40 100 --release reverse
  kcorectl alloc 4096 --mem 2097152 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlloc(args)
		},
	}
	return cmd
}

// AllocBlock is one allocation in the alloc report.
type AllocBlock struct {
	Requested uint   `json:"requested"`
	Addr      string `json:"addr"`
	Offset    uint32 `json:"offset"`
	Span      int    `json:"span"`
}

// AllocReport is the JSON form of the alloc command output.
type AllocReport struct {
	Arena    string         `json:"arena"`
	Blocks   []AllocBlock   `json:"blocks"`
	Released string         `json:"released"`
	FreeList alloc.Snapshot `json:"free_list"`
	Usage    alloc.Usage    `json:"usage"`
	Stats    alloc.Stats    `json:"stats"`
}

func runAlloc(args []string) error {
	sizes := make([]uint, 0, len(args))
	for _, a := range args {
		n, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", a, err)
		}
		sizes = append(sizes, uint(n))
	}
	switch allocRelease {
	case "none", "order", "reverse":
	default:
		return fmt.Errorf("invalid --release %q: want none, order or reverse", allocRelease)
	}

	r, _, err := bootMachine()
	if err != nil {
		return err
	}
	defer r.Close()

	report := AllocReport{Arena: r.Arena().String(), Released: allocRelease}
	var blocks []kernel.Block
	err = fatalAsError(func() {
		for _, size := range sizes {
			b := r.Allocate(size)
			blocks = append(blocks, b)
			report.Blocks = append(report.Blocks, AllocBlock{
				Requested: size,
				Addr:      fmt.Sprintf("0x%X", b.Addr),
				Offset:    uint32(b.Ref),
				Span:      cap(b.Data),
			})
			printVerbose("Allocated %d bytes at 0x%X\n", size, b.Addr)
		}

		if allocRelease == "reverse" {
			slices.Reverse(blocks)
		}
		if allocRelease != "none" {
			for _, b := range blocks {
				r.Release(b.Addr)
			}
		}
	})
	if err != nil {
		return err
	}

	heap := r.Heap()
	if err := heap.Verify(); err != nil {
		return err
	}
	if report.FreeList, err = heap.Snapshot(); err != nil {
		return err
	}
	if report.Usage, err = heap.Usage(); err != nil {
		return err
	}
	report.Stats = heap.Stats()

	if jsonOut {
		return printJSON(report)
	}
	return printAllocReport(report, heap)
}

func printAllocReport(report AllocReport, heap *alloc.Allocator) error {
	printInfo("%s\n", headerStyle.Render("Heap "+report.Arena))
	for _, b := range report.Blocks {
		printInfo("  alloc %-8d -> %s (offset 0x%X, span %d)\n", b.Requested, b.Addr, b.Offset, b.Span)
	}
	if report.Released != "none" {
		printInfo("  released in %s order\n", report.Released)
	}

	printInfo("\nFree list:\n")
	for _, s := range report.FreeList {
		printInfo("  0x%08X  %d bytes\n", s.Offset, s.Size)
	}
	printInfo("\n%s\n", renderUsage(report.Usage))

	if allocMap > 0 {
		segs, err := collectSegments(heap)
		if err != nil {
			return err
		}
		printInfo("\n%s\n", renderHeapMap(segs, report.Usage.ArenaSize, allocMap))
	}
	return nil
}
