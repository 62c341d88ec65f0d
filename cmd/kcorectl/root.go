package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kcore/internal/logger"
	"github.com/joshuapare/kcore/kernel"
	"github.com/joshuapare/kcore/kernel/boot"
	"github.com/joshuapare/kcore/kernel/platform"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logJSON bool

	// Machine flags
	memSize   uint64
	imageSize uint64
	tickHz    uint32
	registry  int
)

var rootCmd = &cobra.Command{
	Use:   "kcorectl",
	Short: "Drive the kernel heap and executor on a simulated machine",
	Long: `kcorectl boots the kernel core on a simulated single-CPU machine and
exercises it: allocating and releasing heap blocks, sleeping on the tick
clock, writing to a serial port and inspecting the boot memory map.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Enabled: verbose,
			JSON:    logJSON,
			Level:   slog.LevelDebug,
		})
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit debug logs as JSON")

	// Machine shape
	rootCmd.PersistentFlags().Uint64Var(&memSize, "mem", 16<<20, "RAM size of the simulated machine in bytes")
	rootCmd.PersistentFlags().Uint64Var(&imageSize, "image-size", 0x40000, "Size of the loaded kernel image in bytes")
	rootCmd.PersistentFlags().Uint32Var(&tickHz, "tick-hz", kernel.DefaultConfig().TickHz, "Timer interrupt rate")
	rootCmd.PersistentFlags().IntVar(&registry, "registry", kernel.DefaultConfig().RegistryCapacity, "Sleep registry capacity")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// machineConfig builds the runtime config from the flags.
func machineConfig() kernel.Config {
	cfg := kernel.DefaultConfig()
	cfg.TickHz = tickHz
	cfg.RegistryCapacity = registry
	return cfg
}

// machineImage is the kernel image as a multiboot loader would place it.
func machineImage() boot.Image {
	return boot.Image{Start: boot.StandardImageStart, End: boot.StandardImageStart + imageSize}
}

// bootMachine boots the runtime on a fresh simulated machine whose fatal
// console is stderr.
func bootMachine() (*kernel.Runtime, *platform.Machine, error) {
	m := platform.NewMachine(platform.NewVGAConsole(os.Stderr))
	r, err := kernel.Boot(machineConfig(), m, boot.PCMemoryMap(memSize), machineImage())
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Booted: arena %s, %d Hz\n", r.Arena(), r.Clock().Frequency())
	return r, m, nil
}

// startTimer raises the timer vector on m until the returned stop is called.
// A zero hz raises ticks back to back. stop returns once the last tick has
// been delivered, so the arena may be closed after it.
func startTimer(ctx context.Context, m *platform.Machine, hz uint32) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v := machineConfig().TimerVector
	go func() {
		defer close(done)
		if hz > 0 {
			m.RunTimer(ctx, v, hz)
			return
		}
		for ctx.Err() == nil {
			m.Raise(v)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// fatalAsError runs fn and turns a kernel fatal into an error.
func fatalAsError(fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			fe, ok := v.(*platform.FatalError)
			if !ok {
				panic(v)
			}
			err = fe
		}
	}()
	fn()
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
