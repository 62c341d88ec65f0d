package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var sleepRealtime bool

func init() {
	cmd := newSleepCmd()
	cmd.Flags().BoolVar(&sleepRealtime, "realtime", false, "Fire the timer at --tick-hz instead of as fast as possible")
	rootCmd.AddCommand(cmd)
}

func newSleepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sleep <seconds>",
		Short: "Await a sleep future driven by the timer interrupt",
		Long: `The sleep command boots the machine, starts the timer interrupt and awaits
a sleep future. It reports the ticks that elapsed and how often the CPU halted.

Example:
  kcorectl sleep 2
  kcorectl sleep 1 --realtime
  kcorectl sleep 3 --tick-hz 1024 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSleep(cmd.Context(), args)
		},
	}
	return cmd
}

// SleepReport is the JSON form of the sleep command output.
type SleepReport struct {
	Seconds   uint32 `json:"seconds"`
	TickHz    uint32 `json:"tick_hz"`
	StartTick uint32 `json:"start_tick"`
	Target    uint32 `json:"target_tick"`
	EndTick   uint32 `json:"end_tick"`
	Halts     uint64 `json:"halts"`
	Wall      string `json:"wall"`
}

func runSleep(ctx context.Context, args []string) error {
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid seconds %q: %w", args[0], err)
	}
	seconds := uint32(n)

	r, m, err := bootMachine()
	if err != nil {
		return err
	}
	defer r.Close()

	var hz uint32
	if sleepRealtime {
		hz = r.Clock().Frequency()
	}
	stopTimer := startTimer(ctx, m, hz)
	defer stopTimer()

	report := SleepReport{Seconds: seconds, TickHz: r.Clock().Frequency()}
	start := time.Now()
	err = fatalAsError(func() {
		report.StartTick = r.Clock().Now()
		f := r.CreateSleepFuture(seconds, nil)
		report.Target, _ = f.Target()
		r.Await(f)
		report.EndTick = r.Clock().Now()
	})
	if err != nil {
		return err
	}
	report.Halts = m.Halts()
	report.Wall = time.Since(start).Round(time.Millisecond).String()

	if jsonOut {
		return printJSON(report)
	}
	printInfo("%s\n", headerStyle.Render(fmt.Sprintf("sleep %ds at %d Hz", seconds, report.TickHz)))
	printInfo("%s\n", statusLine("start tick", report.StartTick))
	printInfo("%s\n", statusLine("target tick", report.Target))
	printInfo("%s\n", statusLine("woke at", report.EndTick))
	printInfo("%s\n", statusLine("halts", report.Halts))
	printInfo("%s\n", statusLine("wall time", report.Wall))
	return nil
}

// statusLine renders one label/value row.
func statusLine(label string, value any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}
