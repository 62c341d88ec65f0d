package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kcore/kernel/platform"
)

var serialBaud int

func init() {
	cmd := newSerialCmd()
	cmd.Flags().IntVar(&serialBaud, "baud", 115200, "Line rate of the simulated UART")
	rootCmd.AddCommand(cmd)
}

func newSerialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serial <text>",
		Short: "Write text through the simulated UART",
		Long: `The serial command writes text through the simulated COM1 transmitter,
awaiting the transmit-complete interrupt before every byte.

Example:
  kcorectl serial "hello from the kernel"
  kcorectl serial --baud 9600 "slow line"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSerial(args)
		},
	}
	return cmd
}

// SerialReport is the JSON form of the serial command output.
type SerialReport struct {
	Text  string `json:"text"`
	Bytes int    `json:"bytes"`
	Halts uint64 `json:"halts"`
	Wall  string `json:"wall"`
}

// byteTime is the time one 8N1 frame takes on the line.
func byteTime(baud int) time.Duration {
	return max(10*time.Second/time.Duration(baud), time.Microsecond)
}

func runSerial(args []string) error {
	if serialBaud <= 0 {
		return fmt.Errorf("invalid --baud %d", serialBaud)
	}
	r, m, err := bootMachine()
	if err != nil {
		return err
	}
	defer r.Close()

	var line bytes.Buffer
	var out io.Writer = &line
	if !jsonOut && !quiet {
		out = os.Stdout
	}
	uart := platform.NewUART(m, machineConfig().UARTVector, out, byteTime(serialBaud))

	text := []byte(args[0])
	var n int
	start := time.Now()
	err = fatalAsError(func() {
		n = r.WriteSerial(uart, text)
		r.Await(r.CreateIOFuture(uart.TransmitterEmpty))
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(SerialReport{
			Text:  line.String(),
			Bytes: n,
			Halts: m.Halts(),
			Wall:  time.Since(start).Round(time.Microsecond).String(),
		})
	}
	printInfo("\n")
	printVerbose("%d bytes, %d halts\n", n, m.Halts())
	return nil
}
