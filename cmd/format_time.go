package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/seedsweep/sweep"
)

func writeTimeLimits(args []string, out io.Writer) error {
	for _, arg := range args {
		minutes, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("minutes %q: %w", arg, err)
		}
		if minutes < 0 {
			return fmt.Errorf("minutes %q: must be non-negative", arg)
		}
		_, _ = fmt.Fprintf(out, "%d\t%s\n", minutes, sweep.FormatTimeLimit(minutes))
	}
	return nil
}

// formatTimeCmd converts ladder minutes into scheduler time limits
var formatTimeCmd = &cobra.Command{
	Use:   "format-time <minutes>...",
	Short: "Print the D-HH:MM time limit for each number of minutes",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := writeTimeLimits(args, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Invalid input: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(formatTimeCmd)
}
