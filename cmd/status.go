package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/seedsweep/sweep"
)

// parseStatusArgs accepts <config> <low> <high> or <config> <scenario> <low> <high>.
func parseStatusArgs(args []string) (sweep.Target, error) {
	var target sweep.Target
	var low, high string
	switch len(args) {
	case 3:
		target.Config, low, high = args[0], args[1], args[2]
	case 4:
		target.Config, target.Scenario, low, high = args[0], args[1], args[2], args[3]
	default:
		return target, fmt.Errorf("expected 3 or 4 arguments, got %d", len(args))
	}
	var err error
	if target.SeedLow, target.SeedHigh, err = parseSeedRange(low, high); err != nil {
		return target, err
	}
	return target, target.Validate()
}

// writeStatus prints which seeds have results and which do not.
func writeStatus(ctx context.Context, p sweep.CompletionProbe, target sweep.Target, out io.Writer) error {
	done, missing, err := sweep.Scan(ctx, p, target)
	if err != nil {
		return err
	}
	name := target.Config
	if target.Scenario != "" {
		name = target.Scenario + "/" + target.Config
	}
	_, _ = fmt.Fprintf(out, "%s seeds [%d, %d]: %d done, %d missing\n",
		name, target.SeedLow, target.SeedHigh, len(done), len(missing))
	if len(missing) > 0 {
		_, _ = fmt.Fprintf(out, "missing: %s\n", joinSeeds(missing))
	}
	return nil
}

func joinSeeds(items []sweep.WorkItem) string {
	seeds := make([]string, len(items))
	for i, item := range items {
		seeds[i] = strconv.Itoa(item.Seed)
	}
	return strings.Join(seeds, " ")
}

// statusCmd reports sweep progress without touching the scheduler
var statusCmd = &cobra.Command{
	Use:   "status <config> [<scenario>] <seed-low> <seed-high>",
	Short: "Report which seeds in a range already have results",
	Args:  cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		target, err := parseStatusArgs(args)
		if err != nil {
			logrus.Fatalf("Invalid arguments: %v", err)
		}
		v, err := newViper(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Binding flags: %v", err)
		}
		cfg, err := resolveConfig(v, configPath)
		if err != nil {
			logrus.Fatalf("Loading config: %v", err)
		}
		p, closeProbe, err := buildProbe(cmd.Context(), cfg)
		if err != nil {
			logrus.Fatalf("Opening completion probe: %v", err)
		}
		defer closeProbe()
		if err := writeStatus(cmd.Context(), p, target, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Status failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
