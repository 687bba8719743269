package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/seedsweep/sweep"
	"github.com/inference-sim/seedsweep/sweep/trace"
)

var dryRun bool // Print what the first tier would submit and exit

// runRequest is a parsed `run` invocation.
type runRequest struct {
	Target     sweep.Target
	LadderPath string
}

// parseRunArgs accepts <config> <ladder> <low> <high> or
// <config> <scenario> <ladder> <low> <high>.
func parseRunArgs(args []string) (runRequest, error) {
	var req runRequest
	var low, high string
	switch len(args) {
	case 4:
		req.Target.Config, req.LadderPath, low, high = args[0], args[1], args[2], args[3]
	case 5:
		req.Target.Config, req.Target.Scenario, req.LadderPath, low, high = args[0], args[1], args[2], args[3], args[4]
	default:
		return req, fmt.Errorf("expected 4 or 5 arguments, got %d", len(args))
	}
	var err error
	if req.Target.SeedLow, req.Target.SeedHigh, err = parseSeedRange(low, high); err != nil {
		return req, err
	}
	return req, req.Target.Validate()
}

func parseSeedRange(low, high string) (int, int, error) {
	lo, err := strconv.Atoi(low)
	if err != nil {
		return 0, 0, fmt.Errorf("seed low %q: %w", low, err)
	}
	hi, err := strconv.Atoi(high)
	if err != nil {
		return 0, 0, fmt.Errorf("seed high %q: %w", high, err)
	}
	return lo, hi, nil
}

// runSweep loads the ladder, wires the probe and gate, and runs the controller to DONE.
func runSweep(ctx context.Context, cfg *Config, req runRequest, out io.Writer) error {
	ladder, err := sweep.LoadLadder(req.LadderPath)
	if err != nil {
		return err
	}
	p, closeProbe, err := buildProbe(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProbe()

	if dryRun {
		return printPlan(ctx, p, req.Target, ladder, out)
	}

	sweepID := uuid.NewString()
	logger := logrus.WithFields(logrus.Fields{
		"sweep_id": sweepID,
		"config":   req.Target.Config,
		"scenario": req.Target.Scenario,
	})
	g, err := buildGate(cfg, sweepID, logger)
	if err != nil {
		return err
	}
	c, err := sweep.NewController(sweep.ControllerConfig{
		Target:        req.Target,
		Ladder:        ladder,
		PollInterval:  cfg.PollInterval,
		IdleOccupancy: cfg.IdleOccupancy,
		SweepID:       sweepID,
		Logger:        logger,
	}, p, g)
	if err != nil {
		return err
	}
	st, err := c.Run(ctx)
	writeSummary(out, trace.Summarize(st))
	return err
}

// printPlan lists the jobs tier 0 would submit.
func printPlan(ctx context.Context, p sweep.CompletionProbe, target sweep.Target, ladder sweep.Ladder, out io.Writer) error {
	_, missing, err := sweep.Scan(ctx, p, target)
	if err != nil {
		return err
	}
	limit := ladder.TimeLimit(0)
	for _, item := range missing {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", limit, strings.Join(item.Command(), " "))
	}
	_, _ = fmt.Fprintf(out, "%d of %d seed(s) missing; tier 0 of %d would submit them at %s\n",
		len(missing), target.Count(), len(ladder), limit)
	return nil
}

func writeSummary(out io.Writer, summary *trace.SweepSummary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logrus.Errorf("Failed to marshal sweep summary: %v", err)
		return
	}
	_, _ = fmt.Fprintln(out, "=== Sweep Summary ===")
	_, _ = fmt.Fprintln(out, string(data))
}

// runCmd executes the sweep using positional arguments and config
var runCmd = &cobra.Command{
	Use:   "run <config> [<scenario>] <ladder-file> <seed-low> <seed-high>",
	Short: "Submit and resubmit jobs tier by tier until every seed has a result",
	Args:  cobra.RangeArgs(4, 5),
	Run: func(cmd *cobra.Command, args []string) {
		req, err := parseRunArgs(args)
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
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid config: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runSweep(ctx, cfg, req, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Sweep aborted: %v", err)
		}
		logrus.Info("Sweep complete.")
	},
}

func init() {
	flags := runCmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "Print the jobs the first tier would submit, without contacting the scheduler")
	flags.Duration("poll-interval", sweep.DefaultPollInterval, "Fixed backoff between queue polls")
	flags.Int("idle-occupancy", sweep.DefaultIdleOccupancy, "Occupancy an idle queue reports, at least 1 (squeue prints a header row)")
	flags.Float64("submit-rate", 0, "Maximum submissions per second (0 = unlimited)")
	flags.String("gate", "slurm", "Queue gate: slurm (squeue/sbatch) or rest (slurmrestd)")
	flags.String("script", "", "Batch script that runs the simulation with the job argv")
	flags.String("partition", "", "Slurm partition")
	flags.String("rest-url", "", "slurmrestd base URL for the rest gate")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
