package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string // Optional YAML config file
	logLevel   string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "seedsweep",
	Short: "Drive a seed sweep of simulation jobs through a Slurm queue until every seed has a result",
	Long: `seedsweep submits one cluster job per (player config, seed) that has no result yet,
waits for the queue to drain, and resubmits whatever is still missing with the
next, usually longer, time limit from a timeout ladder file.

A seed is done when <results_root>/[<scenario>/]<config>/Seed-<seed>/info.csv exists.

Configuration precedence: flags > SEEDSWEEP_* environment variables > --config file > defaults.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.String("user", "", "Scheduler user whose jobs are counted (default $USER)")
	flags.String("results-root", defaultResultsRoot, "Directory holding <config>/Seed-<n>/info.csv results")
	flags.String("probe", "filesystem", "Completion probe: filesystem, sqlite, postgres or s3")
	flags.String("probe-dsn", "", "Database DSN for the sqlite or postgres probe")
}
