// Package gate provides QueueGate implementations for Slurm.
package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/seedsweep/sweep"
)

// Runner executes a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Dir string // working directory; empty means the current one
}

// Run implements Runner. Stderr is folded into the error on failure.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// SlurmConfig configures the squeue/sbatch gate.
type SlurmConfig struct {
	User      string // scopes the occupancy query
	Squeue    string // default "squeue"
	Sbatch    string // default "sbatch"
	Script    string // batch script; receives the simulation argv as arguments
	Partition string
	JobPrefix string
	Comment   string // attached to every job, e.g. the sweep id
	Logger    logrus.FieldLogger
}

// Slurm talks to the scheduler through its command line tools.
type Slurm struct {
	cfg    SlurmConfig
	runner Runner
}

// NewSlurm validates cfg. A nil runner selects ExecRunner.
func NewSlurm(cfg SlurmConfig, runner Runner) (*Slurm, error) {
	if cfg.User == "" {
		return nil, errors.New("slurm gate: user is required to scope squeue")
	}
	if cfg.Script == "" {
		return nil, errors.New("slurm gate: batch script is required")
	}
	if cfg.Squeue == "" {
		cfg.Squeue = "squeue"
	}
	if cfg.Sbatch == "" {
		cfg.Sbatch = "sbatch"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Slurm{cfg: cfg, runner: runner}, nil
}

// Occupancy returns the number of non-empty lines `squeue -u <user>` prints.
// The header row is always present, so an idle queue reports 1.
func (s *Slurm) Occupancy(ctx context.Context) (int, error) {
	out, err := s.runner.Run(ctx, s.cfg.Squeue, "-u", s.cfg.User)
	if err != nil {
		return 0, fmt.Errorf("squeue: %w", err)
	}
	lines := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	// Without the header we cannot tell an empty queue from a broken query.
	if lines == 0 {
		return 0, errors.New("squeue: empty output, expected a header row")
	}
	return lines, nil
}

// Submit runs sbatch with the tier's time limit and the simulation argv.
func (s *Slurm) Submit(ctx context.Context, req sweep.SubmitRequest) error {
	args := s.sbatchArgs(req)
	out, err := s.runner.Run(ctx, s.cfg.Sbatch, args...)
	if err != nil {
		return fmt.Errorf("sbatch %s: %w", req.Item, err)
	}
	s.cfg.Logger.Debugf("sbatch %s: %s", req.Item, strings.TrimSpace(string(out)))
	return nil
}

func (s *Slurm) sbatchArgs(req sweep.SubmitRequest) []string {
	args := []string{
		"--time=" + req.TimeLimit,
		"--job-name=" + req.Item.JobName(s.cfg.JobPrefix),
	}
	if s.cfg.Partition != "" {
		args = append(args, "--partition="+s.cfg.Partition)
	}
	if s.cfg.Comment != "" {
		args = append(args, "--comment="+s.cfg.Comment)
	}
	args = append(args, s.cfg.Script)
	return append(args, req.Command...)
}
