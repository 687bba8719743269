package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/seedsweep/sweep"
	"github.com/inference-sim/seedsweep/sweep/gate"
	"github.com/inference-sim/seedsweep/sweep/probe"
)

// buildProbe returns the configured probe and a function releasing its resources.
func buildProbe(ctx context.Context, cfg *Config) (sweep.CompletionProbe, func(), error) {
	switch cfg.Probe.Kind {
	case "sqlite", "postgres":
		open := probe.OpenSQLite
		if cfg.Probe.Kind == "postgres" {
			open = probe.OpenPostgres
		}
		p, err := open(ctx, cfg.Probe.DSN)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case "s3":
		p, err := probe.NewObjectStore(ctx, probe.ObjectStoreConfig{
			Endpoint:  cfg.Probe.Endpoint,
			Bucket:    cfg.Probe.Bucket,
			Prefix:    cfg.Probe.Prefix,
			AccessKey: cfg.Probe.AccessKey,
			SecretKey: cfg.Probe.SecretKey,
			Region:    cfg.Probe.Region,
			Secure:    cfg.Probe.Secure,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	case "filesystem", "":
		p, err := probe.NewFilesystem(cfg.ResultsRoot)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown probe kind %q", cfg.Probe.Kind)
	}
}

// buildGate returns the configured gate, paced by the submit rate limit.
func buildGate(cfg *Config, sweepID string, logger logrus.FieldLogger) (sweep.QueueGate, error) {
	var inner sweep.QueueGate
	switch cfg.Gate.Kind {
	case "rest":
		g, err := gate.NewREST(gate.RESTConfig{
			BaseURL:    cfg.Gate.URL,
			APIVersion: cfg.Gate.APIVersion,
			User:       cfg.User,
			Token:      cfg.Gate.Token,
			Script:     cfg.Gate.Script,
			Partition:  cfg.Gate.Partition,
			JobPrefix:  cfg.Gate.JobPrefix,
			Comment:    sweepID,
			Workdir:    cfg.Gate.Workdir,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		inner = g
	case "slurm", "":
		g, err := gate.NewSlurm(gate.SlurmConfig{
			User:      cfg.User,
			Squeue:    cfg.Gate.Squeue,
			Sbatch:    cfg.Gate.Sbatch,
			Script:    cfg.Gate.Script,
			Partition: cfg.Gate.Partition,
			JobPrefix: cfg.Gate.JobPrefix,
			Comment:   sweepID,
			Logger:    logger,
		}, gate.ExecRunner{Dir: cfg.Gate.Workdir})
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown gate kind %q", cfg.Gate.Kind)
	}
	return gate.NewThrottled(inner, cfg.SubmitRate, cfg.SubmitBurst), nil
}
