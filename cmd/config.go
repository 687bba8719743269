package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/seedsweep/sweep"
)

// envPrefix scopes environment overrides, e.g. SEEDSWEEP_USER, SEEDSWEEP_GATE_TOKEN.
const envPrefix = "SEEDSWEEP"

// defaultResultsRoot matches where the simulation program writes its results.
const defaultResultsRoot = "results"

// GateConfig selects and configures the queue gate.
type GateConfig struct {
	Kind       string `yaml:"kind"` // "slurm" (squeue/sbatch) or "rest" (slurmrestd)
	Script     string `yaml:"script"`
	Partition  string `yaml:"partition"`
	JobPrefix  string `yaml:"job_prefix"`
	Squeue     string `yaml:"squeue"`
	Sbatch     string `yaml:"sbatch"`
	Workdir    string `yaml:"workdir"`
	URL        string `yaml:"url"`
	APIVersion string `yaml:"api_version"`
	Token      string `yaml:"token"`
}

// ProbeConfig selects and configures the completion probe.
type ProbeConfig struct {
	Kind      string `yaml:"kind"` // "filesystem", "sqlite", "postgres" or "s3"
	DSN       string `yaml:"dsn"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// Config represents the full config file structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	User          string        `yaml:"user"`
	ResultsRoot   string        `yaml:"results_root"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	IdleOccupancy int           `yaml:"idle_occupancy"`
	SubmitRate    float64       `yaml:"submit_rate"` // submissions per second; 0 = unlimited
	SubmitBurst   int           `yaml:"submit_burst"`
	Gate          GateConfig    `yaml:"gate"`
	Probe         ProbeConfig   `yaml:"probe"`
}

var (
	validGateKinds  = map[string]bool{"slurm": true, "rest": true}
	validProbeKinds = map[string]bool{"filesystem": true, "sqlite": true, "postgres": true, "s3": true}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ResultsRoot:   defaultResultsRoot,
		PollInterval:  sweep.DefaultPollInterval,
		IdleOccupancy: sweep.DefaultIdleOccupancy,
		SubmitBurst:   1,
		Gate:          GateConfig{Kind: "slurm"},
		Probe:         ProbeConfig{Kind: "filesystem"},
	}
}

// LoadConfig parses a YAML config file over the defaults.
// Uses strict field checking: typos must cause errors.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that all fields in the config are usable.
func (c *Config) Validate() error {
	if c.User == "" {
		return fmt.Errorf("user is required (--user, %s_USER, or config user)", envPrefix)
	}
	if c.ResultsRoot == "" && c.Probe.Kind == "filesystem" {
		return fmt.Errorf("results_root is required for the filesystem probe")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.IdleOccupancy < sweep.DefaultIdleOccupancy {
		return fmt.Errorf("idle_occupancy must be at least %d (the squeue header row), got %d",
			sweep.DefaultIdleOccupancy, c.IdleOccupancy)
	}
	if c.SubmitRate < 0 {
		return fmt.Errorf("submit_rate must be non-negative, got %f", c.SubmitRate)
	}
	if !validGateKinds[c.Gate.Kind] {
		return fmt.Errorf("unknown gate kind %q; valid: slurm, rest", c.Gate.Kind)
	}
	if c.Gate.Kind == "rest" && c.Gate.URL == "" {
		return fmt.Errorf("gate.url is required for the rest gate")
	}
	if !validProbeKinds[c.Probe.Kind] {
		return fmt.Errorf("unknown probe kind %q; valid: filesystem, sqlite, postgres, s3", c.Probe.Kind)
	}
	switch c.Probe.Kind {
	case "sqlite", "postgres":
		if c.Probe.DSN == "" {
			return fmt.Errorf("probe.dsn is required for the %s probe", c.Probe.Kind)
		}
	case "s3":
		if c.Probe.Endpoint == "" || c.Probe.Bucket == "" {
			return fmt.Errorf("probe.endpoint and probe.bucket are required for the s3 probe")
		}
	}
	return nil
}

// configKeys maps viper keys to the flag that sets them, if any.
// Keys without a flag can still be set from the environment.
var configKeys = map[string]string{
	"user":             "user",
	"results_root":     "results-root",
	"poll_interval":    "poll-interval",
	"idle_occupancy":   "idle-occupancy",
	"submit_rate":      "submit-rate",
	"submit_burst":     "",
	"gate.kind":        "gate",
	"gate.script":      "script",
	"gate.partition":   "partition",
	"gate.job_prefix":  "",
	"gate.squeue":      "",
	"gate.sbatch":      "",
	"gate.workdir":     "",
	"gate.url":         "rest-url",
	"gate.api_version": "",
	"gate.token":       "",
	"probe.kind":       "probe",
	"probe.dsn":        "probe-dsn",
	"probe.endpoint":   "",
	"probe.bucket":     "",
	"probe.prefix":     "",
	"probe.access_key": "",
	"probe.secret_key": "",
	"probe.region":     "",
	"probe.secure":     "",
}

// newViper binds flags and SEEDSWEEP_* environment variables.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, flagName := range configKeys {
		if flagName == "" {
			continue
		}
		if f := flags.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// resolveConfig layers flag > env > file > defaults. An empty path skips the file.
func resolveConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	strs := map[string]*string{
		"user":             &cfg.User,
		"results_root":     &cfg.ResultsRoot,
		"gate.kind":        &cfg.Gate.Kind,
		"gate.script":      &cfg.Gate.Script,
		"gate.partition":   &cfg.Gate.Partition,
		"gate.job_prefix":  &cfg.Gate.JobPrefix,
		"gate.squeue":      &cfg.Gate.Squeue,
		"gate.sbatch":      &cfg.Gate.Sbatch,
		"gate.workdir":     &cfg.Gate.Workdir,
		"gate.url":         &cfg.Gate.URL,
		"gate.api_version": &cfg.Gate.APIVersion,
		"gate.token":       &cfg.Gate.Token,
		"probe.kind":       &cfg.Probe.Kind,
		"probe.dsn":        &cfg.Probe.DSN,
		"probe.endpoint":   &cfg.Probe.Endpoint,
		"probe.bucket":     &cfg.Probe.Bucket,
		"probe.prefix":     &cfg.Probe.Prefix,
		"probe.access_key": &cfg.Probe.AccessKey,
		"probe.secret_key": &cfg.Probe.SecretKey,
		"probe.region":     &cfg.Probe.Region,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("poll_interval") {
		cfg.PollInterval = v.GetDuration("poll_interval")
	}
	if v.IsSet("idle_occupancy") {
		cfg.IdleOccupancy = v.GetInt("idle_occupancy")
	}
	if v.IsSet("submit_rate") {
		cfg.SubmitRate = v.GetFloat64("submit_rate")
	}
	if v.IsSet("submit_burst") {
		cfg.SubmitBurst = v.GetInt("submit_burst")
	}
	if v.IsSet("probe.secure") {
		cfg.Probe.Secure = v.GetBool("probe.secure")
	}

	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	return cfg, nil
}
