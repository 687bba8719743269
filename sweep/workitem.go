package sweep

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
)

// ErrInvalidSeedRange is returned when a sweep's seed bounds are inverted.
var ErrInvalidSeedRange = errors.New("invalid seed range")

// Artifact layout and job verbs understood by the simulation program.
const (
	ArtifactFile   = "info.csv"
	seedDirPrefix  = "Seed-"
	VerbPlay       = "play" // play a full game
	VerbTurn       = "turn" // play one turn of a scenario
	jobNameDivider = "-"
)

// WorkItem is one unit of simulation work. An empty Scenario means a flat sweep.
type WorkItem struct {
	Config   string
	Scenario string
	Seed     int
}

// String returns a compact identifier for logs.
func (w WorkItem) String() string {
	if w.Scenario == "" {
		return fmt.Sprintf("%s/seed-%d", w.Config, w.Seed)
	}
	return fmt.Sprintf("%s/%s/seed-%d", w.Scenario, w.Config, w.Seed)
}

// Verb returns "turn" for scenario-scoped items and "play" otherwise.
func (w WorkItem) Verb() string {
	if w.Scenario != "" {
		return VerbTurn
	}
	return VerbPlay
}

// Command returns the simulation argv: (play|turn) <config> <seed> [<scenario>].
func (w WorkItem) Command() []string {
	argv := []string{w.Verb(), w.Config, strconv.Itoa(w.Seed)}
	if w.Scenario != "" {
		argv = append(argv, w.Scenario)
	}
	return argv
}

// ArtifactDir returns <root>/[<scenario>/]<config>/Seed-<seed>.
func (w WorkItem) ArtifactDir(root string) string {
	parts := []string{root}
	if w.Scenario != "" {
		parts = append(parts, w.Scenario)
	}
	parts = append(parts, w.Config, seedDirPrefix+strconv.Itoa(w.Seed))
	return filepath.Join(parts...)
}

// ArtifactPath returns the result file whose presence marks the item complete.
func (w WorkItem) ArtifactPath(root string) string {
	return filepath.Join(w.ArtifactDir(root), ArtifactFile)
}

// JobName returns a scheduler job name, optionally prefixed.
func (w WorkItem) JobName(prefix string) string {
	name := w.Config + jobNameDivider + strconv.Itoa(w.Seed)
	if w.Scenario != "" {
		name = w.Scenario + jobNameDivider + name
	}
	if prefix != "" {
		name = prefix + jobNameDivider + name
	}
	return name
}

// Target identifies what a sweep covers: one config, an optional scenario,
// and the inclusive seed range [SeedLow, SeedHigh].
type Target struct {
	Config   string
	Scenario string
	SeedLow  int
	SeedHigh int
}

// Validate checks that the target names a config and a non-inverted range.
func (t Target) Validate() error {
	if t.Config == "" {
		return errors.New("player config name is required")
	}
	if t.SeedLow > t.SeedHigh {
		return fmt.Errorf("%w: low %d > high %d", ErrInvalidSeedRange, t.SeedLow, t.SeedHigh)
	}
	return nil
}

// Count returns the number of seeds in the range, 0 if it is inverted.
// The full int range saturates at math.MaxUint64.
func (t Target) Count() uint64 {
	if t.SeedLow > t.SeedHigh {
		return 0
	}
	span := uint64(t.SeedHigh) - uint64(t.SeedLow)
	if span == math.MaxUint64 {
		return span
	}
	return span + 1
}

// Each calls fn for every work item in ascending seed order and stops at the
// first error, which it returns. Items are generated one at a time.
func (t Target) Each(fn func(WorkItem) error) error {
	if t.SeedLow > t.SeedHigh {
		return nil
	}
	for seed := t.SeedLow; ; seed++ {
		if err := fn(WorkItem{Config: t.Config, Scenario: t.Scenario, Seed: seed}); err != nil {
			return err
		}
		// seed++ would wrap past math.MaxInt.
		if seed == t.SeedHigh {
			return nil
		}
	}
}
