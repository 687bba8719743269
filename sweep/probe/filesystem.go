// Package probe provides CompletionProbe implementations.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/inference-sim/seedsweep/sweep"
)

// Filesystem reports completion by the presence of
// <root>/[<scenario>/]<config>/Seed-<seed>/info.csv.
// Contents are never read: an empty or partially written file counts as done.
type Filesystem struct {
	root string
}

// NewFilesystem returns a probe rooted at root, which must be an existing directory.
// A missing root would make every item look unfinished, so it is an error here.
func NewFilesystem(root string) (*Filesystem, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("results root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("results root %s is not a directory", root)
	}
	return &Filesystem{root: root}, nil
}

// Root returns the results directory.
func (f *Filesystem) Root() string { return f.root }

// Exists implements sweep.CompletionProbe.
func (f *Filesystem) Exists(_ context.Context, item sweep.WorkItem) (bool, error) {
	_, err := os.Stat(item.ArtifactPath(f.root))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
