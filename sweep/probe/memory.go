package probe

import (
	"context"

	"github.com/inference-sim/seedsweep/sweep"
)

// Memory is an in-memory probe. Not safe for concurrent use.
type Memory struct {
	done map[sweep.WorkItem]bool
}

// NewMemory returns a probe that reports the given items as complete.
func NewMemory(done ...sweep.WorkItem) *Memory {
	m := &Memory{done: make(map[sweep.WorkItem]bool, len(done))}
	for _, item := range done {
		m.done[item] = true
	}
	return m
}

// MarkDone records item as complete.
func (m *Memory) MarkDone(item sweep.WorkItem) {
	m.done[item] = true
}

// Exists implements sweep.CompletionProbe.
func (m *Memory) Exists(_ context.Context, item sweep.WorkItem) (bool, error) {
	return m.done[item], nil
}
