package sweep

import "context"

// DefaultIdleOccupancy is the occupancy an idle queue reports for this user.
// squeue always prints a header row, so "no jobs" reads as 1, not 0.
const DefaultIdleOccupancy = 1

// CompletionProbe reports whether a work item's result artifact exists.
// An error means the answer is unknown; the controller treats it as fatal.
type CompletionProbe interface {
	Exists(ctx context.Context, item WorkItem) (bool, error)
}

// SubmitRequest is one job submission.
type SubmitRequest struct {
	Item      WorkItem
	TimeLimit string   // D-HH:MM
	Command   []string // simulation argv
}

// QueueGate abstracts the cluster scheduler.
type QueueGate interface {
	// Occupancy returns the number of rows the scheduler reports for this
	// user's jobs, including the idle baseline.
	Occupancy(ctx context.Context) (int, error)
	// Submit requests a new job. Acceptance is eventually reflected in Occupancy.
	Submit(ctx context.Context, req SubmitRequest) error
}
