// Package trace records per-tier sweep progress for operator reporting.
// This package has no dependencies on sweep/; it stores pure data types.
package trace

import "time"

// PollRecord captures a single occupancy query.
type PollRecord struct {
	Tier      int
	At        time.Time
	Occupancy int
	Idle      bool
	Error     string // non-empty when the query failed; a failed query is never idle
}

// SubmissionRecord captures a single job submission attempt.
type SubmissionRecord struct {
	Tier      int
	Seed      int
	JobName   string
	TimeLimit string
	Accepted  bool
	Error     string
}

// TierRecord captures one sweep of the seed range at one tier's time limit.
type TierRecord struct {
	Tier      int
	Minutes   int
	TimeLimit string
	Occupancy int // occupancy observed when the sweep started
	Checked   int // work items probed
	Added     int // missing work items submitted (accepted or not)
	Failed    int // submissions the gate rejected
	StartedAt time.Time
}
