package trace

// Outcome names how a sweep reached its terminal state.
type Outcome string

const (
	// OutcomeNone means the sweep has not terminated (still running or aborted).
	OutcomeNone Outcome = ""
	// OutcomeComplete means a tier found nothing missing.
	OutcomeComplete Outcome = "complete"
	// OutcomeLadderExhausted means every tier was tried and work may remain.
	OutcomeLadderExhausted Outcome = "ladder_exhausted"
)

// SweepTrace collects progress records during one controller run.
type SweepTrace struct {
	SweepID     string
	Outcome     Outcome
	Polls       []PollRecord
	Tiers       []TierRecord
	Submissions []SubmissionRecord
}

// NewSweepTrace creates a SweepTrace ready for recording.
func NewSweepTrace(sweepID string) *SweepTrace {
	return &SweepTrace{
		SweepID:     sweepID,
		Polls:       make([]PollRecord, 0),
		Tiers:       make([]TierRecord, 0),
		Submissions: make([]SubmissionRecord, 0),
	}
}

// RecordPoll appends an occupancy query record.
func (st *SweepTrace) RecordPoll(record PollRecord) {
	st.Polls = append(st.Polls, record)
}

// RecordTier appends a completed tier sweep.
func (st *SweepTrace) RecordTier(record TierRecord) {
	st.Tiers = append(st.Tiers, record)
}

// RecordSubmission appends a submission attempt.
func (st *SweepTrace) RecordSubmission(record SubmissionRecord) {
	st.Submissions = append(st.Submissions, record)
}
