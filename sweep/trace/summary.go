package trace

// SweepSummary aggregates statistics from a SweepTrace.
type SweepSummary struct {
	SweepID       string  `json:"sweep_id"`
	Outcome       Outcome `json:"outcome"`
	TiersRun      int     `json:"tiers_run"`
	Submitted     int     `json:"submitted"`
	Rejected      int     `json:"rejected"`
	AddedPerTier  []int   `json:"added_per_tier"`
	Polls         int     `json:"polls"`
	BusyPolls     int     `json:"busy_polls"`
	FailedPolls   int     `json:"failed_polls"`
	LastTimeLimit string  `json:"last_time_limit,omitempty"`
	MissingAtLast int     `json:"missing_at_last_tier"` // added on the final tier; 0 when complete

	Rejections []Rejection `json:"rejections"`
}

// Rejection is a submission the gate refused.
type Rejection struct {
	Tier      int    `json:"tier"`
	Seed      int    `json:"seed"`
	JobName   string `json:"job_name"`
	TimeLimit string `json:"time_limit"`
	Error     string `json:"error"`
}

// Summarize computes aggregate statistics from a SweepTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SweepTrace) *SweepSummary {
	summary := &SweepSummary{
		AddedPerTier: make([]int, 0),
		Rejections:   make([]Rejection, 0),
	}
	if st == nil {
		return summary
	}
	summary.SweepID = st.SweepID
	summary.Outcome = st.Outcome
	summary.TiersRun = len(st.Tiers)

	for _, tier := range st.Tiers {
		summary.AddedPerTier = append(summary.AddedPerTier, tier.Added)
		summary.Submitted += tier.Added - tier.Failed
		summary.Rejected += tier.Failed
	}
	if n := len(st.Tiers); n > 0 {
		summary.LastTimeLimit = st.Tiers[n-1].TimeLimit
		if st.Outcome == OutcomeLadderExhausted {
			summary.MissingAtLast = st.Tiers[n-1].Added
		}
	}

	for _, sub := range st.Submissions {
		if !sub.Accepted {
			summary.Rejections = append(summary.Rejections, Rejection{
				Tier:      sub.Tier,
				Seed:      sub.Seed,
				JobName:   sub.JobName,
				TimeLimit: sub.TimeLimit,
				Error:     sub.Error,
			})
		}
	}

	summary.Polls = len(st.Polls)
	for _, p := range st.Polls {
		switch {
		case p.Error != "":
			summary.FailedPolls++
		case !p.Idle:
			summary.BusyPolls++
		}
	}
	return summary
}
