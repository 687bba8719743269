package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/seedsweep/sweep/trace"
)

// DefaultPollInterval is the fixed backoff between occupancy polls.
const DefaultPollInterval = 2 * time.Minute

// State is a controller state.
type State string

const (
	StateIdlePoll  State = "IDLE_POLL" // waiting for the queue to drain
	StateSweeping  State = "SWEEPING"  // submitting missing work at the current tier
	StateAdvancing State = "ADVANCING" // moving to the next tier
	StateDone      State = "DONE"      // ladder exhausted or a tier added nothing
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ControllerConfig holds everything a Controller needs besides its collaborators.
type ControllerConfig struct {
	Target        Target
	Ladder        Ladder
	PollInterval  time.Duration // zero selects DefaultPollInterval
	IdleOccupancy int           // zero selects DefaultIdleOccupancy
	SweepID       string
	Logger        logrus.FieldLogger
	Sleep         Sleeper
	OnState       func(State) // optional observer, called on every transition
}

// Controller advances through the timeout ladder, submitting every work item
// that lacks an artifact at each tier's time limit. At most one tier's jobs
// are in flight: a tier starts only when the queue reports idle.
type Controller struct {
	cfg   ControllerConfig
	probe CompletionProbe
	gate  QueueGate
	log   logrus.FieldLogger
	state State
	tier  int
}

// NewController validates cfg and applies defaults.
func NewController(cfg ControllerConfig, probe CompletionProbe, gate QueueGate) (*Controller, error) {
	if err := cfg.Target.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Ladder) == 0 {
		return nil, ErrEmptyLadder
	}
	for i, minutes := range cfg.Ladder {
		if minutes < 0 {
			return nil, fmt.Errorf("ladder tier %d: negative timeout %d", i, minutes)
		}
	}
	if probe == nil || gate == nil {
		return nil, errors.New("controller requires a completion probe and a queue gate")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.IdleOccupancy < 0 {
		return nil, fmt.Errorf("idle occupancy must be non-negative, got %d", cfg.IdleOccupancy)
	}
	if cfg.IdleOccupancy == 0 {
		cfg.IdleOccupancy = DefaultIdleOccupancy
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithFields(logrus.Fields{
		"sweep_id": cfg.SweepID,
		"config":   cfg.Target.Config,
		"scenario": cfg.Target.Scenario,
	})
	return &Controller{
		cfg:   cfg,
		probe: probe,
		gate:  gate,
		log:   logger,
		state: StateIdlePoll,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Tier returns the current ladder index.
func (c *Controller) Tier() int { return c.tier }

// Run drives the sweep to DONE. The returned trace is valid even on error.
// Errors are fatal: a probe failure, or ctx cancellation during a wait.
func (c *Controller) Run(ctx context.Context) (*trace.SweepTrace, error) {
	st := trace.NewSweepTrace(c.cfg.SweepID)
	c.log.Infof("Starting sweep of seeds [%d, %d] over %d tier(s) %v",
		c.cfg.Target.SeedLow, c.cfg.Target.SeedHigh, len(c.cfg.Ladder), c.cfg.Ladder)

	for {
		c.setState(StateIdlePoll)
		occupancy, err := c.waitIdle(ctx, st)
		if err != nil {
			return st, err
		}

		c.setState(StateSweeping)
		record, err := c.sweepTier(ctx, st, occupancy)
		st.RecordTier(record)
		if err != nil {
			return st, err
		}
		c.log.WithField("tier", c.tier).Infof("Tier %d (%s): added %d job(s), %d rejected, occupancy was %d",
			c.tier, record.TimeLimit, record.Added, record.Failed, occupancy)

		if record.Added == 0 {
			st.Outcome = trace.OutcomeComplete
			c.setState(StateDone)
			c.log.Infof("All %d seed(s) have results; stopping at tier %d", record.Checked, c.tier)
			return st, nil
		}

		c.setState(StateAdvancing)
		c.tier++
		if c.tier >= len(c.cfg.Ladder) {
			st.Outcome = trace.OutcomeLadderExhausted
			c.setState(StateDone)
			c.log.Warnf("Timeout ladder exhausted; %d seed(s) were still missing at the last tier", record.Added)
			return st, nil
		}
		// Submissions may not show up in the next poll; always back off first.
		if err := c.cfg.Sleep(ctx, c.cfg.PollInterval); err != nil {
			return st, err
		}
	}
}

// waitIdle polls occupancy until the queue holds no jobs beyond the baseline.
// A failed query counts as busy.
func (c *Controller) waitIdle(ctx context.Context, st *trace.SweepTrace) (int, error) {
	for {
		occupancy, err := c.gate.Occupancy(ctx)
		record := trace.PollRecord{Tier: c.tier, At: time.Now(), Occupancy: occupancy}
		switch {
		case err != nil:
			record.Error = err.Error()
			c.log.WithError(err).Warnf("Occupancy query failed; retrying in %v", c.cfg.PollInterval)
		case occupancy > c.cfg.IdleOccupancy:
			c.log.Infof("Queue busy (occupancy %d); waiting %v before tier %d", occupancy, c.cfg.PollInterval, c.tier)
		default:
			record.Idle = true
			st.RecordPoll(record)
			return occupancy, nil
		}
		st.RecordPoll(record)
		if err := c.cfg.Sleep(ctx, c.cfg.PollInterval); err != nil {
			return 0, err
		}
	}
}

// sweepTier probes every seed in ascending order and submits the missing ones
// at the current tier's time limit.
func (c *Controller) sweepTier(ctx context.Context, st *trace.SweepTrace, occupancy int) (trace.TierRecord, error) {
	minutes := c.cfg.Ladder[c.tier]
	record := trace.TierRecord{
		Tier:      c.tier,
		Minutes:   minutes,
		TimeLimit: FormatTimeLimit(minutes),
		Occupancy: occupancy,
		StartedAt: time.Now(),
	}
	err := c.cfg.Target.Each(func(item WorkItem) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		record.Checked++
		exists, err := c.probe.Exists(ctx, item)
		if err != nil {
			return fmt.Errorf("probing %s: %w", item, err)
		}
		if exists {
			return nil
		}

		req := SubmitRequest{Item: item, TimeLimit: record.TimeLimit, Command: item.Command()}
		err = c.gate.Submit(ctx, req)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		record.Added++
		sub := trace.SubmissionRecord{
			Tier:      c.tier,
			Seed:      item.Seed,
			JobName:   item.JobName(""),
			TimeLimit: record.TimeLimit,
			Accepted:  err == nil,
		}
		if err != nil {
			record.Failed++
			sub.Error = err.Error()
			c.log.WithError(err).Warnf("Submitting %s failed; it will be retried on the next tier", item)
		} else {
			c.log.Debugf("Submitted %s with time limit %s", item, record.TimeLimit)
		}
		st.RecordSubmission(sub)
		return nil
	})
	return record, err
}

func (c *Controller) setState(s State) {
	c.state = s
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

// Scan probes every item in target and splits them into done and missing,
// both in ascending seed order.
func Scan(ctx context.Context, probe CompletionProbe, target Target) (done, missing []WorkItem, err error) {
	if err := target.Validate(); err != nil {
		return nil, nil, err
	}
	err = target.Each(func(item WorkItem) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		exists, err := probe.Exists(ctx, item)
		if err != nil {
			return fmt.Errorf("probing %s: %w", item, err)
		}
		if exists {
			done = append(done, item)
		} else {
			missing = append(missing, item)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return done, missing, nil
}
