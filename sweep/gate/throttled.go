package gate

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/inference-sim/seedsweep/sweep"
)

// Throttled paces submissions to an inner gate. It bounds the submit rate
// only; it does not consult occupancy mid-sweep.
type Throttled struct {
	inner   sweep.QueueGate
	limiter *rate.Limiter
}

// NewThrottled allows perSecond submissions per second with the given burst.
// perSecond <= 0 means unlimited.
func NewThrottled(inner sweep.QueueGate, perSecond float64, burst int) *Throttled {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Occupancy implements sweep.QueueGate.
func (t *Throttled) Occupancy(ctx context.Context) (int, error) {
	return t.inner.Occupancy(ctx)
}

// Submit waits for a token, then submits.
func (t *Throttled) Submit(ctx context.Context, req sweep.SubmitRequest) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to submit %s: %w", req.Item, err)
	}
	return t.inner.Submit(ctx, req)
}
