package transcript

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrelchat/persona-forge/backend/telemetry"
)

// Limiter serializes upstream calls process-wide: at most one call in flight
// at any instant, with a minimum spacing between call starts. All retrieval
// strategies across all concurrent requests share one instance, constructed at
// process start and owned by the pipeline; the only state is the in-memory
// token bucket, so there is no teardown.
type Limiter struct {
	sem     chan struct{}
	spacing *rate.Limiter
	waiting atomic.Int64
}

// NewLimiter returns a limiter enforcing minSpacing between upstream call
// starts. minSpacing <= 0 disables spacing but keeps single-flight.
func NewLimiter(minSpacing time.Duration) *Limiter {
	l := &Limiter{sem: make(chan struct{}, 1)}
	if minSpacing > 0 {
		l.spacing = rate.NewLimiter(rate.Every(minSpacing), 1)
	}
	return l
}

// Do runs fn exclusively, after waiting for the in-flight slot and the spacing
// token. A caller whose context is canceled while queued gives up its place
// without running fn (at-most-once execution per queued call).
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	l.waiting.Add(1)
	telemetry.SetLimiterWaiting(int(l.waiting.Load()))
	defer func() {
		l.waiting.Add(-1)
		telemetry.SetLimiterWaiting(int(l.waiting.Load()))
	}()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	if l.spacing != nil {
		if err := l.spacing.Wait(ctx); err != nil {
			return err
		}
	}
	return fn(ctx)
}

// Waiting returns how many callers are queued behind or holding the limiter.
func (l *Limiter) Waiting() int {
	return int(l.waiting.Load())
}
