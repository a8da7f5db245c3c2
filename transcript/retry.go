package transcript

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kestrelchat/persona-forge/backend/telemetry"
	"github.com/kestrelchat/persona-forge/backend/youtube"
)

// classify sorts an upstream failure into retryable vs fatal. Non-2xx statuses
// and transport errors are retryable; an explicit "resource gone" status or
// playability verdict is fatal and must surface immediately.
func classify(err error) Reason {
	if errors.Is(err, youtube.ErrVideoGone) {
		return ReasonGone
	}
	var se *youtube.StatusError
	if errors.As(err, &se) && se.Gone() {
		return ReasonGone
	}
	return ReasonExhaustedRetries
}

// callUpstream funnels one upstream call through the shared limiter and the
// retry policy: up to maxAttempts tries with linearly increasing backoff
// (attempt * backoffBase). Fatal failures and context cancellation short-circuit.
func (r *Retriever) callUpstream(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * r.backoffBase
			slog.Warn("retrying upstream call",
				slog.String("stage", string(stage)),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.Any("err", lastErr))
			telemetry.UpstreamRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		start := time.Now()
		err := r.limiter.Do(ctx, fn)
		if telemetry.UpstreamCallDuration != nil {
			telemetry.UpstreamCallDuration.Observe(time.Since(start).Seconds())
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if classify(err) == ReasonGone {
			return NewError(stage, ReasonGone, err)
		}
		lastErr = err
	}
	return NewError(stage, ReasonExhaustedRetries, lastErr)
}
