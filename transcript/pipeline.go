package transcript

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kestrelchat/persona-forge/backend/analyze"
	"github.com/kestrelchat/persona-forge/backend/telemetry"
	"github.com/kestrelchat/persona-forge/backend/youtube"
)

// Output bundles the retrieval result with its derived analysis for one request.
type Output struct {
	Result   *Result
	Analysis analyze.CharacterAnalysis
}

// Pipeline composes reference resolution, transcript retrieval, and heuristic
// analysis into one request/response cycle. It owns the lifetime of all
// intermediate values for a request; only the retriever's limiter is shared
// across requests.
type Pipeline struct {
	retriever *Retriever
}

// NewPipeline wraps a retriever into the request pipeline.
func NewPipeline(retriever *Retriever) *Pipeline {
	return &Pipeline{retriever: retriever}
}

// Retriever exposes the underlying retriever (for status reporting).
func (p *Pipeline) Retriever() *Retriever { return p.retriever }

// Run executes resolve -> retrieve -> analyze, short-circuiting on the first
// failing stage. The analyze stage cannot fail: analyzer faults collapse into
// a sentinel result inside the analyze package.
func (p *Pipeline) Run(ctx context.Context, input string) (*Output, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline", "pipeline.run")
	defer span.End()

	id, err := youtube.ResolveVideoID(input)
	if err != nil {
		werr := NewError(StageResolve, ReasonInvalidReference, err)
		telemetry.RecordError(span, werr)
		return nil, werr
	}
	span.SetAttributes(attribute.String("video_id", string(id)))

	telemetry.RetrievalsStarted.Inc()
	start := time.Now()
	res, err := p.retriever.Retrieve(ctx, id)
	dur := time.Since(start)
	if telemetry.RetrievalDuration != nil {
		telemetry.RetrievalDuration.Observe(dur.Seconds())
	}
	if err != nil {
		telemetry.RetrievalsFailed.Inc()
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RetrievalsSucceeded.Inc()

	var analysis analyze.CharacterAnalysis
	telemetry.TimeFunc(telemetry.AnalysisDuration, func() {
		analysis = analyze.Transcript(res.Text)
	})

	telemetry.LoggerWithCorr(ctx).Info("pipeline complete",
		slog.String("video_id", string(id)),
		slog.Duration("retrieval_duration", dur),
		slog.String("component", "pipeline"))
	telemetry.SetSpanSuccess(span)
	return &Output{Result: res, Analysis: analysis}, nil
}
