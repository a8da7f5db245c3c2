// Package transcript orchestrates transcript retrieval: strategy ordering,
// the shared upstream limiter, the retry policy, and the pipeline that ties
// reference resolution, retrieval, and heuristic analysis together.
package transcript

import (
	"errors"
	"fmt"
)

// Stage identifies which pipeline step produced an error.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageMetadata   Stage = "metadata"
	StageCaptions   Stage = "captions"
	StageScrape     Stage = "scrape"
	StageTranscribe Stage = "transcribe"
)

// Reason is a typed failure code. Each stage produces its reason at the
// failure site; callers branch on reasons, never on message text.
type Reason string

const (
	ReasonInvalidReference Reason = "invalid-reference"
	ReasonNoCaptions       Reason = "no-captions"
	ReasonPayloadSchema    Reason = "payload-schema"
	ReasonExhaustedRetries Reason = "exhausted-retries"
	ReasonGone             Reason = "gone"
	ReasonTranscription    Reason = "transcription"
	ReasonInternal         Reason = "internal"
)

// Error is the discriminated failure variant carried out of the pipeline.
type Error struct {
	Stage  Stage
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps cause with stage and reason context.
func NewError(stage Stage, reason Reason, cause error) *Error {
	return &Error{Stage: stage, Reason: reason, Err: cause}
}

// ReasonOf extracts the typed reason, or ReasonInternal for foreign errors.
func ReasonOf(err error) Reason {
	var te *Error
	if errors.As(err, &te) {
		return te.Reason
	}
	return ReasonInternal
}

// StageOf extracts the originating stage, or "" for foreign errors.
func StageOf(err error) Stage {
	var te *Error
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}
