package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelchat/persona-forge/backend/telemetry"
	"github.com/kestrelchat/persona-forge/backend/youtube"
)

// VideoSource abstracts the YouTube client (for tests/mocks).
type VideoSource interface {
	FetchMetadata(ctx context.Context, id youtube.VideoID) (*youtube.Metadata, error)
	FetchCaptionPayload(ctx context.Context, captionsURL string) ([]byte, error)
	ScrapeWatchPage(ctx context.Context, id youtube.VideoID) (*youtube.ScrapeResult, error)
	FetchStream(ctx context.Context, streamURL string) ([]byte, error)
}

// Transcriber abstracts the speech-to-text provider. Submit starts a job,
// Poll reads it; the retriever drives the poll loop so every provider call
// passes through the shared limiter.
type Transcriber interface {
	Submit(ctx context.Context, audio []byte) (string, error)
	Poll(ctx context.Context, operation string) (text string, done bool, err error)
}

// Result is the canonical output of retrieval. Created once per successful
// retrieval, never mutated.
type Result struct {
	VideoID      youtube.VideoID
	Title        string
	ThumbnailURL string
	Text         string
}

// Retriever runs the retrieval strategies in fixed priority order:
// direct caption fetch via the player endpoint, watch-page scrape, then audio
// transcription. Later strategies start only after the previous one has
// conclusively failed; they are fallbacks, not racers.
type Retriever struct {
	source      VideoSource
	transcriber Transcriber // nil disables the ASR fallback
	limiter     *Limiter

	maxAttempts  int
	backoffBase  time.Duration
	scrape       bool
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// RetrieverOptions configures a Retriever. Zero values fall back to the
// canonical policy: 3 attempts, 500ms backoff base, scrape enabled.
type RetrieverOptions struct {
	Transcriber  Transcriber
	MaxAttempts  int
	BackoffBase  time.Duration
	ScrapeOff    bool
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// NewRetriever builds a Retriever sharing the given limiter across all its
// upstream calls.
func NewRetriever(source VideoSource, limiter *Limiter, opts RetrieverOptions) *Retriever {
	r := &Retriever{
		source:       source,
		transcriber:  opts.Transcriber,
		limiter:      limiter,
		maxAttempts:  opts.MaxAttempts,
		backoffBase:  opts.BackoffBase,
		scrape:       !opts.ScrapeOff,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 3
	}
	if r.backoffBase <= 0 {
		r.backoffBase = 500 * time.Millisecond
	}
	if r.pollInterval <= 0 {
		r.pollInterval = 5 * time.Second
	}
	if r.pollTimeout <= 0 {
		r.pollTimeout = 10 * time.Minute
	}
	return r
}

// TranscriptionEnabled reports whether the ASR fallback is configured.
func (r *Retriever) TranscriptionEnabled() bool { return r.transcriber != nil }

// Waiting reports how many callers currently hold or wait on the shared
// upstream limiter.
func (r *Retriever) Waiting() int { return r.limiter.Waiting() }

// Retrieve obtains a transcript for the video, walking the strategy order.
// On failure it returns a *Error whose stage and reason identify the last
// conclusive failure; a "gone" verdict from any strategy surfaces immediately.
func (r *Retriever) Retrieve(ctx context.Context, id youtube.VideoID) (*Result, error) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("video_id", string(id)), slog.String("component", "retriever"))

	// Strategy 1: player metadata + direct caption fetch.
	telemetry.CaptionFetches.Inc()
	var meta *youtube.Metadata
	metaErr := r.callUpstream(ctx, StageMetadata, func(ctx context.Context) error {
		m, err := r.source.FetchMetadata(ctx, id)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if metaErr != nil && ReasonOf(metaErr) == ReasonGone {
		return nil, metaErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var title, thumb string
	lastErr := metaErr
	if meta != nil {
		title, thumb = meta.Title, meta.ThumbnailURL
		if track, ok := youtube.SelectTrack(meta.Tracks); ok {
			text, err := r.fetchCaptionText(ctx, track.BaseURL)
			if err == nil {
				logger.Info("transcript retrieved", slog.String("strategy", "captions"), slog.String("lang", track.LanguageCode), slog.Int("chars", len(text)))
				return &Result{VideoID: id, Title: title, ThumbnailURL: thumb, Text: text}, nil
			}
			if ReasonOf(err) == ReasonGone || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("direct caption fetch failed", slog.Any("err", err))
			lastErr = err
		} else {
			lastErr = NewError(StageCaptions, ReasonNoCaptions, fmt.Errorf("no english caption track"))
			logger.Info("no usable caption track", slog.Int("tracks", len(meta.Tracks)))
		}
	} else {
		logger.Warn("metadata fetch failed", slog.Any("err", metaErr))
	}

	// Strategy 2: watch-page scrape.
	if r.scrape {
		telemetry.ScrapeFallbacks.Inc()
		var scraped *youtube.ScrapeResult
		scrapeErr := r.callUpstream(ctx, StageScrape, func(ctx context.Context) error {
			s, err := r.source.ScrapeWatchPage(ctx, id)
			if err != nil {
				return err
			}
			scraped = s
			return nil
		})
		switch {
		case scrapeErr != nil && ReasonOf(scrapeErr) == ReasonGone:
			return nil, scrapeErr
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case scrapeErr != nil:
			logger.Warn("watch-page scrape failed", slog.Any("err", scrapeErr))
			// Keep the earlier, more specific failure when the page scrape
			// also could not reach the video.
			if lastErr == nil {
				lastErr = scrapeErr
			}
		default:
			if title == "" {
				title, thumb = scraped.Title, scraped.ThumbnailURL
			}
			text, err := r.fetchCaptionText(ctx, scraped.CaptionsURL)
			if err == nil {
				logger.Info("transcript retrieved", slog.String("strategy", "scrape"), slog.Int("chars", len(text)))
				return &Result{VideoID: id, Title: title, ThumbnailURL: thumb, Text: text}, nil
			}
			if ReasonOf(err) == ReasonGone || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("scraped caption fetch failed", slog.Any("err", err))
			lastErr = err
		}
	}

	// Strategy 3: audio transcription.
	if r.transcriber != nil && meta != nil && len(meta.AudioStreams) > 0 {
		telemetry.TranscribeFallbacks.Inc()
		text, err := r.transcribe(ctx, meta)
		if err == nil {
			logger.Info("transcript retrieved", slog.String("strategy", "transcribe"), slog.Int("chars", len(text)))
			return &Result{VideoID: id, Title: title, ThumbnailURL: thumb, Text: text}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("audio transcription failed", slog.Any("err", err))
		lastErr = err
	}

	if lastErr == nil {
		lastErr = NewError(StageCaptions, ReasonNoCaptions, fmt.Errorf("no retrieval strategy applicable"))
	}
	return nil, lastErr
}

// fetchCaptionText downloads a caption payload (through the limiter + retry
// policy) and decodes it. Schema failures discard the payload whole.
func (r *Retriever) fetchCaptionText(ctx context.Context, captionsURL string) (string, error) {
	var payload []byte
	err := r.callUpstream(ctx, StageCaptions, func(ctx context.Context) error {
		p, err := r.source.FetchCaptionPayload(ctx, captionsURL)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return "", err
	}
	text, err := youtube.DecodeCaptions(payload)
	if err != nil {
		return "", NewError(StageCaptions, ReasonPayloadSchema, err)
	}
	return text, nil
}

// transcribe picks the best audio-only rendition, downloads it, submits it to
// the speech provider, and polls the job to completion. Submission and every
// poll go through the shared limiter; the limiter is never held across the
// potentially minutes-long wait.
func (r *Retriever) transcribe(ctx context.Context, meta *youtube.Metadata) (string, error) {
	stream := meta.AudioStreams[0]
	for _, s := range meta.AudioStreams[1:] {
		if s.Bitrate > stream.Bitrate {
			stream = s
		}
	}

	var audio []byte
	err := r.callUpstream(ctx, StageTranscribe, func(ctx context.Context) error {
		a, err := r.source.FetchStream(ctx, stream.URL)
		if err != nil {
			return err
		}
		audio = a
		return nil
	})
	if err != nil {
		return "", err
	}

	var op string
	err = r.callUpstream(ctx, StageTranscribe, func(ctx context.Context) error {
		name, err := r.transcriber.Submit(ctx, audio)
		if err != nil {
			return err
		}
		op = name
		return nil
	})
	if err != nil {
		return "", NewError(StageTranscribe, ReasonTranscription, err)
	}

	deadline := time.Now().Add(r.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.pollInterval):
		}
		var text string
		var done bool
		pollErr := r.limiter.Do(ctx, func(ctx context.Context) error {
			t, d, err := r.transcriber.Poll(ctx, op)
			text, done = t, d
			return err
		})
		if pollErr != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", NewError(StageTranscribe, ReasonTranscription, pollErr)
		}
		if done {
			if text == "" {
				return "", NewError(StageTranscribe, ReasonTranscription, fmt.Errorf("recognition returned no text"))
			}
			return text, nil
		}
		if time.Now().After(deadline) {
			return "", NewError(StageTranscribe, ReasonTranscription, fmt.Errorf("recognition timed out after %s", r.pollTimeout))
		}
	}
}
