// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kestrelchat/persona-forge/backend/analyze"
	"github.com/kestrelchat/persona-forge/backend/telemetry"
	"github.com/kestrelchat/persona-forge/backend/transcript"
)

const maxRequestBodyBytes = 16 << 10

// Runner executes the transcript pipeline for one reference.
// *transcript.Pipeline satisfies it; tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, input string) (*transcript.Output, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx       context.Context
	runner    Runner
	retriever *transcript.Retriever // nil-safe: status endpoints degrade
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// The retriever is only consulted for status reporting and may be nil.
func NewHandlers(ctx context.Context, runner Runner, retriever *transcript.Retriever) *Handlers {
	return &Handlers{
		ctx:       ctx,
		runner:    runner,
		retriever: retriever,
	}
}

// transcriptRequest is the POST /api/transcript body.
type transcriptRequest struct {
	URL string `json:"url"`
}

// transcriptData is the success payload: video metadata plus the analysis
// derived from the transcript text.
type transcriptData struct {
	VideoTitle   string                    `json:"videoTitle"`
	ThumbnailURL string                    `json:"thumbnailUrl"`
	Transcript   analyze.CharacterAnalysis `json:"transcript"`
}

type transcriptResponse struct {
	Success bool           `json:"success"`
	Data    transcriptData `json:"data"`
}

// HandleTranscript accepts a YouTube reference, runs the full pipeline, and
// returns the analysis. Failures map to HTTP status by their typed reason,
// never by message sniffing.
func (h *Handlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req transcriptRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	ctx := r.Context()
	out, err := h.runner.Run(ctx, req.URL)
	if err != nil {
		status, msg := statusForError(err)
		telemetry.LoggerWithCorr(ctx).Warn("transcript request failed",
			slog.String("stage", string(transcript.StageOf(err))),
			slog.String("reason", string(transcript.ReasonOf(err))),
			slog.Int("status", status),
			slog.Any("err", err),
			slog.String("component", "http"))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, transcriptResponse{
		Success: true,
		Data: transcriptData{
			VideoTitle:   out.Result.Title,
			ThumbnailURL: out.Result.ThumbnailURL,
			Transcript:   out.Analysis,
		},
	})
}

// statusForError maps a pipeline failure to an HTTP status and a stable
// human-readable message.
func statusForError(err error) (int, string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "request canceled or timed out"
	}
	switch transcript.ReasonOf(err) {
	case transcript.ReasonInvalidReference:
		return http.StatusBadRequest, "invalid YouTube URL or video ID"
	case transcript.ReasonPayloadSchema:
		return http.StatusBadRequest, "caption data was malformed"
	case transcript.ReasonNoCaptions:
		return http.StatusNotFound, "no English transcript available for this video"
	case transcript.ReasonGone:
		return http.StatusGone, "video is unavailable or has been removed"
	case transcript.ReasonExhaustedRetries, transcript.ReasonTranscription:
		return http.StatusServiceUnavailable, "upstream fetch failed, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests. There is no database;
// readiness means the pipeline is wired.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":       "not_ready",
			"failed_check": "pipeline",
		})
		return
	}
	resp := map[string]any{"status": "ready"}
	if h.retriever != nil {
		resp["transcription_fallback"] = h.retriever.TranscriptionEnabled()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatus returns a lightweight operational snapshot: limiter queue
// depth and fallback configuration.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]any{}
	if h.retriever != nil {
		resp["limiter_waiting"] = h.retriever.Waiting()
		resp["transcription_fallback"] = h.retriever.TranscriptionEnabled()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
