// Command backend is the HTTP API that turns a public YouTube video into a
// chat persona descriptor. It:
//   - Loads configuration and initializes structured logging.
//   - Builds the shared upstream limiter and the transcript pipeline
//     (captions → watch-page scrape → speech-to-text fallback).
//   - Exposes an HTTP server with /api/transcript, /healthz, /readyz,
//     /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kestrelchat/persona-forge/backend/config"
	"github.com/kestrelchat/persona-forge/backend/server"
	"github.com/kestrelchat/persona-forge/backend/speech"
	"github.com/kestrelchat/persona-forge/backend/telemetry"
	"github.com/kestrelchat/persona-forge/backend/transcript"
	"github.com/kestrelchat/persona-forge/backend/youtube"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("persona-forge", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// YouTube client shared by all retrieval strategies
	ytClient := &youtube.Client{
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		APIKey:     cfg.InnertubeAPIKey,
	}

	// Speech-to-text fallback is best-effort: missing credentials log a
	// warning and disable the strategy rather than failing startup.
	var transcriber transcript.Transcriber
	if cfg.SpeechEnabled {
		t, err := speech.New(ctx, cfg)
		if err != nil {
			slog.Warn("speech-to-text unavailable, transcription fallback disabled", slog.Any("err", err))
		} else {
			transcriber = t
			slog.Info("speech-to-text fallback enabled", slog.String("language", cfg.SpeechLanguage))
		}
	} else {
		slog.Info("speech-to-text fallback disabled by config")
	}

	limiter := transcript.NewLimiter(cfg.MinCallSpacing)
	retriever := transcript.NewRetriever(ytClient, limiter, transcript.RetrieverOptions{
		Transcriber:  transcriber,
		MaxAttempts:  cfg.MaxAttempts,
		BackoffBase:  cfg.BackoffBase,
		ScrapeOff:    !cfg.ScrapeEnabled,
		PollInterval: cfg.SpeechPollInterval,
		PollTimeout:  cfg.SpeechPollTimeout,
	})
	pipeline := transcript.NewPipeline(retriever)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server
	handlers := server.NewHandlers(ctx, pipeline, retriever)
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
