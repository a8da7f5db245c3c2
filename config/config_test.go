package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("UPSTREAM_MIN_SPACING", "")
	t.Setenv("UPSTREAM_MAX_ATTEMPTS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MinCallSpacing != time.Second {
		t.Errorf("MinCallSpacing = %v, want 1s", cfg.MinCallSpacing)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BackoffBase != 500*time.Millisecond {
		t.Errorf("BackoffBase = %v, want 500ms", cfg.BackoffBase)
	}
	if cfg.InnertubeAPIKey == "" {
		t.Error("expected default innertube key, got empty")
	}
	if !cfg.ScrapeEnabled {
		t.Error("scrape fallback should default to enabled")
	}
	if cfg.SpeechLanguage != "en-US" {
		t.Errorf("SpeechLanguage = %q, want en-US", cfg.SpeechLanguage)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_MIN_SPACING", "250ms")
	t.Setenv("UPSTREAM_MAX_ATTEMPTS", "5")
	t.Setenv("SCRAPE_FALLBACK", "0")
	t.Setenv("SPEECH_FALLBACK", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MinCallSpacing != 250*time.Millisecond {
		t.Errorf("MinCallSpacing = %v, want 250ms", cfg.MinCallSpacing)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.ScrapeEnabled {
		t.Error("SCRAPE_FALLBACK=0 should disable scraping")
	}
	if cfg.SpeechEnabled {
		t.Error("SPEECH_FALLBACK=0 should disable the ASR fallback")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"UPSTREAM_MIN_SPACING", "not-a-duration"},
		{"UPSTREAM_MAX_ATTEMPTS", "0"},
		{"UPSTREAM_MAX_ATTEMPTS", "abc"},
		{"SPEECH_POLL_INTERVAL", "-5s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
