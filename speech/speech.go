// Package speech wraps the Cloud Speech-to-Text API for the audio transcription
// fallback. It only submits recognition jobs and reads operation state; the
// retriever owns pacing, retries, and the poll loop so every upstream call goes
// through the shared limiter.
package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	speechv1 "google.golang.org/api/speech/v1"
	"google.golang.org/api/option"

	"github.com/kestrelchat/persona-forge/backend/config"
)

// Transcriber submits audio to Cloud Speech-to-Text and reads back results.
type Transcriber struct {
	svc  *speechv1.Service
	lang string
}

// New builds a Transcriber from config. An API key takes precedence; otherwise
// application-default credentials are looked up. Both missing means the ASR
// fallback is unavailable and the caller should run without it.
func New(ctx context.Context, cfg *config.Config) (*Transcriber, error) {
	var opts []option.ClientOption
	if cfg.SpeechAPIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.SpeechAPIKey))
	} else {
		creds, err := google.FindDefaultCredentials(ctx, speechv1.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("speech credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	svc, err := speechv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech service: %w", err)
	}
	return &Transcriber{svc: svc, lang: cfg.SpeechLanguage}, nil
}

// Submit starts a long-running recognition job for the given audio bytes and
// returns the operation name to poll.
func (t *Transcriber) Submit(ctx context.Context, audio []byte) (string, error) {
	req := &speechv1.LongRunningRecognizeRequest{
		Config: &speechv1.RecognitionConfig{
			LanguageCode:               t.lang,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechv1.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}
	op, err := t.svc.Speech.Longrunningrecognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("submit recognition: %w", err)
	}
	if op.Name == "" {
		return "", fmt.Errorf("submit recognition: empty operation name")
	}
	return op.Name, nil
}

// Poll reads the operation once. done=false means the job is still running;
// done=true with err=nil carries the final joined transcript.
func (t *Transcriber) Poll(ctx context.Context, name string) (text string, done bool, err error) {
	op, err := t.svc.Operations.Get(name).Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("poll recognition: %w", err)
	}
	return transcriptFromOperation(op)
}

// transcriptFromOperation extracts the final transcript from a completed
// operation, joining result alternatives in order.
func transcriptFromOperation(op *speechv1.Operation) (string, bool, error) {
	if !op.Done {
		return "", false, nil
	}
	if op.Error != nil {
		return "", true, fmt.Errorf("recognition failed: %s (code %d)", op.Error.Message, op.Error.Code)
	}
	var res speechv1.LongRunningRecognizeResponse
	if err := json.Unmarshal(op.Response, &res); err != nil {
		return "", true, fmt.Errorf("decode recognition response: %w", err)
	}
	var parts []string
	for _, r := range res.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if tr := r.Alternatives[0].Transcript; tr != "" {
			parts = append(parts, tr)
		}
	}
	return strings.Join(parts, " "), true, nil
}
