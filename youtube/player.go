package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	playerEndpoint = "https://www.youtube.com/youtubei/v1/player"
	watchBaseURL   = "https://www.youtube.com/watch?v="

	// The Android innertube client returns unciphered stream URLs, which the
	// audio transcription fallback needs.
	clientName    = "ANDROID"
	clientVersion = "19.09.37"
)

// maxPayloadBytes caps upstream response bodies (caption payloads, pages).
const maxPayloadBytes = 20 << 20

// ErrVideoGone is returned when the upstream reports the video as permanently
// unavailable (removed, private, deleted). Not retryable.
var ErrVideoGone = errors.New("video gone")

// StatusError reports a non-2xx upstream response. Transport-level failures
// keep their original error type; this exists so callers can classify by code
// instead of sniffing message text.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d from %s", e.Status, e.URL)
}

// Gone reports whether the status marks the resource as permanently unavailable.
func (e *StatusError) Gone() bool {
	return e.Status == http.StatusGone
}

// CaptionTrack describes an available subtitle track.
type CaptionTrack struct {
	LanguageCode string
	Kind         string // "" manual, "asr" auto-generated
	BaseURL      string
}

// AudioStream is an audio-only adaptive rendition usable by the ASR fallback.
type AudioStream struct {
	MimeType string
	URL      string
	Bitrate  int
}

// Metadata is the player response subset the pipeline consumes.
type Metadata struct {
	ID           VideoID
	Title        string
	ThumbnailURL string
	Tracks       []CaptionTrack
	AudioStreams []AudioStream
}

// Client talks to the innertube player endpoint and the caption/stream URLs it
// hands out. The zero value works; APIKey defaults to the public web key at
// config load time.
type Client struct {
	HTTPClient *http.Client
	APIKey     string
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// playerResponse mirrors the innertube fields we read.
type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID   string `json:"videoId"`
		Title     string `json:"title"`
		Thumbnail struct {
			Thumbnails []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	Captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []struct {
				BaseURL      string `json:"baseUrl"`
				LanguageCode string `json:"languageCode"`
				Kind         string `json:"kind"`
			} `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	StreamingData struct {
		AdaptiveFormats []struct {
			MimeType string `json:"mimeType"`
			URL      string `json:"url"`
			Bitrate  int    `json:"bitrate"`
		} `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

// FetchMetadata fetches video metadata via the innertube player endpoint:
// title, thumbnail, available caption tracks, and audio-only stream renditions.
func (c *Client) FetchMetadata(ctx context.Context, id VideoID) (*Metadata, error) {
	reqBody := map[string]any{
		"videoId": string(id),
		"context": map[string]any{
			"client": map[string]any{
				"clientName":        clientName,
				"clientVersion":     clientVersion,
				"androidSdkVersion": 30,
				"hl":                "en",
			},
		},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	endpoint := playerEndpoint + "?key=" + url.QueryEscape(c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "com.google.android.youtube/"+clientVersion+" (Linux; U; Android 11) gzip")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, URL: playerEndpoint}
	}
	var pr playerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	switch pr.PlayabilityStatus.Status {
	case "OK", "":
	case "ERROR", "UNPLAYABLE", "LOGIN_REQUIRED":
		return nil, fmt.Errorf("%w: %s (%s)", ErrVideoGone, pr.PlayabilityStatus.Status, pr.PlayabilityStatus.Reason)
	default:
		return nil, fmt.Errorf("unexpected playability status %q (%s)", pr.PlayabilityStatus.Status, pr.PlayabilityStatus.Reason)
	}

	meta := &Metadata{ID: id, Title: pr.VideoDetails.Title}
	// Largest thumbnail wins; the list is usually ascending but don't rely on it.
	best := -1
	for _, t := range pr.VideoDetails.Thumbnail.Thumbnails {
		if area := t.Width * t.Height; area > best {
			best = area
			meta.ThumbnailURL = t.URL
		}
	}
	for _, t := range pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks {
		meta.Tracks = append(meta.Tracks, CaptionTrack{LanguageCode: t.LanguageCode, Kind: t.Kind, BaseURL: t.BaseURL})
	}
	for _, f := range pr.StreamingData.AdaptiveFormats {
		if f.URL == "" || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		meta.AudioStreams = append(meta.AudioStreams, AudioStream{MimeType: f.MimeType, URL: f.URL, Bitrate: f.Bitrate})
	}
	return meta, nil
}

// SelectTrack picks the caption track to download, by fixed priority:
// exact "en" manual track, then "en-US" or any English auto-generated (asr)
// track. Pure function of the track list.
func SelectTrack(tracks []CaptionTrack) (CaptionTrack, bool) {
	for _, t := range tracks {
		if t.LanguageCode == "en" && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range tracks {
		if t.LanguageCode == "en-US" || (strings.HasPrefix(t.LanguageCode, "en") && t.Kind == "asr") {
			return t, true
		}
	}
	return CaptionTrack{}, false
}

// FetchCaptionPayload downloads a caption track payload in json3 format.
func (c *Client) FetchCaptionPayload(ctx context.Context, captionsURL string) ([]byte, error) {
	u := captionsURL
	if !strings.Contains(u, "fmt=json3") {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "fmt=json3"
	}
	return c.fetchBytes(ctx, u)
}

// FetchStream downloads an audio stream rendition into memory for transcription.
func (c *Client) FetchStream(ctx context.Context, streamURL string) ([]byte, error) {
	return c.fetchBytes(ctx, streamURL)
}

func (c *Client) fetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, URL: rawURL}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
