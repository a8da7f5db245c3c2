package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestFetchMetadataParsesPlayerResponse(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("player request method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode player request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"playabilityStatus": {"status": "OK"},
			"videoDetails": {
				"videoId": "dQw4w9WgXcQ",
				"title": "A Video",
				"thumbnail": {"thumbnails": [
					{"url": "https://i.ytimg.com/small.jpg", "width": 120, "height": 90},
					{"url": "https://i.ytimg.com/large.jpg", "width": 1280, "height": 720}
				]}
			},
			"captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
				{"baseUrl": "https://yt/tt?v=x", "languageCode": "en", "kind": ""},
				{"baseUrl": "https://yt/tt-asr?v=x", "languageCode": "en", "kind": "asr"}
			]}},
			"streamingData": {"adaptiveFormats": [
				{"mimeType": "video/mp4; codecs=\"avc1\"", "url": "https://yt/video", "bitrate": 2000000},
				{"mimeType": "audio/webm; codecs=\"opus\"", "url": "https://yt/audio", "bitrate": 160000},
				{"mimeType": "audio/mp4; codecs=\"mp4a\"", "url": "", "bitrate": 128000}
			]}
		}`))
	}))
	t.Cleanup(srv.Close)

	c := &Client{APIKey: "test-key"}
	meta, err := fetchMetadataVia(t, c, srv.URL)
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}

	if gotBody["videoId"] != "dQw4w9WgXcQ" {
		t.Errorf("request videoId = %v", gotBody["videoId"])
	}
	if meta.Title != "A Video" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.ThumbnailURL != "https://i.ytimg.com/large.jpg" {
		t.Errorf("ThumbnailURL = %q, want the largest thumbnail", meta.ThumbnailURL)
	}
	if len(meta.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(meta.Tracks))
	}
	// Video renditions and URL-less formats are filtered out.
	if len(meta.AudioStreams) != 1 || meta.AudioStreams[0].URL != "https://yt/audio" {
		t.Errorf("audio streams = %+v, want only the opus rendition", meta.AudioStreams)
	}
}

func TestFetchMetadataGoneVerdicts(t *testing.T) {
	for _, status := range []string{"ERROR", "UNPLAYABLE", "LOGIN_REQUIRED"} {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"playabilityStatus": map[string]string{"status": status, "reason": "Video unavailable"},
				})
			}))
			t.Cleanup(srv.Close)

			_, err := fetchMetadataVia(t, &Client{}, srv.URL)
			if !errors.Is(err, ErrVideoGone) {
				t.Errorf("err = %v, want ErrVideoGone", err)
			}
		})
	}
}

func TestFetchMetadataStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	_, err := fetchMetadataVia(t, &Client{}, srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d", se.Status)
	}
	if se.Gone() {
		t.Error("429 must not classify as gone")
	}
}

func TestStatusErrorGone(t *testing.T) {
	if !(&StatusError{Status: http.StatusGone}).Gone() {
		t.Error("410 should classify as gone")
	}
	if (&StatusError{Status: http.StatusNotFound}).Gone() {
		t.Error("404 should not classify as gone")
	}
}

func TestSelectTrack(t *testing.T) {
	manualEN := CaptionTrack{LanguageCode: "en", BaseURL: "manual-en"}
	manualENGB := CaptionTrack{LanguageCode: "en-GB", BaseURL: "manual-en-gb"}
	asrEN := CaptionTrack{LanguageCode: "en", Kind: "asr", BaseURL: "asr-en"}
	enUS := CaptionTrack{LanguageCode: "en-US", BaseURL: "en-us"}
	french := CaptionTrack{LanguageCode: "fr", BaseURL: "fr"}

	tests := []struct {
		name    string
		tracks  []CaptionTrack
		want    string
		wantHit bool
	}{
		{"manual en beats asr", []CaptionTrack{asrEN, manualEN}, "manual-en", true},
		{"en-US fallback", []CaptionTrack{french, enUS}, "en-us", true},
		{"asr english fallback", []CaptionTrack{french, asrEN}, "asr-en", true},
		{"manual en-GB alone is not selected", []CaptionTrack{manualENGB}, "", false},
		{"no english", []CaptionTrack{french}, "", false},
		{"empty list", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTrack(tt.tracks)
			if ok != tt.wantHit {
				t.Fatalf("ok = %v, want %v", ok, tt.wantHit)
			}
			if ok && got.BaseURL != tt.want {
				t.Errorf("selected %q, want %q", got.BaseURL, tt.want)
			}
		})
	}
}

func TestFetchCaptionPayloadAppendsFormat(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"wireMagic":"pb3","events":[]}`))
	}))
	t.Cleanup(srv.Close)

	c := &Client{}
	if _, err := c.FetchCaptionPayload(context.Background(), srv.URL+"/api/timedtext?v=x&lang=en"); err != nil {
		t.Fatalf("FetchCaptionPayload: %v", err)
	}
	if gotQuery != "v=x&lang=en&fmt=json3" {
		t.Errorf("query = %q, want fmt=json3 appended", gotQuery)
	}

	// Already-formatted URLs are passed through untouched.
	if _, err := c.FetchCaptionPayload(context.Background(), srv.URL+"/api/timedtext?v=x&fmt=json3"); err != nil {
		t.Fatalf("FetchCaptionPayload: %v", err)
	}
	if gotQuery != "v=x&fmt=json3" {
		t.Errorf("query = %q, want unchanged", gotQuery)
	}
}

// fetchMetadataVia points the innertube call at a test server by rewriting the
// request URL through a transport hook.
func fetchMetadataVia(t *testing.T, c *Client, base string) (*Metadata, error) {
	t.Helper()
	c.HTTPClient = &http.Client{Transport: &rewriteTransport{base: base}}
	return c.FetchMetadata(context.Background(), VideoID("dQw4w9WgXcQ"))
}

// rewriteTransport redirects all requests to the test server host.
type rewriteTransport struct {
	base string
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base, err := url.Parse(rt.base)
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL.Scheme = base.Scheme
	out.URL.Host = base.Host
	out.Host = base.Host
	return http.DefaultTransport.RoundTrip(out)
}
