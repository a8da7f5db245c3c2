package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const timedtextMarker = "https://www.youtube.com/api/timedtext"

// ScrapeResult is what the watch-page fallback can recover without the player API.
type ScrapeResult struct {
	CaptionsURL  string
	Title        string
	ThumbnailURL string
}

// ScrapeWatchPage fetches the public watch page and extracts the timedtext
// captions URL plus title/thumbnail from the page metadata. It is the middle
// fallback: cheaper than transcription, usable when the player endpoint is
// being throttled or reshaped.
func (c *Client) ScrapeWatchPage(ctx context.Context, id VideoID) (*ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchBaseURL+string(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, URL: watchBaseURL + string(id)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}
	html := string(body)

	capURL, err := extractCaptionsURL(html)
	if err != nil {
		return nil, err
	}

	res := &ScrapeResult{CaptionsURL: capURL}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			res.Title = v
		}
		if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			res.ThumbnailURL = v
		}
		if res.Title == "" {
			res.Title = strings.TrimSpace(strings.TrimSuffix(doc.Find("title").First().Text(), " - YouTube"))
		}
	}
	return res, nil
}

// extractCaptionsURL finds the first timedtext URL embedded in the watch page
// player config. Ampersands are JSON-escaped as \u0026 in the page source.
func extractCaptionsURL(html string) (string, error) {
	start := strings.Index(html, timedtextMarker)
	if start < 0 {
		return "", fmt.Errorf("no timedtext url in watch page")
	}
	end := strings.Index(html[start:], `"`)
	if end <= 0 {
		return "", fmt.Errorf("unterminated timedtext url in watch page")
	}
	raw := strings.ReplaceAll(html[start:start+end], `\u0026`, "&")
	if u, err := url.QueryUnescape(raw); err == nil {
		raw = u
	}
	return raw, nil
}
