// Package youtube contains the video reference resolver, the innertube player
// metadata client, the json3 caption payload decoder, and the watch-page scrape
// fallback used when the player endpoint is unusable.
package youtube

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// VideoID is a canonical 11-character YouTube video identifier.
type VideoID string

// ErrInvalidReference is returned when an input cannot be reduced to a valid video id.
var ErrInvalidReference = errors.New("invalid video reference")

// videoIDPattern matches exactly eleven characters of the id alphabet.
var videoIDPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
})

// referencePatterns capture the id segment from every accepted URL form,
// with or without scheme/www and with arbitrary trailing query or fragment.
var referencePatterns = sync.OnceValue(func() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?:^|/|\.)youtube\.com/watch\?(?:[^#]*&)?v=([^&#/?]+)`),
		regexp.MustCompile(`(?:^|/|\.)youtube\.com/embed/([^&#/?]+)`),
		regexp.MustCompile(`(?:^|/|\.)youtube\.com/v/([^&#/?]+)`),
		regexp.MustCompile(`(?:^|/|\.)youtube\.com/shorts/([^&#/?]+)`),
		regexp.MustCompile(`(?:^|/|\.)youtu\.be/([^&#/?]+)`),
	}
})

// ResolveVideoID reduces a user-supplied URL or bare id to a canonical VideoID.
// The captured segment must be exactly 11 characters of [A-Za-z0-9_-]; any other
// length is rejected rather than trimmed. Pure function, no I/O.
func ResolveVideoID(input string) (VideoID, error) {
	if input == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidReference)
	}
	if videoIDPattern().MatchString(input) {
		return VideoID(input), nil
	}
	for _, re := range referencePatterns() {
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		if !videoIDPattern().MatchString(m[1]) {
			return "", fmt.Errorf("%w: id segment %q is not 11 characters of [A-Za-z0-9_-]", ErrInvalidReference, m[1])
		}
		return VideoID(m[1]), nil
	}
	return "", fmt.Errorf("%w: no video id in %q", ErrInvalidReference, input)
}
