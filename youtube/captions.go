package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrPayloadSchema is returned when a caption payload fails structural validation.
// The payload is discarded whole; no partially decoded text is ever returned.
var ErrPayloadSchema = errors.New("caption payload failed schema validation")

// wireMagic is the literal tag identifying the json3 caption wire format.
const wireMagic = "pb3"

// captionPayload mirrors the json3 timedtext format. Required fields are
// pointers so a missing field is distinguishable from a zero value.
type captionPayload struct {
	WireMagic *string         `json:"wireMagic"`
	Events    *[]captionEvent `json:"events"`
}

type captionEvent struct {
	TStartMs    *int64       `json:"tStartMs"`
	DDurationMs *int64       `json:"dDurationMs"`
	AAppend     *int         `json:"aAppend"`
	Segs        []captionSeg `json:"segs"`
}

type captionSeg struct {
	UTF8      *string `json:"utf8"`
	TOffsetMs *int64  `json:"tOffsetMs"`
}

// DecodeCaptions validates a raw json3 caption payload and flattens it to text.
// Events and their inner segments are concatenated in declaration order with no
// separator; declaration order already reflects chronology, and re-sorting by
// timestamp would mask malformed payloads. Empty output is valid (a video can
// carry caption metadata with no text).
func DecodeCaptions(payload []byte) (string, error) {
	var p captionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadSchema, err)
	}
	if p.WireMagic == nil || *p.WireMagic != wireMagic {
		return "", fmt.Errorf("%w: missing or unexpected wireMagic", ErrPayloadSchema)
	}
	if p.Events == nil {
		return "", fmt.Errorf("%w: missing events", ErrPayloadSchema)
	}
	var b strings.Builder
	for i, ev := range *p.Events {
		if ev.TStartMs == nil {
			return "", fmt.Errorf("%w: event %d missing tStartMs", ErrPayloadSchema, i)
		}
		for j, seg := range ev.Segs {
			if seg.UTF8 == nil {
				return "", fmt.Errorf("%w: event %d segment %d missing utf8", ErrPayloadSchema, i, j)
			}
			b.WriteString(*seg.UTF8)
		}
	}
	return b.String(), nil
}
