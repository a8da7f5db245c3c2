package transcript

import (
	"context"
	"strings"
	"testing"
)

func newTestPipeline(src *fakeSource) *Pipeline {
	return NewPipeline(newTestRetriever(src, RetrieverOptions{ScrapeOff: true}))
}

func TestPipelineRejectsInvalidReference(t *testing.T) {
	p := newTestPipeline(&fakeSource{})

	tests := []string{
		"",
		"not a url",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=short",
	}
	for _, input := range tests {
		_, err := p.Run(context.Background(), input)
		if err == nil {
			t.Errorf("Run(%q) succeeded, want resolve failure", input)
			continue
		}
		if StageOf(err) != StageResolve || ReasonOf(err) != ReasonInvalidReference {
			t.Errorf("Run(%q) stage/reason = %s/%s, want resolve/invalid-reference", input, StageOf(err), ReasonOf(err))
		}
	}
}

func TestPipelineRunSuccess(t *testing.T) {
	src := &fakeSource{meta: metaWithTrack(), payload: validPayload()}
	p := newTestPipeline(src)

	out, err := p.Run(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.VideoID != testVideoID {
		t.Errorf("VideoID = %s, want %s", out.Result.VideoID, testVideoID)
	}
	if out.Result.Text != "hello world" {
		t.Errorf("Text = %q, want %q", out.Result.Text, "hello world")
	}
	if out.Analysis.YouAreA == "" {
		t.Error("analysis must always be populated on success")
	}
}

func TestPipelineRetrievalFailurePropagates(t *testing.T) {
	meta := metaWithTrack()
	meta.Tracks = nil
	p := newTestPipeline(&fakeSource{meta: meta})

	_, err := p.Run(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if ReasonOf(err) != ReasonNoCaptions {
		t.Fatalf("reason = %s, want no-captions", ReasonOf(err))
	}
}

// The analyzer never fails the pipeline, even on degenerate text.
func TestPipelineAnalysisOnDegenerateTranscript(t *testing.T) {
	payload := `{"wireMagic":"pb3","events":[{"tStartMs":0,"segs":[{"utf8":"` + strings.Repeat("x", 64) + `"}]}]}`
	src := &fakeSource{meta: metaWithTrack(), payload: []byte(payload)}
	p := newTestPipeline(src)

	out, err := p.Run(context.Background(), string(testVideoID))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Analysis.YouAreA == "" {
		t.Error("analysis result missing for degenerate transcript")
	}
}
