package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/vidscribe/internal/transcript"
)

// MockTranscriptSource serves transcripts from memory, keyed by video and
// language. Default maps a video to the language of its default track.
type MockTranscriptSource struct {
	Tracks  map[string]map[string]string
	Default map[string]string

	FetchFn func(ctx context.Context, videoID, language string) (*transcript.Transcript, error)

	mu      sync.Mutex
	fetches int
}

var _ transcript.Source = (*MockTranscriptSource)(nil)

// Fetch implements transcript.Source.
func (m *MockTranscriptSource) Fetch(ctx context.Context, videoID, language string) (*transcript.Transcript, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(ctx, videoID, language)
	}
	text, ok := m.Tracks[videoID][language]
	if !ok {
		return nil, fmt.Errorf("%w: no %s track for %s", transcript.ErrUnavailable, language, videoID)
	}
	return &transcript.Transcript{
		VideoID:  videoID,
		Language: language,
		Segments: []transcript.Segment{{Text: text}},
	}, nil
}

// FetchDefault implements transcript.Source.
func (m *MockTranscriptSource) FetchDefault(ctx context.Context, videoID string) (*transcript.Transcript, error) {
	lang, ok := m.Default[videoID]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no tracks", transcript.ErrUnavailable, videoID)
	}
	return m.Fetch(ctx, videoID, lang)
}

// Fetches returns how many times Fetch was called.
func (m *MockTranscriptSource) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}
