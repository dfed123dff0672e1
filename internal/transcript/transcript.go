// Package transcript defines caption transcripts and the source that
// fetches them.
package transcript

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnavailable is returned when a video has no usable caption track. It
// is a permanent failure: fetching again will not produce one.
var ErrUnavailable = errors.New("transcript unavailable")

// ErrTooLarge is returned when a caption document exceeds the size a source
// is willing to read. The document exists, so this is not ErrUnavailable,
// but fetching it again will not make it smaller.
var ErrTooLarge = errors.New("caption document too large")

// Segment is one timed caption line.
type Segment struct {
	Start    time.Duration
	Duration time.Duration
	Text     string
}

// Transcript is the caption track of a video in one language.
type Transcript struct {
	VideoID  string
	Language string
	Segments []Segment
}

// Text joins the segments into plain text, one segment per line.
func (t *Transcript) Text() string {
	lines := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if line := strings.TrimSpace(s.Text); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Source fetches caption tracks.
type Source interface {
	// Fetch returns the track in language, or ErrUnavailable.
	Fetch(ctx context.Context, videoID, language string) (*Transcript, error)

	// FetchDefault returns the video's default track, whatever its
	// language, or ErrUnavailable.
	FetchDefault(ctx context.Context, videoID string) (*Transcript, error)
}
