package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/generation"
	"github.com/phrazzld/vidscribe/internal/store"
	"github.com/phrazzld/vidscribe/internal/transcript"
)

// TranscriptHandler produces transcripts. When the video has no track in
// the requested language the default track is translated.
type TranscriptHandler struct {
	source    transcript.Source
	generator generation.Client
	logger    *slog.Logger
}

// NewTranscriptHandler creates a TranscriptHandler.
func NewTranscriptHandler(source transcript.Source, generator generation.Client, logger *slog.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		source:    source,
		generator: generator,
		logger:    logger.With("handler", TypeTranscript),
	}
}

// Handle implements Handler.
func (h *TranscriptHandler) Handle(ctx context.Context, item WorkItem) (string, error) {
	t, err := h.source.Fetch(ctx, item.ResourceID, item.Language)
	if err == nil {
		return t.Text(), nil
	}
	if !errors.Is(err, transcript.ErrUnavailable) {
		return "", fmt.Errorf("failed to fetch %s transcript: %w", item.Language, err)
	}

	def, err := h.source.FetchDefault(ctx, item.ResourceID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch default transcript: %w", err)
	}
	if samePrimaryLanguage(def.Language, item.Language) {
		return def.Text(), nil
	}

	h.logger.InfoContext(ctx, "translating default transcript",
		"job_id", item.ID,
		"video_id", item.ResourceID,
		"from", def.Language,
		"to", item.Language)

	translated, err := h.generator.Translate(ctx, def.Text(), item.Language)
	if err != nil {
		return "", fmt.Errorf("failed to translate transcript from %s: %w", def.Language, err)
	}
	return translated, nil
}

// SummaryHandler summarizes the completed transcript of the same video and
// language.
type SummaryHandler struct {
	resources store.ResourceStore
	generator generation.Client
}

// NewSummaryHandler creates a SummaryHandler.
func NewSummaryHandler(resources store.ResourceStore, generator generation.Client) *SummaryHandler {
	return &SummaryHandler{resources: resources, generator: generator}
}

// Handle implements Handler.
func (h *SummaryHandler) Handle(ctx context.Context, item WorkItem) (string, error) {
	fp, err := domain.NewFingerprint(domain.KindTranscript, item.ResourceID, item.Language)
	if err != nil {
		return "", Permanent(err)
	}

	tr, err := h.resources.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", Permanent(fmt.Errorf("transcript %s does not exist", fp))
		}
		return "", fmt.Errorf("failed to load transcript %s: %w", fp, err)
	}

	switch tr.Status {
	case domain.StatusCompleted:
	case domain.StatusError:
		return "", Permanent(fmt.Errorf("transcript failed: %s", tr.Error))
	default:
		return "", fmt.Errorf("%w: transcript %s is %s", ErrNotReady, fp, tr.Status)
	}

	summary, err := h.generator.Summarize(ctx, tr.Content, item.Language)
	if err != nil {
		return "", fmt.Errorf("failed to summarize transcript: %w", err)
	}
	return summary, nil
}

func samePrimaryLanguage(a, b string) bool {
	primary := func(s string) string {
		if i := strings.IndexAny(s, "-_"); i > 0 {
			s = s[:i]
		}
		return strings.ToLower(s)
	}
	return primary(a) == primary(b)
}
