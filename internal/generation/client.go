package generation

import "context"

// Client performs the two model-backed operations of the pipeline.
type Client interface {
	// Summarize condenses a transcript into a summary written in language.
	Summarize(ctx context.Context, text, language string) (string, error)

	// Translate renders text in language.
	Translate(ctx context.Context, text, language string) (string, error)
}
