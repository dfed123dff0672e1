package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/vidscribe/internal/generation"
)

// MockGenerationClient implements generation.Client for testing
type MockGenerationClient struct {
	SummarizeFn func(ctx context.Context, text, language string) (string, error)
	TranslateFn func(ctx context.Context, text, language string) (string, error)

	mu             sync.Mutex
	summarizeCalls []string
	translateCalls []string
}

var _ generation.Client = (*MockGenerationClient)(nil)

// Summarize implements generation.Client. Without SummarizeFn it returns a
// fixed summary.
func (m *MockGenerationClient) Summarize(ctx context.Context, text, language string) (string, error) {
	m.mu.Lock()
	m.summarizeCalls = append(m.summarizeCalls, text)
	m.mu.Unlock()

	if m.SummarizeFn != nil {
		return m.SummarizeFn(ctx, text, language)
	}
	return "summary (" + language + ")", nil
}

// Translate implements generation.Client. Without TranslateFn it returns
// the input tagged with the target language.
func (m *MockGenerationClient) Translate(ctx context.Context, text, language string) (string, error) {
	m.mu.Lock()
	m.translateCalls = append(m.translateCalls, text)
	m.mu.Unlock()

	if m.TranslateFn != nil {
		return m.TranslateFn(ctx, text, language)
	}
	return "[" + language + "] " + text, nil
}

// SummarizeCalls returns the texts passed to Summarize.
func (m *MockGenerationClient) SummarizeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.summarizeCalls...)
}

// TranslateCalls returns the texts passed to Translate.
func (m *MockGenerationClient) TranslateCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.translateCalls...)
}
