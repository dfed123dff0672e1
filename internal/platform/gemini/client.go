package gemini

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/phrazzld/vidscribe/internal/credential"
	"github.com/phrazzld/vidscribe/internal/generation"
	"github.com/phrazzld/vidscribe/internal/redact"
	"google.golang.org/genai"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Config holds the model settings for Client.
type Config struct {
	ModelName   string
	CallTimeout time.Duration
}

// generateFunc performs one model call with one secret. It is swapped out
// in tests.
type generateFunc func(ctx context.Context, secret, prompt string) (string, error)

// promptData is passed to the prompt templates
type promptData struct {
	Text     string
	Language string
}

// Client implements generation.Client using Gemini and a credential pool.
type Client struct {
	pool      *credential.Pool
	model     string
	timeout   time.Duration
	logger    *slog.Logger
	summary   *template.Template
	translate *template.Template
	generate  generateFunc

	mu      sync.Mutex
	clients map[string]*genai.Client
}

var _ generation.Client = (*Client)(nil)

// NewClient creates a Client that draws credentials from pool.
func NewClient(pool *credential.Pool, cfg Config, logger *slog.Logger) (*Client, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: credential pool cannot be nil", generation.ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}

	tmpls, err := template.ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", generation.ErrInvalidConfig, err)
	}

	c := &Client{
		pool:      pool,
		model:     cfg.ModelName,
		timeout:   cfg.CallTimeout,
		logger:    logger.With("component", "gemini_client"),
		summary:   tmpls.Lookup("summary.tmpl"),
		translate: tmpls.Lookup("translate.tmpl"),
		clients:   make(map[string]*genai.Client),
	}
	c.generate = c.generateContent
	return c, nil
}

// Summarize condenses text into a summary written in language.
func (c *Client) Summarize(ctx context.Context, text, language string) (string, error) {
	return c.run(ctx, "summarize", c.summary, text, language)
}

// Translate renders text in language.
func (c *Client) Translate(ctx context.Context, text, language string) (string, error) {
	return c.run(ctx, "translate", c.translate, text, language)
}

func (c *Client) run(ctx context.Context, op string, tmpl *template.Template, text, language string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", generation.ErrEmptyInput
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{Text: text, Language: language}); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", op, err)
	}

	out, err := c.call(ctx, op, buf.String())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// call makes the request with a pooled credential, moving on to another
// credential when the failure belongs to the credential rather than the
// request. Each credential is tried at most once.
func (c *Client) call(ctx context.Context, op, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.pool.Size(); attempt++ {
		lease, err := c.pool.Acquire()
		if err != nil {
			if lastErr != nil {
				return "", fmt.Errorf("%w (last error: %s)", err, redact.Error(lastErr))
			}
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		text, err := c.generate(callCtx, lease.Secret, prompt)
		cancel()

		err = Classify(err)
		c.pool.Report(lease.ID, err)
		if err == nil {
			c.logger.DebugContext(ctx, "model call succeeded",
				"op", op,
				"credential_id", lease.ID,
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds())
			return text, nil
		}

		class := credential.ClassOf(err)
		c.logger.WarnContext(ctx, "model call failed",
			"op", op,
			"credential_id", lease.ID,
			"attempt", attempt,
			"class", class.String(),
			"error", redact.Error(err))

		if ctx.Err() != nil || !class.CredentialLevel() {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// generateContent is the production generateFunc.
func (c *Client) generateContent(ctx context.Context, secret, prompt string) (string, error) {
	client, err := c.clientFor(ctx, secret)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// responseText extracts the text of the first candidate. A blocked or empty
// answer is a BadRequest: sending the same prompt again will not help.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", credential.NewCallError(credential.ClassBadRequest,
				fmt.Errorf("%w: prompt blocked: %s", generation.ErrInvalidResponse, resp.PromptFeedback.BlockReason))
		}
		return "", credential.NewCallError(credential.ClassBadRequest,
			fmt.Errorf("%w: no candidates", generation.ErrInvalidResponse))
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", credential.NewCallError(credential.ClassBadRequest,
			fmt.Errorf("%w: content blocked by safety filters", generation.ErrInvalidResponse))
	}
	if cand.Content == nil {
		return "", credential.NewCallError(credential.ClassBadRequest,
			fmt.Errorf("%w: empty content", generation.ErrInvalidResponse))
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", credential.NewCallError(credential.ClassBadRequest,
			fmt.Errorf("%w: empty text", generation.ErrInvalidResponse))
	}
	return text, nil
}

// clientFor returns the genai client bound to secret, creating it once.
func (c *Client) clientFor(ctx context.Context, secret string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[secret]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  secret,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.New("failed to create Gemini client: " + redact.Error(err))
	}
	c.clients[secret] = client
	return client, nil
}
