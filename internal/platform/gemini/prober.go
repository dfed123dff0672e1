package gemini

import (
	"context"

	"github.com/phrazzld/vidscribe/internal/credential"
	"google.golang.org/genai"
)

// Prober checks a credential with a CountTokens request, which exercises
// authentication and quota without generating anything.
type Prober struct {
	client *Client
	count  func(ctx context.Context, secret string) error
}

var _ credential.Prober = (*Prober)(nil)

// NewProber creates a Prober sharing c's genai clients and model.
func NewProber(c *Client) *Prober {
	p := &Prober{client: c}
	p.count = p.countTokens
	return p
}

// Probe implements credential.Prober. Errors are classified.
func (p *Prober) Probe(ctx context.Context, secret string) error {
	return Classify(p.count(ctx, secret))
}

func (p *Prober) countTokens(ctx context.Context, secret string) error {
	client, err := p.client.clientFor(ctx, secret)
	if err != nil {
		return err
	}
	_, err = client.Models.CountTokens(ctx, p.client.model, genai.Text("ping"), nil)
	return err
}
