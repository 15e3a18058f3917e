package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// text-embedding-004 vectors
const googleDimensions = 768

// Google embeds text with a Gemini embedding model. The underlying client
// is created lazily on first use and reused for the life of the process.
type Google struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGoogle creates a Google provider for the given model. The client is
// not constructed until the first Embed call, so creation never fails.
func NewGoogle(apiKey, model string) *Google {
	if model == "" {
		model = "text-embedding-004"
	}
	return &Google{apiKey: apiKey, model: model}
}

// Dimensions returns the embedding size.
func (g *Google) Dimensions() int {
	return googleDimensions
}

// Embed generates an embedding vector for the given text.
func (g *Google) Embed(ctx context.Context, text string) ([]float32, error) {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return nil, fmt.Errorf("create genai client: %w", g.initErr)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}

var _ Provider = (*Google)(nil)
