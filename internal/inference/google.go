package inference

import (
	"context"
	"fmt"
	"net/http"

	"noteforge/internal/config"
	"noteforge/internal/domain"
	"noteforge/internal/llm/google"
)

type googleBackend struct {
	client *google.Client
	model  string
	dim    int
	to     callTimeouts
}

func newGoogleBackend(cfg config.InferenceConfig, httpClient *http.Client) (*googleBackend, error) {
	client, err := google.New(cfg.Google, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%w: init google backend: %v", domain.ErrInference, err)
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-004"
	}
	return &googleBackend{client: client, model: model, dim: cfg.EmbeddingDimension, to: timeoutsFrom(cfg)}, nil
}

func (b *googleBackend) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := withTimeout(ctx, b.to.embed)
	defer cancel()
	vecs, err := b.client.Embed(ctx, b.model, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}
	return vecs, nil
}

func (b *googleBackend) Dimension() int { return b.dim }

func (b *googleBackend) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generate(ctx, b.client, "", prompt)
}

func (b *googleBackend) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generateWithSystem(ctx, b.client, "", system, prompt)
}

func (b *googleBackend) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generateJSON(ctx, b.client, "", prompt)
}

func (b *googleBackend) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	if model == "" {
		model = b.model
	}
	ctx, cancel := withTimeout(ctx, b.to.embed)
	defer cancel()
	vecs, err := b.client.Embed(ctx, model, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}
	return vecs[0], nil
}
