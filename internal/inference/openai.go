package inference

import (
	"context"
	"fmt"
	"net/http"

	"noteforge/internal/config"
	"noteforge/internal/domain"
	"noteforge/internal/llm/openai"
	"noteforge/internal/observability"
)

// openaiBackend wraps internal/llm/openai.Client, delegating embedding to
// its Embed call and generation to its Chat call.
type openaiBackend struct {
	client *openai.Client
	model  string
	dim    int
	to     callTimeouts
}

func newOpenAIBackend(cfg config.InferenceConfig, httpClient *http.Client) *openaiBackend {
	if len(cfg.OpenAI.Headers) > 0 {
		httpClient = observability.WithHeaders(httpClient, cfg.OpenAI.Headers)
	}
	return &openaiBackend{
		client: openai.New(cfg.OpenAI, httpClient),
		model:  cfg.EmbeddingModel,
		dim:    cfg.EmbeddingDimension,
		to:     timeoutsFrom(cfg),
	}
}

func (b *openaiBackend) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := withTimeout(ctx, b.to.embed)
	defer cancel()
	vecs, err := b.client.Embed(ctx, b.model, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}
	return vecs, nil
}

func (b *openaiBackend) Dimension() int { return b.dim }

func (b *openaiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generate(ctx, b.client, "", prompt)
}

func (b *openaiBackend) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generateWithSystem(ctx, b.client, "", system, prompt)
}

func (b *openaiBackend) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generateJSON(ctx, b.client, "", prompt)
}

// EmbedQuery satisfies search.Embedder directly so the OpenAI backend can be
// handed straight to search.NewEngine without an adapter.
func (b *openaiBackend) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
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
