package inference

import (
	"context"
	"fmt"
	"net/http"

	"noteforge/internal/config"
	"noteforge/internal/domain"
	"noteforge/internal/llm/anthropic"
)

// anthropicBackend is generation-only: Anthropic has no embeddings endpoint,
// so EmbedTexts always fails. Callers that select this provider must run a
// separate embedding backend for the pipeline (spec §6 notes this as an
// expected configuration, not a bug).
type anthropicBackend struct {
	client *anthropic.Client
	dim    int
	to     callTimeouts
}

func newAnthropicBackend(cfg config.InferenceConfig, httpClient *http.Client) *anthropicBackend {
	return &anthropicBackend{client: anthropic.New(cfg.Anthropic, httpClient), dim: cfg.EmbeddingDimension, to: timeoutsFrom(cfg)}
}

func (b *anthropicBackend) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: anthropic backend does not support embeddings, configure a different embedding provider", domain.ErrInference)
}

func (b *anthropicBackend) Dimension() int { return b.dim }

func (b *anthropicBackend) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generate(ctx, b.client, "", prompt)
}

func (b *anthropicBackend) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generateWithSystem(ctx, b.client, "", system, prompt)
}

func (b *anthropicBackend) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.to.generate)
	defer cancel()
	return generateJSON(ctx, b.client, "", prompt)
}
