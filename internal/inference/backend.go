// Package inference is the Inference Backend Interface (C1): embedding a
// batch of texts into fixed-dimension vectors, and generating text from a
// prompt (plain, system-augmented, or JSON-constrained). It adapts the
// teacher's chat-oriented internal/llm/{openai,anthropic,google} clients
// (openai and google also expose an Embed call; anthropic is chat-only)
// into the narrow contract the chunking/embedding pipeline (C5) and search engine (C7) need.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"noteforge/internal/config"
	"noteforge/internal/domain"
	"noteforge/internal/llm"
)

// Backend is the contract every job handler and the search engine consume
// for embedding and generation. Errors are always domain.ErrInference
// (wrapped), per spec §7's propagation policy.
type Backend interface {
	// EmbedTexts embeds a batch, preserving input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithSystem(ctx context.Context, system, prompt string) (string, error)
	// GenerateJSON asks the model for JSON and returns a string guaranteed
	// to parse (fenced code blocks are stripped, whitespace trimmed); a
	// response that is not valid JSON is a wrapped domain.ErrInference.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// callTimeouts bounds each inference call's wall-clock time. Embedding and
// generation get separate budgets (spec §5: 30s / 120s defaults); a timeout
// surfaces as a wrapped domain.ErrInference, which the job queue's retry
// path handles like any other handler failure.
type callTimeouts struct {
	embed    time.Duration
	generate time.Duration
}

func timeoutsFrom(cfg config.InferenceConfig) callTimeouts {
	t := callTimeouts{
		embed:    time.Duration(cfg.EmbedTimeoutSecs) * time.Second,
		generate: time.Duration(cfg.GenerateTimeoutSecs) * time.Second,
	}
	if t.embed <= 0 {
		t.embed = 30 * time.Second
	}
	if t.generate <= 0 {
		t.generate = 120 * time.Second
	}
	return t
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// chatGenerator is the slice of llm.Provider every Backend implementation
// delegates generation to.
type chatGenerator interface {
	Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error)
}

func generate(ctx context.Context, p chatGenerator, model, prompt string) (string, error) {
	out, err := p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, model)
	if err != nil {
		return "", fmt.Errorf("%w: generate: %v", domain.ErrInference, err)
	}
	return out.Content, nil
}

func generateWithSystem(ctx context.Context, p chatGenerator, model, system, prompt string) (string, error) {
	out, err := p.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}, nil, model)
	if err != nil {
		return "", fmt.Errorf("%w: generate_with_system: %v", domain.ErrInference, err)
	}
	return out.Content, nil
}

func generateJSON(ctx context.Context, p chatGenerator, model, prompt string) (string, error) {
	jsonPrompt := prompt + "\n\nRespond with JSON only, no prose, no markdown code fences."
	out, err := p.Chat(ctx, []llm.Message{{Role: "user", Content: jsonPrompt}}, nil, model)
	if err != nil {
		return "", fmt.Errorf("%w: generate_json: %v", domain.ErrInference, err)
	}
	s := stripJSONFence(out.Content)
	if !json.Valid([]byte(s)) {
		return "", fmt.Errorf("%w: generate_json: response is not valid JSON", domain.ErrInference)
	}
	return s, nil
}

// stripJSONFence removes a leading/trailing ```json or ``` fence some models
// add despite being asked not to.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
