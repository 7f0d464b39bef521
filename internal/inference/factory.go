package inference

import (
	"fmt"
	"net/http"

	"noteforge/internal/config"
)

// New selects a Backend by cfg.Provider. Load() defaults Provider to
// "openai" when unset, matching the default embedding model
// ("text-embedding-3-small").
func New(cfg config.InferenceConfig, httpClient *http.Client) (Backend, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIBackend(cfg, httpClient), nil
	case "google":
		return newGoogleBackend(cfg, httpClient)
	case "anthropic":
		return newAnthropicBackend(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("inference: unknown provider %q", cfg.Provider)
	}
}
