// Package config is the single source of runtime configuration: database
// DSNs, the inference backend credentials (C1), job-queue tuning (C4/C8),
// search feature flags (C7), and the ambient observability/eventing stack.
// Values load from environment variables (optionally via a .env file),
// layered with an optional config.yaml for the settings better expressed
// as structured data.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v3"
)

// OpenAIConfig configures the OpenAI inference client (internal/llm/openai).
type OpenAIConfig struct {
	APIKey      string            `yaml:"api_key"`
	Model       string            `yaml:"model"`
	BaseURL     string            `yaml:"base_url"`
	API         string            `yaml:"api"` // not read by internal/llm/openai, which always calls Chat Completions
	LogPayloads bool              `yaml:"log_payloads"`
	ExtraParams map[string]any    `yaml:"extra_params,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// AnthropicConfig configures the Anthropic inference client.
type AnthropicConfig struct {
	APIKey      string         `yaml:"api_key"`
	Model       string         `yaml:"model"`
	BaseURL     string         `yaml:"base_url"`
	ExtraParams map[string]any `yaml:"extra_params,omitempty"`
}

// GoogleConfig configures the Google Gemini inference client.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout_seconds"`
}

// InferenceConfig selects and configures the inference backend (C1) used
// for both embedding and generation. Provider selects which of the three
// concrete clients internal/llm/{openai,anthropic,google} backs requests;
// EmbeddingModel/EmbeddingDimension describe the vector space notes are
// indexed under, matching the default EmbeddingConfig row.
type InferenceConfig struct {
	Provider            string          `yaml:"provider"` // "openai" | "anthropic" | "google"
	EmbeddingModel      string          `yaml:"embedding_model"`
	EmbeddingDimension  int             `yaml:"embedding_dimension"`
	EmbedTimeoutSecs    int             `yaml:"embed_timeout_seconds"`
	GenerateTimeoutSecs int             `yaml:"generate_timeout_seconds"`
	OpenAI              OpenAIConfig    `yaml:"openai"`
	Anthropic           AnthropicConfig `yaml:"anthropic"`
	Google              GoogleConfig    `yaml:"google"`
}

// DatabaseConfig is the relational store connection (pgx + pgvector).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig enables the job-queue wake-notification channel (internal/queue).
type RedisConfig struct {
	Enabled               bool   `yaml:"enabled"`
	Addr                  string `yaml:"addr"`
	Password              string `yaml:"password,omitempty"`
	DB                    int    `yaml:"db"`
	TLSInsecureSkipVerify bool   `yaml:"tls_insecure_skip_verify,omitempty"`
}

// JobEventsConfig enables publishing job-lifecycle events to Kafka for
// external consumers (analytics, webhooks) without them polling Postgres.
type JobEventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

// AnalyticsConfig enables mirroring embedding-set health snapshots to
// ClickHouse for longer-retention trend queries than Postgres is asked to serve.
type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// QueueConfig tunes the durable job queue's worker pools (internal/worker).
type QueueConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	CleanupKeepCount    int `yaml:"cleanup_keep_count"`
	FastGPUWorkers      int `yaml:"fast_gpu_workers"`
	StandardGPUWorkers  int `yaml:"standard_gpu_workers"`
	CPUWorkers          int `yaml:"cpu_and_agnostic_workers"`
}

// SearchConfig carries the default hybrid-search knobs (internal/search)
// that aren't per-query: which optional FTS strategies a deployment's
// Postgres extensions support.
type SearchConfig struct {
	BigramCJK             bool    `yaml:"bigram_cjk"`
	TrigramFallback       bool    `yaml:"trigram_fallback"`
	DefaultFTSWeight      float64 `yaml:"default_fts_weight"`
	DefaultSemanticWeight float64 `yaml:"default_semantic_weight"`
	SemanticThreshold     float64 `yaml:"semantic_threshold"`
	RelatedThreshold      float64 `yaml:"related_threshold"`
	ContextThreshold      float64 `yaml:"context_threshold"`
}

// ObsConfig controls OpenTelemetry trace/metric export (internal/observability).
type ObsConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp_endpoint"`
}

// Config is the complete runtime configuration for the noteforge daemon.
type Config struct {
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`

	Database  DatabaseConfig  `yaml:"database"`
	Inference InferenceConfig `yaml:"inference"`
	Redis     RedisConfig     `yaml:"redis"`
	JobEvents JobEventsConfig `yaml:"job_events"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Queue     QueueConfig     `yaml:"queue"`
	Search    SearchConfig    `yaml:"search"`
	Obs       ObsConfig       `yaml:"observability"`

	// Embedding carries the flat fields cmd/embedctl uses directly, kept in
	// sync with Inference's embedding settings after Load applies defaults.
	Embedding EmbeddingCLIConfig `yaml:"-"`
}

// EmbeddingCLIConfig is the minimal shape cmd/embedctl needs to hit an
// OpenAI-compatible embeddings endpoint directly, without spinning up the
// full daemon.
type EmbeddingCLIConfig struct {
	BaseURL   string
	Path      string
	Model     string
	APIKey    string
	APIHeader string
	Timeout   int
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := parseInt(v); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func floatFromEnv(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := parseFloat(v); err == nil {
			return f
		}
	}
	return def
}

// Load reads configuration from environment variables (optionally backed
// by a .env file), then layers config.yaml on top for any structured
// settings left at their zero value, then applies defaults.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	if err := loadYAMLOverlay(&cfg, firstNonEmpty(os.Getenv("NOTEFORGE_CONFIG"), "config.yaml")); err != nil {
		return Config{}, err
	}

	cfg.LogPath = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_PATH")), cfg.LogPath)
	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), cfg.LogLevel, "info")

	cfg.Database.DSN = firstNonEmpty(strings.TrimSpace(os.Getenv("DATABASE_URL")), strings.TrimSpace(os.Getenv("DATABASE_DSN")), cfg.Database.DSN)

	cfg.Inference.Provider = strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("INFERENCE_PROVIDER")), cfg.Inference.Provider, "openai"))
	cfg.Inference.EmbeddingModel = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBED_MODEL")), cfg.Inference.EmbeddingModel, "text-embedding-3-small")
	if v := strings.TrimSpace(os.Getenv("EMBED_DIMENSION")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Inference.EmbeddingDimension = n
		}
	}
	if cfg.Inference.EmbeddingDimension == 0 {
		cfg.Inference.EmbeddingDimension = 1536
	}
	cfg.Inference.EmbedTimeoutSecs = intFromEnv("EMBED_TIMEOUT_SECONDS", orDefault(cfg.Inference.EmbedTimeoutSecs, 30))
	cfg.Inference.GenerateTimeoutSecs = intFromEnv("GENERATE_TIMEOUT_SECONDS", orDefault(cfg.Inference.GenerateTimeoutSecs, 120))

	cfg.Inference.OpenAI.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_API_KEY")), cfg.Inference.OpenAI.APIKey)
	cfg.Inference.OpenAI.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_MODEL")), cfg.Inference.OpenAI.Model, "gpt-4o-mini")
	cfg.Inference.OpenAI.BaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), cfg.Inference.OpenAI.BaseURL)
	cfg.Inference.OpenAI.API = firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_API")), cfg.Inference.OpenAI.API, "completions")
	cfg.Inference.OpenAI.LogPayloads = boolFromEnv("LOG_PAYLOADS", cfg.Inference.OpenAI.LogPayloads)

	cfg.Inference.Anthropic.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")), cfg.Inference.Anthropic.APIKey)
	cfg.Inference.Anthropic.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")), cfg.Inference.Anthropic.Model)
	cfg.Inference.Anthropic.BaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")), cfg.Inference.Anthropic.BaseURL)

	cfg.Inference.Google.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")), cfg.Inference.Google.APIKey)
	cfg.Inference.Google.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("GOOGLE_MODEL")), cfg.Inference.Google.Model)
	cfg.Inference.Google.BaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("GOOGLE_BASE_URL")), cfg.Inference.Google.BaseURL)

	cfg.Redis.Enabled = boolFromEnv("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = firstNonEmpty(strings.TrimSpace(os.Getenv("REDIS_ADDR")), cfg.Redis.Addr)
	cfg.Redis.Password = firstNonEmpty(strings.TrimSpace(os.Getenv("REDIS_PASSWORD")), cfg.Redis.Password)
	cfg.Redis.DB = intFromEnv("REDIS_DB", cfg.Redis.DB)

	cfg.JobEvents.Enabled = boolFromEnv("JOB_EVENTS_ENABLED", cfg.JobEvents.Enabled)
	cfg.JobEvents.Brokers = firstNonEmpty(strings.TrimSpace(os.Getenv("KAFKA_BROKERS")), cfg.JobEvents.Brokers, "localhost:9092")
	cfg.JobEvents.Topic = firstNonEmpty(strings.TrimSpace(os.Getenv("JOB_EVENTS_TOPIC")), cfg.JobEvents.Topic, "noteforge.job_events")

	cfg.Analytics.Enabled = boolFromEnv("ANALYTICS_ENABLED", cfg.Analytics.Enabled)
	cfg.Analytics.DSN = firstNonEmpty(strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN")), cfg.Analytics.DSN)

	cfg.Queue.PollIntervalSeconds = intFromEnv("QUEUE_POLL_INTERVAL_SECONDS", orDefault(cfg.Queue.PollIntervalSeconds, 5))
	cfg.Queue.CleanupKeepCount = intFromEnv("QUEUE_CLEANUP_KEEP_COUNT", orDefault(cfg.Queue.CleanupKeepCount, 10000))
	cfg.Queue.FastGPUWorkers = intFromEnv("QUEUE_FAST_GPU_WORKERS", orDefault(cfg.Queue.FastGPUWorkers, 1))
	cfg.Queue.StandardGPUWorkers = intFromEnv("QUEUE_STANDARD_GPU_WORKERS", orDefault(cfg.Queue.StandardGPUWorkers, 1))
	cfg.Queue.CPUWorkers = intFromEnv("QUEUE_CPU_WORKERS", orDefault(cfg.Queue.CPUWorkers, 2))

	cfg.Search.BigramCJK = boolFromEnv("SEARCH_BIGRAM_CJK", cfg.Search.BigramCJK)
	cfg.Search.TrigramFallback = boolFromEnv("SEARCH_TRIGRAM_FALLBACK", cfg.Search.TrigramFallback)
	cfg.Search.DefaultFTSWeight = floatFromEnv("SEARCH_FTS_WEIGHT", orDefaultF(cfg.Search.DefaultFTSWeight, 0.5))
	cfg.Search.DefaultSemanticWeight = floatFromEnv("SEARCH_SEMANTIC_WEIGHT", orDefaultF(cfg.Search.DefaultSemanticWeight, 0.5))
	cfg.Search.SemanticThreshold = floatFromEnv("SEARCH_SEMANTIC_THRESHOLD", orDefaultF(cfg.Search.SemanticThreshold, 0.75))
	cfg.Search.RelatedThreshold = floatFromEnv("SEARCH_RELATED_THRESHOLD", orDefaultF(cfg.Search.RelatedThreshold, 0.6))
	cfg.Search.ContextThreshold = floatFromEnv("SEARCH_CONTEXT_THRESHOLD", orDefaultF(cfg.Search.ContextThreshold, 0.65))

	cfg.Obs.ServiceName = firstNonEmpty(strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")), cfg.Obs.ServiceName, "noteforge")
	cfg.Obs.ServiceVersion = firstNonEmpty(strings.TrimSpace(os.Getenv("SERVICE_VERSION")), cfg.Obs.ServiceVersion, "dev")
	cfg.Obs.Environment = firstNonEmpty(strings.TrimSpace(os.Getenv("ENVIRONMENT")), cfg.Obs.Environment, "dev")
	cfg.Obs.OTLP = firstNonEmpty(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")), cfg.Obs.OTLP)

	// cmd/embedctl talks to an OpenAI-compatible embeddings endpoint
	// directly; keep it in lockstep with the resolved inference config so
	// there's one place operators set model/key.
	cfg.Embedding = EmbeddingCLIConfig{
		BaseURL:   firstNonEmpty(strings.TrimSpace(os.Getenv("EMBED_BASE_URL")), cfg.Inference.OpenAI.BaseURL, "https://api.openai.com/v1"),
		Path:      firstNonEmpty(strings.TrimSpace(os.Getenv("EMBED_PATH")), "/embeddings"),
		Model:     cfg.Inference.EmbeddingModel,
		APIKey:    firstNonEmpty(strings.TrimSpace(os.Getenv("EMBED_API_KEY")), cfg.Inference.OpenAI.APIKey),
		APIHeader: firstNonEmpty(strings.TrimSpace(os.Getenv("EMBED_API_HEADER")), "Authorization"),
		Timeout:   intFromEnv("EMBED_TIMEOUT_SECONDS", orDefault(cfg.Inference.EmbedTimeoutSecs, 30)),
	}

	log.Info().Str("provider", cfg.Inference.Provider).Str("embedding_model", cfg.Inference.EmbeddingModel).Msg("config_loaded")
	return cfg, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// loadYAMLOverlay unmarshals path into cfg if the file exists. A missing
// file is not an error: YAML is optional, env vars are sufficient.
func loadYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}
