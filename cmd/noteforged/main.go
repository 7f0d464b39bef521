// Command noteforged runs the job queue workers: the daemon side of
// noteforge, as opposed to embedctl's one-shot CLI calls.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"noteforge/internal/chunk"
	"noteforge/internal/config"
	"noteforge/internal/domain"
	"noteforge/internal/embedset"
	"noteforge/internal/handlers"
	"noteforge/internal/inference"
	"noteforge/internal/observability"
	"noteforge/internal/queue"
	"noteforge/internal/store"
	"noteforge/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load_config_failed")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel, "noteforged")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.OTLP != "" {
		shutdown, err := observability.InitOTel(ctx, cfg.Obs)
		if err != nil {
			log.Warn().Err(err).Msg("otel_init_failed")
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	mgr, err := store.NewPostgresManager(ctx, cfg.Database.DSN, cfg.Inference.EmbeddingDimension)
	if err != nil {
		log.Fatal().Err(err).Msg("connect_store_failed")
	}
	defer mgr.Close()

	httpClient := observability.NewHTTPClient(nil)
	backend, err := inference.New(cfg.Inference, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("init_inference_backend_failed")
	}

	var notifier queue.Notifier = queue.NopNotifier{}
	if redisNotifier, err := queue.NewRedisNotifier(cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("redis_notifier_unavailable_falling_back_to_poll")
	} else if redisNotifier != nil {
		notifier = redisNotifier
	}
	events, err := queue.NewEventPublisher(cfg.JobEvents)
	if err != nil {
		log.Warn().Err(err).Msg("job_events_publisher_unavailable")
	}
	defer events.Close()

	q := queue.New(mgr.Jobs, notifier, events)

	statsSink, err := embedset.NewClickHouseSink(ctx, cfg.Analytics)
	if err != nil {
		log.Warn().Err(err).Msg("clickhouse_analytics_unavailable")
		statsSink = embedset.NopSink{}
	}
	defer statsSink.Close()
	engine := embedset.NewEngineWithSink(mgr, statsSink)
	go runEmbeddingSetRefreshLoop(ctx, mgr, engine)

	registry := buildRegistry(mgr, backend, q, cfg)
	pool := worker.NewManager(q, registry, worker.TierWorkerCounts{
		FastGPU:     cfg.Queue.FastGPUWorkers,
		StandardGPU: cfg.Queue.StandardGPUWorkers,
		CPU:         cfg.Queue.CPUWorkers,
	}, time.Duration(cfg.Queue.PollIntervalSeconds)*time.Second)

	go runCleanupLoop(ctx, q, cfg.Queue.CleanupKeepCount)

	log.Info().Msg("noteforged_starting")
	pool.Run(ctx)
	log.Info().Msg("noteforged_stopped")
}

func buildRegistry(mgr *store.Manager, backend inference.Backend, q *queue.Queue, cfg config.Config) handlers.Registry {
	defaultChunkCfg := chunkConfig(cfg)
	return handlers.NewRegistry(
		handlers.NewEmbeddingHandler(mgr, backend, defaultChunkCfg, cfg.Inference.EmbeddingModel),
		handlers.NewLinkingHandler(mgr, cfg.Search.SemanticThreshold),
		handlers.NewTitleGenerationHandler(mgr, backend, cfg.Search.RelatedThreshold),
		handlers.NewAIRevisionHandler(mgr, backend, cfg.Search.RelatedThreshold),
		handlers.NewContextUpdateHandler(mgr, backend, cfg.Search.ContextThreshold),
		handlers.NewConceptTaggingHandler(mgr, backend),
		handlers.NewPurgeNoteHandler(mgr),
		handlers.NewReEmbedAllHandler(mgr, q),
	)
}

func runCleanupLoop(ctx context.Context, q *queue.Queue, keepCount int) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := q.Cleanup(ctx, keepCount)
			if err != nil {
				log.Warn().Err(err).Msg("job_cleanup_failed")
				continue
			}
			if removed > 0 {
				log.Info().Int("removed", removed).Msg("job_cleanup_ok")
			}
		}
	}
}

// runEmbeddingSetRefreshLoop periodically re-evaluates every auto-mode
// embedding set's criteria, keeping membership current without requiring an
// explicit admin action per set.
func runEmbeddingSetRefreshLoop(ctx context.Context, mgr *store.Manager, engine *embedset.Engine) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sets, err := mgr.EmbeddingSets.List(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("embedding_set_list_failed")
				continue
			}
			for _, s := range sets {
				if s.Mode != domain.EmbeddingSetModeAuto {
					continue
				}
				if _, err := engine.Refresh(ctx, s.Slug); err != nil {
					log.Warn().Err(err).Str("slug", s.Slug).Msg("embedding_set_refresh_failed")
				}
			}
		}
	}
}

func chunkConfig(cfg config.Config) chunk.Config {
	return chunk.Config{
		Kind:    chunk.KindSemantic,
		Size:    1000,
		Overlap: 100,
	}
}
