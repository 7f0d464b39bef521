package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

// Embedder is the slice of the inference backend the search engine needs:
// turning a query string into the same vector space the note embeddings
// live in. Kept narrow so this package doesn't import internal/inference.
type Embedder interface {
	EmbedQuery(ctx context.Context, model, query string) ([]float32, error)
}

// Engine is the hybrid retrieval engine (C7): it runs FTS and vector
// similarity concurrently, fuses them by reciprocal rank, applies the
// strict concept filter, and deduplicates revision chains.
type Engine struct {
	store    *store.Manager
	embedder Embedder
	flags    FeatureFlags

	// embedGroup collapses concurrent identical queries into a single
	// inference call, the way the teacher's sefii.Engine memoized query
	// embeddings with a mutex-guarded map — singleflight is the idiomatic
	// stdlib-adjacent replacement for that pattern.
	embedGroup singleflight.Group
}

func NewEngine(m *store.Manager, embedder Embedder, flags FeatureFlags) *Engine {
	return &Engine{store: m, embedder: embedder, flags: flags}
}

// ChainResolver resolves a note's chain root for dedup. Search receives it
// from its caller; nil disables dedup.
type ChainResolver func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

func (e *Engine) Search(ctx context.Context, query string, model string, limit int, cfg domain.SearchConfig, chains ChainResolver) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	script := DetectScript(query, cfg.ScriptHint)
	strategy := SelectStrategy(script, e.flags)

	// Over-fetch both lists so fusion, MinScore, and the strict filter have
	// candidates to trim without starving the final page.
	fetch := limit * 2
	var (
		ftsHits, vecHits []domain.SearchHit
		ftsErr, vecErr   error
		wg               sync.WaitGroup
	)
	wg.Add(2)
	go func() { defer wg.Done(); ftsHits, ftsErr = e.runFTS(ctx, strategy, query, fetch, cfg) }()
	go func() { defer wg.Done(); vecHits, vecErr = e.runVector(ctx, query, model, fetch, cfg) }()
	wg.Wait()
	if ftsErr != nil {
		return nil, fmt.Errorf("fts search: %w", ftsErr)
	}
	if vecErr != nil {
		return nil, fmt.Errorf("vector search: %w", vecErr)
	}

	lists := map[string][]domain.SearchHit{"fts": ftsHits, "vector": vecHits}
	weights := map[string]float64{"fts": cfg.FTSWeight, "vector": cfg.SemanticWeight}
	if weights["fts"] == 0 && weights["vector"] == 0 {
		weights["fts"], weights["vector"] = 0.5, 0.5
	}
	fused := FuseRRF(lists, weights)

	if cfg.Deduplication && chains != nil {
		ids := make([]uuid.UUID, len(fused))
		for i, h := range fused {
			ids[i] = h.noteID
		}
		roots, err := chains(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve chain roots: %w", err)
		}
		fused = Dedup(fused, roots, cfg.ExpandChains)
	}

	hits := toSearchHits(fused)
	if cfg.MinScore > 0 {
		hits = filterMinScore(hits, cfg.MinScore)
	}
	hits, err := applyStrictFilter(ctx, e.store.Concepts, hits, cfg.Strict)
	if err != nil {
		return nil, fmt.Errorf("apply strict filter: %w", err)
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func filterMinScore(hits []domain.SearchHit, min float64) []domain.SearchHit {
	out := hits[:0]
	for _, h := range hits {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}

func (e *Engine) runFTS(ctx context.Context, strategy domain.FTSStrategy, query string, limit int, cfg domain.SearchConfig) ([]domain.SearchHit, error) {
	switch strategy {
	case domain.FTSStrategyEnglish:
		return e.store.FTS.SearchEnglish(ctx, query, limit, cfg.ExcludeArchived, cfg.EmbeddingSetID)
	case domain.FTSStrategyBigram:
		return e.store.FTS.SearchBigram(ctx, query, limit)
	case domain.FTSStrategyCJK:
		return e.store.FTS.SearchCJK(ctx, query, limit)
	case domain.FTSStrategyTrigram:
		return e.store.FTS.SearchTrigram(ctx, query, limit)
	default:
		return e.store.FTS.SearchSimple(ctx, query, limit)
	}
}

// runVector retrieves semantic candidates. The raw-cosine noise floor
// (spec §4.7/§9) is enforced by store.EmbeddingStore itself
// (see store.noiseFloor), not here: every FindSimilar* implementation
// drops hits below the cutoff before they ever reach fusion.
func (e *Engine) runVector(ctx context.Context, query, model string, limit int, cfg domain.SearchConfig) ([]domain.SearchHit, error) {
	if e.embedder == nil || cfg.SemanticWeight <= 0 {
		return nil, nil
	}
	vec, err := e.embedQueryCached(ctx, model, query)
	if err != nil {
		return nil, err
	}
	if cfg.Strict != nil && len(cfg.Strict.RequiredConceptIDs) > 0 {
		return e.store.Embeddings.FindSimilarWithStrictFilter(ctx, vec, limit, *cfg.Strict)
	}
	return e.store.Embeddings.FindSimilar(ctx, cfg.EmbeddingSetID, vec, limit, cfg.ExcludeArchived)
}

func (e *Engine) embedQueryCached(ctx context.Context, model, query string) ([]float32, error) {
	key := model + "\x00" + query
	v, err, _ := e.embedGroup.Do(key, func() (any, error) {
		return e.embedder.EmbedQuery(ctx, model, query)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}
