package embedset

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"noteforge/internal/domain"
)

// GCResult reports what GarbageCollect pruned.
type GCResult struct {
	OrphanedMembershipsRemoved int
	OrphanedEmbeddingsRemoved  int
}

// GarbageCollect implements spec.md §4.6: prune memberships whose note is
// gone, then orphaned embeddings, then refresh stats. Order matters —
// pruning memberships first means the subsequent embedding prune (a global
// repository-level sweep) never has to special-case a set currently being
// cleaned.
func (e *Engine) GarbageCollect(ctx context.Context, setID uuid.UUID) (GCResult, error) {
	members, err := e.store.EmbeddingSets.Members(ctx, setID)
	if err != nil {
		return GCResult{}, fmt.Errorf("list members: %w", err)
	}

	removedMemberships := 0
	for _, m := range members {
		_, err := e.store.Notes.Get(ctx, m.NoteID)
		if err == nil {
			continue
		}
		if err != domain.ErrNotFound {
			return GCResult{}, fmt.Errorf("check note %s: %w", m.NoteID, err)
		}
		if err := e.store.EmbeddingSets.RemoveMember(ctx, setID, m.NoteID); err != nil {
			return GCResult{}, fmt.Errorf("remove orphaned membership for note %s: %w", m.NoteID, err)
		}
		removedMemberships++
	}

	removedEmbeddings, err := e.store.Embeddings.DeleteOrphaned(ctx)
	if err != nil {
		return GCResult{}, fmt.Errorf("delete orphaned embeddings: %w", err)
	}

	if err := e.store.EmbeddingSets.RefreshStats(ctx, setID); err != nil {
		return GCResult{}, fmt.Errorf("refresh stats: %w", err)
	}

	result := GCResult{
		OrphanedMembershipsRemoved: removedMemberships,
		OrphanedEmbeddingsRemoved:  removedEmbeddings,
	}
	if set, err := e.store.EmbeddingSets.Get(ctx, setID); err == nil {
		if err := e.stats.RecordGC(ctx, setID, set.Slug, result); err != nil {
			log.Warn().Err(err).Str("slug", set.Slug).Msg("analytics_record_gc_failed")
		}
	}
	return result, nil
}

// Health computes the embedding set's health score from a fresh lifecycle
// detection, per spec.md §4.6: 100 * max(0, (doc-stale-orphaned-missing)/doc).
func (e *Engine) Health(ctx context.Context, setID uuid.UUID) (float64, error) {
	set, err := e.store.EmbeddingSets.Get(ctx, setID)
	if err != nil {
		return 0, fmt.Errorf("load set: %w", err)
	}
	lc, err := e.Detect(ctx, setID)
	if err != nil {
		return 0, fmt.Errorf("detect lifecycle: %w", err)
	}
	score := domain.HealthScore(set.DocumentCount, len(lc.Stale), len(lc.Orphaned), len(lc.Missing))
	if err := e.stats.RecordHealth(ctx, setID, set.Slug, score, len(lc.Stale), len(lc.Orphaned), len(lc.Missing)); err != nil {
		log.Warn().Err(err).Str("slug", set.Slug).Msg("analytics_record_health_failed")
	}
	return score, nil
}
