// Package embedset is the Embedding-Set Engine (C6): refreshing manual and
// auto-mode membership, detecting stale/orphaned/missing embeddings, garbage
// collection, and health scoring.
package embedset

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

// Engine operates on one store.Manager across every embedding set.
type Engine struct {
	store *store.Manager
	stats StatsSink
}

func NewEngine(m *store.Manager) *Engine {
	return &Engine{store: m, stats: NopSink{}}
}

// NewEngineWithSink attaches a StatsSink so Health/GarbageCollect mirror
// their results for trend analysis. Use NewEngine when analytics are
// disabled.
func NewEngineWithSink(m *store.Manager, sink StatsSink) *Engine {
	return &Engine{store: m, stats: sink}
}

// RefreshResult reports what a Refresh call did.
type RefreshResult struct {
	Mode            domain.EmbeddingSetMode
	UnembeddedCount int // manual mode
	MembersMatched  int // auto mode
}

// Refresh implements spec.md §4.6's refresh(slug): manual mode counts
// members lacking an embedding; auto mode re-evaluates criteria and upserts
// matching notes as 'auto' members, stamping last_refresh_at.
func (e *Engine) Refresh(ctx context.Context, slug string) (RefreshResult, error) {
	set, err := e.store.EmbeddingSets.GetBySlug(ctx, slug)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("load embedding set %q: %w", slug, err)
	}

	if set.Mode == domain.EmbeddingSetModeManual {
		count, err := e.countUnembeddedMembers(ctx, set.ID)
		if err != nil {
			return RefreshResult{}, err
		}
		return RefreshResult{Mode: set.Mode, UnembeddedCount: count}, nil
	}

	matched, err := e.matchCriteria(ctx, set.Criteria)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("evaluate criteria: %w", err)
	}
	for _, noteID := range matched {
		if err := e.store.EmbeddingSets.AddMember(ctx, set.ID, noteID, domain.MembershipAuto); err != nil {
			return RefreshResult{}, fmt.Errorf("upsert membership for note %s: %w", noteID, err)
		}
	}
	if err := e.store.EmbeddingSets.MarkRefreshed(ctx, set.ID, time.Now().UTC()); err != nil {
		return RefreshResult{}, fmt.Errorf("stamp refresh time: %w", err)
	}
	if err := e.store.EmbeddingSets.RefreshStats(ctx, set.ID); err != nil {
		return RefreshResult{}, fmt.Errorf("refresh stats: %w", err)
	}
	return RefreshResult{Mode: set.Mode, MembersMatched: len(matched)}, nil
}

func (e *Engine) countUnembeddedMembers(ctx context.Context, setID uuid.UUID) (int, error) {
	members, err := e.store.EmbeddingSets.Members(ctx, setID)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	count := 0
	for _, m := range members {
		embeddings, err := e.store.Embeddings.ByNote(ctx, m.NoteID, setID)
		if err != nil {
			return 0, fmt.Errorf("load embeddings for note %s: %w", m.NoteID, err)
		}
		if len(embeddings) == 0 {
			count++
		}
	}
	return count, nil
}

// matchCriteria translates domain.Criteria into the predicate spec.md §4.6
// describes: deleted_at IS NULL (via ListNonDeleted), archive exclusion, tag
// membership with hierarchical match, collection inclusion, FTS predicate,
// and date range. The candidate pool keeps archived notes so ExcludeArchived
// stays an independent criteria toggle rather than a baked-in filter.
func (e *Engine) matchCriteria(ctx context.Context, c domain.Criteria) ([]uuid.UUID, error) {
	notes, err := e.store.Notes.ListNonDeleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	var ftsMatches map[uuid.UUID]bool
	if c.FTSQuery != "" {
		hits, err := e.store.FTS.SearchSimple(ctx, c.FTSQuery, len(notes)+1)
		if err != nil {
			return nil, fmt.Errorf("evaluate fts predicate: %w", err)
		}
		ftsMatches = make(map[uuid.UUID]bool, len(hits))
		for _, h := range hits {
			ftsMatches[h.NoteID] = true
		}
	}

	var matched []uuid.UUID
	for _, n := range notes {
		if !c.IncludeAll {
			if c.ExcludeArchived && n.Archived {
				continue
			}
			if !e.matchesTags(ctx, n.ID, c.Tags) {
				continue
			}
			if !matchesCollection(n, c.Collections) {
				continue
			}
			if ftsMatches != nil && !ftsMatches[n.ID] {
				continue
			}
			if c.CreatedAfter != nil && n.CreatedAt.Before(*c.CreatedAfter) {
				continue
			}
			if c.CreatedBefore != nil && n.CreatedAt.After(*c.CreatedBefore) {
				continue
			}
		} else if c.ExcludeArchived && n.Archived {
			continue
		}
		matched = append(matched, n.ID)
	}
	return matched, nil
}

func (e *Engine) matchesTags(ctx context.Context, noteID uuid.UUID, want []string) bool {
	if len(want) == 0 {
		return true
	}
	labels, err := e.store.Concepts.TagLabelsForNote(ctx, noteID)
	if err != nil {
		return false
	}
	for _, w := range want {
		if domain.HasHierarchicalTag(labels, w) {
			return true
		}
	}
	return false
}

func matchesCollection(n *domain.Note, collections []uuid.UUID) bool {
	if len(collections) == 0 {
		return true
	}
	if n.CollectionID == nil {
		return false
	}
	for _, c := range collections {
		if *n.CollectionID == c {
			return true
		}
	}
	return false
}
