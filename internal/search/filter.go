package search

import (
	"context"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

// applyStrictFilter narrows hits to notes satisfying f, per spec.md §4.7:
// Required concepts must ALL be present, Any requires at least one, Excluded
// must be absent, and MinTagCount bounds the total tag count. MatchNone is a
// caller shortcut for "return nothing" without touching the store.
func applyStrictFilter(ctx context.Context, concepts store.ConceptStore, hits []domain.SearchHit, f *domain.StrictFilter) ([]domain.SearchHit, error) {
	if f == nil {
		return hits, nil
	}
	if f.MatchNone {
		return nil, nil
	}
	if len(f.RequiredConceptIDs) == 0 && len(f.AnyConceptIDs) == 0 && len(f.ExcludedConceptIDs) == 0 && f.MinTagCount == 0 {
		return hits, nil
	}
	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		tags, err := concepts.TagsForNote(ctx, h.NoteID)
		if err != nil {
			return nil, err
		}
		if f.MinTagCount > 0 && len(tags) < f.MinTagCount {
			continue
		}
		present := make(map[uuid.UUID]bool, len(tags))
		for _, t := range tags {
			present[t.ConceptID] = true
		}
		if !allPresent(present, f.RequiredConceptIDs) {
			continue
		}
		if len(f.AnyConceptIDs) > 0 && !anyPresent(present, f.AnyConceptIDs) {
			continue
		}
		if anyPresent(present, f.ExcludedConceptIDs) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func allPresent(present map[uuid.UUID]bool, ids []uuid.UUID) bool {
	for _, id := range ids {
		if !present[id] {
			return false
		}
	}
	return true
}

func anyPresent(present map[uuid.UUID]bool, ids []uuid.UUID) bool {
	for _, id := range ids {
		if present[id] {
			return true
		}
	}
	return false
}
