package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

// queryFilters is the parsed form of SearchFiltered's filter string. Tokens
// with values that fail to parse are dropped silently: a malformed filter
// narrows nothing rather than failing the search.
type queryFilters struct {
	tags          []string
	collections   []uuid.UUID
	createdAfter  *time.Time
	createdBefore *time.Time
	updatedAfter  *time.Time
	updatedBefore *time.Time
}

func (f queryFilters) empty() bool {
	return len(f.tags) == 0 && len(f.collections) == 0 &&
		f.createdAfter == nil && f.createdBefore == nil &&
		f.updatedAfter == nil && f.updatedBefore == nil
}

func parseQueryFilters(s string) queryFilters {
	var f queryFilters
	for _, tok := range strings.Fields(s) {
		key, val, ok := strings.Cut(tok, ":")
		if !ok || val == "" {
			continue
		}
		switch key {
		case "tag":
			f.tags = append(f.tags, val)
		case "collection":
			if id, err := uuid.Parse(val); err == nil {
				f.collections = append(f.collections, id)
			}
		case "created_after":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				f.createdAfter = &t
			}
		case "created_before":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				f.createdBefore = &t
			}
		case "updated_after":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				f.updatedAfter = &t
			}
		case "updated_before":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				f.updatedBefore = &t
			}
		}
	}
	return f
}

// SearchFiltered runs Search and narrows the results by a space-separated
// filter string: tag:<name>, collection:<uuid>, created_after:<rfc3339>,
// created_before:, updated_after:, updated_before:. Tag matching is
// hierarchical (tag:rust matches rust and rust/...). Results are over-fetched
// before filtering so a narrow filter still fills the limit when the corpus
// allows.
func (e *Engine) SearchFiltered(ctx context.Context, query, model string, limit int, cfg domain.SearchConfig, filter string, chains ChainResolver) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	f := parseQueryFilters(filter)
	hits, err := e.Search(ctx, query, model, limit*2, cfg, chains)
	if err != nil {
		return nil, err
	}
	if f.empty() {
		if len(hits) > limit {
			hits = hits[:limit]
		}
		return hits, nil
	}

	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		keep, err := e.matchesFilters(ctx, h.NoteID, f)
		if err != nil {
			return nil, fmt.Errorf("apply query filters: %w", err)
		}
		if !keep {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (e *Engine) matchesFilters(ctx context.Context, noteID uuid.UUID, f queryFilters) (bool, error) {
	note, err := e.store.Notes.Get(ctx, noteID)
	if err != nil {
		if err == domain.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if len(f.collections) > 0 {
		if note.CollectionID == nil {
			return false, nil
		}
		found := false
		for _, c := range f.collections {
			if *note.CollectionID == c {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	if f.createdAfter != nil && note.CreatedAt.Before(*f.createdAfter) {
		return false, nil
	}
	if f.createdBefore != nil && note.CreatedAt.After(*f.createdBefore) {
		return false, nil
	}
	if f.updatedAfter != nil && note.UpdatedAt.Before(*f.updatedAfter) {
		return false, nil
	}
	if f.updatedBefore != nil && note.UpdatedAt.After(*f.updatedBefore) {
		return false, nil
	}
	if len(f.tags) > 0 {
		labels, err := e.store.Concepts.TagLabelsForNote(ctx, noteID)
		if err != nil {
			return false, err
		}
		for _, want := range f.tags {
			if !domain.HasHierarchicalTag(labels, want) {
				return false, nil
			}
		}
	}
	return true, nil
}
