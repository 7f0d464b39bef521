package embedset

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

// Lifecycle is a point-in-time snapshot of an embedding set's index health,
// per spec.md §4.6's three detection queries. It has no side effects.
type Lifecycle struct {
	Stale    []*domain.Embedding
	Orphaned []*domain.Embedding
	Missing  []uuid.UUID // note IDs with membership but zero embeddings
}

// Detect runs the stale/orphaned/missing queries for one set.
func (e *Engine) Detect(ctx context.Context, setID uuid.UUID) (Lifecycle, error) {
	members, err := e.store.EmbeddingSets.Members(ctx, setID)
	if err != nil {
		return Lifecycle{}, fmt.Errorf("list members: %w", err)
	}
	memberSet := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		memberSet[m.NoteID] = true
	}

	var lc Lifecycle
	for _, m := range members {
		embeddings, err := e.store.Embeddings.ByNote(ctx, m.NoteID, setID)
		if err != nil {
			return Lifecycle{}, fmt.Errorf("load embeddings for note %s: %w", m.NoteID, err)
		}
		if len(embeddings) == 0 {
			lc.Missing = append(lc.Missing, m.NoteID)
			continue
		}
		note, err := e.store.Notes.Get(ctx, m.NoteID)
		if err != nil {
			if err == domain.ErrNotFound {
				lc.Orphaned = append(lc.Orphaned, embeddings...)
				continue
			}
			return Lifecycle{}, fmt.Errorf("load note %s: %w", m.NoteID, err)
		}
		if note.IsDeleted() {
			lc.Orphaned = append(lc.Orphaned, embeddings...)
			continue
		}
		for _, emb := range embeddings {
			if emb.IsStale(note.UpdatedAt) {
				lc.Stale = append(lc.Stale, emb)
			}
		}
	}

	stale, err := e.store.Embeddings.StaleForSet(ctx, setID)
	if err != nil {
		return Lifecycle{}, fmt.Errorf("query stale embeddings: %w", err)
	}
	lc.Stale = mergeEmbeddings(lc.Stale, stale)

	return lc, nil
}

func mergeEmbeddings(a, b []*domain.Embedding) []*domain.Embedding {
	seen := make(map[uuid.UUID]bool, len(a))
	out := make([]*domain.Embedding, 0, len(a)+len(b))
	for _, e := range a {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	for _, e := range b {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out
}
