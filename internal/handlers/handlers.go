// Package handlers is the Job Handlers layer (C5): one handler per
// domain.JobType, each composing the repository layer (C3), the inference
// backend (C1), and the chunker family (C2) to carry out one unit of
// deferred work claimed from the queue (C4) by a worker (C8).
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

// Result is a handler's outcome, translated by the worker pool into the
// queue's complete/fail calls.
type Result struct {
	OK      bool
	Payload []byte
	Err     string
}

func Ok(payload any) Result {
	b, err := json.Marshal(payload)
	if err != nil {
		return Fail(fmt.Errorf("marshal result: %w", err))
	}
	return Result{OK: true, Payload: b}
}

func Fail(err error) Result {
	return Result{OK: false, Err: err.Error()}
}

// Progress reports job completion percentage to the queue; msg is optional
// context shown alongside the percentage.
type Progress func(ctx context.Context, percent int, msg string) error

// Handler is the contract every job type satisfies.
type Handler interface {
	JobType() domain.JobType
	Execute(ctx context.Context, job *domain.Job, progress Progress) Result
}

// Registry maps a JobType to its handler, for the worker pool's dispatch.
type Registry map[domain.JobType]Handler

func NewRegistry(hs ...Handler) Registry {
	r := make(Registry, len(hs))
	for _, h := range hs {
		r[h.JobType()] = h
	}
	return r
}

// findRelated returns up to limit related notes for noteID, filtered to
// score > minScore and excluding the note itself. It seeds the query from
// the note's first stored chunk embedding (ordinal 0), the convention every
// handler that needs "notes like this one" (linking, title generation, AI
// revision, context update) shares.
func findRelated(ctx context.Context, m *store.Manager, noteID uuid.UUID, limit int, minScore float64) ([]domain.SearchHit, error) {
	embeddings, err := m.Embeddings.ByNote(ctx, noteID, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("load note embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, nil
	}
	seed := embeddings[0]
	for _, e := range embeddings {
		if e.ChunkOrdinal == 0 {
			seed = e
			break
		}
	}
	hits, err := m.Embeddings.FindSimilar(ctx, nil, seed.Vector, limit+1, false)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}
	out := make([]domain.SearchHit, 0, limit)
	for _, h := range hits {
		if h.NoteID == noteID {
			continue
		}
		if h.Score <= minScore {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// snippetsOf renders hits into prompt-ready "Title: snippet" lines, capped
// at n hits.
func snippetsOf(hits []domain.SearchHit, n int) []string {
	if len(hits) > n {
		hits = hits[:n]
	}
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		title := h.Title
		if title == "" {
			title = h.NoteID.String()
		}
		lines = append(lines, fmt.Sprintf("%s: %s", title, h.Snippet))
	}
	return lines
}

// milleCap is the Miller's Law bound spec.md §4.4 applies to related-note
// retrieval in title generation and AI revision (linking uses k=10).
const milleCap = 7
