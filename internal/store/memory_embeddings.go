package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type memoryEmbeddingKey struct {
	noteID  uuid.UUID
	setID   uuid.UUID
	ordinal int
}

type memoryEmbeddings struct {
	mu    sync.RWMutex
	byKey map[memoryEmbeddingKey]*domain.Embedding
	// notes/archived are consulted to honor excludeArchived/deleted
	// filters without a live join; wired by the search/embedset packages
	// via SetNoteView in tests that need it.
	notes map[uuid.UUID]noteView
}

type noteView struct {
	title     string
	archived  bool
	deleted   bool
	updatedAt time.Time
}

func newMemoryEmbeddings() *memoryEmbeddings {
	return &memoryEmbeddings{
		byKey: make(map[memoryEmbeddingKey]*domain.Embedding),
		notes: make(map[uuid.UUID]noteView),
	}
}

// SetNoteView lets tests register the note metadata this double needs to
// evaluate exclude-archived/stale queries without depending on NoteStore.
func (m *memoryEmbeddings) SetNoteView(noteID uuid.UUID, title string, archived, deleted bool, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[noteID] = noteView{title: title, archived: archived, deleted: deleted, updatedAt: updatedAt}
}

func (m *memoryEmbeddings) Store(_ context.Context, noteID uuid.UUID, chunks []ChunkEmbedding, model string, setID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		key := memoryEmbeddingKey{noteID: noteID, setID: setID, ordinal: c.Ordinal}
		vec := make([]float32, len(c.Vector))
		copy(vec, c.Vector)
		m.byKey[key] = &domain.Embedding{
			ID:             uuid.New(),
			NoteID:         noteID,
			ChunkOrdinal:   c.Ordinal,
			ChunkText:      c.Text,
			Vector:         vec,
			ModelName:      model,
			EmbeddingSetID: setID,
			CreatedAt:      time.Now().UTC(),
		}
	}
	return nil
}

func cosineF32(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		na += float64(x) * float64(x)
	}
	for _, x := range b {
		nb += float64(x) * float64(x)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (m *memoryEmbeddings) FindSimilar(_ context.Context, setID *uuid.UUID, query []float32, k int, excludeArchived bool) ([]domain.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	best := map[uuid.UUID]domain.SearchHit{}
	bestUpdated := map[uuid.UUID]time.Time{}
	for key, e := range m.byKey {
		if setID != nil && key.setID != *setID {
			continue
		}
		nv := m.notes[key.noteID]
		if nv.deleted {
			continue
		}
		if excludeArchived && nv.archived {
			continue
		}
		score := cosineF32(query, e.Vector)
		if score < noiseFloor {
			continue
		}
		if cur, ok := best[key.noteID]; !ok || score > cur.Score {
			best[key.noteID] = domain.SearchHit{NoteID: key.noteID, Score: score, Title: nv.title}
			bestUpdated[key.noteID] = nv.updatedAt
		}
	}
	out := make([]domain.SearchHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ti, tj := bestUpdated[out[i].NoteID], bestUpdated[out[j].NoteID]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].NoteID.String() < out[j].NoteID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memoryEmbeddings) FindSimilarWithStrictFilter(ctx context.Context, query []float32, k int, filter domain.StrictFilter) ([]domain.SearchHit, error) {
	if filter.MatchNone {
		return nil, nil
	}
	return m.FindSimilar(ctx, nil, query, k, true)
}

func (m *memoryEmbeddings) ByNote(_ context.Context, noteID uuid.UUID, setID uuid.UUID) ([]*domain.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Embedding
	for key, e := range m.byKey {
		if key.noteID == noteID && key.setID == setID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkOrdinal < out[j].ChunkOrdinal })
	return out, nil
}

func (m *memoryEmbeddings) DeleteOrphaned(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.byKey {
		nv, ok := m.notes[key.noteID]
		if !ok || nv.deleted {
			delete(m.byKey, key)
			n++
		}
	}
	return n, nil
}

func (m *memoryEmbeddings) StaleForSet(_ context.Context, setID uuid.UUID) ([]*domain.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Embedding
	for key, e := range m.byKey {
		if key.setID != setID {
			continue
		}
		nv := m.notes[key.noteID]
		if e.CreatedAt.Before(nv.updatedAt) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
