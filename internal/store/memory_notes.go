package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type memoryNotes struct {
	mu    sync.RWMutex
	notes map[uuid.UUID]*domain.Note
}

func newMemoryNotes() NoteStore { return &memoryNotes{notes: make(map[uuid.UUID]*domain.Note)} }

func cloneNote(n *domain.Note) *domain.Note {
	cp := *n
	return &cp
}

func (m *memoryNotes) Upsert(_ context.Context, n *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	m.notes[n.ID] = cloneNote(n)
	return nil
}

func (m *memoryNotes) Get(_ context.Context, id uuid.UUID) (*domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneNote(n), nil
}

func (m *memoryNotes) FindByTitle(_ context.Context, title string) (*domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *domain.Note
	for _, n := range m.notes {
		if n.IsDeleted() || !strings.EqualFold(n.Title, title) {
			continue
		}
		if best == nil || n.UpdatedAt.After(best.UpdatedAt) {
			best = n
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return cloneNote(best), nil
}

func (m *memoryNotes) UpdateRevised(_ context.Context, id uuid.UUID, revised string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.IsDeleted() {
		return domain.ErrNotFound
	}
	n.RevisedContent = revised
	n.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryNotes) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.IsDeleted() {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	n.DeletedAt = &now
	n.UpdatedAt = now
	return nil
}

func (m *memoryNotes) HardDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memoryNotes) ListActive(_ context.Context) ([]*domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Note
	for _, n := range m.notes {
		if !n.IsDeleted() && !n.Archived {
			out = append(out, cloneNote(n))
		}
	}
	return out, nil
}

func (m *memoryNotes) ListNonDeleted(_ context.Context) ([]*domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Note
	for _, n := range m.notes {
		if !n.IsDeleted() {
			out = append(out, cloneNote(n))
		}
	}
	return out, nil
}

func (m *memoryNotes) ListByCollection(_ context.Context, collectionID uuid.UUID) ([]*domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Note
	for _, n := range m.notes {
		if n.IsDeleted() || n.CollectionID == nil || *n.CollectionID != collectionID {
			continue
		}
		out = append(out, cloneNote(n))
	}
	return out, nil
}
