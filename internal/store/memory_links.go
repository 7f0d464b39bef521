package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type linkKey struct {
	from uuid.UUID
	to   uuid.UUID
	kind domain.LinkKind
}

type memoryLinks struct {
	mu    sync.RWMutex
	links map[linkKey]*domain.Link
}

func newMemoryLinks() LinkStore { return &memoryLinks{links: make(map[linkKey]*domain.Link)} }

func (m *memoryLinks) Create(_ context.Context, l *domain.Link) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var to uuid.UUID
	if l.ToNoteID != nil {
		to = *l.ToNoteID
	}
	key := linkKey{from: l.FromNoteID, to: to, kind: l.Kind}
	if existing, ok := m.links[key]; ok {
		return existing.ID, nil
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	cp := *l
	m.links[key] = &cp
	return l.ID, nil
}

func (m *memoryLinks) ListFrom(_ context.Context, noteID uuid.UUID) ([]*domain.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Link
	for _, l := range m.links {
		if l.FromNoteID == noteID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryLinks) ListTo(_ context.Context, noteID uuid.UUID) ([]*domain.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Link
	for _, l := range m.links {
		if l.ToNoteID != nil && *l.ToNoteID == noteID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryLinks) DeleteForNote(_ context.Context, noteID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, l := range m.links {
		if l.FromNoteID == noteID || (l.ToNoteID != nil && *l.ToNoteID == noteID) {
			delete(m.links, key)
		}
	}
	return nil
}
