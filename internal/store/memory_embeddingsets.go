package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type memberKey struct {
	set  uuid.UUID
	note uuid.UUID
}

type memoryEmbeddingSets struct {
	mu      sync.RWMutex
	sets    map[uuid.UUID]*domain.EmbeddingSet
	bySlug  map[string]uuid.UUID
	members map[memberKey]*domain.EmbeddingSetMember
}

func newMemoryEmbeddingSets() EmbeddingSetStore {
	return &memoryEmbeddingSets{
		sets:    make(map[uuid.UUID]*domain.EmbeddingSet),
		bySlug:  make(map[string]uuid.UUID),
		members: make(map[memberKey]*domain.EmbeddingSetMember),
	}
}

func (m *memoryEmbeddingSets) Create(_ context.Context, s *domain.EmbeddingSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.IndexStatus == "" {
		s.IndexStatus = domain.IndexStatusPending
	}
	cp := *s
	m.sets[s.ID] = &cp
	m.bySlug[s.Slug] = s.ID
	return nil
}

func (m *memoryEmbeddingSets) GetBySlug(_ context.Context, slug string) (*domain.EmbeddingSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySlug[slug]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.sets[id]
	return &cp, nil
}

func (m *memoryEmbeddingSets) Get(_ context.Context, id uuid.UUID) (*domain.EmbeddingSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryEmbeddingSets) Update(_ context.Context, s *domain.EmbeddingSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sets[s.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *s
	m.sets[s.ID] = &cp
	return nil
}

func (m *memoryEmbeddingSets) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.IsSystem {
		return fmt.Errorf("%w: system set cannot be deleted", domain.ErrInvalidInput)
	}
	delete(m.sets, id)
	delete(m.bySlug, s.Slug)
	return nil
}

func (m *memoryEmbeddingSets) List(_ context.Context) ([]*domain.EmbeddingSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.EmbeddingSet
	for _, s := range m.sets {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryEmbeddingSets) AddMember(_ context.Context, setID, noteID uuid.UUID, mt domain.MembershipType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[memberKey{set: setID, note: noteID}] = &domain.EmbeddingSetMember{
		EmbeddingSetID: setID, NoteID: noteID, MembershipType: mt, AddedAt: time.Now().UTC(),
	}
	if s, ok := m.sets[setID]; ok {
		s.IndexStatus = domain.IndexStatusStale
	}
	return nil
}

func (m *memoryEmbeddingSets) RemoveMember(_ context.Context, setID, noteID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, memberKey{set: setID, note: noteID})
	if s, ok := m.sets[setID]; ok {
		s.IndexStatus = domain.IndexStatusStale
	}
	return nil
}

func (m *memoryEmbeddingSets) Members(_ context.Context, setID uuid.UUID) ([]*domain.EmbeddingSetMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.EmbeddingSetMember
	for k, mem := range m.members {
		if k.set == setID {
			cp := *mem
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryEmbeddingSets) IsMember(_ context.Context, setID, noteID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[memberKey{set: setID, note: noteID}]
	return ok, nil
}

func (m *memoryEmbeddingSets) MarkStale(_ context.Context, setID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[setID]; ok {
		s.IndexStatus = domain.IndexStatusStale
		return nil
	}
	return domain.ErrNotFound
}

func (m *memoryEmbeddingSets) MarkIndexReady(_ context.Context, setID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[setID]
	if !ok {
		return domain.ErrNotFound
	}
	s.IndexStatus = domain.IndexStatusReady
	s.LastIndexedAt = &at
	return nil
}

func (m *memoryEmbeddingSets) MarkRefreshed(_ context.Context, setID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[setID]
	if !ok {
		return domain.ErrNotFound
	}
	s.LastRefreshAt = &at
	return nil
}

func (m *memoryEmbeddingSets) RefreshStats(_ context.Context, setID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[setID]
	if !ok {
		return domain.ErrNotFound
	}
	count := 0
	for k := range m.members {
		if k.set == setID {
			count++
		}
	}
	s.DocumentCount = count
	return nil
}
