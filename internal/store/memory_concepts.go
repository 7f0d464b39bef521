package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type memoryConcepts struct {
	mu            sync.RWMutex
	schemes       map[uuid.UUID]bool
	concepts      map[uuid.UUID]*domain.Concept
	tags          map[uuid.UUID]map[uuid.UUID]*domain.NoteTag // noteID -> conceptID -> tag
	defaultScheme uuid.UUID
}

func newMemoryConcepts() ConceptStore {
	c := &memoryConcepts{
		schemes:       make(map[uuid.UUID]bool),
		concepts:      make(map[uuid.UUID]*domain.Concept),
		tags:          make(map[uuid.UUID]map[uuid.UUID]*domain.NoteTag),
		defaultScheme: uuid.New(),
	}
	c.schemes[c.defaultScheme] = true
	return c
}

func (m *memoryConcepts) DefaultScheme(_ context.Context) (uuid.UUID, error) {
	return m.defaultScheme, nil
}

func (m *memoryConcepts) FindOrCreateByLabel(_ context.Context, schemeID uuid.UUID, label, lang string) (*domain.Concept, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.concepts {
		if c.SchemeID == schemeID && strings.EqualFold(c.PrefLabel, label) {
			cp := *c
			return &cp, nil
		}
	}
	now := time.Now().UTC()
	c := &domain.Concept{
		ID: uuid.New(), SchemeID: schemeID, PrefLabel: label, Language: lang,
		Status: domain.ConceptStatusCandidate, CreatedAt: now, UpdatedAt: now,
	}
	m.concepts[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *memoryConcepts) Get(_ context.Context, id uuid.UUID) (*domain.Concept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.concepts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryConcepts) TagNote(_ context.Context, tag *domain.NoteTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags[tag.NoteID] == nil {
		m.tags[tag.NoteID] = make(map[uuid.UUID]*domain.NoteTag)
	}
	cp := *tag
	cp.CreatedAt = time.Now().UTC()
	m.tags[tag.NoteID][tag.ConceptID] = &cp
	return nil
}

func (m *memoryConcepts) TagsForNote(_ context.Context, noteID uuid.UUID) ([]*domain.NoteTag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.NoteTag
	for _, t := range m.tags[noteID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryConcepts) TagLabelsForNote(_ context.Context, noteID uuid.UUID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for conceptID := range m.tags[noteID] {
		if c, ok := m.concepts[conceptID]; ok {
			out = append(out, c.PrefLabel)
		}
	}
	return out, nil
}

func (m *memoryConcepts) NotesWithAnyTag(_ context.Context, tagPrefixes []string) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for noteID, byConcept := range m.tags {
		for conceptID := range byConcept {
			c, ok := m.concepts[conceptID]
			if !ok {
				continue
			}
			if matchesAnyPrefix(c.PrefLabel, tagPrefixes) {
				if !seen[noteID] {
					seen[noteID] = true
					out = append(out, noteID)
				}
				break
			}
		}
	}
	return out, nil
}

func matchesAnyPrefix(label string, prefixes []string) bool {
	for _, p := range prefixes {
		if domain.HasHierarchicalTag([]string{label}, p) {
			return true
		}
	}
	return false
}
