package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type ftsDoc struct {
	noteID   uuid.UUID
	title    string
	content  string
	archived bool
}

// memoryFTS is a naive term-count scorer, mirroring the teacher's
// memory_search.go idiom: no real tokenizer, just case-folded substring
// and whitespace-split term overlap, good enough for unit tests of the
// strategy-selection and fusion logic above it.
type memoryFTS struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]ftsDoc
	// last records which strategy method was dispatched most recently, so
	// tests of the script-routing logic can observe the chosen strategy —
	// the scoring itself is strategy-agnostic in this double.
	last domain.FTSStrategy
}

func newMemoryFTS() *memoryFTS { return &memoryFTS{docs: make(map[uuid.UUID]ftsDoc)} }

// Index lets tests register a note's searchable text without depending on
// NoteStore.
func (m *memoryFTS) Index(noteID uuid.UUID, title, content string, archived bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[noteID] = ftsDoc{noteID: noteID, title: title, content: content, archived: archived}
}

func termScore(q, title, content string) float64 {
	terms := strings.Fields(strings.ToLower(q))
	if len(terms) == 0 {
		return 0
	}
	hay := strings.ToLower(title + " " + content)
	var hits int
	for _, t := range terms {
		hits += strings.Count(hay, t)
	}
	return float64(hits) / float64(len(terms))
}

func (m *memoryFTS) search(limit int, excludeArchived bool, setFilter func(uuid.UUID) bool, query string) ([]domain.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []domain.SearchHit
	for _, d := range m.docs {
		if excludeArchived && d.archived {
			continue
		}
		if setFilter != nil && !setFilter(d.noteID) {
			continue
		}
		s := termScore(query, d.title, d.content)
		if s <= 0 {
			continue
		}
		out = append(out, domain.SearchHit{NoteID: d.noteID, Score: s, Title: d.title, Snippet: snippetOf(d.content)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func snippetOf(s string) string {
	if len(s) > 160 {
		return s[:160]
	}
	return s
}

func (m *memoryFTS) record(s domain.FTSStrategy) {
	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
}

func (m *memoryFTS) SearchEnglish(_ context.Context, query string, limit int, excludeArchived bool, setID *uuid.UUID) ([]domain.SearchHit, error) {
	m.record(domain.FTSStrategyEnglish)
	var filter func(uuid.UUID) bool
	if setID != nil {
		filter = func(uuid.UUID) bool { return true } // set membership is not checked in this double
	}
	return m.search(limit, excludeArchived, filter, query)
}

func (m *memoryFTS) SearchSimple(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	m.record(domain.FTSStrategySimple)
	return m.search(limit, false, nil, query)
}

func (m *memoryFTS) SearchTrigram(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	m.record(domain.FTSStrategyTrigram)
	return m.search(limit, false, nil, query)
}

func (m *memoryFTS) SearchBigram(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	m.record(domain.FTSStrategyBigram)
	return m.search(limit, false, nil, query)
}

func (m *memoryFTS) SearchCJK(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	m.record(domain.FTSStrategyCJK)
	return m.search(limit, false, nil, query)
}
