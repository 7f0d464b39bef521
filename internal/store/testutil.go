package store

import (
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

// SeedFTS registers a document in an in-memory FTSStore for tests outside
// this package. It's a no-op (returns false) against a Postgres-backed
// store, which indexes directly off the notes table.
func SeedFTS(fts FTSStore, noteID uuid.UUID, title, content string, archived bool) bool {
	m, ok := fts.(*memoryFTS)
	if !ok {
		return false
	}
	m.Index(noteID, title, content, archived)
	return true
}

// LastFTSStrategy reports which strategy method an in-memory FTSStore was
// dispatched to most recently, for tests of the script-routing logic. Empty
// against a Postgres-backed store.
func LastFTSStrategy(fts FTSStore) domain.FTSStrategy {
	m, ok := fts.(*memoryFTS)
	if !ok {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// SeedNoteView registers note metadata in an in-memory EmbeddingStore for
// tests outside this package. No-op against a Postgres-backed store.
func SeedNoteView(es EmbeddingStore, noteID uuid.UUID, title string, archived, deleted bool, updatedAt time.Time) bool {
	m, ok := es.(*memoryEmbeddings)
	if !ok {
		return false
	}
	m.SetNoteView(noteID, title, archived, deleted, updatedAt)
	return true
}
