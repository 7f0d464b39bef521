package domain

import (
	"time"

	"github.com/google/uuid"
)

// Embedding is a persisted vector for one chunk of one note within one
// embedding set. (NoteID, EmbeddingSetID, ChunkOrdinal) uniquely identifies
// a row.
type Embedding struct {
	ID             uuid.UUID
	NoteID         uuid.UUID
	ChunkOrdinal   int
	ChunkText      string
	Vector         []float32
	ModelName      string
	EmbeddingSetID uuid.UUID
	CreatedAt      time.Time
}

// IsStale reports whether the embedding predates the note's last update.
func (e *Embedding) IsStale(noteUpdatedAt time.Time) bool {
	return e.CreatedAt.Before(noteUpdatedAt)
}

// EmbeddingConfig is an embedding profile: model, dimension, chunking
// defaults, and the content this profile applies to.
type EmbeddingConfig struct {
	ID                  uuid.UUID
	Name                string
	Model               string
	Dimension           int
	ChunkSize           int
	ChunkOverlap        int
	Provider            string
	SupportsMRL         bool
	MatryoshkaDims      []int
	DefaultTruncateDim  *int
	ContentTypes        []string
	DocumentComposition string
	IsDefault           bool
}
