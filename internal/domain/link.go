package domain

import (
	"time"

	"github.com/google/uuid"
)

// LinkKind classifies a directed edge between notes.
type LinkKind string

const (
	LinkKindSemantic LinkKind = "semantic"
	LinkKindWiki     LinkKind = "wiki"
	LinkKindManual   LinkKind = "manual"
)

// Link is a directed edge between notes, or from a note to an external URL.
// Exactly one of ToNoteID / ToURL is set. (FromNoteID, ToNoteID, Kind) is
// unique; semantic links are created as a reciprocal pair of rows.
type Link struct {
	ID         uuid.UUID
	FromNoteID uuid.UUID
	ToNoteID   *uuid.UUID
	ToURL      *string
	Kind       LinkKind
	Score      float64
	Metadata   map[string]string
	CreatedAt  time.Time
}
