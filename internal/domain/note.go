// Package domain holds the entity types shared across the repository layer,
// job queue, handlers, embedding-set engine, and search engine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Note is a durable text document. Indexing content is RevisedContent if
// non-empty, else OriginalContent.
type Note struct {
	ID              uuid.UUID
	Title           string
	OriginalContent string
	RevisedContent  string
	CollectionID    *uuid.UUID
	Archived        bool
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DocumentTypeID  *uuid.UUID
}

// IndexContent returns the content that indexing/embedding operates on.
func (n *Note) IndexContent() string {
	if n.RevisedContent != "" {
		return n.RevisedContent
	}
	return n.OriginalContent
}

// IsDeleted reports whether the note has been soft-deleted.
func (n *Note) IsDeleted() bool {
	return n.DeletedAt != nil
}
