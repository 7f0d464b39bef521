package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConceptStatus is the lifecycle state of a SKOS concept.
type ConceptStatus string

const (
	ConceptStatusCandidate  ConceptStatus = "candidate"
	ConceptStatusApproved   ConceptStatus = "approved"
	ConceptStatusDeprecated ConceptStatus = "deprecated"
	ConceptStatusObsolete   ConceptStatus = "obsolete"
)

// ConceptRelation names an edge between two concepts in the hierarchy.
type ConceptRelation string

const (
	ConceptRelationBroader  ConceptRelation = "broader"
	ConceptRelationNarrower ConceptRelation = "narrower"
	ConceptRelationRelated  ConceptRelation = "related"
)

// Concept is a node in a hierarchical SKOS tag vocabulary, scoped to a
// concept scheme.
type Concept struct {
	ID        uuid.UUID
	SchemeID  uuid.UUID
	PrefLabel string
	AltLabels []string
	Language  string
	Status    ConceptStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConceptEdge is a directed (Broader/Narrower/Related) edge between two
// concepts.
type ConceptEdge struct {
	FromConceptID uuid.UUID
	ToConceptID   uuid.UUID
	Relation      ConceptRelation
}

// NoteTagSource names where a tag assignment came from.
type NoteTagSource string

const (
	NoteTagSourceManual NoteTagSource = "manual"
	NoteTagSourceAI     NoteTagSource = "ai"
)

// NoteTag binds a note to a concept with provenance and relevance.
type NoteTag struct {
	NoteID     uuid.UUID
	ConceptID  uuid.UUID
	Source     NoteTagSource
	Confidence *float64
	Relevance  float64
	IsPrimary  bool
	CreatedAt  time.Time
}
