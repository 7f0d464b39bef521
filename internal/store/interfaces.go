// Package store is the repository layer (C3): transactional CRUD against
// the relational store for notes, embeddings, links, jobs, embedding sets,
// concepts, and tags. Each repository comes in a pgx-backed implementation
// and an in-memory test double satisfying the same interface.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

// NoteStore is the repository contract for Note CRUD.
type NoteStore interface {
	Upsert(ctx context.Context, n *domain.Note) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	FindByTitle(ctx context.Context, title string) (*domain.Note, error)
	UpdateRevised(ctx context.Context, id uuid.UUID, revised string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context) ([]*domain.Note, error)
	// ListNonDeleted returns every non-deleted note regardless of archive
	// state, for callers (auto-set criteria evaluation) that apply their own
	// archive predicate.
	ListNonDeleted(ctx context.Context) ([]*domain.Note, error)
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]*domain.Note, error)
}

// EmbeddingStore is the repository contract for persisted vectors.
type EmbeddingStore interface {
	// Store is an idempotent upsert over (note_id, set_id, ordinal).
	Store(ctx context.Context, noteID uuid.UUID, chunks []ChunkEmbedding, model string, setID uuid.UUID) error
	FindSimilar(ctx context.Context, setID *uuid.UUID, query []float32, k int, excludeArchived bool) ([]domain.SearchHit, error)
	FindSimilarWithStrictFilter(ctx context.Context, query []float32, k int, filter domain.StrictFilter) ([]domain.SearchHit, error)
	ByNote(ctx context.Context, noteID uuid.UUID, setID uuid.UUID) ([]*domain.Embedding, error)
	DeleteOrphaned(ctx context.Context) (int, error)
	StaleForSet(ctx context.Context, setID uuid.UUID) ([]*domain.Embedding, error)
}

// ChunkEmbedding is one chunk/vector pair passed to EmbeddingStore.Store.
type ChunkEmbedding struct {
	Ordinal int
	Text    string
	Vector  []float32
}

// LinkStore is the repository contract for Link CRUD.
type LinkStore interface {
	// Create inserts iff no row with the same (from, to, kind) exists; it
	// returns a (possibly pre-existing) id either way.
	Create(ctx context.Context, l *domain.Link) (uuid.UUID, error)
	ListFrom(ctx context.Context, noteID uuid.UUID) ([]*domain.Link, error)
	ListTo(ctx context.Context, noteID uuid.UUID) ([]*domain.Link, error)
	DeleteForNote(ctx context.Context, noteID uuid.UUID) error
}

// JobStore is the repository contract for the durable job queue (C4).
type JobStore interface {
	Queue(ctx context.Context, noteID *uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (uuid.UUID, error)
	QueueDeduplicated(ctx context.Context, noteID uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (*uuid.UUID, error)
	ClaimNextForTypes(ctx context.Context, types []domain.JobType) (*domain.Job, error)
	ClaimNextForTier(ctx context.Context, tier domain.TierGroup, types []domain.JobType) (*domain.Job, error)
	UpdateProgress(ctx context.Context, jobID uuid.UUID, percent int, msg *string) error
	Complete(ctx context.Context, jobID uuid.UUID, result []byte) error
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error
	Cleanup(ctx context.Context, keepCount int) (int, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// EmbeddingSetStore is the repository contract for embedding sets and their
// membership rows.
type EmbeddingSetStore interface {
	Create(ctx context.Context, s *domain.EmbeddingSet) error
	GetBySlug(ctx context.Context, slug string) (*domain.EmbeddingSet, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.EmbeddingSet, error)
	Update(ctx context.Context, s *domain.EmbeddingSet) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*domain.EmbeddingSet, error)

	AddMember(ctx context.Context, setID, noteID uuid.UUID, mt domain.MembershipType) error
	RemoveMember(ctx context.Context, setID, noteID uuid.UUID) error
	Members(ctx context.Context, setID uuid.UUID) ([]*domain.EmbeddingSetMember, error)
	IsMember(ctx context.Context, setID, noteID uuid.UUID) (bool, error)

	MarkStale(ctx context.Context, setID uuid.UUID) error
	MarkIndexReady(ctx context.Context, setID uuid.UUID, at time.Time) error
	MarkRefreshed(ctx context.Context, setID uuid.UUID, at time.Time) error
	RefreshStats(ctx context.Context, setID uuid.UUID) error
}

// FTSStore exposes the multiple full-text-search strategies spec.md §4.7
// selects between by detected script: English (stemmed, weighted
// title/body ranks), Simple (unstemmed), Trigram/Bigram (pg_trgm-backed,
// for scripts the English/Simple dictionaries don't tokenize well), and a
// CJK strategy that tries Bigram and falls back to Trigram.
type FTSStore interface {
	SearchEnglish(ctx context.Context, query string, limit int, excludeArchived bool, setID *uuid.UUID) ([]domain.SearchHit, error)
	SearchSimple(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
	SearchTrigram(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
	SearchBigram(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
	SearchCJK(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
}

// ConceptStore is the repository contract for SKOS concepts/tags. No HTTP
// surface is built over it, but the embedding-set criteria evaluator and
// the concept-tagging job handler both depend on it directly.
type ConceptStore interface {
	FindOrCreateByLabel(ctx context.Context, schemeID uuid.UUID, label, lang string) (*domain.Concept, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Concept, error)
	DefaultScheme(ctx context.Context) (uuid.UUID, error)

	TagNote(ctx context.Context, tag *domain.NoteTag) error
	TagsForNote(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTag, error)
	TagLabelsForNote(ctx context.Context, noteID uuid.UUID) ([]string, error)
	NotesWithAnyTag(ctx context.Context, tagPrefixes []string) ([]uuid.UUID, error)
}
