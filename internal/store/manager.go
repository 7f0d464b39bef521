package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Manager holds the concrete repository backends resolved from
// configuration, mirroring the teacher's databases.Manager aggregator.
type Manager struct {
	Notes         NoteStore
	Embeddings    EmbeddingStore
	Links         LinkStore
	Jobs          JobStore
	EmbeddingSets EmbeddingSetStore
	Concepts      ConceptStore
	FTS           FTSStore

	pool *pgxpool.Pool
}

// NewPostgresManager opens a pool against dsn and wires every repository
// against it, bootstrapping each table as its constructor is called.
func NewPostgresManager(ctx context.Context, dsn string, embeddingDimension int) (*Manager, error) {
	pool, err := OpenPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	m := &Manager{pool: pool}
	m.Notes = NewPostgresNotes(pool)
	m.Links = NewPostgresLinks(pool)
	m.Jobs = NewPostgresJobs(pool)
	m.EmbeddingSets = NewPostgresEmbeddingSets(pool)
	m.Concepts = NewPostgresConcepts(pool)
	m.Embeddings = NewPostgresEmbeddings(pool, embeddingDimension)
	m.FTS = NewPostgresFTS(pool)
	return m, nil
}

// NewMemoryManager wires every repository against its in-memory test
// double, for unit tests that don't need a live Postgres instance.
func NewMemoryManager() *Manager {
	return &Manager{
		Notes:         newMemoryNotes(),
		Embeddings:    newMemoryEmbeddings(),
		Links:         newMemoryLinks(),
		Jobs:          newMemoryJobs(),
		EmbeddingSets: newMemoryEmbeddingSets(),
		Concepts:      newMemoryConcepts(),
		FTS:           newMemoryFTS(),
	}
}

// Close releases the underlying connection pool. It's a no-op for a memory
// manager.
func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}
