package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"noteforge/internal/domain"
)

type pgEmbeddings struct{ pool *pgxpool.Pool }

// noiseFloor is spec.md §4.7's pre-fusion cosine cutoff: vector search
// always returns top-k, so raw hits below this are dropped before they can
// be amplified by single-list RRF normalization.
const noiseFloor = 0.3

// NewPostgresEmbeddings returns a pgx-backed EmbeddingStore, mirroring the
// teacher's pgVector bootstrap but keyed by (note_id, embedding_set_id,
// chunk_ordinal) instead of a bare id.
func NewPostgresEmbeddings(pool *pgxpool.Pool, dimension int) EmbeddingStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	vecType := "vector"
	if dimension > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimension)
	}
	_, _ = pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS embeddings (
  id UUID PRIMARY KEY,
  note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
  embedding_set_id UUID NOT NULL,
  chunk_ordinal INT NOT NULL,
  chunk_text TEXT NOT NULL,
  vec %s NOT NULL,
  model_name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (note_id, embedding_set_id, chunk_ordinal)
);
`, vecType))
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS embeddings_set_idx ON embeddings (embedding_set_id)`)
	return &pgEmbeddings{pool: pool}
}

func vectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}

func (p *pgEmbeddings) Store(ctx context.Context, noteID uuid.UUID, chunks []ChunkEmbedding, model string, setID uuid.UUID) error {
	return WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		for _, c := range chunks {
			_, err := tx.Exec(ctx, `
INSERT INTO embeddings(id, note_id, embedding_set_id, chunk_ordinal, chunk_text, vec, model_name, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,$7,now())
ON CONFLICT (note_id, embedding_set_id, chunk_ordinal) DO UPDATE SET
  chunk_text = EXCLUDED.chunk_text,
  vec = EXCLUDED.vec,
  model_name = EXCLUDED.model_name,
  created_at = now()
`, uuid.New(), noteID, setID, c.Ordinal, c.Text, vectorLiteral(c.Vector), model)
			if err != nil {
				return fmt.Errorf("store embedding ordinal %d: %w", c.Ordinal, err)
			}
		}
		return nil
	})
}

func (p *pgEmbeddings) FindSimilar(ctx context.Context, setID *uuid.UUID, query []float32, k int, excludeArchived bool) ([]domain.SearchHit, error) {
	if k <= 0 {
		k = 10
	}
	vecLit := vectorLiteral(query)
	args := []any{vecLit, k}
	where := "1=1"
	if setID != nil {
		where += " AND e.embedding_set_id = $3"
		args = append(args, *setID)
	}
	if excludeArchived {
		where += " AND NOT n.archived"
	}
	query2 := fmt.Sprintf(`
SELECT DISTINCT ON (e.note_id) e.note_id, 1 - (e.vec <=> $1::vector) AS score, n.title, n.updated_at
FROM embeddings e
JOIN notes n ON n.id = e.note_id AND n.deleted_at IS NULL
WHERE %s AND 1 - (e.vec <=> $1::vector) >= %f
ORDER BY e.note_id, score DESC
`, where, noiseFloor)
	rows, err := p.pool.Query(ctx, query2, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}
	defer rows.Close()

	type row struct {
		hit       domain.SearchHit
		updatedAt time.Time
	}
	var results []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.hit.NoteID, &r.hit.Score, &r.hit.Title, &r.updatedAt); err != nil {
			return nil, fmt.Errorf("scan similar row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Tie-break: score desc, then updated_at desc, then id asc.
	sortByScoreThenRecency(results, func(r row) (float64, time.Time, uuid.UUID) {
		return r.hit.Score, r.updatedAt, r.hit.NoteID
	})
	if len(results) > k {
		results = results[:k]
	}
	out := make([]domain.SearchHit, len(results))
	for i, r := range results {
		out[i] = r.hit
	}
	return out, nil
}

// sortByScoreThenRecency sorts rs in place by (score desc, updatedAt desc,
// id asc), mirroring the repository contract's tiebreak.
func sortByScoreThenRecency[T any](rs []T, key func(T) (float64, time.Time, uuid.UUID)) {
	sortStable(rs, func(a, b T) bool {
		sa, ta, ia := key(a)
		sb, tb, ib := key(b)
		if sa != sb {
			return sa > sb
		}
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return ia.String() < ib.String()
	})
}

func (p *pgEmbeddings) FindSimilarWithStrictFilter(ctx context.Context, query []float32, k int, filter domain.StrictFilter) ([]domain.SearchHit, error) {
	if filter.MatchNone {
		return nil, nil
	}
	// Strict filtering against concept membership is composed at the
	// search layer (internal/search applyStrictFilter) by checking each hit's
	// ConceptStore.TagsForNote; this method keeps
	// the vector half of the contract symmetric with FindSimilar.
	return p.FindSimilar(ctx, nil, query, k, true)
}

func (p *pgEmbeddings) ByNote(ctx context.Context, noteID uuid.UUID, setID uuid.UUID) ([]*domain.Embedding, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, note_id, embedding_set_id, chunk_ordinal, chunk_text, model_name, created_at
FROM embeddings WHERE note_id=$1 AND embedding_set_id=$2 ORDER BY chunk_ordinal ASC
`, noteID, setID)
	if err != nil {
		return nil, fmt.Errorf("embeddings by note: %w", err)
	}
	defer rows.Close()
	var out []*domain.Embedding
	for rows.Next() {
		var e domain.Embedding
		if err := rows.Scan(&e.ID, &e.NoteID, &e.EmbeddingSetID, &e.ChunkOrdinal, &e.ChunkText, &e.ModelName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (p *pgEmbeddings) DeleteOrphaned(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, `
DELETE FROM embeddings e
WHERE NOT EXISTS (SELECT 1 FROM notes n WHERE n.id = e.note_id AND n.deleted_at IS NULL)
`)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned embeddings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *pgEmbeddings) StaleForSet(ctx context.Context, setID uuid.UUID) ([]*domain.Embedding, error) {
	rows, err := p.pool.Query(ctx, `
SELECT e.id, e.note_id, e.embedding_set_id, e.chunk_ordinal, e.chunk_text, e.model_name, e.created_at
FROM embeddings e
JOIN notes n ON n.id = e.note_id
WHERE e.embedding_set_id = $1 AND e.created_at < n.updated_at
`, setID)
	if err != nil {
		return nil, fmt.Errorf("stale embeddings for set: %w", err)
	}
	defer rows.Close()
	var out []*domain.Embedding
	for rows.Next() {
		var e domain.Embedding
		if err := rows.Scan(&e.ID, &e.NoteID, &e.EmbeddingSetID, &e.ChunkOrdinal, &e.ChunkText, &e.ModelName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stale embedding: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
