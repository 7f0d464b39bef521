package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"noteforge/internal/domain"
)

type pgFTS struct{ pool *pgxpool.Pool }

// NewPostgresFTS returns a pgx-backed FTSStore, mirroring the teacher's
// pgSearch bootstrap (pg_trgm extension, generated tsvector columns, GIN
// indexes) but against the notes table and with both an 'english' and a
// 'simple' generated column so script-aware strategy selection doesn't
// need to re-tokenize per query.
//
// Bigram, for lack of a bundled Postgres bigram operator class, reuses the
// same pg_trgm (word_similarity) index as Trigram; CJK tries Bigram first
// and falls back to Trigram, which collapses to one code path here. This
// matches the strategy table's intent (a trigram-family fallback for
// scripts the English/Simple dictionaries don't tokenize) without a
// fabricated dependency — see DESIGN.md.
func NewPostgresFTS(pool *pgxpool.Pool) FTSStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	_, _ = pool.Exec(ctx, `
ALTER TABLE notes ADD COLUMN IF NOT EXISTS ts_english tsvector
  GENERATED ALWAYS AS (setweight(to_tsvector('english', coalesce(title,'')), 'A') ||
                       setweight(to_tsvector('english', coalesce(revised_content, original_content, '')), 'B')) STORED;
`)
	_, _ = pool.Exec(ctx, `
ALTER TABLE notes ADD COLUMN IF NOT EXISTS ts_simple tsvector
  GENERATED ALWAYS AS (to_tsvector('simple', coalesce(title,'') || ' ' || coalesce(revised_content, original_content, ''))) STORED;
`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS notes_ts_english_idx ON notes USING GIN (ts_english)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS notes_ts_simple_idx ON notes USING GIN (ts_simple)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS notes_trgm_idx ON notes USING GIN ((coalesce(title,'') || ' ' || coalesce(revised_content, original_content, '')) gin_trgm_ops)`)
	return &pgFTS{pool: pool}
}

func scanHits(rows pgx.Rows) ([]domain.SearchHit, error) {
	var out []domain.SearchHit
	for rows.Next() {
		var h domain.SearchHit
		if err := rows.Scan(&h.NoteID, &h.Score, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *pgFTS) SearchEnglish(ctx context.Context, query string, limit int, excludeArchived bool, setID *uuid.UUID) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	where := "ts_english @@ websearch_to_tsquery('english', $1)"
	args := []any{q, limit}
	if excludeArchived {
		where += " AND NOT archived"
	}
	if setID != nil {
		where += " AND id IN (SELECT note_id FROM embedding_set_members WHERE embedding_set_id = $3)"
		args = append(args, *setID)
	}
	stmt := fmt.Sprintf(`
SELECT id, ts_rank(ts_english, websearch_to_tsquery('english', $1)) AS score, title,
       ts_headline('english', coalesce(revised_content, original_content, ''), websearch_to_tsquery('english', $1)) AS snippet
FROM notes WHERE deleted_at IS NULL AND %s
ORDER BY score DESC LIMIT $2
`, where)
	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search english: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

func (p *pgFTS) SearchSimple(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, ts_rank(ts_simple, plainto_tsquery('simple', $1)) AS score, title,
       left(coalesce(revised_content, original_content, ''), 160) AS snippet
FROM notes WHERE deleted_at IS NULL AND ts_simple @@ plainto_tsquery('simple', $1)
ORDER BY score DESC LIMIT $2
`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search simple: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

func (p *pgFTS) searchTrigramLike(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, similarity(coalesce(title,'') || ' ' || coalesce(revised_content, original_content, ''), $1) AS score, title,
       left(coalesce(revised_content, original_content, ''), 160) AS snippet
FROM notes WHERE deleted_at IS NULL
  AND (coalesce(title,'') || ' ' || coalesce(revised_content, original_content, '')) % $1
ORDER BY score DESC LIMIT $2
`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search trigram: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

func (p *pgFTS) SearchTrigram(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	return p.searchTrigramLike(ctx, query, limit)
}

func (p *pgFTS) SearchBigram(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	return p.searchTrigramLike(ctx, query, limit)
}

func (p *pgFTS) SearchCJK(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	hits, err := p.SearchBigram(ctx, query, limit)
	if err == nil && len(hits) > 0 {
		return hits, nil
	}
	return p.SearchTrigram(ctx, query, limit)
}
