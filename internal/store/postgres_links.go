package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"noteforge/internal/domain"
)

type pgLinks struct{ pool *pgxpool.Pool }

// NewPostgresLinks returns a pgx-backed LinkStore.
func NewPostgresLinks(pool *pgxpool.Pool) LinkStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS links (
  id UUID PRIMARY KEY,
  from_note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
  to_note_id UUID REFERENCES notes(id) ON DELETE CASCADE,
  to_url TEXT,
  kind TEXT NOT NULL,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CHECK ((to_note_id IS NOT NULL) != (to_url IS NOT NULL)),
  UNIQUE (from_note_id, to_note_id, kind)
);
`)
	return &pgLinks{pool: pool}
}

// Create inserts iff no row with the same (from, to, kind) exists; the
// repository contract treats a suppressed duplicate as success, so this
// always returns an id.
func (p *pgLinks) Create(ctx context.Context, l *domain.Link) (uuid.UUID, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	row := p.pool.QueryRow(ctx, `
INSERT INTO links(id, from_note_id, to_note_id, to_url, kind, score, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (from_note_id, to_note_id, kind) DO UPDATE SET score = links.score
RETURNING id
`, l.ID, l.FromNoteID, l.ToNoteID, l.ToURL, l.Kind, l.Score, l.Metadata)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("create link: %w", err)
	}
	return id, nil
}

const linkCols = `id, from_note_id, to_note_id, to_url, kind, score, metadata, created_at`

func scanLinks(rows pgx.Rows) ([]*domain.Link, error) {
	var out []*domain.Link
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.ID, &l.FromNoteID, &l.ToNoteID, &l.ToURL, &l.Kind, &l.Score, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (p *pgLinks) ListFrom(ctx context.Context, noteID uuid.UUID) ([]*domain.Link, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+linkCols+` FROM links WHERE from_note_id=$1 ORDER BY created_at DESC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list links from: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

func (p *pgLinks) ListTo(ctx context.Context, noteID uuid.UUID) ([]*domain.Link, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+linkCols+` FROM links WHERE to_note_id=$1 ORDER BY created_at DESC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list links to: %w", err)
	}
	defer rows.Close()
	return scanLinks(rows)
}

func (p *pgLinks) DeleteForNote(ctx context.Context, noteID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM links WHERE from_note_id=$1 OR to_note_id=$1`, noteID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delete links for note: %w", err)
	}
	return nil
}
