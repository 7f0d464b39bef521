package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"noteforge/internal/domain"
)

type pgNotes struct{ pool *pgxpool.Pool }

// NewPostgresNotes returns a pgx-backed NoteStore, bootstrapping the notes
// table the way the teacher's postgres_* stores bootstrap their own tables.
func NewPostgresNotes(pool *pgxpool.Pool) NoteStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS notes (
  id UUID PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  original_content TEXT NOT NULL DEFAULT '',
  revised_content TEXT NOT NULL DEFAULT '',
  collection_id UUID,
  archived BOOLEAN NOT NULL DEFAULT false,
  document_type_id UUID,
  deleted_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS notes_title_idx ON notes (lower(title))`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS notes_collection_idx ON notes (collection_id)`)
	return &pgNotes{pool: pool}
}

func (p *pgNotes) Upsert(ctx context.Context, n *domain.Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	_, err := p.pool.Exec(ctx, `
INSERT INTO notes(id, title, original_content, revised_content, collection_id, archived, document_type_id, deleted_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  original_content = EXCLUDED.original_content,
  revised_content = EXCLUDED.revised_content,
  collection_id = EXCLUDED.collection_id,
  archived = EXCLUDED.archived,
  document_type_id = EXCLUDED.document_type_id,
  deleted_at = EXCLUDED.deleted_at,
  updated_at = EXCLUDED.updated_at
`, n.ID, n.Title, n.OriginalContent, n.RevisedContent, n.CollectionID, n.Archived, n.DocumentTypeID, n.DeletedAt, n.CreatedAt, n.UpdatedAt)
	return err
}

func (p *pgNotes) scanOne(row pgx.Row) (*domain.Note, error) {
	var n domain.Note
	if err := row.Scan(&n.ID, &n.Title, &n.OriginalContent, &n.RevisedContent, &n.CollectionID, &n.Archived, &n.DocumentTypeID, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	return &n, nil
}

const noteCols = `id, title, original_content, revised_content, collection_id, archived, document_type_id, deleted_at, created_at, updated_at`

func (p *pgNotes) Get(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+noteCols+` FROM notes WHERE id=$1`, id)
	return p.scanOne(row)
}

func (p *pgNotes) FindByTitle(ctx context.Context, title string) (*domain.Note, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+noteCols+` FROM notes WHERE lower(title)=lower($1) AND deleted_at IS NULL ORDER BY updated_at DESC LIMIT 1`, title)
	return p.scanOne(row)
}

func (p *pgNotes) UpdateRevised(ctx context.Context, id uuid.UUID, revised string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE notes SET revised_content=$2, updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, id, revised)
	if err != nil {
		return fmt.Errorf("update revised: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *pgNotes) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `UPDATE notes SET deleted_at=now(), updated_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HardDelete cascades to embeddings, links, tags, and set memberships via
// FK ON DELETE CASCADE declared in the migration for those tables.
func (p *pgNotes) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("hard delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *pgNotes) ListActive(ctx context.Context) ([]*domain.Note, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+noteCols+` FROM notes WHERE deleted_at IS NULL AND NOT archived ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

func (p *pgNotes) ListNonDeleted(ctx context.Context) ([]*domain.Note, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+noteCols+` FROM notes WHERE deleted_at IS NULL ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list non-deleted notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

func (p *pgNotes) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]*domain.Note, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+noteCols+` FROM notes WHERE collection_id=$1 AND deleted_at IS NULL ORDER BY updated_at DESC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list notes by collection: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

func scanNotes(rows pgx.Rows) ([]*domain.Note, error) {
	var out []*domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.OriginalContent, &n.RevisedContent, &n.CollectionID, &n.Archived, &n.DocumentTypeID, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
