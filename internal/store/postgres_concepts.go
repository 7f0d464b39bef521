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

type pgConcepts struct{ pool *pgxpool.Pool }

// NewPostgresConcepts returns a pgx-backed ConceptStore. No HTTP surface is
// built over concept-scheme CRUD, but the concept-tagging job handler and
// the embedding-set hierarchical tag match both depend on it.
func NewPostgresConcepts(pool *pgxpool.Pool) ConceptStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS concept_schemes (
  id UUID PRIMARY KEY,
  name TEXT UNIQUE NOT NULL,
  is_default BOOLEAN NOT NULL DEFAULT false
);
`)
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS concepts (
  id UUID PRIMARY KEY,
  scheme_id UUID NOT NULL REFERENCES concept_schemes(id),
  pref_label TEXT NOT NULL,
  alt_labels TEXT[] NOT NULL DEFAULT '{}',
  language TEXT NOT NULL DEFAULT 'en',
  status TEXT NOT NULL DEFAULT 'candidate',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (scheme_id, lower(pref_label))
);
`)
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS note_tags (
  note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
  concept_id UUID NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
  source TEXT NOT NULL DEFAULT 'ai',
  confidence DOUBLE PRECISION,
  relevance DOUBLE PRECISION NOT NULL DEFAULT 1.0,
  is_primary BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (note_id, concept_id)
);
`)
	// Seed a default scheme so DefaultScheme always has a row to find,
	// mirroring the teacher's best-effort bootstrap idiom.
	_, _ = pool.Exec(ctx, `
INSERT INTO concept_schemes(id, name, is_default) VALUES ($1, 'default', true)
ON CONFLICT (name) DO NOTHING
`, uuid.New())
	return &pgConcepts{pool: pool}
}

func (p *pgConcepts) DefaultScheme(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `SELECT id FROM concept_schemes WHERE is_default LIMIT 1`).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("default concept scheme: %w", err)
	}
	return id, nil
}

func (p *pgConcepts) FindOrCreateByLabel(ctx context.Context, schemeID uuid.UUID, label, lang string) (*domain.Concept, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, scheme_id, pref_label, alt_labels, language, status, created_at, updated_at
FROM concepts WHERE scheme_id=$1 AND lower(pref_label)=lower($2)
`, schemeID, label)
	c, err := scanConcept(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	id := uuid.New()
	_, err = p.pool.Exec(ctx, `
INSERT INTO concepts(id, scheme_id, pref_label, alt_labels, language, status, created_at, updated_at)
VALUES ($1,$2,$3,'{}',$4,'candidate',now(),now())
`, id, schemeID, label, lang)
	if err != nil {
		return nil, fmt.Errorf("create concept: %w", err)
	}
	return p.Get(ctx, id)
}

func scanConcept(row pgx.Row) (*domain.Concept, error) {
	var c domain.Concept
	if err := row.Scan(&c.ID, &c.SchemeID, &c.PrefLabel, &c.AltLabels, &c.Language, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan concept: %w", err)
	}
	return &c, nil
}

func (p *pgConcepts) Get(ctx context.Context, id uuid.UUID) (*domain.Concept, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, scheme_id, pref_label, alt_labels, language, status, created_at, updated_at FROM concepts WHERE id=$1
`, id)
	return scanConcept(row)
}

func (p *pgConcepts) TagNote(ctx context.Context, tag *domain.NoteTag) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO note_tags(note_id, concept_id, source, confidence, relevance, is_primary, created_at)
VALUES ($1,$2,$3,$4,$5,$6,now())
ON CONFLICT (note_id, concept_id) DO UPDATE SET relevance=EXCLUDED.relevance, is_primary=EXCLUDED.is_primary
`, tag.NoteID, tag.ConceptID, tag.Source, tag.Confidence, tag.Relevance, tag.IsPrimary)
	if err != nil {
		return fmt.Errorf("tag note: %w", err)
	}
	return nil
}

func (p *pgConcepts) TagsForNote(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTag, error) {
	rows, err := p.pool.Query(ctx, `
SELECT note_id, concept_id, source, confidence, relevance, is_primary, created_at FROM note_tags WHERE note_id=$1
`, noteID)
	if err != nil {
		return nil, fmt.Errorf("tags for note: %w", err)
	}
	defer rows.Close()
	var out []*domain.NoteTag
	for rows.Next() {
		var t domain.NoteTag
		if err := rows.Scan(&t.NoteID, &t.ConceptID, &t.Source, &t.Confidence, &t.Relevance, &t.IsPrimary, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note tag: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (p *pgConcepts) TagLabelsForNote(ctx context.Context, noteID uuid.UUID) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
SELECT c.pref_label FROM note_tags t JOIN concepts c ON c.id = t.concept_id WHERE t.note_id=$1
`, noteID)
	if err != nil {
		return nil, fmt.Errorf("tag labels for note: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan tag label: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// NotesWithAnyTag returns notes whose tag labels hierarchically match any of
// tagPrefixes ("foo" matches "foo" and "foo/...").
func (p *pgConcepts) NotesWithAnyTag(ctx context.Context, tagPrefixes []string) ([]uuid.UUID, error) {
	if len(tagPrefixes) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT t.note_id FROM note_tags t JOIN concepts c ON c.id = t.concept_id
WHERE EXISTS (
  SELECT 1 FROM unnest($1::text[]) AS want
  WHERE c.pref_label = want OR c.pref_label LIKE want || '/%'
)
`, tagPrefixes)
	if err != nil {
		return nil, fmt.Errorf("notes with any tag: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan note id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
