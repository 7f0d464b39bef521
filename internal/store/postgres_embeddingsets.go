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

type pgEmbeddingSets struct{ pool *pgxpool.Pool }

// NewPostgresEmbeddingSets returns a pgx-backed EmbeddingSetStore.
func NewPostgresEmbeddingSets(pool *pgxpool.Pool) EmbeddingSetStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS embedding_sets (
  id UUID PRIMARY KEY,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL,
  purpose TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL DEFAULT 'manual',
  criteria JSONB NOT NULL DEFAULT '{}'::jsonb,
  embedding_config_id UUID NOT NULL,
  truncate_dim INT,
  is_system BOOLEAN NOT NULL DEFAULT false,
  is_active BOOLEAN NOT NULL DEFAULT true,
  index_status TEXT NOT NULL DEFAULT 'pending',
  document_count INT NOT NULL DEFAULT 0,
  embedding_count INT NOT NULL DEFAULT 0,
  last_refresh_at TIMESTAMPTZ,
  last_indexed_at TIMESTAMPTZ
);
`)
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS embedding_set_members (
  embedding_set_id UUID NOT NULL REFERENCES embedding_sets(id) ON DELETE CASCADE,
  note_id UUID NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
  membership_type TEXT NOT NULL DEFAULT 'auto',
  added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  added_by UUID,
  PRIMARY KEY (embedding_set_id, note_id)
);
`)
	return &pgEmbeddingSets{pool: pool}
}

const setCols = `id, slug, name, purpose, mode, criteria, embedding_config_id, truncate_dim, is_system, is_active, index_status, document_count, embedding_count, last_refresh_at, last_indexed_at`

func (p *pgEmbeddingSets) Create(ctx context.Context, s *domain.EmbeddingSet) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.IndexStatus == "" {
		s.IndexStatus = domain.IndexStatusPending
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO embedding_sets(id, slug, name, purpose, mode, criteria, embedding_config_id, truncate_dim, is_system, is_active, index_status, document_count, embedding_count)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,0)
`, s.ID, s.Slug, s.Name, s.Purpose, s.Mode, criteriaJSON(s.Criteria), s.EmbeddingConfigID, s.TruncateDim, s.IsSystem, s.IsActive, s.IndexStatus)
	if err != nil {
		return fmt.Errorf("create embedding set: %w", err)
	}
	return nil
}

func criteriaJSON(c domain.Criteria) map[string]any {
	m := map[string]any{
		"include_all":      c.IncludeAll,
		"exclude_archived": c.ExcludeArchived,
		"tags":             c.Tags,
	}
	if c.FTSQuery != "" {
		m["fts_query"] = c.FTSQuery
	}
	if c.CreatedAfter != nil {
		m["created_after"] = c.CreatedAfter
	}
	if c.CreatedBefore != nil {
		m["created_before"] = c.CreatedBefore
	}
	collections := make([]string, len(c.Collections))
	for i, id := range c.Collections {
		collections[i] = id.String()
	}
	m["collections"] = collections
	return m
}

func scanSet(row pgx.Row) (*domain.EmbeddingSet, error) {
	var s domain.EmbeddingSet
	var criteria map[string]any
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Purpose, &s.Mode, &criteria, &s.EmbeddingConfigID, &s.TruncateDim, &s.IsSystem, &s.IsActive, &s.IndexStatus, &s.DocumentCount, &s.EmbeddingCount, &s.LastRefreshAt, &s.LastIndexedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan embedding set: %w", err)
	}
	s.Criteria = criteriaFromJSON(criteria)
	return &s, nil
}

func criteriaFromJSON(m map[string]any) domain.Criteria {
	var c domain.Criteria
	if v, ok := m["include_all"].(bool); ok {
		c.IncludeAll = v
	}
	if v, ok := m["exclude_archived"].(bool); ok {
		c.ExcludeArchived = v
	}
	if v, ok := m["tags"].([]any); ok {
		for _, t := range v {
			if s, ok := t.(string); ok {
				c.Tags = append(c.Tags, s)
			}
		}
	}
	if v, ok := m["fts_query"].(string); ok {
		c.FTSQuery = v
	}
	return c
}

func (p *pgEmbeddingSets) GetBySlug(ctx context.Context, slug string) (*domain.EmbeddingSet, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+setCols+` FROM embedding_sets WHERE slug=$1`, slug)
	return scanSet(row)
}

func (p *pgEmbeddingSets) Get(ctx context.Context, id uuid.UUID) (*domain.EmbeddingSet, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+setCols+` FROM embedding_sets WHERE id=$1`, id)
	return scanSet(row)
}

func (p *pgEmbeddingSets) Update(ctx context.Context, s *domain.EmbeddingSet) error {
	_, err := p.pool.Exec(ctx, `
UPDATE embedding_sets SET name=$2, purpose=$3, mode=$4, criteria=$5, truncate_dim=$6, is_active=$7, index_status=$8
WHERE id=$1
`, s.ID, s.Name, s.Purpose, s.Mode, criteriaJSON(s.Criteria), s.TruncateDim, s.IsActive, s.IndexStatus)
	if err != nil {
		return fmt.Errorf("update embedding set: %w", err)
	}
	return nil
}

// Delete refuses system sets, per spec.md's "System sets cannot be deleted"
// lifecycle invariant.
func (p *pgEmbeddingSets) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM embedding_sets WHERE id=$1 AND NOT is_system`, id)
	if err != nil {
		return fmt.Errorf("delete embedding set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: system set or missing", domain.ErrInvalidInput)
	}
	return nil
}

func (p *pgEmbeddingSets) List(ctx context.Context) ([]*domain.EmbeddingSet, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+setCols+` FROM embedding_sets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list embedding sets: %w", err)
	}
	defer rows.Close()
	var out []*domain.EmbeddingSet
	for rows.Next() {
		s, err := scanSetRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSetRows(rows pgx.Rows) (*domain.EmbeddingSet, error) {
	var s domain.EmbeddingSet
	var criteria map[string]any
	if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.Purpose, &s.Mode, &criteria, &s.EmbeddingConfigID, &s.TruncateDim, &s.IsSystem, &s.IsActive, &s.IndexStatus, &s.DocumentCount, &s.EmbeddingCount, &s.LastRefreshAt, &s.LastIndexedAt); err != nil {
		return nil, fmt.Errorf("scan embedding set row: %w", err)
	}
	s.Criteria = criteriaFromJSON(criteria)
	return &s, nil
}

// AddMember marks the set stale, per spec.md's membership-mutation
// invariant.
func (p *pgEmbeddingSets) AddMember(ctx context.Context, setID, noteID uuid.UUID, mt domain.MembershipType) error {
	return WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO embedding_set_members(embedding_set_id, note_id, membership_type, added_at)
VALUES ($1,$2,$3,now())
ON CONFLICT (embedding_set_id, note_id) DO UPDATE SET membership_type=EXCLUDED.membership_type
`, setID, noteID, mt)
		if err != nil {
			return fmt.Errorf("add set member: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE embedding_sets SET index_status='stale' WHERE id=$1`, setID)
		if err != nil {
			return fmt.Errorf("mark set stale: %w", err)
		}
		return nil
	})
}

func (p *pgEmbeddingSets) RemoveMember(ctx context.Context, setID, noteID uuid.UUID) error {
	return WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM embedding_set_members WHERE embedding_set_id=$1 AND note_id=$2`, setID, noteID); err != nil {
			return fmt.Errorf("remove set member: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE embedding_sets SET index_status='stale' WHERE id=$1`, setID); err != nil {
			return fmt.Errorf("mark set stale: %w", err)
		}
		return nil
	})
}

func (p *pgEmbeddingSets) Members(ctx context.Context, setID uuid.UUID) ([]*domain.EmbeddingSetMember, error) {
	rows, err := p.pool.Query(ctx, `
SELECT embedding_set_id, note_id, membership_type, added_at, added_by FROM embedding_set_members WHERE embedding_set_id=$1
`, setID)
	if err != nil {
		return nil, fmt.Errorf("list set members: %w", err)
	}
	defer rows.Close()
	var out []*domain.EmbeddingSetMember
	for rows.Next() {
		var m domain.EmbeddingSetMember
		if err := rows.Scan(&m.EmbeddingSetID, &m.NoteID, &m.MembershipType, &m.AddedAt, &m.AddedBy); err != nil {
			return nil, fmt.Errorf("scan set member: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (p *pgEmbeddingSets) IsMember(ctx context.Context, setID, noteID uuid.UUID) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM embedding_set_members WHERE embedding_set_id=$1 AND note_id=$2)`, setID, noteID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check set membership: %w", err)
	}
	return exists, nil
}

func (p *pgEmbeddingSets) MarkStale(ctx context.Context, setID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `UPDATE embedding_sets SET index_status='stale' WHERE id=$1`, setID)
	if err != nil {
		return fmt.Errorf("mark set stale: %w", err)
	}
	return nil
}

func (p *pgEmbeddingSets) MarkIndexReady(ctx context.Context, setID uuid.UUID, at time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE embedding_sets SET index_status='ready', last_indexed_at=$2 WHERE id=$1`, setID, at)
	if err != nil {
		return fmt.Errorf("mark set ready: %w", err)
	}
	return nil
}

func (p *pgEmbeddingSets) MarkRefreshed(ctx context.Context, setID uuid.UUID, at time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE embedding_sets SET last_refresh_at=$2 WHERE id=$1`, setID, at)
	if err != nil {
		return fmt.Errorf("mark set refreshed: %w", err)
	}
	return nil
}

func (p *pgEmbeddingSets) RefreshStats(ctx context.Context, setID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `
UPDATE embedding_sets s SET
  document_count = (SELECT count(*) FROM embedding_set_members m WHERE m.embedding_set_id = s.id),
  embedding_count = (SELECT count(*) FROM embeddings e WHERE e.embedding_set_id = s.id)
WHERE s.id = $1
`, setID)
	if err != nil {
		return fmt.Errorf("refresh set stats: %w", err)
	}
	return nil
}
