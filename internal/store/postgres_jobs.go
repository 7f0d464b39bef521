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

type pgJobs struct{ pool *pgxpool.Pool }

// NewPostgresJobs returns a pgx-backed JobStore implementing the queue
// contract of spec.md §4.3: skip-locked claim, priority+tier partitioning,
// at-most-one-pending-or-running-per-(note,type) deduplication, and
// retry-with-cap on failure.
func NewPostgresJobs(pool *pgxpool.Pool) JobStore {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id UUID PRIMARY KEY,
  note_id UUID,
  job_type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  priority INT NOT NULL DEFAULT 0,
  payload JSONB,
  result JSONB,
  error_message TEXT,
  progress_percent INT NOT NULL DEFAULT 0,
  retry_count INT NOT NULL DEFAULT 0,
  max_retries INT NOT NULL DEFAULT 3,
  cost_tier INT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  started_at TIMESTAMPTZ,
  completed_at TIMESTAMPTZ
);
`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS jobs_claim_idx ON jobs (status, priority DESC, created_at ASC)`)
	_, _ = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS job_history (
  id UUID PRIMARY KEY,
  job_id UUID NOT NULL,
  status TEXT NOT NULL,
  duration_ms BIGINT,
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return &pgJobs{pool: pool}
}

func (p *pgJobs) Queue(ctx context.Context, noteID *uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (uuid.UUID, error) {
	id := uuid.New()
	_, err := p.pool.Exec(ctx, `
INSERT INTO jobs(id, note_id, job_type, status, priority, payload, max_retries, cost_tier, created_at)
VALUES ($1,$2,$3,'pending',$4,$5,3,$6,now())
`, id, noteID, jobType, priority, jsonOrNull(payload), tier)
	if err != nil {
		return uuid.Nil, fmt.Errorf("queue job: %w", err)
	}
	return id, nil
}

// QueueDeduplicated requires noteID; callers without a note fall back to
// Queue per spec.md §4.3. The conditional insert runs under a
// transaction-scoped advisory lock on (note, type), so concurrent callers are
// serialised and a later caller's WHERE NOT EXISTS sees the earlier row.
func (p *pgJobs) QueueDeduplicated(ctx context.Context, noteID uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (*uuid.UUID, error) {
	var got *uuid.UUID
	err := WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`, noteID.String(), string(jobType)); err != nil {
			return fmt.Errorf("lock dedup key: %w", err)
		}
		id := uuid.New()
		row := tx.QueryRow(ctx, `
INSERT INTO jobs(id, note_id, job_type, status, priority, payload, max_retries, cost_tier, created_at)
SELECT $1,$2,$3,'pending',$4,$5,3,$6,now()
WHERE NOT EXISTS (
  SELECT 1 FROM jobs WHERE note_id=$2 AND job_type=$3 AND status IN ('pending','running')
)
RETURNING id
`, id, noteID, jobType, priority, jsonOrNull(payload), tier)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("queue deduplicated job: %w", err)
		}
		got = &id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return got, nil
}

func jsonOrNull(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

const jobCols = `id, note_id, job_type, status, priority, payload, result, error_message, progress_percent, retry_count, max_retries, cost_tier, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	if err := row.Scan(&j.ID, &j.NoteID, &j.JobType, &j.Status, &j.Priority, &j.Payload, &j.Result, &j.ErrorMessage, &j.ProgressPct, &j.RetryCount, &j.MaxRetries, &j.CostTier, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

// ClaimNextForTypes atomically transitions the single highest-priority
// eligible pending job to running using FOR UPDATE SKIP LOCKED so
// concurrent claimers never race on the same row.
func (p *pgJobs) ClaimNextForTypes(ctx context.Context, types []domain.JobType) (*domain.Job, error) {
	return p.claim(ctx, "1=1", types, nil)
}

func (p *pgJobs) ClaimNextForTier(ctx context.Context, tier domain.TierGroup, types []domain.JobType) (*domain.Job, error) {
	var pred string
	switch tier {
	case domain.TierGroupCPUAndAgnostic:
		pred = "(cost_tier IS NULL OR cost_tier = 0)"
	case domain.TierGroupFastGPU:
		pred = "cost_tier = 1"
	case domain.TierGroupStandardGPU:
		pred = "cost_tier = 2"
	default:
		pred = "1=1"
	}
	return p.claim(ctx, pred, types, nil)
}

func (p *pgJobs) claim(ctx context.Context, tierPred string, types []domain.JobType, _ any) (*domain.Job, error) {
	var job *domain.Job
	err := WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		typeFilter := "1=1"
		args := []any{}
		if len(types) > 0 {
			typeFilter = "job_type = ANY($1)"
			strs := make([]string, len(types))
			for i, t := range types {
				strs[i] = string(t)
			}
			args = append(args, strs)
		}
		q := fmt.Sprintf(`
SELECT %s FROM jobs
WHERE status = 'pending' AND %s AND %s
ORDER BY priority DESC, created_at ASC
FOR UPDATE SKIP LOCKED
LIMIT 1
`, jobCols, tierPred, typeFilter)
		row := tx.QueryRow(ctx, q, args...)
		j, err := scanJob(row)
		if err != nil {
			return err
		}
		if j == nil {
			return nil
		}
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE jobs SET status='running', started_at=$2, progress_percent=0 WHERE id=$1`, j.ID, now); err != nil {
			return fmt.Errorf("mark job running: %w", err)
		}
		j.Status = domain.JobStatusRunning
		j.StartedAt = &now
		job = j
		return nil
	})
	return job, err
}

func (p *pgJobs) UpdateProgress(ctx context.Context, jobID uuid.UUID, percent int, msg *string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := p.pool.Exec(ctx, `
UPDATE jobs SET progress_percent = GREATEST(progress_percent, $2), error_message = COALESCE($3, error_message)
WHERE id=$1 AND status='running'
`, jobID, percent, msg)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (p *pgJobs) Complete(ctx context.Context, jobID uuid.UUID, result []byte) error {
	return WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var started *time.Time
		if err := tx.QueryRow(ctx, `SELECT started_at FROM jobs WHERE id=$1`, jobID).Scan(&started); err != nil {
			return fmt.Errorf("load job for complete: %w", err)
		}
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
UPDATE jobs SET status='completed', completed_at=$2, progress_percent=100, result=$3 WHERE id=$1
`, jobID, now, jsonOrNull(result)); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		var durMs int64
		if started != nil {
			durMs = now.Sub(*started).Milliseconds()
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO job_history(id, job_id, status, duration_ms, recorded_at) VALUES ($1,$2,'completed',$3,now())
`, uuid.New(), jobID, durMs); err != nil {
			return fmt.Errorf("record job history: %w", err)
		}
		return nil
	})
}

// Fail implements spec.md §4.3's retry-with-cap: retry_count < max_retries
// returns the job to pending for re-claim; otherwise it terminates failed
// and records history.
func (p *pgJobs) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	return WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var retryCount, maxRetries int
		var started *time.Time
		if err := tx.QueryRow(ctx, `SELECT retry_count, max_retries, started_at FROM jobs WHERE id=$1`, jobID).Scan(&retryCount, &maxRetries, &started); err != nil {
			return fmt.Errorf("load job for fail: %w", err)
		}
		if retryCount < maxRetries {
			_, err := tx.Exec(ctx, `
UPDATE jobs SET status='pending', retry_count=retry_count+1, started_at=NULL, progress_percent=0, error_message=$2
WHERE id=$1
`, jobID, errMsg)
			if err != nil {
				return fmt.Errorf("retry job: %w", err)
			}
			return nil
		}
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
UPDATE jobs SET status='failed', completed_at=$2, error_message=$3 WHERE id=$1
`, jobID, now, errMsg); err != nil {
			return fmt.Errorf("terminally fail job: %w", err)
		}
		var durMs int64
		if started != nil {
			durMs = now.Sub(*started).Milliseconds()
		}
		_, err := tx.Exec(ctx, `
INSERT INTO job_history(id, job_id, status, duration_ms, recorded_at) VALUES ($1,$2,'failed',$3,now())
`, uuid.New(), jobID, durMs)
		if err != nil {
			return fmt.Errorf("record job history: %w", err)
		}
		return nil
	})
}

// Cleanup deletes finished jobs beyond the keepCount most recent,
// preserving all pending/running rows regardless of age.
func (p *pgJobs) Cleanup(ctx context.Context, keepCount int) (int, error) {
	tag, err := p.pool.Exec(ctx, `
DELETE FROM jobs WHERE id IN (
  SELECT id FROM (
    SELECT id, row_number() OVER (ORDER BY completed_at DESC) AS rn
    FROM jobs WHERE status IN ('completed','failed','cancelled')
  ) ranked WHERE rn > $1
)
`, keepCount)
	if err != nil {
		return 0, fmt.Errorf("cleanup jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *pgJobs) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+jobCols+` FROM jobs WHERE id=$1`, id)
	j, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, domain.ErrNotFound
	}
	return j, nil
}
