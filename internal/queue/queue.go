package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

// Queue composes store.JobStore with wake notification and lifecycle event
// publishing, so handlers and workers never touch those concerns directly.
type Queue struct {
	jobs     store.JobStore
	notifier Notifier
	events   *EventPublisher
}

func New(jobs store.JobStore, notifier Notifier, events *EventPublisher) *Queue {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Queue{jobs: jobs, notifier: notifier, events: events}
}

func tierGroupFor(tier *domain.CostTier) domain.TierGroup {
	if tier == nil {
		return domain.TierGroupCPUAndAgnostic
	}
	switch *tier {
	case domain.CostTierFastGPU:
		return domain.TierGroupFastGPU
	case domain.CostTierStandardGPU:
		return domain.TierGroupStandardGPU
	default:
		return domain.TierGroupCPUAndAgnostic
	}
}

// Enqueue queues a job and wakes the worker pool for its tier.
func (q *Queue) Enqueue(ctx context.Context, noteID *uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (uuid.UUID, error) {
	id, err := q.jobs.Queue(ctx, noteID, jobType, priority, payload, tier)
	if err != nil {
		return uuid.Nil, err
	}
	_ = q.notifier.Publish(ctx, WakeEvent{Tier: tierGroupFor(tier)})
	_ = q.events.Publish(ctx, LifecycleEvent{JobID: id, NoteID: noteID, JobType: jobType, Status: domain.JobStatusPending, Timestamp: time.Now().UTC()})
	return id, nil
}

// EnqueueDeduplicated is Enqueue's conditional-insert counterpart; it
// returns a nil id (no error) when an equivalent job is already in flight.
func (q *Queue) EnqueueDeduplicated(ctx context.Context, noteID uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (*uuid.UUID, error) {
	id, err := q.jobs.QueueDeduplicated(ctx, noteID, jobType, priority, payload, tier)
	if err != nil || id == nil {
		return id, err
	}
	_ = q.notifier.Publish(ctx, WakeEvent{Tier: tierGroupFor(tier)})
	_ = q.events.Publish(ctx, LifecycleEvent{JobID: *id, NoteID: &noteID, JobType: jobType, Status: domain.JobStatusPending, Timestamp: time.Now().UTC()})
	return id, nil
}

// AwaitClaim blocks until a job is available for tier (or ctx is done),
// returning nil if the wake channel or ticker fires but nothing was
// actually claimable (the caller loops). pollInterval bounds staleness when
// the notifier is a NopNotifier or a wake event is missed.
func (q *Queue) AwaitClaim(ctx context.Context, tier domain.TierGroup, types []domain.JobType, pollInterval time.Duration) (*domain.Job, error) {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	claim := func() (*domain.Job, error) {
		job, err := q.jobs.ClaimNextForTier(ctx, tier, types)
		if err == nil && job != nil {
			_ = q.events.Publish(ctx, LifecycleEvent{JobID: job.ID, NoteID: job.NoteID, JobType: job.JobType, Status: domain.JobStatusRunning, Timestamp: time.Now().UTC()})
		}
		return job, err
	}
	job, err := claim()
	if err != nil || job != nil {
		return job, err
	}

	wake, cancel := q.notifier.Subscribe(ctx, tier)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wake:
		return claim()
	case <-ticker.C:
		return claim()
	}
}

func (q *Queue) UpdateProgress(ctx context.Context, jobID uuid.UUID, percent int, msg *string) error {
	return q.jobs.UpdateProgress(ctx, jobID, percent, msg)
}

func (q *Queue) Complete(ctx context.Context, job *domain.Job, result []byte) error {
	if err := q.jobs.Complete(ctx, job.ID, result); err != nil {
		return err
	}
	_ = q.events.Publish(ctx, LifecycleEvent{JobID: job.ID, NoteID: job.NoteID, JobType: job.JobType, Status: domain.JobStatusCompleted, Timestamp: time.Now().UTC()})
	return nil
}

func (q *Queue) Fail(ctx context.Context, job *domain.Job, errMsg string) error {
	if err := q.jobs.Fail(ctx, job.ID, errMsg); err != nil {
		return err
	}
	status := domain.JobStatusPending
	if !job.CanRetry() {
		status = domain.JobStatusFailed
	}
	_ = q.events.Publish(ctx, LifecycleEvent{JobID: job.ID, NoteID: job.NoteID, JobType: job.JobType, Status: status, Timestamp: time.Now().UTC()})
	return nil
}

func (q *Queue) Cleanup(ctx context.Context, keepCount int) (int, error) {
	return q.jobs.Cleanup(ctx, keepCount)
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return q.jobs.Get(ctx, id)
}
