package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newMemoryJobs() JobStore { return &memoryJobs{jobs: make(map[uuid.UUID]*domain.Job)} }

func (m *memoryJobs) Queue(_ context.Context, noteID *uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.jobs[id] = &domain.Job{
		ID: id, NoteID: noteID, JobType: jobType, Status: domain.JobStatusPending,
		Priority: priority, Payload: payload, MaxRetries: 3, CostTier: tier, CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (m *memoryJobs) QueueDeduplicated(ctx context.Context, noteID uuid.UUID, jobType domain.JobType, priority int32, payload []byte, tier *domain.CostTier) (*uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.NoteID != nil && *j.NoteID == noteID && j.JobType == jobType &&
			(j.Status == domain.JobStatusPending || j.Status == domain.JobStatusRunning) {
			return nil, nil
		}
	}
	id := uuid.New()
	m.jobs[id] = &domain.Job{
		ID: id, NoteID: &noteID, JobType: jobType, Status: domain.JobStatusPending,
		Priority: priority, Payload: payload, MaxRetries: 3, CostTier: tier, CreatedAt: time.Now().UTC(),
	}
	return &id, nil
}

func (m *memoryJobs) pendingEligible(types []domain.JobType, tierOK func(*domain.CostTier) bool) []*domain.Job {
	var out []*domain.Job
	for _, j := range m.jobs {
		if j.Status != domain.JobStatusPending {
			continue
		}
		if tierOK != nil && !tierOK(j.CostTier) {
			continue
		}
		if len(types) > 0 {
			ok := false
			for _, t := range types {
				if j.JobType == t {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, j)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memoryJobs) claimLocked(candidates []*domain.Job) *domain.Job {
	if len(candidates) == 0 {
		return nil
	}
	j := candidates[0]
	now := time.Now().UTC()
	j.Status = domain.JobStatusRunning
	j.StartedAt = &now
	j.ProgressPct = 0
	cp := *j
	return &cp
}

func (m *memoryJobs) ClaimNextForTypes(_ context.Context, types []domain.JobType) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimLocked(m.pendingEligible(types, nil)), nil
}

func (m *memoryJobs) ClaimNextForTier(_ context.Context, tier domain.TierGroup, types []domain.JobType) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tierOK := func(ct *domain.CostTier) bool {
		switch tier {
		case domain.TierGroupCPUAndAgnostic:
			return ct == nil || *ct == domain.CostTierCPUOrAgnostic
		case domain.TierGroupFastGPU:
			return ct != nil && *ct == domain.CostTierFastGPU
		case domain.TierGroupStandardGPU:
			return ct != nil && *ct == domain.CostTierStandardGPU
		default:
			return true
		}
	}
	return m.claimLocked(m.pendingEligible(types, tierOK)), nil
}

func (m *memoryJobs) UpdateProgress(_ context.Context, jobID uuid.UUID, percent int, msg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != domain.JobStatusRunning {
		return domain.ErrNotFound
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > j.ProgressPct {
		j.ProgressPct = percent
	}
	if msg != nil {
		j.ErrorMessage = msg
	}
	return nil
}

func (m *memoryJobs) Complete(_ context.Context, jobID uuid.UUID, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	j.Status = domain.JobStatusCompleted
	j.CompletedAt = &now
	j.ProgressPct = 100
	j.Result = result
	return nil
}

func (m *memoryJobs) Fail(_ context.Context, jobID uuid.UUID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.CanRetry() {
		j.Status = domain.JobStatusPending
		j.RetryCount++
		j.StartedAt = nil
		j.ProgressPct = 0
		j.ErrorMessage = &errMsg
		return nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobStatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = &errMsg
	return nil
}

func (m *memoryJobs) Cleanup(_ context.Context, keepCount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var finished []*domain.Job
	for _, j := range m.jobs {
		switch j.Status {
		case domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled:
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if finished[i].CompletedAt != nil {
			ti = *finished[i].CompletedAt
		}
		if finished[j].CompletedAt != nil {
			tj = *finished[j].CompletedAt
		}
		return ti.After(tj)
	})
	removed := 0
	for i, j := range finished {
		if i >= keepCount {
			delete(m.jobs, j.ID)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryJobs) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}
