package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType is a closed enum of work item kinds. Adding a type means:
// extend this enum, register a handler via handlers.NewRegistry, and extend the
// payload/result shapes in internal/handlers.
type JobType string

const (
	JobTypeEmbedding      JobType = "embedding"
	JobTypeLinking        JobType = "linking"
	JobTypeTitleGen       JobType = "title_generation"
	JobTypeAIRevision     JobType = "ai_revision"
	JobTypeContextUpdate  JobType = "context_update"
	JobTypeConceptTagging JobType = "concept_tagging"
	JobTypePurgeNote      JobType = "purge_note"
	JobTypeReEmbedAll     JobType = "re_embed_all"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// CostTier is a coarse partition of jobs by hardware preference, aligning
// jobs with worker pools.
type CostTier int

const (
	CostTierCPUOrAgnostic CostTier = 0
	CostTierFastGPU       CostTier = 1
	CostTierStandardGPU   CostTier = 2
)

// TierGroup names the worker-pool partition a claim targets. CpuAndAgnostic
// accepts a NULL cost_tier in addition to CostTierCPUOrAgnostic so that jobs
// queued before a tier was assigned are still claimable.
type TierGroup string

const (
	TierGroupCPUAndAgnostic TierGroup = "cpu_and_agnostic"
	TierGroupFastGPU        TierGroup = "fast_gpu"
	TierGroupStandardGPU    TierGroup = "standard_gpu"
)

// Job is a unit of deferred work, claimed by a worker and dispatched to the
// handler registered for its JobType.
type Job struct {
	ID           uuid.UUID
	NoteID       *uuid.UUID
	JobType      JobType
	Status       JobStatus
	Priority     int32
	Payload      json.RawMessage
	Result       json.RawMessage
	ErrorMessage *string
	ProgressPct  int
	RetryCount   int
	MaxRetries   int
	CostTier     *CostTier
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// CanRetry reports whether a failed job is eligible to return to pending
// rather than terminate.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}
