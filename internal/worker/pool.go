// Package worker is the Worker Pool (C8): a fixed number of long-running
// goroutines per tier, each claiming a job, dispatching it to the handler
// registered for its type, and translating the result into complete/fail.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"noteforge/internal/domain"
	"noteforge/internal/handlers"
	"noteforge/internal/observability"
	"noteforge/internal/queue"
)

// Pool runs a fixed number of workers against one tier.
type Pool struct {
	queue        *queue.Queue
	registry     handlers.Registry
	tier         domain.TierGroup
	workerCount  int
	pollInterval time.Duration
	acceptTypes  []domain.JobType
}

func NewPool(q *queue.Queue, registry handlers.Registry, tier domain.TierGroup, workerCount int, pollInterval time.Duration, acceptTypes []domain.JobType) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		queue:        q,
		registry:     registry,
		tier:         tier,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		acceptTypes:  acceptTypes,
	}
}

// Run blocks until ctx is cancelled. Idle workers exit immediately on
// cancellation; a worker mid-job finishes that job before exiting (no job
// is interrupted, per spec.md §4.5).
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	log := observability.LoggerWithTrace(ctx).With().Str("tier", string(p.tier)).Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.AwaitClaim(ctx, p.tier, p.acceptTypes, p.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("claim_error")
			continue
		}
		if job == nil {
			continue
		}
		p.execute(ctx, job, &log)
	}
}

// execute runs to completion even if ctx is cancelled mid-job: a claimed
// job is always finished and reported, never abandoned.
func (p *Pool) execute(ctx context.Context, job *domain.Job, log *zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	h, ok := p.registry[job.JobType]
	if !ok {
		msg := fmt.Sprintf("no handler registered for job type %q", job.JobType)
		log.Error().Str("job_id", job.ID.String()).Msg(msg)
		_ = p.queue.Fail(ctx, job, msg)
		return
	}

	progress := func(ctx context.Context, percent int, msg string) error {
		var msgPtr *string
		if msg != "" {
			msgPtr = &msg
		}
		return p.queue.UpdateProgress(ctx, job.ID, percent, msgPtr)
	}

	result := h.Execute(ctx, job, progress)
	if result.OK {
		_ = p.queue.Complete(ctx, job, result.Payload)
		return
	}
	_ = p.queue.Fail(ctx, job, result.Err)
}
