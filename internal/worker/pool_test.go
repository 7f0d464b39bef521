package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"noteforge/internal/domain"
	"noteforge/internal/handlers"
	"noteforge/internal/queue"
	"noteforge/internal/store"
)

// stubHandler lets tests script a handler's outcome per job type.
type stubHandler struct {
	jobType  domain.JobType
	executed atomic.Int64
	fail     bool
}

func (s *stubHandler) JobType() domain.JobType { return s.jobType }

func (s *stubHandler) Execute(_ context.Context, _ *domain.Job, _ handlers.Progress) handlers.Result {
	s.executed.Add(1)
	if s.fail {
		return handlers.Fail(fmt.Errorf("scripted failure"))
	}
	return handlers.Ok(map[string]bool{"done": true})
}

func TestPool_DispatchesAndCompletesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemoryManager()
	q := queue.New(m.Jobs, nil, nil)
	h := &stubHandler{jobType: domain.JobTypeLinking}
	pool := NewPool(q, handlers.NewRegistry(h), domain.TierGroupCPUAndAgnostic, 2, 10*time.Millisecond, nil)

	jobID, err := q.Enqueue(ctx, nil, domain.JobTypeLinking, 0, nil, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		j, err := q.Get(ctx, jobID)
		return err == nil && j.Status == domain.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(1), h.executed.Load(), "each job is delivered to exactly one worker")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not shut down after cancellation")
	}
}

func TestPool_TranslatesFailureIntoRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemoryManager()
	q := queue.New(m.Jobs, nil, nil)
	h := &stubHandler{jobType: domain.JobTypeTitleGen, fail: true}
	pool := NewPool(q, handlers.NewRegistry(h), domain.TierGroupCPUAndAgnostic, 1, 10*time.Millisecond, nil)

	jobID, err := q.Enqueue(ctx, nil, domain.JobTypeTitleGen, 0, nil, nil)
	require.NoError(t, err)

	go pool.Run(ctx)

	// MaxRetries pending->running round trips, then terminal failure.
	require.Eventually(t, func() bool {
		j, err := q.Get(ctx, jobID)
		return err == nil && j.Status == domain.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	j, err := q.Get(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, j.MaxRetries, j.RetryCount)
	require.NotNil(t, j.ErrorMessage)
	require.Contains(t, *j.ErrorMessage, "scripted failure")
}

func TestPool_IgnoresOtherTiers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	m := store.NewMemoryManager()
	q := queue.New(m.Jobs, nil, nil)
	h := &stubHandler{jobType: domain.JobTypeEmbedding}
	pool := NewPool(q, handlers.NewRegistry(h), domain.TierGroupCPUAndAgnostic, 1, 10*time.Millisecond, nil)

	gpu := domain.CostTierStandardGPU
	jobID, err := q.Enqueue(ctx, nil, domain.JobTypeEmbedding, 0, nil, &gpu)
	require.NoError(t, err)

	pool.Run(ctx)

	j, err := q.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusPending, j.Status, "a CPU pool never claims GPU-tier work")
	require.Zero(t, h.executed.Load())
}
