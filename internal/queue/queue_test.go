package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

func TestQueue_EnqueueDeduplicated_SuppressesSecondCall(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	q := New(m.Jobs, nil, nil)
	noteID := uuid.New()

	first, err := q.EnqueueDeduplicated(ctx, noteID, domain.JobTypeEmbedding, 0, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := q.EnqueueDeduplicated(ctx, noteID, domain.JobTypeEmbedding, 0, nil, nil)
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestQueue_AwaitClaim_ReturnsImmediatelyWhenJobPending(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	q := New(m.Jobs, nil, nil)

	_, err := q.Enqueue(ctx, nil, domain.JobTypeLinking, 0, nil, nil)
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	job, err := q.AwaitClaim(ctx2, domain.TierGroupCPUAndAgnostic, nil, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
}

func TestQueue_AwaitClaim_TimesOutWhenEmpty(t *testing.T) {
	m := store.NewMemoryManager()
	q := New(m.Jobs, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	job, err := q.AwaitClaim(ctx, domain.TierGroupCPUAndAgnostic, nil, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, job)
}

func TestTierGroupFor(t *testing.T) {
	require.Equal(t, domain.TierGroupCPUAndAgnostic, tierGroupFor(nil))
	fast := domain.CostTierFastGPU
	require.Equal(t, domain.TierGroupFastGPU, tierGroupFor(&fast))
}
