package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"noteforge/internal/domain"
)

func TestMemoryNotes_UpsertGetSoftDelete(t *testing.T) {
	ctx := context.Background()
	notes := newMemoryNotes()

	n := &domain.Note{Title: "Rust Ownership", OriginalContent: "borrow checker basics"}
	require.NoError(t, notes.Upsert(ctx, n))
	require.NotEqual(t, uuid.Nil, n.ID)

	got, err := notes.Get(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, "Rust Ownership", got.Title)

	byTitle, err := notes.FindByTitle(ctx, "rust ownership")
	require.NoError(t, err)
	require.Equal(t, n.ID, byTitle.ID)

	require.NoError(t, notes.SoftDelete(ctx, n.ID))
	_, err = notes.FindByTitle(ctx, "rust ownership")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryJobs_QueueDeduplicated(t *testing.T) {
	ctx := context.Background()
	jobs := newMemoryJobs()
	noteID := uuid.New()

	first, err := jobs.QueueDeduplicated(ctx, noteID, domain.JobTypeEmbedding, 0, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := jobs.QueueDeduplicated(ctx, noteID, domain.JobTypeEmbedding, 0, nil, nil)
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestMemoryJobs_FailRetriesUntilMaxRetries(t *testing.T) {
	ctx := context.Background()
	jobs := newMemoryJobs()
	id, err := jobs.Queue(ctx, nil, domain.JobTypeLinking, 0, nil, nil)
	require.NoError(t, err)

	claimed, err := jobs.ClaimNextForTypes(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)

	for i := 0; i < 3; i++ {
		require.NoError(t, jobs.Fail(ctx, id, "boom"))
		j, err := jobs.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.JobStatusPending, j.Status)
		claimed, err = jobs.ClaimNextForTypes(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, claimed)
	}

	require.NoError(t, jobs.Fail(ctx, id, "boom again"))
	j, err := jobs.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusFailed, j.Status)
}

func TestMemoryJobs_CleanupPreservesPendingAndRunning(t *testing.T) {
	ctx := context.Background()
	jobs := newMemoryJobs()
	doneID, err := jobs.Queue(ctx, nil, domain.JobTypeLinking, 0, nil, nil)
	require.NoError(t, err)
	pendingID, err := jobs.Queue(ctx, nil, domain.JobTypeLinking, 0, nil, nil)
	require.NoError(t, err)

	claimed, err := jobs.ClaimNextForTypes(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, doneID, claimed.ID)
	require.NoError(t, jobs.Complete(ctx, doneID, nil))

	removed, err := jobs.Cleanup(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = jobs.Get(ctx, pendingID)
	require.NoError(t, err)
}

func TestMemoryEmbeddingSets_AddMemberMarksStale(t *testing.T) {
	ctx := context.Background()
	sets := newMemoryEmbeddingSets()
	s := &domain.EmbeddingSet{Slug: "default", Name: "Default", Mode: domain.EmbeddingSetModeAuto}
	require.NoError(t, sets.Create(ctx, s))
	require.NoError(t, sets.Update(ctx, &domain.EmbeddingSet{ID: s.ID, Slug: s.Slug, Name: s.Name, Mode: s.Mode, IndexStatus: domain.IndexStatusReady}))

	require.NoError(t, sets.AddMember(ctx, s.ID, uuid.New(), domain.MembershipAuto))

	got, err := sets.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, domain.IndexStatusStale, got.IndexStatus)
}

func TestMemoryEmbeddings_FindSimilarDropsBelowNoiseFloor(t *testing.T) {
	ctx := context.Background()
	emb := newMemoryEmbeddings()
	noteID := uuid.New()
	emb.SetNoteView(noteID, "Weakly Related", false, false, time.Now())
	require.NoError(t, emb.Store(ctx, noteID, []ChunkEmbedding{
		{Ordinal: 0, Text: "barely related", Vector: []float32{1, 0, 0}},
	}, "test-model", uuid.Nil))

	hits, err := emb.FindSimilar(ctx, nil, []float32{0, 1, 0}, 10, false)
	require.NoError(t, err)
	require.Empty(t, hits, "orthogonal vector has cosine 0, below the 0.3 noise floor")
}

func TestHasHierarchicalTag(t *testing.T) {
	tags := []string{"rust/tokio", "go"}
	require.True(t, domain.HasHierarchicalTag(tags, "rust"))
	require.True(t, domain.HasHierarchicalTag(tags, "go"))
	require.False(t, domain.HasHierarchicalTag(tags, "python"))
}

func TestHealthScore(t *testing.T) {
	require.Equal(t, 100.0, domain.HealthScore(0, 0, 0, 0))
	require.Equal(t, 50.0, domain.HealthScore(10, 3, 1, 1))
	require.Equal(t, 0.0, domain.HealthScore(2, 5, 0, 0))
}
