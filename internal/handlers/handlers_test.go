package handlers

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"noteforge/internal/chunk"
	"noteforge/internal/domain"
	"noteforge/internal/queue"
	"noteforge/internal/store"
)

// fakeBackend is a canned inference.Backend for handler tests.
type fakeBackend struct {
	vectors   map[string][]float32
	generated string
	jsonOut   string
	genErr    error
}

func (f *fakeBackend) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (f *fakeBackend) Dimension() int { return 3 }

func (f *fakeBackend) Generate(_ context.Context, _ string) (string, error) {
	return f.generated, f.genErr
}

func (f *fakeBackend) GenerateWithSystem(_ context.Context, _, _ string) (string, error) {
	return f.generated, f.genErr
}

func (f *fakeBackend) GenerateJSON(_ context.Context, _ string) (string, error) {
	return f.jsonOut, f.genErr
}

func noopProgress(context.Context, int, string) error { return nil }

func jobFor(noteID uuid.UUID, jt domain.JobType, payload []byte) *domain.Job {
	return &domain.Job{ID: uuid.New(), NoteID: &noteID, JobType: jt, Payload: payload, MaxRetries: 3}
}

func mustUpsert(t *testing.T, m *store.Manager, n *domain.Note) {
	t.Helper()
	require.NoError(t, m.Notes.Upsert(context.Background(), n))
}

func TestEmbeddingHandler_ChunksAndStores(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	backend := &fakeBackend{}
	note := &domain.Note{Title: "Borrowing", OriginalContent: "The borrow checker enforces ownership at compile time."}
	mustUpsert(t, m, note)

	h := NewEmbeddingHandler(m, backend, chunk.Config{Kind: chunk.KindSemantic}, "test-model")
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeEmbedding, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]int
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Greater(t, out["chunks"], 0)

	stored, err := m.Embeddings.ByNote(ctx, note.ID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, stored, out["chunks"])
	require.Equal(t, 0, stored[0].ChunkOrdinal)
}

func TestLinkingHandler_ResolvesWikiLinks(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()

	target := &domain.Note{Title: "Rust Ownership", OriginalContent: "ownership rules"}
	mustUpsert(t, m, target)
	source := &domain.Note{OriginalContent: "See [[Rust Ownership]] for details. Also [[Nonexistent]]."}
	mustUpsert(t, m, source)

	h := NewLinkingHandler(m, 0.8)
	res := h.Execute(ctx, jobFor(source.ID, domain.JobTypeLinking, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]int
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, 2, out["wiki_links_found"])
	require.Equal(t, 1, out["wiki_links_resolved"])
	require.Equal(t, 1, out["links_created"])

	links, err := m.Links.ListFrom(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, domain.LinkKindWiki, links[0].Kind)
	require.Equal(t, target.ID, *links[0].ToNoteID)
	require.Equal(t, 1.0, links[0].Score)
	require.Equal(t, "Rust Ownership", links[0].Metadata["wiki_title"])
}

func TestLinkingHandler_ReciprocalSemanticLinksAreIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()

	old := &domain.Note{Title: "Ownership", OriginalContent: "ownership and borrowing"}
	mustUpsert(t, m, old)
	newer := &domain.Note{Title: "Borrowing", OriginalContent: "borrowing and ownership"}
	mustUpsert(t, m, newer)

	store.SeedNoteView(m.Embeddings, old.ID, old.Title, false, false, time.Now())
	store.SeedNoteView(m.Embeddings, newer.ID, newer.Title, false, false, time.Now())
	require.NoError(t, m.Embeddings.Store(ctx, old.ID, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "ownership and borrowing", Vector: []float32{1, 0, 0}},
	}, "test-model", uuid.Nil))
	require.NoError(t, m.Embeddings.Store(ctx, newer.ID, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "borrowing and ownership", Vector: []float32{0.99, 0.1, 0}},
	}, "test-model", uuid.Nil))

	h := NewLinkingHandler(m, 0.8)
	res := h.Execute(ctx, jobFor(newer.ID, domain.JobTypeLinking, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]int
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, 2, out["links_created"], "one reciprocal pair is two rows")

	forward, err := m.Links.ListFrom(ctx, newer.ID)
	require.NoError(t, err)
	require.Len(t, forward, 1)
	require.Equal(t, domain.LinkKindSemantic, forward[0].Kind)
	backward, err := m.Links.ListFrom(ctx, old.ID)
	require.NoError(t, err)
	require.Len(t, backward, 1)
	require.Equal(t, newer.ID, *backward[0].ToNoteID)

	// A second run creates no new rows: uniqueness on (from, to, kind).
	res = h.Execute(ctx, jobFor(newer.ID, domain.JobTypeLinking, nil), noopProgress)
	require.True(t, res.OK, res.Err)
	forward, err = m.Links.ListFrom(ctx, newer.ID)
	require.NoError(t, err)
	require.Len(t, forward, 1)
}

func TestTitleGenerationHandler_SkipsTitledNote(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{Title: "Already Titled", OriginalContent: "body"}
	mustUpsert(t, m, note)

	h := NewTitleGenerationHandler(m, &fakeBackend{generated: "should not be used"}, 0.5)
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeTitleGen, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]bool
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.True(t, out["skipped"])
}

func TestTitleGenerationHandler_CleansAndSavesTitle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{OriginalContent: "notes on the borrow checker"}
	mustUpsert(t, m, note)

	h := NewTitleGenerationHandler(m, &fakeBackend{generated: "\"Understanding the Borrow Checker\"\n"}, 0.5)
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeTitleGen, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	saved, err := m.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, "Understanding the Borrow Checker", saved.Title)
}

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"\"Quoted Title\"", "Quoted Title"},
		{"“Smart Quotes”", "Smart Quotes"},
		{"First line\nsecond line", "First line"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, cleanTitle(tc.raw))
	}
}

func TestAIRevisionHandler_NoneModeShortCircuits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{OriginalContent: "original"}
	mustUpsert(t, m, note)

	payload, _ := json.Marshal(map[string]string{"revision_mode": "none"})
	h := NewAIRevisionHandler(m, &fakeBackend{generated: "must not run"}, 0.5)
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeAIRevision, payload), noopProgress)
	require.True(t, res.OK, res.Err)

	saved, err := m.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Empty(t, saved.RevisedContent)
}

func TestAIRevisionHandler_FullModeSavesRevision(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{OriginalContent: "raw draft"}
	mustUpsert(t, m, note)

	h := NewAIRevisionHandler(m, &fakeBackend{generated: "Polished draft."}, 0.5)
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeAIRevision, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, "full", out["revision_mode"])
	require.Equal(t, float64(len("Polished draft.")), out["revised_length"])

	saved, err := m.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, "Polished draft.", saved.RevisedContent)
}

func TestConceptTaggingHandler_TagsWithDecayingRelevance(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{OriginalContent: "rust memory management"}
	mustUpsert(t, m, note)

	h := NewConceptTaggingHandler(m, &fakeBackend{jsonOut: `["rust","ownership","memory"]`})
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeConceptTagging, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, float64(3), out["concepts_tagged"])
	require.Equal(t, float64(3), out["concepts_suggested"])

	tags, err := m.Concepts.TagsForNote(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, tags, 3)

	relevances := make([]float64, 0, len(tags))
	primaries := 0
	for _, tag := range tags {
		relevances = append(relevances, tag.Relevance)
		if tag.IsPrimary {
			primaries++
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(relevances)))
	require.Equal(t, 1, primaries)
	require.InDelta(t, 1.0, relevances[0], 1e-9)
	require.InDelta(t, 0.85, relevances[1], 1e-9)
	require.InDelta(t, 0.7, relevances[2], 1e-9)
}

func TestContextUpdateHandler_AppendsSectionOnce(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{Title: "Main", OriginalContent: "main body"}
	mustUpsert(t, m, note)
	target := &domain.Note{Title: "Neighbor", OriginalContent: "neighbor body"}
	mustUpsert(t, m, target)

	_, err := m.Links.Create(ctx, &domain.Link{
		FromNoteID: note.ID, ToNoteID: &target.ID, Kind: domain.LinkKindSemantic, Score: 0.9,
	})
	require.NoError(t, err)

	h := NewContextUpdateHandler(m, &fakeBackend{generated: "These notes discuss adjacent ideas."}, 0.5)
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypeContextUpdate, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	saved, err := m.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Contains(t, saved.RevisedContent, "## Related Context")
	require.Contains(t, saved.RevisedContent, "adjacent ideas")

	// Second run finds the heading already present and leaves content alone.
	res = h.Execute(ctx, jobFor(note.ID, domain.JobTypeContextUpdate, nil), noopProgress)
	require.True(t, res.OK, res.Err)
	again, err := m.Notes.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, saved.RevisedContent, again.RevisedContent)
}

func TestPurgeNoteHandler_DeletesAndRefreshesStats(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	note := &domain.Note{Title: "Doomed", OriginalContent: "to be purged"}
	mustUpsert(t, m, note)

	set := &domain.EmbeddingSet{Slug: "research", Name: "Research", Mode: domain.EmbeddingSetModeManual}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, note.ID, domain.MembershipManualInclude))

	h := NewPurgeNoteHandler(m)
	res := h.Execute(ctx, jobFor(note.ID, domain.JobTypePurgeNote, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, note.ID.String(), out["deleted_note_id"])
	require.Equal(t, float64(1), out["affected_embedding_sets"])
	require.Equal(t, true, out["stats_updated"])

	_, err := m.Notes.Get(ctx, note.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReEmbedAllHandler_QueuesEveryActiveNote(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	for i := 0; i < 3; i++ {
		mustUpsert(t, m, &domain.Note{OriginalContent: "note body"})
	}

	q := queue.New(m.Jobs, nil, nil)
	h := NewReEmbedAllHandler(m, q)
	res := h.Execute(ctx, jobFor(uuid.New(), domain.JobTypeReEmbedAll, nil), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, float64(3), out["notes_queued"])
	require.Equal(t, float64(0), out["notes_failed"])
	require.Equal(t, float64(3), out["total_notes"])
}

func TestReEmbedAllHandler_ScopesToEmbeddingSetSlug(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	member := &domain.Note{OriginalContent: "in the set"}
	mustUpsert(t, m, member)
	mustUpsert(t, m, &domain.Note{OriginalContent: "outside the set"})

	set := &domain.EmbeddingSet{Slug: "research", Name: "Research", Mode: domain.EmbeddingSetModeManual}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, member.ID, domain.MembershipManualInclude))

	payload, _ := json.Marshal(map[string]string{"embedding_set": "research"})
	q := queue.New(m.Jobs, nil, nil)
	h := NewReEmbedAllHandler(m, q)
	res := h.Execute(ctx, jobFor(uuid.New(), domain.JobTypeReEmbedAll, payload), noopProgress)
	require.True(t, res.OK, res.Err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &out))
	require.Equal(t, float64(1), out["total_notes"])
	require.Equal(t, "research", out["embedding_set"])
}
