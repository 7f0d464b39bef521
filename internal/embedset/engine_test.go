package embedset

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

func tagNote(t *testing.T, m *store.Manager, noteID uuid.UUID, label string) {
	t.Helper()
	ctx := context.Background()
	schemeID, err := m.Concepts.DefaultScheme(ctx)
	require.NoError(t, err)
	concept, err := m.Concepts.FindOrCreateByLabel(ctx, schemeID, label, "en")
	require.NoError(t, err)
	require.NoError(t, m.Concepts.TagNote(ctx, &domain.NoteTag{
		NoteID: noteID, ConceptID: concept.ID, Source: domain.NoteTagSourceManual, Relevance: 1.0,
	}))
}

func TestEngine_Refresh_AutoMatchesHierarchicalTags(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	engine := NewEngine(m)

	n1 := &domain.Note{Title: "Rust Intro", OriginalContent: "rust"}
	n2 := &domain.Note{Title: "Tokio Guide", OriginalContent: "tokio"}
	n3 := &domain.Note{Title: "Go Channels", OriginalContent: "go"}
	for _, n := range []*domain.Note{n1, n2, n3} {
		require.NoError(t, m.Notes.Upsert(ctx, n))
	}
	tagNote(t, m, n1.ID, "rust")
	tagNote(t, m, n2.ID, "rust/tokio")
	tagNote(t, m, n3.ID, "go")

	set := &domain.EmbeddingSet{
		Slug: "rust-notes", Name: "Rust Notes", Mode: domain.EmbeddingSetModeAuto,
		Criteria: domain.Criteria{Tags: []string{"rust"}, ExcludeArchived: true},
	}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))

	result, err := engine.Refresh(ctx, "rust-notes")
	require.NoError(t, err)
	require.Equal(t, domain.EmbeddingSetModeAuto, result.Mode)
	require.Equal(t, 2, result.MembersMatched)

	members, err := m.EmbeddingSets.Members(ctx, set.ID)
	require.NoError(t, err)
	memberIDs := map[uuid.UUID]bool{}
	for _, mem := range members {
		memberIDs[mem.NoteID] = true
		require.Equal(t, domain.MembershipAuto, mem.MembershipType)
	}
	require.True(t, memberIDs[n1.ID], "exact tag match")
	require.True(t, memberIDs[n2.ID], "rust/tokio matches rust hierarchically")
	require.False(t, memberIDs[n3.ID])

	refreshed, err := m.EmbeddingSets.Get(ctx, set.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LastRefreshAt)

	// A second refresh converges: same members, no additions.
	result, err = engine.Refresh(ctx, "rust-notes")
	require.NoError(t, err)
	require.Equal(t, 2, result.MembersMatched)
	members, err = m.EmbeddingSets.Members(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestEngine_Refresh_AutoArchiveExclusionIsAToggle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	engine := NewEngine(m)

	live := &domain.Note{Title: "Live", OriginalContent: "live"}
	archived := &domain.Note{Title: "Archived", OriginalContent: "archived", Archived: true}
	require.NoError(t, m.Notes.Upsert(ctx, live))
	require.NoError(t, m.Notes.Upsert(ctx, archived))
	tagNote(t, m, live.ID, "rust")
	tagNote(t, m, archived.ID, "rust")

	inclusive := &domain.EmbeddingSet{
		Slug: "all-rust", Name: "All Rust", Mode: domain.EmbeddingSetModeAuto,
		Criteria: domain.Criteria{Tags: []string{"rust"}, ExcludeArchived: false},
	}
	require.NoError(t, m.EmbeddingSets.Create(ctx, inclusive))
	result, err := engine.Refresh(ctx, "all-rust")
	require.NoError(t, err)
	require.Equal(t, 2, result.MembersMatched, "exclude_archived:false admits archived notes")

	exclusive := &domain.EmbeddingSet{
		Slug: "live-rust", Name: "Live Rust", Mode: domain.EmbeddingSetModeAuto,
		Criteria: domain.Criteria{Tags: []string{"rust"}, ExcludeArchived: true},
	}
	require.NoError(t, m.EmbeddingSets.Create(ctx, exclusive))
	result, err = engine.Refresh(ctx, "live-rust")
	require.NoError(t, err)
	require.Equal(t, 1, result.MembersMatched)

	isMember, err := m.EmbeddingSets.IsMember(ctx, exclusive.ID, archived.ID)
	require.NoError(t, err)
	require.False(t, isMember)
}

func TestEngine_Refresh_ManualCountsUnembeddedMembers(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	engine := NewEngine(m)

	embedded := &domain.Note{Title: "Embedded", OriginalContent: "has a vector"}
	bare := &domain.Note{Title: "Bare", OriginalContent: "no vector yet"}
	require.NoError(t, m.Notes.Upsert(ctx, embedded))
	require.NoError(t, m.Notes.Upsert(ctx, bare))

	set := &domain.EmbeddingSet{Slug: "curated", Name: "Curated", Mode: domain.EmbeddingSetModeManual}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, embedded.ID, domain.MembershipManualInclude))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, bare.ID, domain.MembershipManualInclude))

	store.SeedNoteView(m.Embeddings, embedded.ID, embedded.Title, false, false, embedded.UpdatedAt)
	require.NoError(t, m.Embeddings.Store(ctx, embedded.ID, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "has a vector", Vector: []float32{1, 0, 0}},
	}, "test-model", set.ID))

	result, err := engine.Refresh(ctx, "curated")
	require.NoError(t, err)
	require.Equal(t, domain.EmbeddingSetModeManual, result.Mode)
	require.Equal(t, 1, result.UnembeddedCount)
}

func TestEngine_Detect_ClassifiesMissingAndStale(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	engine := NewEngine(m)

	fresh := &domain.Note{Title: "Fresh", OriginalContent: "up to date"}
	missing := &domain.Note{Title: "Missing", OriginalContent: "never embedded"}
	require.NoError(t, m.Notes.Upsert(ctx, fresh))
	require.NoError(t, m.Notes.Upsert(ctx, missing))

	set := &domain.EmbeddingSet{Slug: "health", Name: "Health", Mode: domain.EmbeddingSetModeManual}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, fresh.ID, domain.MembershipManualInclude))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, missing.ID, domain.MembershipManualInclude))

	store.SeedNoteView(m.Embeddings, fresh.ID, fresh.Title, false, false, time.Now().Add(-time.Hour))
	require.NoError(t, m.Embeddings.Store(ctx, fresh.ID, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "up to date", Vector: []float32{1, 0, 0}},
	}, "test-model", set.ID))

	lc, err := engine.Detect(ctx, set.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{missing.ID}, lc.Missing)
	require.Empty(t, lc.Orphaned)
	require.Empty(t, lc.Stale, "embedding created after the note's last update is fresh")
}

func TestEngine_GarbageCollect_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	engine := NewEngine(m)

	alive := &domain.Note{Title: "Alive", OriginalContent: "keep me"}
	require.NoError(t, m.Notes.Upsert(ctx, alive))
	ghost := uuid.New() // member whose note was never created

	set := &domain.EmbeddingSet{Slug: "gc", Name: "GC", Mode: domain.EmbeddingSetModeManual}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, alive.ID, domain.MembershipManualInclude))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, ghost, domain.MembershipManualInclude))

	store.SeedNoteView(m.Embeddings, alive.ID, alive.Title, false, false, alive.UpdatedAt)
	require.NoError(t, m.Embeddings.Store(ctx, alive.ID, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "keep me", Vector: []float32{1, 0, 0}},
	}, "test-model", set.ID))
	// Orphaned embedding: its note is unknown to the store.
	require.NoError(t, m.Embeddings.Store(ctx, ghost, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "dangling", Vector: []float32{0, 1, 0}},
	}, "test-model", set.ID))

	first, err := engine.GarbageCollect(ctx, set.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.OrphanedMembershipsRemoved)
	require.Equal(t, 1, first.OrphanedEmbeddingsRemoved)

	second, err := engine.GarbageCollect(ctx, set.ID)
	require.NoError(t, err)
	require.Zero(t, second.OrphanedMembershipsRemoved)
	require.Zero(t, second.OrphanedEmbeddingsRemoved)

	members, err := m.EmbeddingSets.Members(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, alive.ID, members[0].NoteID)

	kept, err := m.Embeddings.ByNote(ctx, alive.ID, set.ID)
	require.NoError(t, err)
	require.Len(t, kept, 1)
}

func TestEngine_Health_ScoresCleanSetPerfect(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	engine := NewEngine(m)

	note := &domain.Note{Title: "Healthy", OriginalContent: "all good"}
	require.NoError(t, m.Notes.Upsert(ctx, note))

	set := &domain.EmbeddingSet{Slug: "clean", Name: "Clean", Mode: domain.EmbeddingSetModeManual}
	require.NoError(t, m.EmbeddingSets.Create(ctx, set))
	require.NoError(t, m.EmbeddingSets.AddMember(ctx, set.ID, note.ID, domain.MembershipManualInclude))
	require.NoError(t, m.EmbeddingSets.RefreshStats(ctx, set.ID))

	store.SeedNoteView(m.Embeddings, note.ID, note.Title, false, false, time.Now().Add(-time.Minute))
	require.NoError(t, m.Embeddings.Store(ctx, note.ID, []store.ChunkEmbedding{
		{Ordinal: 0, Text: "all good", Vector: []float32{1, 0, 0}},
	}, "test-model", set.ID))

	score, err := engine.Health(ctx, set.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, score)
}
