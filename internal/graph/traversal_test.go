package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

func seedChain(t *testing.T, m *store.Manager) (a, b, c uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	notes := []*domain.Note{
		{Title: "Alpha", OriginalContent: "a"},
		{Title: "Beta", OriginalContent: "b"},
		{Title: "Gamma", OriginalContent: "c"},
	}
	for _, n := range notes {
		require.NoError(t, m.Notes.Upsert(ctx, n))
	}
	a, b, c = notes[0].ID, notes[1].ID, notes[2].ID
	link := func(from, to uuid.UUID, score float64) {
		_, err := m.Links.Create(ctx, &domain.Link{FromNoteID: from, ToNoteID: &to, Kind: domain.LinkKindSemantic, Score: score})
		require.NoError(t, err)
	}
	link(a, b, 0.9)
	link(b, c, 0.8)
	return a, b, c
}

func TestTraverse_DepthBoundsExpansion(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	a, b, _ := seedChain(t, m)

	p, err := Traverse(ctx, m, a, Options{Depth: 1})
	require.NoError(t, err)
	require.Equal(t, "v1", p.GraphVersion)
	require.Equal(t, 2, p.Meta.TotalNodes)
	require.Equal(t, 1, p.Meta.TotalEdges)
	require.Contains(t, p.Meta.TruncationReasons, "depth")
	require.Equal(t, a, p.Nodes[0].ID)
	require.Equal(t, 0, p.Nodes[0].Depth)
	require.Equal(t, b, p.Nodes[1].ID)
	require.Equal(t, 1, p.Nodes[1].Depth)
}

func TestTraverse_FullChainAtDepthTwo(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	a, _, c := seedChain(t, m)

	p, err := Traverse(ctx, m, a, Options{Depth: 2})
	require.NoError(t, err)
	require.Equal(t, 3, p.Meta.TotalNodes)
	require.Equal(t, 2, p.Meta.TotalEdges)
	require.Empty(t, p.Meta.TruncationReasons)
	require.Equal(t, c, p.Nodes[2].ID)
	require.Equal(t, 2, p.Nodes[2].Depth)
}

func TestTraverse_MinScoreDropsWeakEdges(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	a, _, _ := seedChain(t, m)

	p, err := Traverse(ctx, m, a, Options{Depth: 2, MinScore: 0.85})
	require.NoError(t, err)
	require.Equal(t, 2, p.Meta.TotalNodes, "the 0.8 edge to Gamma is below the floor")
	require.Equal(t, 1, p.Meta.TotalEdges)
}

func TestTraverse_MaxNodesAdvertisesTruncation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryManager()
	a, _, _ := seedChain(t, m)

	p, err := Traverse(ctx, m, a, Options{Depth: 2, MaxNodes: 2})
	require.NoError(t, err)
	require.Equal(t, 2, p.Meta.TotalNodes)
	require.Equal(t, 1, p.Meta.TruncatedNodes)
	require.Contains(t, p.Meta.TruncationReasons, "max_nodes")
}
