package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"noteforge/internal/domain"
)

func TestFuseRRF_RanksAgreementHigher(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	lists := map[string][]domain.SearchHit{
		"fts":    {{NoteID: a}, {NoteID: b}},
		"vector": {{NoteID: a}, {NoteID: c}},
	}
	fused := FuseRRF(lists, map[string]float64{"fts": 1, "vector": 1})
	require.Len(t, fused, 3)
	require.Equal(t, a, fused[0].noteID) // appears in both lists at rank 1
}

func TestFuseRRF_NormalizesScoresIntoUnitRange(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	lists := map[string][]domain.SearchHit{
		"fts":    {{NoteID: a}, {NoteID: b}, {NoteID: c}},
		"vector": {{NoteID: a}, {NoteID: b}},
	}
	fused := FuseRRF(lists, map[string]float64{"fts": 1, "vector": 1})
	require.Len(t, fused, 3)
	require.InDelta(t, 1.0, fused[0].score, 1e-9) // top hit always lands at the batch max
	for _, h := range fused {
		require.GreaterOrEqual(t, h.score, 0.0)
		require.LessOrEqual(t, h.score, 1.0)
	}
	require.Less(t, fused[len(fused)-1].score, fused[0].score)
}

func TestFuseRRF_EmptyListsProduceNoHits(t *testing.T) {
	fused := FuseRRF(map[string][]domain.SearchHit{}, nil)
	require.Empty(t, fused)
}

func TestDedup_CollapsesChainToRoot(t *testing.T) {
	root, revision := uuid.New(), uuid.New()
	hits := []fusedHit{
		{noteID: root, score: 0.4},
		{noteID: revision, score: 0.9, tags: []string{"extra"}},
	}
	chainRoot := map[uuid.UUID]uuid.UUID{root: root, revision: root}
	out := Dedup(hits, chainRoot, true)
	require.Len(t, out, 1)
	require.Equal(t, root, out[0].noteID)
	require.Contains(t, out[0].tags, "extra")
}
