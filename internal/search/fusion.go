package search

import (
	"sort"

	"github.com/google/uuid"

	"noteforge/internal/domain"
)

// rrfK is the reciprocal-rank-fusion damping constant. Lower values weight
// the top of each list more heavily; 60 is the value the original RRF paper
// and most production hybrid search stacks settle on.
const rrfK = 60.0

type fusedHit struct {
	noteID       uuid.UUID
	score        float64
	title        string
	snippet      string
	tags         []string
	explanation  map[string]float64
	chainRoot    *uuid.UUID
	chainMembers []uuid.UUID
}

// FuseRRF merges ranked result lists (one per retrieval strategy, e.g. FTS
// and vector) by reciprocal rank fusion: a hit's raw fused score is the
// sum, over every list it appears in, of weight / (rrfK + rank). Rank is
// 1-indexed position within that list. The fusion is independent of each
// list's native score scale, which is what makes it safe to combine a
// ts_rank score with a cosine similarity.
//
// Raw RRF contributions top out around 1/(rrfK+1) per list, far short of
// 1.0, so the batch is rescaled by its own maximum before returning: this
// is what lets domain.SearchConfig.MinScore be specified as a [0, 1]
// threshold regardless of how many lists contributed or how they're
// weighted.
func FuseRRF(lists map[string][]domain.SearchHit, weights map[string]float64) []fusedHit {
	byID := make(map[uuid.UUID]*fusedHit)
	var order []uuid.UUID
	for name, hits := range lists {
		w := weights[name]
		if w == 0 {
			w = 1
		}
		for rank, h := range hits {
			fh, ok := byID[h.NoteID]
			if !ok {
				fh = &fusedHit{noteID: h.NoteID, title: h.Title, snippet: h.Snippet, tags: h.Tags, explanation: map[string]float64{}}
				byID[h.NoteID] = fh
				order = append(order, h.NoteID)
			}
			contribution := w / (rrfK + float64(rank+1))
			fh.score += contribution
			fh.explanation[name] = contribution
			if fh.title == "" {
				fh.title = h.Title
			}
			if fh.snippet == "" {
				fh.snippet = h.Snippet
			}
		}
	}
	out := make([]fusedHit, 0, len(order))
	var maxScore float64
	for _, id := range order {
		fh := *byID[id]
		out = append(out, fh)
		if fh.score > maxScore {
			maxScore = fh.score
		}
	}
	if maxScore > 0 {
		for i := range out {
			for name, contribution := range out[i].explanation {
				out[i].explanation[name] = contribution / maxScore
			}
			out[i].score /= maxScore
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].noteID.String() < out[j].noteID.String()
	})
	return out
}

// Dedup collapses fused hits that belong to the same chain (spec.md's
// note-revision chains: a note and its AI-revised descendants share a
// ChainRoot) down to a single representative, optionally merging the rest's
// tags into the survivor. It assumes hits is already sorted best-first (as
// FuseRRF returns it), so the first hit seen for a given root is the one
// kept.
func Dedup(hits []fusedHit, chainRoot map[uuid.UUID]uuid.UUID, expandChains bool) []fusedHit {
	if chainRoot == nil {
		return hits
	}
	bestForRoot := make(map[uuid.UUID]int) // root -> index in out
	var out []fusedHit
	for _, h := range hits {
		root, chained := chainRoot[h.noteID]
		if !chained {
			out = append(out, h)
			continue
		}
		if idx, seen := bestForRoot[root]; seen {
			if expandChains {
				out[idx].tags = mergeUnique(out[idx].tags, h.tags)
				out[idx].chainMembers = append(out[idx].chainMembers, h.noteID)
			}
			continue
		}
		member := h.noteID
		rootCopy := root
		h.noteID = root
		h.chainRoot = &rootCopy
		if expandChains && member != root {
			h.chainMembers = append(h.chainMembers, member)
		}
		bestForRoot[root] = len(out)
		out = append(out, h)
	}
	return out
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func toSearchHits(hits []fusedHit) []domain.SearchHit {
	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.SearchHit{
			NoteID:       h.noteID,
			Score:        h.score,
			Title:        h.title,
			Snippet:      h.snippet,
			Tags:         h.tags,
			ChainRoot:    h.chainRoot,
			ChainMembers: h.chainMembers,
		})
	}
	return out
}
