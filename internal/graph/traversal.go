// Package graph builds the versioned link-graph traversal payload served to
// visualization clients: a bounded breadth-first expansion over the note
// link graph with every truncation advertised in meta, so clients can detect
// an incomplete graph instead of mistaking a budget cut for the full
// neighborhood.
package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

// Version is the payload schema version clients dispatch on.
const Version = "v1"

const (
	defaultDepth    = 2
	defaultMaxNodes = 100
)

// Options bounds a traversal. Zero values take defaults; MaxEdgesPerNode 0
// means unbounded.
type Options struct {
	Depth           int
	MaxNodes        int
	MinScore        float64
	MaxEdgesPerNode int
}

// Node is one note in the traversal payload.
type Node struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title,omitempty"`
	Depth        int        `json:"depth"`
	CollectionID *uuid.UUID `json:"collection_id,omitempty"`
	Archived     bool       `json:"archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Edge is one directed link between two included nodes.
type Edge struct {
	Source   uuid.UUID `json:"source"`
	Target   uuid.UUID `json:"target"`
	EdgeType string    `json:"edge_type"`
	Score    float64   `json:"score"`
	Rank     int       `json:"rank,omitempty"`
}

// Meta reports the effective bounds and what they cut.
type Meta struct {
	TotalNodes               int      `json:"total_nodes"`
	TotalEdges               int      `json:"total_edges"`
	TruncatedNodes           int      `json:"truncated_nodes"`
	TruncatedEdges           int      `json:"truncated_edges"`
	EffectiveDepth           int      `json:"effective_depth"`
	EffectiveMaxNodes        int      `json:"effective_max_nodes"`
	EffectiveMinScore        float64  `json:"effective_min_score"`
	EffectiveMaxEdgesPerNode int      `json:"effective_max_edges_per_node,omitempty"`
	TruncationReasons        []string `json:"truncation_reasons"`
}

// Payload is the complete v1 traversal response.
type Payload struct {
	GraphVersion string `json:"graph_version"`
	Nodes        []Node `json:"nodes"`
	Edges        []Edge `json:"edges"`
	Meta         Meta   `json:"meta"`
}

// Traverse expands the link graph breadth-first from root, bounded by opts.
func Traverse(ctx context.Context, m *store.Manager, root uuid.UUID, opts Options) (*Payload, error) {
	if opts.Depth <= 0 {
		opts.Depth = defaultDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = defaultMaxNodes
	}

	rootNote, err := m.Notes.Get(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("load root note: %w", err)
	}

	p := &Payload{GraphVersion: Version}
	p.Meta.EffectiveDepth = opts.Depth
	p.Meta.EffectiveMaxNodes = opts.MaxNodes
	p.Meta.EffectiveMinScore = opts.MinScore
	p.Meta.EffectiveMaxEdgesPerNode = opts.MaxEdgesPerNode
	reasons := map[string]bool{}

	depthOf := map[uuid.UUID]int{root: 0}
	p.Nodes = append(p.Nodes, nodeFrom(rootNote, 0))
	frontier := []uuid.UUID{root}

	for depth := 0; depth < opts.Depth && len(frontier) > 0; depth++ {
		var next []uuid.UUID
		for _, id := range frontier {
			links, err := m.Links.ListFrom(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("list links from %s: %w", id, err)
			}
			links = filterAndRank(links, opts.MinScore)
			if opts.MaxEdgesPerNode > 0 && len(links) > opts.MaxEdgesPerNode {
				p.Meta.TruncatedEdges += len(links) - opts.MaxEdgesPerNode
				links = links[:opts.MaxEdgesPerNode]
				reasons["max_edges_per_node"] = true
			}
			for rank, l := range links {
				target := *l.ToNoteID
				if _, seen := depthOf[target]; !seen {
					if len(depthOf) >= opts.MaxNodes {
						p.Meta.TruncatedNodes++
						reasons["max_nodes"] = true
						continue
					}
					note, err := m.Notes.Get(ctx, target)
					if err != nil {
						if err == domain.ErrNotFound {
							continue
						}
						return nil, fmt.Errorf("load note %s: %w", target, err)
					}
					if note.IsDeleted() {
						continue
					}
					depthOf[target] = depth + 1
					p.Nodes = append(p.Nodes, nodeFrom(note, depth+1))
					next = append(next, target)
				}
				p.Edges = append(p.Edges, Edge{
					Source:   id,
					Target:   target,
					EdgeType: string(l.Kind),
					Score:    l.Score,
					Rank:     rank + 1,
				})
			}
		}
		frontier = next
	}
	// The depth bound only counts as truncation if a frontier node actually
	// had somewhere unvisited left to go.
	for _, id := range frontier {
		links, err := m.Links.ListFrom(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list links from %s: %w", id, err)
		}
		for _, l := range filterAndRank(links, opts.MinScore) {
			if _, seen := depthOf[*l.ToNoteID]; !seen {
				reasons["depth"] = true
				break
			}
		}
		if reasons["depth"] {
			break
		}
	}

	p.Meta.TotalNodes = len(p.Nodes)
	p.Meta.TotalEdges = len(p.Edges)
	p.Meta.TruncationReasons = sortedReasons(reasons)
	return p, nil
}

// filterAndRank keeps internal links at or above minScore, best first.
func filterAndRank(links []*domain.Link, minScore float64) []*domain.Link {
	out := make([]*domain.Link, 0, len(links))
	for _, l := range links {
		if l.ToNoteID == nil || l.Score < minScore {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ToNoteID.String() < out[j].ToNoteID.String()
	})
	return out
}

func nodeFrom(n *domain.Note, depth int) Node {
	return Node{
		ID:           n.ID,
		Title:        n.Title,
		Depth:        depth,
		CollectionID: n.CollectionID,
		Archived:     n.Archived,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

func sortedReasons(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
