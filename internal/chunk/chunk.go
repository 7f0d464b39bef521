// Package chunk turns note content into ordered, offset-tracked chunks for
// embedding (C2, spec.md §4.1). Each Kind groups the source's natural text
// units (sentences, paragraphs, semantic segments, or a raw rune window)
// into pieces close to the target size, then locates each piece's byte
// offsets in the original text so the embedding pipeline can report chunk
// provenance back to the caller.
package chunk

import (
	"fmt"
	"strings"

	"noteforge/internal/domain"
)

// Kind names a chunking strategy, per the chunker family spec.md §4.1
// describes.
type Kind string

const (
	KindSentence      Kind = "sentence"
	KindParagraph     Kind = "paragraph"
	KindSemantic      Kind = "semantic"
	KindSlidingWindow Kind = "sliding_window"
	KindRecursive     Kind = "recursive"
	KindSyntactic     Kind = "syntactic"
)

// Config configures a Chunker. Size/Overlap are in runes; Language selects
// the declaration patterns a syntactic chunker uses.
type Config struct {
	Kind     Kind
	Size     int
	Overlap  int
	Language string
}

// Chunker produces ordered, non-overlapping-in-ordinal (though possibly
// text-overlapping, for sliding_window) chunks with source offsets intact.
type Chunker interface {
	Chunk(text string) ([]domain.Chunk, error)
}

// New builds a Chunker for cfg.Kind.
func New(cfg Config) (Chunker, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	switch cfg.Kind {
	case KindSentence:
		return &partsChunker{kind: cfg.Kind, split: func(text string) []string {
			return sentenceSplit(text, cfg.Size, cfg.Overlap)
		}}, nil
	case KindParagraph:
		return &partsChunker{kind: cfg.Kind, split: func(text string) []string {
			return paragraphSplit(text, cfg.Size, cfg.Overlap)
		}}, nil
	case KindSemantic:
		return &partsChunker{kind: cfg.Kind, split: func(text string) []string {
			return semanticSplit(text, cfg.Size, cfg.Overlap)
		}}, nil
	case KindSlidingWindow:
		return &partsChunker{kind: cfg.Kind, split: func(text string) []string {
			return fixedSplit(text, cfg.Size, cfg.Overlap)
		}}, nil
	case KindRecursive:
		return &partsChunker{kind: cfg.Kind, split: func(text string) []string {
			return recursiveSplit(text, cfg.Size, cfg.Overlap)
		}}, nil
	case KindSyntactic:
		return newSyntacticChunker(cfg)
	default:
		return nil, fmt.Errorf("chunk: unknown kind %q", cfg.Kind)
	}
}

// partsChunker adapts a plain []string splitting function into a Chunker by
// locating each returned piece's byte offsets in the source.
type partsChunker struct {
	kind  Kind
	split func(text string) []string
}

func (c *partsChunker) Chunk(text string) ([]domain.Chunk, error) {
	return locateOffsets(text, c.split(text), domain.ChunkMetadata{Type: string(c.kind)}), nil
}

// locateOffsets finds each part's byte range within text, assuming parts
// are produced in source order. A sliding-window overlap can make a part
// start before the previous part ended, so the search floor is the
// previous chunk's Start (not its End) rather than assuming strictly
// advancing non-overlapping ranges.
func locateOffsets(text string, parts []string, meta domain.ChunkMetadata) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(parts))
	floor := 0
	for i, p := range parts {
		if p == "" {
			continue
		}
		start := -1
		if idx := strings.Index(text[floor:], p); idx >= 0 {
			start = floor + idx
		} else if idx := strings.Index(text, p); idx >= 0 {
			start = idx
		} else if nl := strings.IndexByte(p, '\n'); nl > 0 {
			// Grouped chunks join units with "\n", which can differ from
			// the source's original whitespace; fall back to anchoring on
			// the part's first line, which no grouping stage rewrites.
			if idx := strings.Index(text[floor:], p[:nl]); idx >= 0 {
				start = floor + idx
			}
		}
		if start < 0 {
			start = floor
		}
		end := start + len(p)
		if end > len(text) {
			end = len(text)
		}
		out = append(out, domain.Chunk{Ordinal: i, Text: p, Start: start, End: end, Metadata: meta})
		floor = start
	}
	return out
}
