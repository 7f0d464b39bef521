package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// LinkingHandler implements domain.JobTypeLinking: resolves [[wiki-title]]
// references and creates reciprocal semantic links from the note's first
// stored embedding.
type LinkingHandler struct {
	Store             *store.Manager
	SemanticThreshold float64
}

func NewLinkingHandler(m *store.Manager, semanticThreshold float64) *LinkingHandler {
	return &LinkingHandler{Store: m, SemanticThreshold: semanticThreshold}
}

func (h *LinkingHandler) JobType() domain.JobType { return domain.JobTypeLinking }

func (h *LinkingHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	if job.NoteID == nil {
		return Fail(fmt.Errorf("linking job missing note_id"))
	}
	note, err := h.Store.Notes.Get(ctx, *job.NoteID)
	if err != nil {
		return Fail(fmt.Errorf("load note: %w", err))
	}

	wikiFound, wikiResolved, err := h.resolveWikiLinks(ctx, note)
	if err != nil {
		return Fail(fmt.Errorf("resolve wiki links: %w", err))
	}
	_ = progress(ctx, 50, "wiki links resolved")

	semanticRows, err := h.createSemanticLinks(ctx, note.ID)
	if err != nil {
		return Fail(fmt.Errorf("create semantic links: %w", err))
	}
	_ = progress(ctx, 100, "semantic links created")

	return Ok(map[string]int{
		"links_created":       wikiResolved + semanticRows,
		"wiki_links_found":    wikiFound,
		"wiki_links_resolved": wikiResolved,
	})
}

// resolveWikiLinks parses [[title]] references in the note's content and
// creates a one-directional wiki link for each title that resolves to an
// existing note, case-insensitively.
func (h *LinkingHandler) resolveWikiLinks(ctx context.Context, note *domain.Note) (found, resolved int, err error) {
	matches := wikiLinkPattern.FindAllStringSubmatch(note.IndexContent(), -1)
	for _, m := range matches {
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		found++
		target, err := h.Store.Notes.FindByTitle(ctx, title)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return found, resolved, err
		}
		if target.ID == note.ID {
			continue
		}
		if _, err := h.Store.Links.Create(ctx, &domain.Link{
			FromNoteID: note.ID,
			ToNoteID:   &target.ID,
			Kind:       domain.LinkKindWiki,
			Score:      1.0,
			Metadata:   map[string]string{"wiki_title": title},
		}); err != nil {
			return found, resolved, err
		}
		resolved++
	}
	return found, resolved, nil
}

// createSemanticLinks runs find_similar(k=10) from the note's first chunk
// embedding and creates reciprocal semantic links for every hit at or above
// the semantic threshold. Returns two per qualifying hit; a link that
// already exists (Create suppresses the duplicate) is still counted.
func (h *LinkingHandler) createSemanticLinks(ctx context.Context, noteID uuid.UUID) (int, error) {
	hits, err := findRelated(ctx, h.Store, noteID, 10, -1)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, hit := range hits {
		if hit.Score < h.SemanticThreshold {
			continue
		}
		toID := hit.NoteID
		if _, err := h.Store.Links.Create(ctx, &domain.Link{
			FromNoteID: noteID,
			ToNoteID:   &toID,
			Kind:       domain.LinkKindSemantic,
			Score:      hit.Score,
		}); err != nil {
			return count, err
		}
		if _, err := h.Store.Links.Create(ctx, &domain.Link{
			FromNoteID: toID,
			ToNoteID:   &noteID,
			Kind:       domain.LinkKindSemantic,
			Score:      hit.Score,
		}); err != nil {
			return count, err
		}
		count += 2
	}
	return count, nil
}
