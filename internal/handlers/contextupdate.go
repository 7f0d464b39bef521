package handlers

import (
	"context"
	"fmt"
	"strings"

	"noteforge/internal/domain"
	"noteforge/internal/inference"
	"noteforge/internal/store"
)

// relatedContextHeading marks the appended section so the handler can tell
// whether it has already run for a note (idempotent append).
const relatedContextHeading = "## Related Context"

// ContextUpdateHandler implements domain.JobTypeContextUpdate: composes a
// "Related Context" section from the note's top outgoing semantic links and
// appends it to the revised content, once.
type ContextUpdateHandler struct {
	Store            *store.Manager
	Backend          inference.Backend
	ContextThreshold float64
}

func NewContextUpdateHandler(m *store.Manager, backend inference.Backend, contextThreshold float64) *ContextUpdateHandler {
	return &ContextUpdateHandler{Store: m, Backend: backend, ContextThreshold: contextThreshold}
}

func (h *ContextUpdateHandler) JobType() domain.JobType { return domain.JobTypeContextUpdate }

func (h *ContextUpdateHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	if job.NoteID == nil {
		return Fail(fmt.Errorf("context_update job missing note_id"))
	}
	note, err := h.Store.Notes.Get(ctx, *job.NoteID)
	if err != nil {
		return Fail(fmt.Errorf("load note: %w", err))
	}
	current := note.IndexContent()
	if strings.Contains(current, relatedContextHeading) {
		return Ok(map[string]string{"skipped": "related context already present"})
	}
	_ = progress(ctx, 30, "loading outgoing links")

	links, err := h.Store.Links.ListFrom(ctx, note.ID)
	if err != nil {
		return Fail(fmt.Errorf("load outgoing links: %w", err))
	}
	titles, err := h.topSemanticTargets(ctx, links)
	if err != nil {
		return Fail(fmt.Errorf("resolve semantic targets: %w", err))
	}
	if len(titles) == 0 {
		return Ok(map[string]string{"skipped": "no outgoing semantic links above threshold"})
	}
	_ = progress(ctx, 60, "generating")

	section, err := h.Backend.Generate(ctx, buildContextPrompt(current, titles))
	if err != nil {
		return Fail(fmt.Errorf("generate context section: %w", err))
	}

	updated := current + "\n\n" + relatedContextHeading + "\n" + strings.TrimSpace(section) + "\n"
	if err := h.Store.Notes.UpdateRevised(ctx, note.ID, updated); err != nil {
		return Fail(fmt.Errorf("save context section: %w", err))
	}
	_ = progress(ctx, 100, "done")

	return Ok(map[string]int{"related_notes": len(titles)})
}

// topSemanticTargets returns up to 5 titles from outgoing semantic links
// scoring above the context threshold, highest score first.
func (h *ContextUpdateHandler) topSemanticTargets(ctx context.Context, links []*domain.Link) ([]string, error) {
	type scored struct {
		score float64
		title string
	}
	var candidates []scored
	for _, l := range links {
		if l.Kind != domain.LinkKindSemantic || l.ToNoteID == nil || l.Score <= h.ContextThreshold {
			continue
		}
		target, err := h.Store.Notes.Get(ctx, *l.ToNoteID)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{score: l.Score, title: target.Title})
	}
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score > candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	titles := make([]string, len(candidates))
	for i, c := range candidates {
		titles[i] = c.title
	}
	return titles, nil
}

func buildContextPrompt(content string, relatedTitles []string) string {
	var b strings.Builder
	b.WriteString("Write a short \"Related Context\" paragraph connecting this note to the listed related notes. Respond with the paragraph only, no heading.\n\n")
	b.WriteString("Note:\n")
	b.WriteString(content)
	b.WriteString("\n\nRelated notes:\n")
	for _, t := range relatedTitles {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String()
}
