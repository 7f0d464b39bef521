package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"noteforge/internal/domain"
	"noteforge/internal/inference"
	"noteforge/internal/store"
)

// RevisionMode selects how aggressively the AI revision handler rewrites a
// note's content.
type RevisionMode string

const (
	RevisionModeNone  RevisionMode = "none"
	RevisionModeLight RevisionMode = "light"
	RevisionModeFull  RevisionMode = "full"
)

type aiRevisionPayload struct {
	RevisionMode RevisionMode `json:"revision_mode"`
}

const lightRevisionSystemPrompt = "Reformat the note for clarity only. Do not invent facts, add information, or change its meaning."
const fullRevisionSystemPrompt = "Revise the note for clarity and completeness, drawing on the related notes provided for context. Do not contradict the original content."

// AIRevisionHandler implements domain.JobTypeAIRevision.
type AIRevisionHandler struct {
	Store            *store.Manager
	Backend          inference.Backend
	RelatedThreshold float64
}

func NewAIRevisionHandler(m *store.Manager, backend inference.Backend, relatedThreshold float64) *AIRevisionHandler {
	return &AIRevisionHandler{Store: m, Backend: backend, RelatedThreshold: relatedThreshold}
}

func (h *AIRevisionHandler) JobType() domain.JobType { return domain.JobTypeAIRevision }

func (h *AIRevisionHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	if job.NoteID == nil {
		return Fail(fmt.Errorf("ai_revision job missing note_id"))
	}
	var payload aiRevisionPayload
	_ = json.Unmarshal(job.Payload, &payload)
	if payload.RevisionMode == "" {
		payload.RevisionMode = RevisionModeFull
	}
	if payload.RevisionMode == RevisionModeNone {
		return Ok(map[string]string{"skipped": "revision_mode=none"})
	}

	note, err := h.Store.Notes.Get(ctx, *job.NoteID)
	if err != nil {
		return Fail(fmt.Errorf("load note: %w", err))
	}
	_ = progress(ctx, 20, "loaded note")

	var related []domain.SearchHit
	if payload.RevisionMode == RevisionModeFull {
		related, err = findRelated(ctx, h.Store, note.ID, milleCap, h.RelatedThreshold)
		if err != nil {
			return Fail(fmt.Errorf("find related notes: %w", err))
		}
	}
	_ = progress(ctx, 50, "generating")

	system := lightRevisionSystemPrompt
	snippets := snippetsOf(related, 5)
	if payload.RevisionMode == RevisionModeFull {
		system = fullRevisionSystemPrompt
	}
	prompt := buildRevisionPrompt(note.IndexContent(), snippets)

	raw, err := h.Backend.GenerateWithSystem(ctx, system, prompt)
	if err != nil {
		return Fail(fmt.Errorf("generate revision: %w", err))
	}
	cleaned := cleanRevision(raw, prompt)

	if err := h.Store.Notes.UpdateRevised(ctx, note.ID, cleaned); err != nil {
		return Fail(fmt.Errorf("save revision: %w", err))
	}
	_ = progress(ctx, 90, "recording provenance")

	h.recordProvenance(ctx, note.ID, related)
	_ = progress(ctx, 100, "done")

	return Ok(map[string]any{
		"revised_length":     len(cleaned),
		"revision_mode":      payload.RevisionMode,
		"related_notes_used": len(related),
	})
}

func buildRevisionPrompt(content string, related []string) string {
	var b strings.Builder
	b.WriteString(content)
	if len(related) > 0 {
		b.WriteString("\n\nRelated notes:\n")
		for _, s := range related {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// cleanRevision strips any leaked fragment of the prompt the model echoed
// back verbatim, then trims whitespace.
func cleanRevision(raw, prompt string) string {
	cleaned := strings.ReplaceAll(raw, prompt, "")
	return strings.TrimSpace(cleaned)
}

// recordProvenance logs a "used" edge from the revision to each related
// note that contributed to it. This is a non-fatal sub-step per spec.md
// §4.4: logged on error, never fails the job.
func (h *AIRevisionHandler) recordProvenance(ctx context.Context, noteID uuid.UUID, related []domain.SearchHit) {
	for _, r := range related {
		toID := r.NoteID
		if _, err := h.Store.Links.Create(ctx, &domain.Link{
			FromNoteID: noteID,
			ToNoteID:   &toID,
			Kind:       domain.LinkKindManual,
			Score:      r.Score,
			Metadata:   map[string]string{"provenance": "used"},
		}); err != nil {
			log.Warn().Err(err).Str("note_id", noteID.String()).Msg("ai_revision_provenance_edge_failed")
		}
	}
}
