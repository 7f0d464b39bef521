package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"noteforge/internal/domain"
	"noteforge/internal/inference"
	"noteforge/internal/store"
)

// conceptDecay sets how quickly relevance falls off across the ordered
// label list the model returns: label i gets relevance 1.0 - i*conceptDecay.
const conceptDecay = 0.15

// contentPreviewLen bounds how much of a note's content is sent to the
// model for concept extraction.
const contentPreviewLen = 2000

// ConceptTaggingHandler implements domain.JobTypeConceptTagging: asks the
// model for 3-7 concept labels and tags the note with decaying relevance.
type ConceptTaggingHandler struct {
	Store   *store.Manager
	Backend inference.Backend
}

func NewConceptTaggingHandler(m *store.Manager, backend inference.Backend) *ConceptTaggingHandler {
	return &ConceptTaggingHandler{Store: m, Backend: backend}
}

func (h *ConceptTaggingHandler) JobType() domain.JobType { return domain.JobTypeConceptTagging }

func (h *ConceptTaggingHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	if job.NoteID == nil {
		return Fail(fmt.Errorf("concept_tagging job missing note_id"))
	}
	note, err := h.Store.Notes.Get(ctx, *job.NoteID)
	if err != nil {
		return Fail(fmt.Errorf("load note: %w", err))
	}
	_ = progress(ctx, 20, "generating labels")

	labels, suggested, err := h.extractLabels(ctx, note)
	if err != nil {
		return Fail(fmt.Errorf("extract concept labels: %w", err))
	}
	_ = progress(ctx, 50, "tagging")

	schemeID, err := h.Store.Concepts.DefaultScheme(ctx)
	if err != nil {
		return Fail(fmt.Errorf("resolve default concept scheme: %w", err))
	}

	for i, label := range labels {
		concept, err := h.Store.Concepts.FindOrCreateByLabel(ctx, schemeID, label, "en")
		if err != nil {
			return Fail(fmt.Errorf("find or create concept %q: %w", label, err))
		}
		relevance := 1.0 - float64(i)*conceptDecay
		if relevance < 0 {
			relevance = 0
		}
		tag := &domain.NoteTag{
			NoteID:    note.ID,
			ConceptID: concept.ID,
			Source:    domain.NoteTagSourceAI,
			Relevance: relevance,
			IsPrimary: i == 0,
		}
		if err := h.Store.Concepts.TagNote(ctx, tag); err != nil {
			return Fail(fmt.Errorf("tag note with %q: %w", label, err))
		}
	}
	_ = progress(ctx, 100, "done")

	return Ok(map[string]any{
		"concepts_tagged":    len(labels),
		"concepts_suggested": suggested,
		"labels":             labels,
	})
}

// extractLabels returns the labels to tag with (capped at 7) alongside how
// many the model suggested before the cap.
func (h *ConceptTaggingHandler) extractLabels(ctx context.Context, note *domain.Note) ([]string, int, error) {
	content := note.IndexContent()
	if runes := []rune(content); len(runes) > contentPreviewLen {
		content = string(runes[:contentPreviewLen])
	}
	prompt := fmt.Sprintf(
		"Return a JSON array of 3 to 7 short concept labels (single words or short phrases) that best describe the topics of this note, ordered from most to least central.\n\nNote:\n%s",
		content,
	)
	raw, err := h.Backend.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, 0, err
	}
	var labels []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &labels); err != nil {
		return nil, 0, fmt.Errorf("parse concept labels: %w", err)
	}
	suggested := len(labels)
	if len(labels) > 7 {
		labels = labels[:7]
	}
	return labels, suggested, nil
}
