package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/store"
)

type purgeNotePayload struct {
	AffectedEmbeddingSets []uuid.UUID `json:"affected_embedding_sets,omitempty"`
}

// PurgeNoteHandler implements domain.JobTypePurgeNote: cascade hard-delete a
// note, then refresh stats for every embedding set it belonged to.
type PurgeNoteHandler struct {
	Store *store.Manager
}

func NewPurgeNoteHandler(m *store.Manager) *PurgeNoteHandler {
	return &PurgeNoteHandler{Store: m}
}

func (h *PurgeNoteHandler) JobType() domain.JobType { return domain.JobTypePurgeNote }

func (h *PurgeNoteHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	if job.NoteID == nil {
		return Fail(fmt.Errorf("purge_note job missing note_id"))
	}
	noteID := *job.NoteID
	if _, err := h.Store.Notes.Get(ctx, noteID); err != nil {
		return Fail(fmt.Errorf("verify note exists: %w", err))
	}
	_ = progress(ctx, 20, "verified note")

	var payload purgeNotePayload
	_ = json.Unmarshal(job.Payload, &payload)
	affected, err := h.affectedSets(ctx, noteID, payload)
	if err != nil {
		return Fail(fmt.Errorf("collect affected embedding sets: %w", err))
	}
	_ = progress(ctx, 40, "collected affected sets")

	if err := h.Store.Notes.HardDelete(ctx, noteID); err != nil {
		return Fail(fmt.Errorf("hard delete note: %w", err))
	}
	_ = progress(ctx, 70, "deleted")

	for _, setID := range affected {
		if err := h.Store.EmbeddingSets.RefreshStats(ctx, setID); err != nil {
			return Fail(fmt.Errorf("refresh stats for set %s: %w", setID, err))
		}
	}
	_ = progress(ctx, 100, "stats refreshed")

	return Ok(map[string]any{
		"deleted_note_id":         noteID,
		"affected_embedding_sets": len(affected),
		"stats_updated":           true,
	})
}

func (h *PurgeNoteHandler) affectedSets(ctx context.Context, noteID uuid.UUID, payload purgeNotePayload) ([]uuid.UUID, error) {
	if len(payload.AffectedEmbeddingSets) > 0 {
		return payload.AffectedEmbeddingSets, nil
	}
	sets, err := h.Store.EmbeddingSets.List(ctx)
	if err != nil {
		return nil, err
	}
	var affected []uuid.UUID
	for _, s := range sets {
		isMember, err := h.Store.EmbeddingSets.IsMember(ctx, s.ID, noteID)
		if err != nil {
			return nil, err
		}
		if isMember {
			affected = append(affected, s.ID)
		}
	}
	return affected, nil
}
