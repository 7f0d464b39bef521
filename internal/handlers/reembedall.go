package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"noteforge/internal/domain"
	"noteforge/internal/queue"
	"noteforge/internal/store"
)

type reEmbedAllPayload struct {
	EmbeddingSet string `json:"embedding_set,omitempty"` // slug
}

// progressBatchSize is how often the bulk re-embed handler reports
// progress: every N notes enqueued, plus once more at completion.
const progressBatchSize = 10

// ReEmbedAllHandler implements domain.JobTypeReEmbedAll: enqueues one
// embedding job per note, either across an embedding set's membership or
// every active note.
type ReEmbedAllHandler struct {
	Store *store.Manager
	Queue *queue.Queue
}

func NewReEmbedAllHandler(m *store.Manager, q *queue.Queue) *ReEmbedAllHandler {
	return &ReEmbedAllHandler{Store: m, Queue: q}
}

func (h *ReEmbedAllHandler) JobType() domain.JobType { return domain.JobTypeReEmbedAll }

func (h *ReEmbedAllHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	var payload reEmbedAllPayload
	_ = json.Unmarshal(job.Payload, &payload)

	noteIDs, err := h.resolveNoteIDs(ctx, payload)
	if err != nil {
		return Fail(fmt.Errorf("resolve notes: %w", err))
	}

	queued, failed := 0, 0
	for i, id := range noteIDs {
		noteID := id
		if _, err := h.Queue.Enqueue(ctx, &noteID, domain.JobTypeEmbedding, 0, nil, nil); err != nil {
			failed++
		} else {
			queued++
		}
		if (i+1)%progressBatchSize == 0 || i == len(noteIDs)-1 {
			pct := ((i + 1) * 100) / len(noteIDs)
			_ = progress(ctx, pct, fmt.Sprintf("enqueued %d/%d", i+1, len(noteIDs)))
		}
	}

	return Ok(map[string]any{
		"notes_queued":  queued,
		"notes_failed":  failed,
		"total_notes":   len(noteIDs),
		"embedding_set": payload.EmbeddingSet,
	})
}

func (h *ReEmbedAllHandler) resolveNoteIDs(ctx context.Context, payload reEmbedAllPayload) ([]uuid.UUID, error) {
	if payload.EmbeddingSet != "" {
		set, err := h.Store.EmbeddingSets.GetBySlug(ctx, payload.EmbeddingSet)
		if err != nil {
			return nil, err
		}
		members, err := h.Store.EmbeddingSets.Members(ctx, set.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, len(members))
		for i, m := range members {
			ids[i] = m.NoteID
		}
		return ids, nil
	}
	notes, err := h.Store.Notes.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids, nil
}
