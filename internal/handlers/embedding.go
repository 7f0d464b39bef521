package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"noteforge/internal/chunk"
	"noteforge/internal/domain"
	"noteforge/internal/inference"
	"noteforge/internal/store"
)

// embeddingPayload is an optional hint attached to an embedding job. Without
// a document-type registry in the repository layer (C3), code detection is
// an explicit producer-supplied hint rather than a lookup against
// note.DocumentTypeID — spec.md §4.4's priority (a) collapses into this.
type embeddingPayload struct {
	Language string `json:"language,omitempty"`
}

// EmbeddingHandler implements domain.JobTypeEmbedding: chunk a note's
// content and embed every chunk in one batch.
type EmbeddingHandler struct {
	Store      *store.Manager
	Backend    inference.Backend
	DefaultCfg chunk.Config
	EmbedModel string
}

func NewEmbeddingHandler(m *store.Manager, backend inference.Backend, defaultCfg chunk.Config, embedModel string) *EmbeddingHandler {
	return &EmbeddingHandler{Store: m, Backend: backend, DefaultCfg: defaultCfg, EmbedModel: embedModel}
}

func (h *EmbeddingHandler) JobType() domain.JobType { return domain.JobTypeEmbedding }

func (h *EmbeddingHandler) Execute(ctx context.Context, job *domain.Job, progress Progress) Result {
	if job.NoteID == nil {
		return Fail(fmt.Errorf("embedding job missing note_id"))
	}
	note, err := h.Store.Notes.Get(ctx, *job.NoteID)
	if err != nil {
		return Fail(fmt.Errorf("load note: %w", err))
	}
	_ = progress(ctx, 10, "loaded note")

	var payload embeddingPayload
	_ = json.Unmarshal(job.Payload, &payload)
	cfg := h.resolveChunkConfig(payload)
	chunker, err := chunk.New(cfg)
	if err != nil {
		return Fail(fmt.Errorf("build chunker: %w", err))
	}
	chunks, err := chunker.Chunk(note.IndexContent())
	if err != nil {
		return Fail(fmt.Errorf("chunk note: %w", err))
	}
	_ = progress(ctx, 30, "chunked")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := h.Backend.EmbedTexts(ctx, texts)
	if err != nil {
		return Fail(fmt.Errorf("embed chunks: %w", err))
	}
	_ = progress(ctx, 50, "embedded")

	stored := make([]store.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		stored[i] = store.ChunkEmbedding{Ordinal: c.Ordinal, Text: c.Text, Vector: vectors[i]}
	}
	_ = progress(ctx, 70, "storing")

	if err := h.Store.Embeddings.Store(ctx, note.ID, stored, h.EmbedModel, uuid.Nil); err != nil {
		return Fail(fmt.Errorf("store embeddings: %w", err))
	}
	_ = progress(ctx, 100, "stored")

	return Ok(map[string]int{"chunks": len(chunks)})
}

// resolveChunkConfig implements the priority order spec.md §4.4 describes:
// (a) an explicit code-language hint on the job, (b) the handler's
// configured default, (c) chunk.New's own hardcoded fallback (size 1000, no
// overlap).
func (h *EmbeddingHandler) resolveChunkConfig(payload embeddingPayload) chunk.Config {
	if payload.Language != "" {
		cfg := h.DefaultCfg
		cfg.Kind = chunk.KindSyntactic
		cfg.Language = payload.Language
		return cfg
	}
	if h.DefaultCfg.Kind != "" {
		return h.DefaultCfg
	}
	return chunk.Config{Kind: chunk.KindSemantic}
}
