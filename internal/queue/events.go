package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"noteforge/internal/config"
	"noteforge/internal/domain"
)

// LifecycleEvent is emitted on every job state transition for consumers
// that want to react to job completion without polling Postgres (e.g. a
// notification service watching for title_generation completions).
type LifecycleEvent struct {
	JobID     uuid.UUID        `json:"job_id"`
	NoteID    *uuid.UUID       `json:"note_id,omitempty"`
	JobType   domain.JobType   `json:"job_type"`
	Status    domain.JobStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventPublisher publishes LifecycleEvents; it is nil-safe so jobs that
// don't configure Kafka still run identically.
type EventPublisher struct {
	writer *kafka.Writer
}

// NewEventPublisher builds a publisher when cfg enables it.
func NewEventPublisher(cfg config.JobEventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &EventPublisher{writer: writer}, nil
}

func (p *EventPublisher) Publish(ctx context.Context, ev LifecycleEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Value: payload, Time: time.Now()})
}

func (p *EventPublisher) Close() {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("job_events_writer_close_failed")
	}
}
