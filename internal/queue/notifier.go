// Package queue wraps the durable job store (C3/store.JobStore) with an
// event-wake channel so worker pools (C8) don't have to busy-poll Postgres,
// plus an optional Kafka publisher for job-lifecycle events consumed
// outside the daemon.
package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"noteforge/internal/config"
	"noteforge/internal/domain"
)

// WakeEvent is published whenever a job is queued, keyed by the tier group
// it belongs to so each worker pool only wakes for work it can claim.
type WakeEvent struct {
	Tier domain.TierGroup `json:"tier"`
}

// Notifier decouples the queue from a concrete pub/sub backend; NopNotifier
// makes Redis optional without special-casing callers.
type Notifier interface {
	Publish(ctx context.Context, ev WakeEvent) error
	Subscribe(ctx context.Context, tier domain.TierGroup) (<-chan WakeEvent, func())
}

// NopNotifier discards publishes and returns a channel that never fires;
// workers fall back to their poll-interval ticker.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, WakeEvent) error { return nil }
func (NopNotifier) Subscribe(context.Context, domain.TierGroup) (<-chan WakeEvent, func()) {
	return make(chan WakeEvent), func() {}
}

// RedisNotifier is a Redis pub/sub-backed Notifier, one channel per tier
// group, grounded on the teacher's RedisGenerationCache invalidation
// channel pattern.
type RedisNotifier struct {
	client redis.UniversalClient
}

// NewRedisNotifier builds a RedisNotifier, or returns (nil, nil) when cfg
// disables Redis so callers can fall back to NopNotifier.
func NewRedisNotifier(cfg config.RedisConfig) (*RedisNotifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if cfg.TLSInsecureSkipVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisNotifier{client: client}, nil
}

func (n *RedisNotifier) channel(tier domain.TierGroup) string {
	return "noteforge:jobs:" + string(tier)
}

func (n *RedisNotifier) Publish(ctx context.Context, ev WakeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel(ev.Tier), data).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, tier domain.TierGroup) (<-chan WakeEvent, func()) {
	ch := make(chan WakeEvent, 1)
	sub := n.client.Subscribe(ctx, n.channel(tier))
	go func() {
		for msg := range sub.Channel() {
			var ev WakeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("queue_wake_decode_failed")
				continue
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}()
	cancel := func() {
		_ = sub.Close()
		close(ch)
	}
	return ch, cancel
}
