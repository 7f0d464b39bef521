package embedset

import (
	"context"
	"fmt"
	"time"

	chgo "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"noteforge/internal/config"
)

// StatsSink records embedding-set health trend samples and GC run summaries
// somewhere with longer retention than Postgres is asked to serve. Health and
// GarbageCollect call it best-effort: a sink failure is logged and otherwise
// ignored, never propagated as a handler/engine error.
type StatsSink interface {
	RecordHealth(ctx context.Context, setID uuid.UUID, slug string, score float64, stale, orphaned, missing int) error
	RecordGC(ctx context.Context, setID uuid.UUID, slug string, result GCResult) error
	Close() error
}

// NopSink is used when analytics are disabled.
type NopSink struct{}

func (NopSink) RecordHealth(context.Context, uuid.UUID, string, float64, int, int, int) error {
	return nil
}
func (NopSink) RecordGC(context.Context, uuid.UUID, string, GCResult) error { return nil }
func (NopSink) Close() error                                                { return nil }

// ClickHouseSink mirrors the teacher's ensureClickHouseTables pattern: open
// once at startup, create the tables if missing, then insert one row per
// sample. Schema is purpose-built for embedding-set trend queries rather
// than the teacher's OTel metrics/traces/logs schema.
type ClickHouseSink struct {
	conn    chgo.Conn
	db      string
	healthT string
	gcT     string
}

// NewClickHouseSink returns NopSink{} when cfg.Enabled is false or cfg.DSN
// is empty, matching the teacher's "absent DSN disables the feature" rule.
func NewClickHouseSink(ctx context.Context, cfg config.AnalyticsConfig) (StatsSink, error) {
	if !cfg.Enabled || cfg.DSN == "" {
		return NopSink{}, nil
	}

	opts, err := chgo.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if opts.Auth.Database == "" {
		opts.Auth.Database = "noteforge"
	}

	conn, err := chgo.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db := opts.Auth.Database
	if err := conn.Exec(ctxTimeout, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create database %s: %w", db, err)
	}

	sink := &ClickHouseSink{conn: conn, db: db, healthT: "embedding_set_health", gcT: "embedding_set_gc_runs"}
	if err := sink.ensureTables(ctxTimeout); err != nil {
		conn.Close()
		return nil, err
	}
	return sink, nil
}

func (s *ClickHouseSink) ensureTables(ctx context.Context) error {
	healthSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
	RecordedAt DateTime64(3),
	SetID String,
	Slug LowCardinality(String),
	Score Float64,
	StaleCount UInt32,
	OrphanedCount UInt32,
	MissingCount UInt32
) ENGINE = MergeTree()
ORDER BY (Slug, RecordedAt)
TTL RecordedAt + INTERVAL 90 DAY
`, s.db, s.healthT)
	if err := s.conn.Exec(ctx, healthSQL); err != nil {
		return fmt.Errorf("create %s table: %w", s.healthT, err)
	}

	gcSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
	RecordedAt DateTime64(3),
	SetID String,
	Slug LowCardinality(String),
	OrphanedMembershipsRemoved UInt32,
	OrphanedEmbeddingsRemoved UInt32
) ENGINE = MergeTree()
ORDER BY (Slug, RecordedAt)
TTL RecordedAt + INTERVAL 90 DAY
`, s.db, s.gcT)
	if err := s.conn.Exec(ctx, gcSQL); err != nil {
		return fmt.Errorf("create %s table: %w", s.gcT, err)
	}
	log.Info().Str("database", s.db).Msg("clickhouse_analytics_tables_ready")
	return nil
}

func (s *ClickHouseSink) RecordHealth(ctx context.Context, setID uuid.UUID, slug string, score float64, stale, orphaned, missing int) error {
	return s.conn.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s.%s (RecordedAt, SetID, Slug, Score, StaleCount, OrphanedCount, MissingCount) VALUES (?, ?, ?, ?, ?, ?, ?)", s.db, s.healthT),
		time.Now().UTC(), setID.String(), slug, score, uint32(stale), uint32(orphaned), uint32(missing))
}

func (s *ClickHouseSink) RecordGC(ctx context.Context, setID uuid.UUID, slug string, result GCResult) error {
	return s.conn.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s.%s (RecordedAt, SetID, Slug, OrphanedMembershipsRemoved, OrphanedEmbeddingsRemoved) VALUES (?, ?, ?, ?, ?)", s.db, s.gcT),
		time.Now().UTC(), setID.String(), slug, uint32(result.OrphanedMembershipsRemoved), uint32(result.OrphanedEmbeddingsRemoved))
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
