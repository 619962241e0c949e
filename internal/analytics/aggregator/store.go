// Package aggregator keeps a history of analytics snapshots in PostgreSQL.
// The in-memory aggregator is captured on an interval and on shutdown; the
// history is served at GET /api/v1/analytics/snapshots.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/analytics"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

// DefaultRetention is how many snapshots are kept.
const DefaultRetention = 2000

// Schema is applied by NewStore. The headline counters are copied out of the
// JSON payload so history can be charted without decoding it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id                 BIGSERIAL PRIMARY KEY,
		captured_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		total_searches     BIGINT NOT NULL DEFAULT 0,
		documents_ingested BIGINT NOT NULL DEFAULT 0,
		data               JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_idx ON analytics_snapshots (captured_at DESC)`,
}

// Source yields the stats to capture.
type Source interface {
	Stats() analytics.AggregatedStats
}

type Store struct {
	db        *postgres.Client
	retention int
	log       *slog.Logger

	// last activity counters saved; unchanged stats are not saved again.
	lastSearches, lastIngested int64
}

func NewStore(ctx context.Context, db *postgres.Client) (*Store, error) {
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, fmt.Errorf("migrating analytics_snapshots: %w", err)
	}
	return &Store{
		db:           db,
		retention:    DefaultRetention,
		log:          slog.Default().With("component", "analytics-snapshots"),
		lastSearches: -1,
	}, nil
}

// Save writes one snapshot and trims rows beyond the retention limit in the
// same transaction.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analytics_snapshots (captured_at, total_searches, documents_ingested, data)
			 VALUES ($1, $2, $3, $4)`,
			time.Now().UTC(), stats.TotalSearches, stats.Ingestion.DocumentsIngested, payload,
		); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analytics_snapshots WHERE id NOT IN (
				SELECT id FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1)`,
			s.retention,
		); err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		return nil
	})
}

// ListSnapshots returns up to limit snapshots, newest first. Rows whose
// payload no longer decodes are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]analytics.AggregatedStats, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("reading snapshot: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			s.log.Warn("skipping undecodable snapshot", "error", err)
			continue
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

// capture saves src's stats unless nothing happened since the last save.
func (s *Store) capture(ctx context.Context, src Source) {
	stats := src.Stats()
	if stats.TotalSearches == s.lastSearches && stats.Ingestion.DocumentsIngested == s.lastIngested {
		return
	}
	if err := s.Save(ctx, stats); err != nil {
		s.log.Error("snapshot not saved", "error", err)
		return
	}
	s.lastSearches, s.lastIngested = stats.TotalSearches, stats.Ingestion.DocumentsIngested
	s.log.Debug("snapshot saved", "total_searches", stats.TotalSearches, "documents_ingested", stats.Ingestion.DocumentsIngested)
}

// StartPeriodicSave captures src every interval until ctx ends, then once
// more with a short grace period.
func (s *Store) StartPeriodicSave(ctx context.Context, src Source, interval time.Duration) {
	s.log.Info("snapshotting analytics", "every", interval, "retention", s.retention)
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.capture(ctx, src)
			case <-ctx.Done():
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				s.capture(final, src)
				cancel()
				return
			}
		}
	}()
}
