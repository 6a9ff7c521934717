// Package snapshot periodically persists the searcher's aggregated search
// statistics to PostgreSQL, so they survive restarts.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_stats_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    instance    TEXT NOT NULL,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_search_stats_instance_time
    ON search_stats_snapshots (instance, captured_at DESC);
`

type Store struct {
	db       *postgres.Client
	instance string
	logger   *slog.Logger
}

// NewStore creates a store that tags every snapshot with instance, so
// several searchers can share one table.
func NewStore(db *postgres.Client, instance string) *Store {
	return &Store{
		db:       db,
		instance: instance,
		logger:   slog.Default().With("component", "stats-snapshot", "instance", instance),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, "search_stats_snapshots", schema)
}

func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO search_stats_snapshots (instance, data, captured_at) VALUES ($1, $2, $3)`,
		s.instance, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving stats snapshot: %w", err)
	}
	s.logger.Debug("stats snapshot saved", "total_searches", stats.TotalSearches)
	return nil
}

// Latest returns this instance's most recent snapshot, or nil if none
// has been saved.
func (s *Store) Latest(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM search_stats_snapshots WHERE instance = $1 ORDER BY captured_at DESC LIMIT 1`,
		s.instance,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots agg every interval until ctx is cancelled,
// then takes one final snapshot.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Save(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.Save(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
