package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the Postgres cache backend for deployments that already
// run a database pool. Semantics match SQLiteStore.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// PostgresConfig holds configuration for the Postgres cache store.
type PostgresConfig struct {
	Pool *pgxpool.Pool
	TTL  time.Duration
	Now  func() time.Time
}

// NewPostgresStore prepares the cache table on the given pool.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS response_cache (
			query_date  TEXT NOT NULL,
			target_date TEXT NOT NULL,
			tz          TEXT NOT NULL,
			country     TEXT NOT NULL,
			model       TEXT NOT NULL,
			places_sig  TEXT NOT NULL,
			payload     BYTEA NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (query_date, target_date, tz, country, model, places_sig)
		)`
	if _, err := cfg.Pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &PostgresStore{pool: cfg.Pool, ttl: ttl, now: now}, nil
}

// Get implements Repository.
func (s *PostgresStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var payload []byte
	var created time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT payload, created_at
		 FROM response_cache
		 WHERE query_date=$1 AND target_date=$2 AND tz=$3 AND country=$4 AND model=$5 AND places_sig=$6`,
		key.QueryDate, key.TargetDate, key.Timezone, key.Country, key.Model, key.PlacesSig,
	).Scan(&payload, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if s.now().UTC().Sub(created.UTC()) > s.ttl {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put implements Repository.
func (s *PostgresStore) Put(ctx context.Context, key Key, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO response_cache
		   (query_date, target_date, tz, country, model, places_sig, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (query_date, target_date, tz, country, model, places_sig)
		 DO UPDATE SET payload = $7, created_at = $8`,
		key.QueryDate, key.TargetDate, key.Timezone, key.Country, key.Model, key.PlacesSig,
		payload, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Prune implements Repository.
func (s *PostgresStore) Prune(ctx context.Context, retention time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM response_cache WHERE created_at < $1`,
		s.now().UTC().Add(-retention),
	)
	if err != nil {
		return fmt.Errorf("cache prune: %w", err)
	}
	return nil
}

// Close implements Repository. The pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
