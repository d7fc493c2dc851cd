package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig holds configuration for the SQLite cache store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// TTL overrides DefaultTTL when non-zero.
	TTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// SQLiteStore is the default durable cache backend. WAL journaling keeps
// readers and writers from blocking each other; synchronous=NORMAL trades
// crash durability for throughput, which the cache tolerates.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the cache database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=10000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure cache db: %w", err)
		}
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS response_cache (
			query_date  TEXT NOT NULL,
			target_date TEXT NOT NULL,
			tz          TEXT NOT NULL,
			country     TEXT NOT NULL,
			model       TEXT NOT NULL,
			places_sig  TEXT NOT NULL,
			payload     BLOB NOT NULL,
			created_at  TEXT NOT NULL,
			PRIMARY KEY (query_date, target_date, tz, country, model, places_sig)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
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

	return &SQLiteStore{db: db, ttl: ttl, now: now}, nil
}

// Get implements Repository.
func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var payload []byte
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at
		 FROM response_cache
		 WHERE query_date=? AND target_date=? AND tz=? AND country=? AND model=? AND places_sig=?`,
		key.QueryDate, key.TargetDate, key.Timezone, key.Country, key.Model, key.PlacesSig,
	).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	created, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		// An uninterpretable timestamp reads as a miss to force refresh.
		return nil, false, nil
	}

	if s.now().UTC().Sub(created) > s.ttl {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put implements Repository.
func (s *SQLiteStore) Put(ctx context.Context, key Key, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO response_cache
		   (query_date, target_date, tz, country, model, places_sig, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.QueryDate, key.TargetDate, key.Timezone, key.Country, key.Model, key.PlacesSig,
		payload, s.now().UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Prune implements Repository.
func (s *SQLiteStore) Prune(ctx context.Context, retention time.Duration) error {
	cutoff := s.now().UTC().Add(-retention).Format(createdAtLayout)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("cache prune: %w", err)
	}
	return nil
}

// Close implements Repository.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Len reports the number of physically stored entries, expired or not.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}
