// Package cache provides the durable response cache: a key→payload store
// with TTL-gated reads, replace-on-write semantics, and age-based retention
// pruning.
package cache

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultTTL is the maximum age at which an entry is still fresh for
	// reads.
	DefaultTTL = time.Hour

	// DefaultRetention is the maximum age before an entry is eligible for
	// deletion regardless of TTL.
	DefaultRetention = 48 * time.Hour
)

// Key is the composite signature identifying one cached payload. Equality
// is exact string equality on every field; two spellings of the same
// timezone are distinct keys.
type Key struct {
	QueryDate  string
	TargetDate string
	Timezone   string
	Country    string
	Model      string
	PlacesSig  string
}

// String renders the key for logging.
func (k Key) String() string {
	return strings.Join([]string{k.QueryDate, k.TargetDate, k.Timezone, k.Country, k.Model, k.PlacesSig}, "|")
}

// Repository is the storage contract for the response cache. Implementations
// must tolerate concurrent readers and writers without external locking.
type Repository interface {
	// Get returns the payload for key. ok is false when no entry exists,
	// its creation time cannot be interpreted, or the entry is older than
	// the TTL. An expired entry is not deleted by Get.
	Get(ctx context.Context, key Key) (payload []byte, ok bool, err error)

	// Put stores payload under key, replacing any existing entry and
	// stamping the creation time with the current UTC time.
	Put(ctx context.Context, key Key, payload []byte) error

	// Prune deletes every entry older than retention, regardless of TTL.
	// Safe to call arbitrarily often and concurrently.
	Prune(ctx context.Context, retention time.Duration) error

	Close() error
}

// createdAtLayout is the stored representation of entry creation times
// (UTC, second precision).
const createdAtLayout = "2006-01-02 15:04:05"
