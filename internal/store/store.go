// Package store provides session-partitioned durable storage.
package store

import (
	"context"
	"time"
)

// Namespaces used by the planning engine. A namespace partitions entries
// within a session; callers may define their own.
const (
	NamespaceState    = "state"
	NamespaceMessages = "messages"
)

// Cache is a session-partitioned key-value store with optional expiry.
// Entries are addressed by (namespace, sessionID) and hold opaque bytes.
type Cache interface {
	// Set stores value under (namespace, sessionID), replacing any
	// previous value. A ttl <= 0 stores the entry without expiry.
	Set(ctx context.Context, namespace, sessionID string, value []byte, ttl time.Duration) error

	// Get returns the stored value, or (nil, nil) when the entry does not
	// exist. An entry past its expiry is deleted and reported absent;
	// absence is never an error.
	Get(ctx context.Context, namespace, sessionID string) ([]byte, error)

	// Delete removes one entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, namespace, sessionID string) error

	// ClearSession removes all entries for a session across namespaces.
	ClearSession(ctx context.Context, sessionID string) error

	// ClearExpired removes every entry past its expiry and returns the
	// number of entries removed.
	ClearExpired(ctx context.Context) (int64, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error
}
