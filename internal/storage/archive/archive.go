// Package archive stores run artifacts (serialized trade records) on a
// local filesystem or an S3-compatible backend.
package archive

import (
	"context"
	"fmt"
	"time"
)

// Store is the interface for artifact storage backends.
type Store interface {
	// Put stores data at the given key.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves data from the given key.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys matching the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if data exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// RunKey builds the canonical artifact key for one run.
func RunKey(startedAt time.Time, runID string) string {
	return fmt.Sprintf("runs/%s/%s.json", startedAt.UTC().Format("2006/01/02"), runID)
}
