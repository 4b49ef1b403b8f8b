package graph

import (
	"context"
)

// Source loads graph snapshots from a backing data source.
type Source interface {
	// Load reads all systems and AFFECTS edges into a fresh snapshot. Any
	// handle acquired for the read is released before Load returns.
	Load(ctx context.Context) (*MemoryStore, error)
	// Ping checks that the data source is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close(ctx context.Context) error
}
