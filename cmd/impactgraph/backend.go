package main

import (
	"context"
	"fmt"
	"time"

	"github.com/efebarandurmaz/impactgraph/internal/config"
	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/efebarandurmaz/impactgraph/internal/graph/file"
	"github.com/efebarandurmaz/impactgraph/internal/graph/neo4j"
	"github.com/efebarandurmaz/impactgraph/internal/graph/sqlstore"
)

// backend is an opened graph source plus the handles serve needs to keep
// it fresh.
type backend struct {
	name   string
	source graph.Source
	cache  *graph.CachingSource
	// file is set for the file backend only.
	file *file.Source
}

// openBackend connects to the configured graph store and wraps it in a
// snapshot cache. A ttl of zero makes every query load a fresh snapshot.
func openBackend(ctx context.Context, cfg config.GraphConfig, ttl time.Duration) (*backend, error) {
	var (
		inner graph.Source
		fsrc  *file.Source
		err   error
	)

	switch cfg.Backend {
	case config.BackendNeo4j:
		inner, err = neo4j.NewNeo4j(ctx, cfg.URI, cfg.Username, cfg.Password, cfg.Database)
	case config.BackendPostgres:
		inner, err = sqlstore.Open(ctx, sqlstore.DriverPostgres, cfg.DSN)
	case config.BackendSQLite:
		inner, err = sqlstore.Open(ctx, sqlstore.DriverSQLite, cfg.DSN)
	case config.BackendFile:
		fsrc = file.New(cfg.Path)
		if err = fsrc.Ping(ctx); err == nil {
			inner = fsrc
		}
	default:
		return nil, fmt.Errorf("unknown graph backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	cache := graph.NewCachingSource(inner, ttl)
	return &backend{name: cfg.Backend, source: cache, cache: cache, file: fsrc}, nil
}

// Close releases the underlying source.
func (b *backend) Close(ctx context.Context) error {
	return b.source.Close(ctx)
}
