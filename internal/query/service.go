// Package query is the narrow contract callers use to run impact queries:
// list systems, the full graph, the affected set and the downstream
// subgraph of a failed system.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/efebarandurmaz/impactgraph/internal/impact"
	"github.com/efebarandurmaz/impactgraph/internal/observability"
)

// Operation names used in spans, metrics and logs.
const (
	OpSystems    = "systems"
	OpFull       = "full"
	OpAffected   = "affected"
	OpDownstream = "downstream"
)

// SystemsResult is the response of ListSystems.
type SystemsResult struct {
	Systems []string `json:"systems"`
}

// AffectedResult is the response of Affected.
type AffectedResult struct {
	Affected []string `json:"affected"`
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	// Backend labels metrics and spans (e.g. "neo4j").
	Backend string
	// DefaultDepth is used when a caller passes depth 0.
	DefaultDepth int
	// MaxDepth is the largest depth a caller may request.
	MaxDepth int
	// Timeout bounds snapshot load plus traversal. Zero disables it.
	Timeout time.Duration
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Service runs impact queries against snapshots loaded from a graph.Source.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	source       graph.Source
	backend      string
	defaultDepth int
	maxDepth     int
	timeout      time.Duration
	metrics      *observability.Metrics
	log          *slog.Logger
}

// NewService creates a Service over source.
func NewService(source graph.Source, opts Options) *Service {
	s := &Service{
		source:       source,
		backend:      opts.Backend,
		defaultDepth: opts.DefaultDepth,
		maxDepth:     opts.MaxDepth,
		timeout:      opts.Timeout,
		metrics:      opts.Metrics,
		log:          opts.Logger,
	}
	if s.backend == "" {
		s.backend = "unknown"
	}
	if s.defaultDepth <= 0 {
		s.defaultDepth = impact.DefaultMaxDepth
	}
	if s.maxDepth < s.defaultDepth {
		s.maxDepth = s.defaultDepth
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// ListSystems returns every system id, sorted ascending.
func (s *Service) ListSystems(ctx context.Context) (*SystemsResult, error) {
	var res *SystemsResult
	err := s.run(ctx, OpSystems, "", 0, func(store graph.Store) (int, int) {
		res = &SystemsResult{Systems: store.AllSystemIdentifiers()}
		return len(res.Systems), 0
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FullGraph returns every edge once per (from, to) pair and its endpoints.
func (s *Service) FullGraph(ctx context.Context) (*graph.Graph, error) {
	var res *graph.Graph
	err := s.run(ctx, OpFull, "", 0, func(store graph.Store) (int, int) {
		res = impact.FullGraph(store)
		return len(res.Nodes), len(res.Edges)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Affected returns the systems reachable from startID within maxDepth hops.
// maxDepth 0 selects the default depth. An unknown startID yields an empty
// result, not an error.
func (s *Service) Affected(ctx context.Context, startID string, maxDepth int) (*AffectedResult, error) {
	depth, err := s.validate(startID, maxDepth)
	if err != nil {
		s.reject(OpAffected, err)
		return nil, err
	}

	var res *AffectedResult
	err = s.run(ctx, OpAffected, startID, depth, func(store graph.Store) (int, int) {
		res = &AffectedResult{Affected: impact.ReachableSet(store, startID, depth)}
		return len(res.Affected), 0
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Downstream returns the subgraph visited from startID within maxDepth hops.
// startID is always one of the returned nodes.
func (s *Service) Downstream(ctx context.Context, startID string, maxDepth int) (*graph.Graph, error) {
	depth, err := s.validate(startID, maxDepth)
	if err != nil {
		s.reject(OpDownstream, err)
		return nil, err
	}

	var res *graph.Graph
	err = s.run(ctx, OpDownstream, startID, depth, func(store graph.Store) (int, int) {
		res = impact.ReachableSubgraph(store, startID, depth)
		return len(res.Nodes), len(res.Edges)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ping reports whether the data source is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.source.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDataSourceUnavailable, err)
	}
	return nil
}

func (s *Service) validate(startID string, maxDepth int) (int, error) {
	if strings.TrimSpace(startID) == "" {
		return 0, fmt.Errorf("%w: system id is required", ErrInvalidArgument)
	}
	switch {
	case maxDepth < 0:
		return 0, fmt.Errorf("%w: depth must not be negative, got %d", ErrInvalidArgument, maxDepth)
	case maxDepth == 0:
		return s.defaultDepth, nil
	case maxDepth > s.maxDepth:
		return 0, fmt.Errorf("%w: depth %d exceeds limit %d", ErrInvalidArgument, maxDepth, s.maxDepth)
	}
	return maxDepth, nil
}

func (s *Service) reject(op string, err error) {
	s.log.Debug("query rejected", "operation", op, "error", err)
	if s.metrics != nil {
		s.metrics.RecordQuery(op, observability.OutcomeInvalid, 0, 0)
	}
}

// run loads a snapshot and hands it to traverse, which returns the number
// of systems and edges in its result. Traversal cannot fail, so every
// error comes from the source.
func (s *Service) run(ctx context.Context, op, startID string, depth int, traverse func(graph.Store) (int, int)) error {
	began := time.Now()
	ctx, span := observability.StartQuerySpan(ctx, op, startID, depth)
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	store, err := s.load(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDataSourceUnavailable, err)
		observability.RecordError(span, err)
		s.log.Warn("graph data source failed", "operation", op, "backend", s.backend, "error", err)
		if s.metrics != nil {
			s.metrics.RecordQuery(op, observability.OutcomeUnavailable, time.Since(began), 0)
		}
		return err
	}

	size, edges := traverse(store)
	observability.RecordQueryResult(span, size, edges)
	s.log.Debug("query complete", "operation", op, "start_id", startID, "depth", depth,
		"size", size, "duration", time.Since(began))
	if s.metrics != nil {
		s.metrics.RecordQuery(op, observability.OutcomeOK, time.Since(began), size)
	}
	return nil
}

func (s *Service) load(ctx context.Context) (*graph.MemoryStore, error) {
	began := time.Now()
	ctx, span := observability.StartLoadSpan(ctx, s.backend)
	defer span.End()

	store, err := s.source.Load(ctx)
	systems := 0
	if err == nil {
		systems, _ = store.Len()
	}
	if s.metrics != nil {
		s.metrics.RecordLoad(s.backend, time.Since(began), systems, err)
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return store, nil
}
