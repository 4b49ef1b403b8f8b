package neo4j

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	systemsQuery = `MATCH (s:System) RETURN DISTINCT s.systemId AS systemId`
	edgesQuery   = `MATCH (a:System)-[r:AFFECTS]->(b:System)
RETURN a.systemId AS from, b.systemId AS to, r.protocol AS protocol, r.protocal AS protocal`
)

// Neo4jRepository implements graph.Source using Neo4j.
type Neo4jRepository struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j creates a Neo4j-backed source and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver, database: database}, nil
}

// Load reads every System and AFFECTS edge in one read transaction. The
// session is closed on every return path.
func (r *Neo4jRepository) Load(ctx context.Context) (*graph.MemoryStore, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		systems, err := collectSystems(ctx, tx)
		if err != nil {
			return nil, err
		}
		edges, err := collectEdges(ctx, tx)
		if err != nil {
			return nil, err
		}
		return graph.NewMemoryStore(systems, edges), nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j load: %w", err)
	}
	return result.(*graph.MemoryStore), nil
}

func collectSystems(ctx context.Context, tx neo4j.ManagedTransaction) ([]string, error) {
	records, err := tx.Run(ctx, systemsQuery, nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	for records.Next(ctx) {
		if id, ok := stringValue(records.Record().AsMap()["systemId"]); ok {
			ids = append(ids, id)
		}
	}
	return ids, records.Err()
}

func collectEdges(ctx context.Context, tx neo4j.ManagedTransaction) ([]graph.Edge, error) {
	records, err := tx.Run(ctx, edgesQuery, nil)
	if err != nil {
		return nil, err
	}
	var edges []graph.Edge
	for records.Next(ctx) {
		if e, ok := edgeFromRow(records.Record().AsMap()); ok {
			edges = append(edges, e)
		}
	}
	return edges, records.Err()
}

// edgeFromRow converts one edges-query row. Rows whose endpoints lack a
// systemId are dropped.
func edgeFromRow(row map[string]any) (graph.Edge, bool) {
	from, ok := stringValue(row["from"])
	if !ok {
		return graph.Edge{}, false
	}
	to, ok := stringValue(row["to"])
	if !ok {
		return graph.Edge{}, false
	}
	return graph.Edge{
		From:     from,
		To:       to,
		Protocol: graph.NormalizeProtocol(row["protocol"], row["protocal"]),
	}, true
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

// Ping verifies the driver can reach the server.
func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Source = (*Neo4jRepository)(nil)
