// Package sqlstore loads the system graph from a relational table pair:
//
//	systems(system_id TEXT PRIMARY KEY)
//	affects(from_id TEXT, to_id TEXT, protocol TEXT NULL, protocal TEXT NULL)
//
// PostgreSQL is reached through pgx's database/sql driver and SQLite through
// modernc.org/sqlite; both read with the same statements.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/efebarandurmaz/impactgraph/internal/graph"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names registered by the imported drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const (
	systemsQuery = `SELECT system_id FROM systems`
	edgesQuery   = `SELECT from_id, to_id, protocol, protocal FROM affects`
)

// Store implements graph.Source over a *sql.DB.
type Store struct {
	db *sql.DB
}

// Open connects with the given driver and DSN and verifies connectivity.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s connectivity: %w", driver, err)
	}
	return &Store{db: db}, nil
}

// Load reads both tables on one dedicated connection inside a single
// transaction, releasing the connection on every return path.
func (s *Store) Load(ctx context.Context) (*graph.MemoryStore, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	systems, err := readSystems(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("read systems: %w", err)
	}
	edges, err := readEdges(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("read affects: %w", err)
	}
	return graph.NewMemoryStore(systems, edges), nil
}

func readSystems(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, systemsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id.Valid && id.String != "" {
			ids = append(ids, id.String)
		}
	}
	return ids, rows.Err()
}

func readEdges(ctx context.Context, tx *sql.Tx) ([]graph.Edge, error) {
	rows, err := tx.QueryContext(ctx, edgesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []graph.Edge
	for rows.Next() {
		var from, to, protocol, alias sql.NullString
		if err := rows.Scan(&from, &to, &protocol, &alias); err != nil {
			return nil, err
		}
		// Rows missing an endpoint cannot be traversed.
		if !from.Valid || !to.Valid || from.String == "" || to.String == "" {
			continue
		}
		edges = append(edges, graph.Edge{
			From:     from.String,
			To:       to.String,
			Protocol: graph.NormalizeProtocol(nullable(protocol), nullable(alias)),
		})
	}
	return edges, rows.Err()
}

func nullable(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

// Ping implements graph.Source.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements graph.Source.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

var _ graph.Source = (*Store)(nil)
