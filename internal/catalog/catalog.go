// Package catalog lists the stations known to the SOH gateway.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Catalog supplies the names of known SOH stations.
type Catalog interface {
	ListStations(ctx context.Context) ([]string, error)
}

// StaticCatalog is a fixed list of stations, typically from the settings file.
type StaticCatalog struct {
	names []string
}

// NewStaticCatalog creates a catalog from names. Empty and repeated names are
// dropped; the first occurrence keeps its position.
func NewStaticCatalog(names []string) *StaticCatalog {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return &StaticCatalog{names: out}
}

// ListStations returns a copy of the configured station names.
func (s *StaticCatalog) ListStations(_ context.Context) ([]string, error) {
	return append([]string(nil), s.names...), nil
}

const listStationsQuery = `
		SELECT station_name
		FROM soh_stations
		WHERE enabled
		ORDER BY station_name
	`

// PostgresCatalog reads enabled stations from the soh_stations table.
type PostgresCatalog struct {
	conn *sql.DB
}

// NewPostgresCatalog opens a connection using the provided DSN.
func NewPostgresCatalog(dsn string) (*PostgresCatalog, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL station catalog")

	return &PostgresCatalog{conn: conn}, nil
}

// NewPostgresCatalogFromDB wraps an existing connection.
func NewPostgresCatalogFromDB(conn *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{conn: conn}
}

// ListStations returns enabled station names in name order.
func (c *PostgresCatalog) ListStations(ctx context.Context) ([]string, error) {
	rows, err := c.conn.QueryContext(ctx, listStationsQuery)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P01" { // undefined_table
			return nil, fmt.Errorf("station catalog table soh_stations does not exist: %w", err)
		}
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stations: %w", err)
	}
	return names, nil
}

// Close closes the database connection.
func (c *PostgresCatalog) Close() error {
	if c.conn != nil {
		slog.Info("Closing database connection")
		return c.conn.Close()
	}
	return nil
}

const createTableQuery = `
		CREATE TABLE IF NOT EXISTS soh_stations (
			station_name TEXT PRIMARY KEY,
			enabled      BOOLEAN NOT NULL DEFAULT TRUE
		)
	`

// EnsureSchema creates the soh_stations table if it does not exist.
func (c *PostgresCatalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.conn.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create soh_stations table: %w", err)
	}
	return nil
}

// ReplaceStations replaces the catalog contents with names, all enabled, in
// a single transaction. Empty and repeated names are skipped. Returns the
// number of stations written.
func (c *PostgresCatalog) ReplaceStations(ctx context.Context, names []string) (int, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM soh_stations"); err != nil {
		return 0, fmt.Errorf("failed to clear stations: %w", err)
	}

	written := 0
	for _, name := range NewStaticCatalog(names).names {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO soh_stations (station_name, enabled) VALUES ($1, TRUE)", name,
		); err != nil {
			return 0, fmt.Errorf("failed to insert station %s: %w", name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stations: %w", err)
	}
	return written, nil
}
