// Package duckdb is the DuckDB backend.
package duckdb

import (
	"context"
	"database/sql"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog"

	"github.com/TFMV/relay/pkg/backends/sqldb"
	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/cursor"
)

// Name is the backend name.
const Name = "duckdb"

// Driver runs statements on an embedded DuckDB database.
type Driver struct {
	db     *sql.DB
	conn   connection
	logger zerolog.Logger
}

// Open opens the database at path. An empty path or ":memory:" opens an
// in-memory database.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Driver, error) {
	if path == ":memory:" {
		path = ""
	}
	db, err := sqldb.Open(ctx, "duckdb", path)
	if err != nil {
		return nil, err
	}

	logger = logger.With().Str("component", "duckdb").Logger()
	logger.Info().Str("path", path).Msg("Opened DuckDB database")

	return &Driver{db: db, conn: connection{sqldb.NewConnection(db, logger)}, logger: logger}, nil
}

func (d *Driver) Name() string                  { return Name }
func (d *Driver) Dialect() compiler.Dialect     { return compiler.DuckDB{} }
func (d *Driver) Connection() cursor.Connection { return d.conn }

// TypeOf implements client.Driver.
func (d *Driver) TypeOf(duckdbType string) (arrow.DataType, error) {
	return TypeOf(duckdbType)
}

// ListTablesQuery lists base tables and views of a catalog.
func (d *Driver) ListTablesQuery(database string) string {
	catalog := "current_database()"
	if database != "" {
		catalog, _ = compiler.FormatLiteral(database)
	}
	return "SELECT table_name FROM information_schema.tables WHERE table_catalog = " + catalog +
		" AND table_schema = current_schema()"
}

// Close closes the database.
func (d *Driver) Close() error {
	d.logger.Debug().Msg("Closing DuckDB database")
	return d.db.Close()
}
