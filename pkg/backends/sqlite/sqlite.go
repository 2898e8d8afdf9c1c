// Package sqlite is the SQLite backend, built on the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/TFMV/relay/pkg/backends/sqldb"
	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
)

// Name is the backend name.
const Name = "sqlite"

// Driver runs statements on a SQLite database.
type Driver struct {
	db     *sql.DB
	conn   *sqldb.Connection
	logger zerolog.Logger
}

// Open opens the database file at path, or an in-memory database for ""
// and ":memory:".
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Driver, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sqldb.Open(ctx, "sqlite", path)
	if err != nil {
		return nil, err
	}

	logger = logger.With().Str("component", "sqlite").Logger()
	logger.Info().Str("path", path).Msg("Opened SQLite database")

	return &Driver{db: db, conn: sqldb.NewConnection(db, logger), logger: logger}, nil
}

func (d *Driver) Name() string                  { return Name }
func (d *Driver) Dialect() compiler.Dialect     { return compiler.SQLite{} }
func (d *Driver) Connection() cursor.Connection { return d.conn }

// TypeOf implements client.Driver using SQLite's column affinity rules.
func (d *Driver) TypeOf(declared string) (arrow.DataType, error) {
	return TypeOf(declared)
}

// ListTablesQuery lists tables and views of an attached schema.
func (d *Driver) ListTablesQuery(database string) string {
	master := "sqlite_master"
	if database != "" {
		master = compiler.SQLite{}.QuoteIdentifier(database) + ".sqlite_master"
	}
	return "SELECT name FROM " + master + " WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'"
}

// Close closes the database.
func (d *Driver) Close() error {
	d.logger.Debug().Msg("Closing SQLite database")
	return d.db.Close()
}

// TypeOf maps a declared column type to an Arrow type following SQLite's
// affinity rules. Date and time names map to timestamps, which the driver
// returns as time.Time. NUMERIC affinity and expression columns with no
// declared type have no fixed Arrow type.
func TypeOf(declared string) (arrow.DataType, error) {
	t := strings.ToUpper(strings.TrimSpace(declared))

	switch {
	case t == "":
		return nil, errors.New(errors.CodeUnsupportedType, "column has no declared type")
	case t == "DATE", t == "DATETIME", t == "TIMESTAMP":
		return arrow.FixedWidthTypes.Timestamp_us, nil
	case strings.Contains(t, "INT"):
		return arrow.PrimitiveTypes.Int64, nil
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return arrow.BinaryTypes.String, nil
	case strings.Contains(t, "BLOB"):
		return arrow.BinaryTypes.Binary, nil
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return arrow.PrimitiveTypes.Float64, nil
	default:
		return nil, errors.Newf(errors.CodeUnsupportedType, "declared type %s has numeric affinity", declared)
	}
}
