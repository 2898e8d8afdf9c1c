// Package sqldb adapts database/sql to the cursor contracts.
package sqldb

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
)

// Open opens driverName with dsn and verifies the connection. The pool is
// pinned to one connection so temporary tables and in-memory databases
// are visible to every statement.
func Open(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConnectionFailed, "failed to open %s database", driverName)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, errors.CodeConnectionFailed, "failed to connect to %s database", driverName)
	}
	return db, nil
}

// Connection runs statements on a *sql.DB.
type Connection struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewConnection wraps db.
func NewConnection(db *sql.DB, logger zerolog.Logger) *Connection {
	return &Connection{db: db, logger: logger}
}

// Execute implements cursor.Connection.
func (c *Connection) Execute(ctx context.Context, stmt string) (cursor.Cursor, error) {
	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, err
	}

	cols := make([]cursor.ColumnInfo, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		cols[i] = cursor.ColumnInfo{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			// Drivers that cannot tell are assumed nullable.
			Nullable: nullable || !ok,
		}
	}

	return &rowsCursor{rows: rows, cols: cols, logger: c.logger}, nil
}

type rowsCursor struct {
	rows   *sql.Rows
	cols   []cursor.ColumnInfo
	logger zerolog.Logger
}

func (r *rowsCursor) Columns() []cursor.ColumnInfo { return r.cols }

// FetchAll scans every remaining row. Scanning into *any keeps the
// driver's native Go values and copies byte slices.
func (r *rowsCursor) FetchAll(ctx context.Context) ([][]any, error) {
	var out [][]any
	for r.rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]any, len(r.cols))
		ptrs := make([]any, len(r.cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := r.rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := r.rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Trace().Int("rows", len(out)).Msg("Fetched rows")
	return out, nil
}

func (r *rowsCursor) Release() error {
	return r.rows.Close()
}
