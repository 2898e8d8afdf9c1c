// Package cursor defines the connection and cursor contracts backends
// implement, and scoped cursor acquisition.
package cursor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// ColumnInfo describes one column of a cursor's result.
type ColumnInfo struct {
	Name string
	// DatabaseType is the backend's type name, e.g. "BIGINT".
	DatabaseType string
	Nullable     bool
	// Type is set by backends that already know the Arrow type.
	Type arrow.DataType
}

// Cursor is the live result of one statement.
type Cursor interface {
	FetchAll(ctx context.Context) ([][]any, error)
	Columns() []ColumnInfo
	Release() error
}

// Connection executes statements.
type Connection interface {
	Execute(ctx context.Context, stmt string) (Cursor, error)
}

// With executes stmt and passes the cursor to fn. The cursor is released
// exactly once when fn returns, fails, or panics. A release error is
// reported only when fn succeeded.
func With(ctx context.Context, conn Connection, stmt string, fn func(Cursor) error) (err error) {
	cur, err := conn.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := cur.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return fn(cur)
}

// Exec executes stmt and releases the cursor without reading it.
func Exec(ctx context.Context, conn Connection, stmt string) error {
	return With(ctx, conn, stmt, func(Cursor) error { return nil })
}
