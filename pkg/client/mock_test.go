package client

import (
	"context"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
)

type mockCursor struct {
	rows     [][]any
	cols     []cursor.ColumnInfo
	fetchErr error
	released int
}

func (m *mockCursor) FetchAll(context.Context) ([][]any, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.rows, nil
}

func (m *mockCursor) Columns() []cursor.ColumnInfo { return m.cols }

func (m *mockCursor) Release() error {
	m.released++
	return nil
}

type mockConnection struct {
	mu         sync.Mutex
	statements []string
	cursors    []*mockCursor
	// respond builds the cursor for a statement. Nil returns an empty cursor.
	respond func(stmt string) (*mockCursor, error)
}

func (m *mockConnection) Execute(_ context.Context, stmt string) (cursor.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statements = append(m.statements, stmt)
	cur := &mockCursor{}
	if m.respond != nil {
		var err error
		if cur, err = m.respond(stmt); err != nil {
			return nil, err
		}
	}
	m.cursors = append(m.cursors, cur)
	return cur, nil
}

type mockDriver struct {
	conn    *mockConnection
	dialect compiler.Dialect
	closed  bool
}

func newMockDriver(respond func(stmt string) (*mockCursor, error)) *mockDriver {
	return &mockDriver{
		conn:    &mockConnection{respond: respond},
		dialect: compiler.DuckDB{},
	}
}

func (d *mockDriver) Name() string                  { return "mock" }
func (d *mockDriver) Dialect() compiler.Dialect     { return d.dialect }
func (d *mockDriver) Connection() cursor.Connection { return d.conn }

func (d *mockDriver) Close() error {
	d.closed = true
	return nil
}

func (d *mockDriver) ListTablesQuery(database string) string {
	if database == "" {
		return "SHOW TABLES"
	}
	return "SHOW TABLES FROM " + database
}

func (d *mockDriver) TypeOf(databaseType string) (arrow.DataType, error) {
	switch strings.ToUpper(databaseType) {
	case "BIGINT":
		return arrow.PrimitiveTypes.Int64, nil
	case "INTEGER":
		return arrow.PrimitiveTypes.Int32, nil
	case "DOUBLE":
		return arrow.PrimitiveTypes.Float64, nil
	case "VARCHAR":
		return arrow.BinaryTypes.String, nil
	default:
		return nil, errors.Newf(errors.CodeUnsupportedType, "unknown type %q", databaseType)
	}
}

var ordersColumns = []cursor.ColumnInfo{
	{Name: "id", DatabaseType: "BIGINT"},
	{Name: "customer", DatabaseType: "VARCHAR", Nullable: true},
	{Name: "total", DatabaseType: "DOUBLE", Nullable: true},
}

func ordersCursor() *mockCursor {
	return &mockCursor{
		cols: ordersColumns,
		rows: [][]any{
			{int64(1), "alice", 10.5},
			{int64(2), nil, 20.0},
		},
	}
}
