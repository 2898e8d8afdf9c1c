package client

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/infrastructure/metrics"
	"github.com/TFMV/relay/pkg/options"
	"github.com/TFMV/relay/pkg/plan"
	"github.com/TFMV/relay/pkg/result"
)

func ordersOn(c *Client) *expr.Table {
	return expr.NewTable(&expr.DatabaseTable{Name: "orders", Source: c})
}

func newTestClient(t *testing.T, drv Driver, opts ...Option) *Client {
	t.Helper()
	t.Cleanup(options.Reset)
	opts = append([]Option{WithLogger(zerolog.New(zerolog.NewTestWriter(t)))}, opts...)
	return New(drv, opts...)
}

func TestExecuteInjectsDefaultLimit(t *testing.T) {
	drv := newMockDriver(func(string) (*mockCursor, error) { return ordersCursor(), nil })
	c := newTestClient(t, drv)
	options.SetDefaultLimit(50)

	out, err := c.Execute(context.Background(), ordersOn(c))
	require.NoError(t, err)

	tbl, ok := out.(*result.Table)
	require.True(t, ok)
	defer tbl.Release()

	assert.Equal(t, []string{"SELECT *\nFROM \"orders\"\nLIMIT 50 OFFSET 0"}, drv.conn.statements)
	require.Len(t, drv.conn.cursors, 1)
	assert.Equal(t, 1, drv.conn.cursors[0].released)

	assert.Equal(t, []string{"id", "customer", "total"}, tbl.Names())
	assert.Equal(t, 2, tbl.NumRows())
	for _, col := range tbl.Columns() {
		assert.True(t, col.Typed(), col.Name)
	}
	id, _ := tbl.Column("id")
	assert.Equal(t, arrow.PrimitiveTypes.Int64, id.Type)
	assert.Equal(t, []any{int64(2), nil, 20.0}, tbl.Row(1))
}

func TestExecuteCallerLimitKeepsOffset(t *testing.T) {
	drv := newMockDriver(func(string) (*mockCursor, error) { return ordersCursor(), nil })
	c := newTestClient(t, drv)
	options.SetDefaultLimit(50)

	out, err := c.Execute(context.Background(), ordersOn(c).Limit(10, 5), WithLimit(20))
	require.NoError(t, err)
	out.(*result.Table).Release()

	assert.Equal(t, []string{"SELECT *\nFROM \"orders\"\nLIMIT 20 OFFSET 5"}, drv.conn.statements)
}

func TestExecuteScalar(t *testing.T) {
	drv := newMockDriver(func(string) (*mockCursor, error) {
		return &mockCursor{
			cols: []cursor.ColumnInfo{{Name: "count", DatabaseType: "BIGINT"}},
			rows: [][]any{{int64(2)}},
		}, nil
	})
	c := newTestClient(t, drv)
	options.SetDefaultLimit(50)

	out, err := c.ExecuteScalar(context.Background(), ordersOn(c).Count(), WithLimit(10))
	require.NoError(t, err)

	assert.Equal(t, int64(2), out)
	assert.Equal(t, []string{"SELECT count(*) AS count\nFROM \"orders\""}, drv.conn.statements)
	assert.Zero(t, c.Allocator().BytesUsed())
}

func TestExecuteRunsSetupPlansFirst(t *testing.T) {
	drv := newMockDriver(func(stmt string) (*mockCursor, error) {
		if strings.HasPrefix(stmt, "CREATE") {
			return &mockCursor{}, nil
		}
		return ordersCursor(), nil
	})
	c := newTestClient(t, drv)

	tbl, err := c.ExecuteTable(context.Background(), ordersOn(c).Materialize("snap"))
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, []string{
		"CREATE OR REPLACE TEMP TABLE \"snap\" AS\nSELECT *\nFROM \"orders\"",
		"SELECT *\nFROM \"snap\"",
	}, drv.conn.statements)
	for _, cur := range drv.conn.cursors {
		assert.Equal(t, 1, cur.released)
	}
}

func TestExecuteFailureAbortsSequence(t *testing.T) {
	driverErr := stderrors.New("Catalog Error: Table with name orders does not exist")
	drv := newMockDriver(func(stmt string) (*mockCursor, error) {
		if strings.HasPrefix(stmt, "CREATE") {
			return nil, driverErr
		}
		return ordersCursor(), nil
	})
	reg := prometheus.NewRegistry()
	c := newTestClient(t, drv, WithMetrics(metrics.NewPrometheusCollector(reg)))

	_, err := c.Execute(context.Background(), ordersOn(c).Materialize("snap"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrExecutionFailed)
	assert.ErrorIs(t, err, driverErr)
	assert.Len(t, drv.conn.statements, 1)

	expected := `
# HELP relay_statement_errors_total Statements that failed to execute or fetch.
# TYPE relay_statement_errors_total counter
relay_statement_errors_total{backend="mock"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), metrics.StatementErrorsTotal))

	timed, err := testutil.GatherAndCount(reg, metrics.StatementSeconds)
	require.NoError(t, err)
	assert.Equal(t, 1, timed)
}

func TestExecuteFetchFailureReleasesCursor(t *testing.T) {
	fetchErr := stderrors.New("connection reset")
	drv := newMockDriver(func(string) (*mockCursor, error) {
		return &mockCursor{cols: ordersColumns, fetchErr: fetchErr}, nil
	})
	c := newTestClient(t, drv)

	_, err := c.Execute(context.Background(), ordersOn(c))
	require.Error(t, err)
	assert.Equal(t, errors.CodeExecutionFailed, errors.GetCode(err))
	assert.ErrorIs(t, err, fetchErr)
	assert.Equal(t, 1, drv.conn.cursors[0].released)
}

func TestExecuteCoercionFallback(t *testing.T) {
	drv := newMockDriver(func(string) (*mockCursor, error) {
		return &mockCursor{
			cols: []cursor.ColumnInfo{
				{Name: "n", DatabaseType: "INTEGER", Nullable: false},
				{Name: "name", DatabaseType: "VARCHAR", Nullable: true},
				{Name: "shape", DatabaseType: "GEOMETRY", Nullable: true},
			},
			rows: [][]any{
				{int32(1), "a", []byte{0x01}},
				{nil, "b", nil},
			},
		}, nil
	})
	reg := prometheus.NewRegistry()
	c := newTestClient(t, drv, WithMetrics(metrics.NewPrometheusCollector(reg)))

	tbl, err := c.ExecuteTable(context.Background(), ordersOn(c))
	require.NoError(t, err)
	defer tbl.Release()

	n, _ := tbl.Column("n")
	assert.False(t, n.Typed())
	assert.Error(t, n.CoercionErr)

	name, _ := tbl.Column("name")
	assert.True(t, name.Typed())

	shape, _ := tbl.Column("shape")
	assert.False(t, shape.Typed())
	assert.NoError(t, shape.CoercionErr)

	expected := `
# HELP relay_coercion_fallbacks_total Result columns that fell back to untyped values.
# TYPE relay_coercion_fallbacks_total counter
relay_coercion_fallbacks_total{backend="mock"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), metrics.CoercionFallbacksTotal))
}

func TestExecuteParams(t *testing.T) {
	drv := newMockDriver(func(string) (*mockCursor, error) { return ordersCursor(), nil })
	c := newTestClient(t, drv)
	e := ordersOn(c).Filter(expr.Eq("id", expr.NewParam("id")))

	_, err := c.Execute(context.Background(), e)
	assert.True(t, errors.IsInvalidRequest(err))
	assert.Empty(t, drv.conn.statements)

	out, err := c.Execute(context.Background(), e, WithParams(map[string]any{"id": 3}))
	require.NoError(t, err)
	out.(*result.Table).Release()
	assert.Equal(t, []string{"SELECT *\nFROM \"orders\"\nWHERE \"id\" = 3"}, drv.conn.statements)
}

func TestCompile(t *testing.T) {
	c := newTestClient(t, newMockDriver(nil))
	options.SetDefaultLimit(100)

	stmts, err := c.Compile(ordersOn(c).Select("id"))
	require.NoError(t, err)
	single, ok := stmts.Single()
	require.True(t, ok)
	assert.Equal(t, "SELECT \"id\"\nFROM \"orders\"\nLIMIT 100 OFFSET 0", single)

	stmts, err = c.Compile(ordersOn(c).Materialize("m"), WithLimit(5))
	require.NoError(t, err)
	_, ok = stmts.Single()
	assert.False(t, ok)
	assert.Len(t, stmts, 2)
	assert.Equal(t, "SELECT *\nFROM \"m\"\nLIMIT 5 OFFSET 0", stmts[1])
}

type plannedDriver struct {
	*mockDriver
	seq plan.Sequence
}

func (d plannedDriver) BuildPlans(expr.Expr, map[string]any) (plan.Sequence, error) {
	return d.seq, nil
}

func TestDriverPlanBuilder(t *testing.T) {
	drv := plannedDriver{newMockDriver(func(string) (*mockCursor, error) {
		return &mockCursor{
			cols: []cursor.ColumnInfo{{Name: "x", DatabaseType: "INTEGER"}},
			rows: [][]any{{int32(1)}},
		}, nil
	}), plan.Sequence{&plan.Statement{Text: "SELECT 1 AS x"}}}
	c := newTestClient(t, drv)

	tbl, err := c.ExecuteTable(context.Background(), ordersOn(c))
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, []string{"SELECT 1 AS x"}, drv.conn.statements)
	assert.Equal(t, []any{int32(1)}, tbl.Row(0))
}

func TestExecuteAppliesHandlersOnEveryPlan(t *testing.T) {
	var seen []int
	count := func(tbl *result.Table) (any, error) {
		seen = append(seen, tbl.NumRows())
		return int64(tbl.NumRows()), nil
	}
	drv := plannedDriver{
		newMockDriver(func(string) (*mockCursor, error) { return ordersCursor(), nil }),
		plan.Sequence{
			&plan.Select{From: `"orders"`, Handler: count},
			&plan.Statement{Text: "CREATE TABLE t AS SELECT 1"},
			&plan.Select{From: `"orders"`, Handler: count},
		},
	}
	c := newTestClient(t, drv)

	out, err := c.Execute(context.Background(), ordersOn(c))
	require.NoError(t, err)

	assert.Equal(t, int64(2), out)
	assert.Equal(t, []int{2, 2}, seen)
	require.Len(t, drv.conn.cursors, 3)
	for _, cur := range drv.conn.cursors {
		assert.Equal(t, 1, cur.released)
	}
}

func TestExecuteHandlerErrorReleasesTable(t *testing.T) {
	handlerErr := stderrors.New("bad table")
	passthrough := func(tbl *result.Table) (any, error) { return tbl, handlerErr }
	drv := plannedDriver{
		newMockDriver(func(string) (*mockCursor, error) { return ordersCursor(), nil }),
		plan.Sequence{&plan.Select{From: `"orders"`, Handler: passthrough}},
	}
	c := newTestClient(t, drv)

	out, err := c.Execute(context.Background(), ordersOn(c))
	assert.ErrorIs(t, err, handlerErr)
	assert.Nil(t, out)
	assert.Zero(t, c.Allocator().BytesUsed())
}

func TestClientIdentity(t *testing.T) {
	drv := newMockDriver(nil)
	a := newTestClient(t, drv)
	b := newTestClient(t, drv)

	assert.NotEqual(t, a.BackendID(), b.BackendID())
	assert.Equal(t, "mock", a.Name())

	require.NoError(t, a.Close())
	assert.True(t, drv.closed)
}
