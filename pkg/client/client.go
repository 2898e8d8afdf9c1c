// Package client executes expressions against a single backend.
//
// A Client owns one Driver. Execute compiles an expression to a plan
// sequence, caps the outermost select with the row-limit policy, runs the
// setup plans and materializes the last plan's rows. Setup plans without a
// result handler run fire-and-forget.
package client

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TFMV/relay/pkg/cache"
	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/infrastructure/memory"
	"github.com/TFMV/relay/pkg/infrastructure/metrics"
	"github.com/TFMV/relay/pkg/options"
	"github.com/TFMV/relay/pkg/plan"
	"github.com/TFMV/relay/pkg/result"
)

// Driver is what a concrete backend provides.
type Driver interface {
	// Name identifies the backend kind, e.g. "duckdb".
	Name() string
	Dialect() compiler.Dialect
	Connection() cursor.Connection
	// TypeOf maps a backend type name to an Arrow type. Unknown names
	// return an UNSUPPORTED_TYPE error.
	TypeOf(databaseType string) (arrow.DataType, error)
	// ListTablesQuery returns a query whose first column is the table
	// names of database, or of the current database when it is empty.
	ListTablesQuery(database string) string
	Close() error
}

// PlanBuilder compiles expressions. A Driver that implements it replaces
// the dialect compiler.
type PlanBuilder interface {
	BuildPlans(e expr.Expr, params map[string]any) (plan.Sequence, error)
}

// Client executes expressions on one backend. It is an expr.Backend.
type Client struct {
	id      uuid.UUID
	driver  Driver
	builder PlanBuilder
	logger  zerolog.Logger
	metrics metrics.Collector
	alloc   *memory.TrackedAllocator
	schemas *cache.SchemaCache
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector metrics.Collector) Option {
	return func(c *Client) { c.metrics = collector }
}

// WithAllocator sets the allocator used for result columns.
func WithAllocator(alloc *memory.TrackedAllocator) Option {
	return func(c *Client) { c.alloc = alloc }
}

// WithSchemaCacheSize bounds the number of cached table schemas.
func WithSchemaCacheSize(n int) Option {
	return func(c *Client) { c.schemas = cache.NewSchemaCache(n) }
}

// New returns a client for driver with a fresh backend identity.
func New(driver Driver, opts ...Option) *Client {
	c := &Client{
		id:      uuid.New(),
		driver:  driver,
		logger:  zerolog.Nop(),
		metrics: metrics.NewNoOpCollector(),
		alloc:   memory.NewTrackedAllocator(nil),
		schemas: cache.NewSchemaCache(0),
	}
	for _, opt := range opts {
		opt(c)
	}

	if pb, ok := driver.(PlanBuilder); ok {
		c.builder = pb
	} else {
		c.builder = compiler.New(driver.Dialect())
	}
	c.logger = c.logger.With().Str("backend", driver.Name()).Str("backend_id", c.id.String()).Logger()
	return c
}

// BackendID implements expr.Backend.
func (c *Client) BackendID() uuid.UUID { return c.id }

// Name returns the driver name.
func (c *Client) Name() string { return c.driver.Name() }

// Driver returns the underlying driver.
func (c *Client) Driver() Driver { return c.driver }

// Allocator returns the allocator backing result columns.
func (c *Client) Allocator() *memory.TrackedAllocator { return c.alloc }

// Close closes the driver.
func (c *Client) Close() error {
	c.schemas.Clear()
	return c.driver.Close()
}

type execConfig struct {
	limit  *int64
	params map[string]any
}

// ExecOption configures one Execute, Compile or Explain call.
type ExecOption func(*execConfig)

// WithLimit caps the rows returned, overriding options.DefaultLimit and
// the count, not the offset, of any limit in the expression.
func WithLimit(n int64) ExecOption {
	return func(cfg *execConfig) { cfg.limit = &n }
}

// WithParams binds expr.Param placeholders by name.
func WithParams(params map[string]any) ExecOption {
	return func(cfg *execConfig) { cfg.params = params }
}

func (c *Client) plans(e expr.Expr, opts []ExecOption) (plan.Sequence, error) {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	seq, err := c.builder.BuildPlans(e, cfg.params)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, errors.New(errors.CodeUnsupportedExpression, "expression compiled to no plans")
	}

	plan.ApplyLimit(seq, e.Scalar(), cfg.limit, options.DefaultLimit())
	return seq, nil
}

// Execute runs e and returns the value of its last plan: a *result.Table
// for table expressions, or whatever the plan's result handler produced.
// A failing plan aborts the sequence.
func (c *Client) Execute(ctx context.Context, e expr.Expr, opts ...ExecOption) (any, error) {
	seq, err := c.plans(e, opts)
	if err != nil {
		return nil, err
	}

	stmts, err := seq.Render()
	if err != nil {
		return nil, err
	}

	last := len(seq) - 1
	for i := 0; i < last; i++ {
		if seq[i].ResultHandler() == nil {
			if err := c.exec(ctx, stmts[i]); err != nil {
				return nil, err
			}
			continue
		}
		out, err := c.run(ctx, seq[i], stmts[i])
		if err != nil {
			return nil, err
		}
		if t, ok := out.(*result.Table); ok {
			t.Release()
		}
	}

	return c.run(ctx, seq[last], stmts[last])
}

// run fetches stmt and applies p's result handler, if any. The fetched
// table is released unless the handler returns it without an error.
func (c *Client) run(ctx context.Context, p plan.QueryPlan, stmt string) (any, error) {
	tbl, err := c.fetch(ctx, stmt)
	if err != nil {
		return nil, err
	}

	handler := p.ResultHandler()
	if handler == nil {
		return tbl, nil
	}

	out, err := handler(tbl)
	if err != nil {
		tbl.Release()
		return nil, err
	}
	if t, ok := out.(*result.Table); !ok || t != tbl {
		tbl.Release()
	}
	return out, nil
}

// ExecuteTable runs a table expression.
func (c *Client) ExecuteTable(ctx context.Context, t *expr.Table, opts ...ExecOption) (*result.Table, error) {
	out, err := c.Execute(ctx, t, opts...)
	if err != nil {
		return nil, err
	}
	tbl, ok := out.(*result.Table)
	if !ok {
		return nil, errors.Newf(errors.CodeInternal, "table expression produced %T", out)
	}
	return tbl, nil
}

// ExecuteScalar runs a scalar expression.
func (c *Client) ExecuteScalar(ctx context.Context, v *expr.Value, opts ...ExecOption) (any, error) {
	return c.Execute(ctx, v, opts...)
}

// Statements is the rendered text of a plan sequence.
type Statements []string

// Single returns the statement when there is exactly one.
func (s Statements) Single() (string, bool) {
	if len(s) != 1 {
		return "", false
	}
	return s[0], true
}

// Compile renders e without executing it.
func (c *Client) Compile(e expr.Expr, opts ...ExecOption) (Statements, error) {
	seq, err := c.plans(e, opts)
	if err != nil {
		return nil, err
	}
	stmts, err := seq.Render()
	if err != nil {
		return nil, err
	}
	return Statements(stmts), nil
}

// exec runs a statement whose result is not needed.
func (c *Client) exec(ctx context.Context, stmt string) error {
	c.logger.Debug().Str("statement", stmt).Msg("Executing setup statement")

	timer := c.metrics.StartTimer(metrics.StatementSeconds, "backend", c.driver.Name())
	err := cursor.Exec(ctx, c.driver.Connection(), stmt)
	c.observe(timer, err)
	if err != nil {
		return c.executionError(err, stmt)
	}
	return nil
}

// fetch runs a statement and materializes its rows.
func (c *Client) fetch(ctx context.Context, stmt string) (*result.Table, error) {
	c.logger.Debug().Str("statement", stmt).Msg("Executing statement")

	var tbl *result.Table
	timer := c.metrics.StartTimer(metrics.StatementSeconds, "backend", c.driver.Name())
	err := cursor.With(ctx, c.driver.Connection(), stmt, func(cur cursor.Cursor) error {
		rows, err := cur.FetchAll(ctx)
		if err != nil {
			return c.executionError(err, stmt)
		}
		tbl, err = result.Materialize(c.alloc, rows, c.describe(cur.Columns()))
		return err
	})
	elapsed := c.observe(timer, err)
	if err != nil {
		if tbl != nil {
			tbl.Release()
		}
		return nil, c.executionError(err, stmt)
	}

	for _, col := range tbl.Fallbacks() {
		c.logger.Debug().
			Err(col.CoercionErr).
			Str("column", col.Name).
			Msg("Column kept as untyped values")
		c.metrics.IncrementCounter(metrics.CoercionFallbacksTotal, "backend", c.driver.Name())
	}

	c.metrics.RecordHistogram(metrics.ResultRows, float64(tbl.NumRows()), "backend", c.driver.Name())
	c.metrics.RecordGauge(metrics.AllocatedBytes, float64(c.alloc.BytesUsed()), "backend", c.driver.Name())
	c.logger.Debug().
		Int("rows", tbl.NumRows()).
		Int("columns", tbl.NumCols()).
		Float64("seconds", elapsed).
		Msg("Statement completed")

	return tbl, nil
}

// describe maps cursor columns to descriptors. Columns whose type cannot be
// mapped are left untyped.
func (c *Client) describe(infos []cursor.ColumnInfo) []result.ColumnDescriptor {
	cols := make([]result.ColumnDescriptor, len(infos))
	for i, info := range infos {
		dt := info.Type
		if dt == nil && info.DatabaseType != "" {
			var err error
			dt, err = c.driver.TypeOf(info.DatabaseType)
			if err != nil {
				c.logger.Debug().
					Err(err).
					Str("column", info.Name).
					Str("database_type", info.DatabaseType).
					Msg("No semantic type for column")
				dt = nil
			}
		}
		cols[i] = result.ColumnDescriptor{
			Name:         info.Name,
			Type:         dt,
			Nullable:     info.Nullable,
			DatabaseType: info.DatabaseType,
		}
	}
	return cols
}

func (c *Client) observe(timer metrics.Timer, err error) float64 {
	elapsed := timer.Stop()
	backend := c.driver.Name()
	c.metrics.IncrementCounter(metrics.StatementsTotal, "backend", backend)
	if err != nil {
		c.metrics.IncrementCounter(metrics.StatementErrorsTotal, "backend", backend)
	}
	return elapsed
}

// executionError wraps a driver error as EXECUTION_FAILED. Errors that
// already carry a code pass through.
func (c *Client) executionError(err error, stmt string) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	c.logger.Error().Err(err).Str("statement", stmt).Msg("Statement failed")
	return errors.Wrap(err, errors.CodeExecutionFailed, "statement execution failed").
		WithDetail("statement", stmt)
}
