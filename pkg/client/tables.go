package client

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/result"
)

// SQL wraps a raw query as a table expression on this backend. The schema
// is discovered by running the query with a zero row limit. DDL, DML and
// transaction statements are rejected.
func (c *Client) SQL(ctx context.Context, query string) (*expr.Table, error) {
	query = compiler.StripQuery(query)
	if query == "" {
		return nil, errors.New(errors.CodeInvalidRequest, "empty query")
	}
	switch kind := compiler.Classify(query); kind {
	case compiler.KindDDL, compiler.KindDML, compiler.KindTransaction:
		return nil, errors.Newf(errors.CodeInvalidRequest, "%s statement cannot be used as a table", kind)
	}

	schema, err := c.schemaOf(ctx, "SELECT * FROM (\n"+query+"\n) t0 LIMIT 0")
	if err != nil {
		return nil, err
	}
	return expr.NewTable(&expr.SQLQueryResult{Query: query, Schema: schema, Source: c}), nil
}

// Table returns an expression over the named table. database qualifies the
// name when non-empty. Schemas are cached until InvalidateSchema.
func (c *Client) Table(ctx context.Context, name, database string) (*expr.Table, error) {
	qualified := qualify(database, name)

	schema, ok := c.schemas.Get(qualified)
	if !ok {
		var err error
		schema, err = c.schemaOf(ctx, "SELECT *\nFROM "+compiler.QualifiedName(c.driver.Dialect(), qualified)+"\nLIMIT 0")
		if err != nil {
			exists, lerr := c.ExistsTable(ctx, name, database)
			if lerr == nil && !exists {
				return nil, errors.Wrapf(errors.ErrTableNotFound, errors.CodeNotFound, "table %q not found", qualified)
			}
			return nil, err
		}
		c.schemas.Put(qualified, schema)
	}

	return expr.NewTable(&expr.DatabaseTable{Name: qualified, Schema: schema, Source: c}), nil
}

// InvalidateSchema forgets the cached schema of a qualified table name.
func (c *Client) InvalidateSchema(name string) {
	if c.schemas.Invalidate(name) {
		c.logger.Debug().Str("table", name).Msg("Schema invalidated")
	}
}

// ListTables returns the sorted table names of database. A non-empty like
// is a regular expression the names must match.
func (c *Client) ListTables(ctx context.Context, like, database string) ([]string, error) {
	var re *regexp.Regexp
	if like != "" {
		var err error
		if re, err = regexp.Compile(like); err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidRequest, "invalid table pattern %q", like)
		}
	}

	tbl, err := c.fetch(ctx, c.driver.ListTablesQuery(database))
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	if tbl.NumCols() == 0 {
		return nil, nil
	}
	col := tbl.Columns()[0]

	names := make([]string, 0, tbl.NumRows())
	for i := 0; i < tbl.NumRows(); i++ {
		v := col.Value(i)
		if v == nil {
			continue
		}
		name := fmt.Sprint(v)
		if re == nil || re.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ExistsTable reports whether database contains a table called name.
func (c *Client) ExistsTable(ctx context.Context, name, database string) (bool, error) {
	names, err := c.ListTables(ctx, "^"+regexp.QuoteMeta(name)+"$", database)
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// schemaOf runs query and converts the cursor's column description to a
// schema. Columns without a semantic type become Null fields. When the
// cursor reports no columns up front, the (empty) result is read first.
func (c *Client) schemaOf(ctx context.Context, query string) (*arrow.Schema, error) {
	var infos []cursor.ColumnInfo
	err := cursor.With(ctx, c.driver.Connection(), query, func(cur cursor.Cursor) error {
		if infos = cur.Columns(); len(infos) > 0 {
			return nil
		}
		// Some cursors only learn their columns once rows are read.
		if _, err := cur.FetchAll(ctx); err != nil {
			return err
		}
		infos = cur.Columns()
		return nil
	})
	if err != nil {
		return nil, c.executionError(err, query)
	}

	cols := c.describe(infos)
	fields := make([]arrow.Field, len(cols))
	for i, col := range cols {
		dt := col.Type
		if dt == nil {
			dt = arrow.Null
		}
		var md arrow.Metadata
		if col.DatabaseType != "" {
			md = arrow.NewMetadata([]string{"database_type"}, []string{col.DatabaseType})
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: col.Nullable, Metadata: md}
	}
	return arrow.NewSchema(fields, nil), nil
}

// Explain returns the rendered query followed by the backend's plan for
// it. Expressions that compile to more than one statement cannot be
// explained.
func (c *Client) Explain(ctx context.Context, e expr.Expr, opts ...ExecOption) (string, error) {
	seq, err := c.plans(e, opts)
	if err != nil {
		return "", err
	}
	if len(seq) != 1 {
		return "", errors.Wrapf(errors.ErrMultiQuery, errors.CodeInvalidRequest,
			"cannot explain an expression that compiles to %d statements", len(seq))
	}

	query, err := seq[0].Render()
	if err != nil {
		return "", err
	}

	tbl, err := c.fetch(ctx, c.driver.Dialect().Explain(query))
	if err != nil {
		return "", err
	}
	defer tbl.Release()

	lines := make([]string, 0, tbl.NumRows())
	if n := tbl.NumCols(); n > 0 {
		col := tbl.Columns()[n-1]
		for i := 0; i < tbl.NumRows(); i++ {
			lines = append(lines, fmt.Sprint(col.Value(i)))
		}
	}

	return "Query:\n" + indent(query) + "\n\n" + strings.Join(lines, "\n"), nil
}

// RawSQL executes stmt and discards any result.
func (c *Client) RawSQL(ctx context.Context, stmt string) error {
	return c.exec(ctx, stmt)
}

// RawTable executes stmt unmodified and materializes its rows. No limit is
// applied.
func (c *Client) RawTable(ctx context.Context, stmt string) (*result.Table, error) {
	return c.fetch(ctx, compiler.StripQuery(stmt))
}

// RawQuery executes query and hands the open cursor to fn. The cursor is
// released when fn returns.
func (c *Client) RawQuery(ctx context.Context, query string, fn func(cursor.Cursor) error) error {
	c.logger.Debug().Str("statement", query).Msg("Executing raw query")
	err := cursor.With(ctx, c.driver.Connection(), query, fn)
	if err != nil {
		return c.executionError(err, query)
	}
	return nil
}

func qualify(database, name string) string {
	if database == "" {
		return name
	}
	return database + "." + name
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
