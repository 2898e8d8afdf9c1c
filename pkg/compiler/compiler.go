// Package compiler turns expressions into SQL plan sequences.
//
// Each operator compiles to a plan.Select. Operators are merged into the
// select of their input when the resulting SQL keeps the same meaning, and
// otherwise the input is wrapped as an aliased subquery (t0, t1, ...).
// Materialize contributes setup statements that run before the final
// select.
package compiler

import (
	"fmt"
	"strings"

	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/plan"
	"github.com/TFMV/relay/pkg/result"
)

// Compiler builds plan sequences for one dialect.
type Compiler struct {
	dialect Dialect
}

// New returns a compiler for d. A nil dialect means ANSI.
func New(d Dialect) *Compiler {
	if d == nil {
		d = ANSI{}
	}
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// buildContext carries state for one BuildPlans call.
type buildContext struct {
	setup  []string
	params map[string]any
	next   int
}

func (b *buildContext) alias() string {
	a := fmt.Sprintf("t%d", b.next)
	b.next++
	return a
}

// BuildPlans compiles e into an ordered plan sequence. The last plan
// produces the expression's value.
func (c *Compiler) BuildPlans(e expr.Expr, params map[string]any) (plan.Sequence, error) {
	if e == nil {
		return nil, errors.New(errors.CodeInvalidRequest, "nil expression")
	}

	bc := &buildContext{params: params}
	sel, err := c.compile(bc, e.Op())
	if err != nil {
		return nil, err
	}

	seq := make(plan.Sequence, 0, len(bc.setup)+1)
	for _, s := range bc.setup {
		seq = append(seq, &plan.Statement{Text: s})
	}
	return append(seq, sel), nil
}

func (c *Compiler) compile(bc *buildContext, op expr.Operator) (*plan.Select, error) {
	switch o := op.(type) {
	case *expr.DatabaseTable:
		return &plan.Select{From: QualifiedName(c.dialect, o.Name)}, nil

	case *expr.SQLQueryResult:
		return &plan.Select{From: subquery(StripQuery(o.Query), bc.alias())}, nil

	case *expr.Projection:
		inner, err := c.compile(bc, o.Table.Op())
		if err != nil {
			return nil, err
		}
		if inner.Columns != nil || inner.Limit != nil {
			if inner, err = c.wrap(bc, inner); err != nil {
				return nil, err
			}
		}
		inner.Columns = make([]string, len(o.Columns))
		for i, col := range o.Columns {
			inner.Columns[i] = c.dialect.QuoteIdentifier(col)
		}
		return inner, nil

	case *expr.Selection:
		inner, err := c.compile(bc, o.Table.Op())
		if err != nil {
			return nil, err
		}
		if inner.Limit != nil {
			if inner, err = c.wrap(bc, inner); err != nil {
				return nil, err
			}
		}
		for _, p := range o.Predicates {
			cond, err := c.predicate(bc, p)
			if err != nil {
				return nil, err
			}
			inner.Where = append(inner.Where, cond)
		}
		return inner, nil

	case *expr.Sort:
		inner, err := c.compile(bc, o.Table.Op())
		if err != nil {
			return nil, err
		}
		if inner.Limit != nil {
			if inner, err = c.wrap(bc, inner); err != nil {
				return nil, err
			}
		}
		inner.OrderBy = make([]string, len(o.Keys))
		for i, k := range o.Keys {
			dir := "ASC"
			if k.Descending {
				dir = "DESC"
			}
			inner.OrderBy[i] = c.dialect.QuoteIdentifier(k.Column) + " " + dir
		}
		return inner, nil

	case *expr.Limit:
		inner, err := c.compile(bc, o.Table.Op())
		if err != nil {
			return nil, err
		}
		if inner.Limit != nil {
			if inner, err = c.wrap(bc, inner); err != nil {
				return nil, err
			}
		}
		inner.Limit = &plan.Limit{N: o.N, Offset: o.Offset}
		return inner, nil

	case *expr.Union:
		left, err := c.unionBranch(bc, o.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.unionBranch(bc, o.Right)
		if err != nil {
			return nil, err
		}
		kw := "UNION ALL"
		if o.Distinct {
			kw = "UNION"
		}
		return &plan.Select{From: subquery(left+"\n"+kw+"\n"+right, bc.alias())}, nil

	case *expr.Materialize:
		inner, err := c.compile(bc, o.Table.Op())
		if err != nil {
			return nil, err
		}
		query, err := inner.Render()
		if err != nil {
			return nil, err
		}
		name := c.dialect.QuoteIdentifier(o.Name)
		bc.setup = append(bc.setup, c.dialect.MaterializeDDL(name, query)...)
		return &plan.Select{From: name}, nil

	case *expr.Count:
		return c.reduce(bc, o.Table, "count(*) AS count")

	case *expr.Aggregate:
		fn := string(o.Func)
		return c.reduce(bc, o.Table, fmt.Sprintf("%s(%s) AS %s", fn, c.dialect.QuoteIdentifier(o.Column), fn))

	case *expr.Literal:
		lit, err := FormatLiteral(o.Value)
		if err != nil {
			return nil, err
		}
		return &plan.Select{Columns: []string{lit + " AS tmp"}, Handler: ScalarResult}, nil

	case *expr.Param:
		lit, err := c.param(bc, o)
		if err != nil {
			return nil, err
		}
		return &plan.Select{Columns: []string{lit + " AS tmp"}, Handler: ScalarResult}, nil

	default:
		return nil, errors.Newf(errors.CodeUnsupportedExpression, "%s cannot compile %T", c.dialect.Name(), op)
	}
}

// reduce compiles a single-value aggregate over t.
func (c *Compiler) reduce(bc *buildContext, t *expr.Table, column string) (*plan.Select, error) {
	inner, err := c.compile(bc, t.Op())
	if err != nil {
		return nil, err
	}
	if inner.Columns != nil || inner.Limit != nil || inner.OrderBy != nil {
		if inner, err = c.wrap(bc, inner); err != nil {
			return nil, err
		}
	}
	inner.Columns = []string{column}
	inner.Handler = ScalarResult
	return inner, nil
}

func (c *Compiler) unionBranch(bc *buildContext, t *expr.Table) (string, error) {
	sel, err := c.compile(bc, t.Op())
	if err != nil {
		return "", err
	}
	if sel.Limit != nil || sel.OrderBy != nil {
		if sel, err = c.wrap(bc, sel); err != nil {
			return "", err
		}
	}
	return sel.Render()
}

// wrap turns inner into an aliased subquery and selects from it.
func (c *Compiler) wrap(bc *buildContext, inner *plan.Select) (*plan.Select, error) {
	query, err := inner.Render()
	if err != nil {
		return nil, err
	}
	return &plan.Select{From: subquery(query, bc.alias())}, nil
}

func (c *Compiler) predicate(bc *buildContext, p expr.Predicate) (string, error) {
	col := c.dialect.QuoteIdentifier(p.Column)
	if p.Op.Unary() {
		return col + " " + string(p.Op), nil
	}

	rhs, err := c.operand(bc, p.Value)
	if err != nil {
		return "", err
	}
	return col + " " + string(p.Op) + " " + rhs, nil
}

// operand renders the right-hand side of a comparison.
func (c *Compiler) operand(bc *buildContext, v any) (string, error) {
	e, ok := v.(expr.Expr)
	if !ok {
		return FormatLiteral(v)
	}
	if !e.Scalar() {
		return "", errors.Newf(errors.CodeUnsupportedExpression, "cannot compare a column to table expression %T", e.Op())
	}

	switch o := e.Op().(type) {
	case *expr.Literal:
		return FormatLiteral(o.Value)
	case *expr.Param:
		return c.param(bc, o)
	}

	sel, err := c.compile(bc, e.Op())
	if err != nil {
		return "", err
	}
	query, err := sel.Render()
	if err != nil {
		return "", err
	}
	return "(\n" + indent(query) + "\n)", nil
}

func (c *Compiler) param(bc *buildContext, p *expr.Param) (string, error) {
	v, ok := bc.params[p.Name]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnboundParameter, errors.CodeInvalidRequest, "parameter %q is not bound", p.Name)
	}
	return FormatLiteral(v)
}

// ScalarResult returns the first cell of a result, or nil when it is empty.
func ScalarResult(t *result.Table) (any, error) {
	if t.NumRows() == 0 || t.NumCols() == 0 {
		return nil, nil
	}
	return t.Columns()[0].Value(0), nil
}

// StripQuery removes a trailing semicolon, and any comment following it,
// from a raw query so it can be nested.
func StripQuery(query string) string {
	q := strings.TrimSpace(query)
	if i := strings.LastIndex(q, ";"); i >= 0 {
		rest := strings.TrimSpace(q[i+1:])
		if rest == "" || strings.HasPrefix(rest, "--") {
			q = strings.TrimSpace(q[:i])
		}
	}
	return q
}

func subquery(query, alias string) string {
	return "(\n" + indent(query) + "\n) " + alias
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
