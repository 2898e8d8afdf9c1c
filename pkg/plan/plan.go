// Package plan holds compiled query plans and the row-limit policy.
package plan

import (
	"fmt"
	"strings"

	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/result"
)

// Limit caps a row-producing plan. A nil *Limit means no cap.
type Limit struct {
	N      int64
	Offset int64
}

// ResultHandler post-processes the materialized result of a plan.
type ResultHandler func(*result.Table) (any, error)

// QueryPlan is one compiled, executable unit.
type QueryPlan interface {
	// TableSet names the relation a row-producing plan reads from. It is
	// empty for setup statements.
	TableSet() string
	RowLimit() *Limit
	SetRowLimit(*Limit)
	// ResultHandler may be nil.
	ResultHandler() ResultHandler
	Render() (string, error)
}

// Sequence is the ordered list of plans realizing one expression.
type Sequence []QueryPlan

// Render renders every plan in order.
func (s Sequence) Render() ([]string, error) {
	out := make([]string, 0, len(s))
	for i, p := range s {
		stmt, err := p.Render()
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInternal, "failed to render plan %d", i)
		}
		out = append(out, stmt)
	}
	return out, nil
}

// Select is a row-producing SELECT statement.
type Select struct {
	// From is the relation text: a quoted table name or a parenthesized
	// subquery with its alias. Empty for constant selects.
	From    string
	Columns []string
	Where   []string
	OrderBy []string
	Limit   *Limit
	Handler ResultHandler
}

func (s *Select) TableSet() string             { return s.From }
func (s *Select) RowLimit() *Limit             { return s.Limit }
func (s *Select) SetRowLimit(l *Limit)         { s.Limit = l }
func (s *Select) ResultHandler() ResultHandler { return s.Handler }

// Render returns the statement text.
func (s *Select) Render() (string, error) {
	if s.From == "" && len(s.Columns) == 0 {
		return "", errors.New(errors.CodeInternal, "select has neither columns nor a source")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.Columns, ", "))
	}
	if s.From != "" {
		b.WriteString("\nFROM ")
		b.WriteString(s.From)
	}
	if len(s.Where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(s.Where, " AND "))
	}
	if len(s.OrderBy) > 0 {
		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(s.OrderBy, ", "))
	}
	if s.Limit != nil {
		fmt.Fprintf(&b, "\nLIMIT %d OFFSET %d", s.Limit.N, s.Limit.Offset)
	}
	return b.String(), nil
}

// Statement is a setup or DDL statement with no result rows.
type Statement struct {
	Text string
}

func (s *Statement) TableSet() string             { return "" }
func (s *Statement) RowLimit() *Limit             { return nil }
func (s *Statement) SetRowLimit(*Limit)           {}
func (s *Statement) ResultHandler() ResultHandler { return nil }
func (s *Statement) Render() (string, error)      { return s.Text, nil }
