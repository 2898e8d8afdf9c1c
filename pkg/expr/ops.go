package expr

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// DatabaseTable references a physical table owned by Source.
type DatabaseTable struct {
	Name   string
	Schema *arrow.Schema
	Source Backend
}

func (o *DatabaseTable) FlatArgs() []any { return []any{o.Name, o.Schema, o.Source} }

// SQLQueryResult is a raw query treated as a table.
type SQLQueryResult struct {
	Query  string
	Schema *arrow.Schema
	Source Backend
}

func (o *SQLQueryResult) FlatArgs() []any { return []any{o.Query, o.Schema, o.Source} }

// Projection keeps Columns of Table.
type Projection struct {
	Table   *Table
	Columns []string
}

func (o *Projection) FlatArgs() []any {
	args := make([]any, 0, len(o.Columns)+1)
	args = append(args, o.Table)
	for _, c := range o.Columns {
		args = append(args, c)
	}
	return args
}

// Selection filters Table by a conjunction of predicates.
type Selection struct {
	Table      *Table
	Predicates []Predicate
}

// FlatArgs flattens predicate operands so that expressions used as
// comparison values are visible to graph walks.
func (o *Selection) FlatArgs() []any {
	args := []any{o.Table}
	for _, p := range o.Predicates {
		args = append(args, p.Column)
		if p.Value != nil {
			args = append(args, p.Value)
		}
	}
	return args
}

// Sort orders Table by Keys.
type Sort struct {
	Table *Table
	Keys  []SortKey
}

func (o *Sort) FlatArgs() []any {
	args := []any{o.Table}
	for _, k := range o.Keys {
		args = append(args, k)
	}
	return args
}

// Limit caps Table at N rows after skipping Offset.
type Limit struct {
	Table  *Table
	N      int64
	Offset int64
}

func (o *Limit) FlatArgs() []any { return []any{o.Table, o.N, o.Offset} }

// Union concatenates Left and Right.
type Union struct {
	Left     *Table
	Right    *Table
	Distinct bool
}

func (o *Union) FlatArgs() []any { return []any{o.Left, o.Right, o.Distinct} }

// Materialize stores Table under Name before reading it back.
type Materialize struct {
	Table *Table
	Name  string
}

func (o *Materialize) FlatArgs() []any { return []any{o.Table, o.Name} }

// Count is the number of rows in Table.
type Count struct {
	Table *Table
}

func (o *Count) FlatArgs() []any { return []any{o.Table} }

// AggFunc names an aggregate function.
type AggFunc string

const (
	Sum   AggFunc = "sum"
	Min   AggFunc = "min"
	Max   AggFunc = "max"
	Avg   AggFunc = "avg"
	Total AggFunc = "count"
)

// Aggregate reduces Column of Table with Func.
type Aggregate struct {
	Table  *Table
	Func   AggFunc
	Column string
}

func (o *Aggregate) FlatArgs() []any { return []any{o.Table, o.Func, o.Column} }

// Literal is a constant.
type Literal struct {
	Value any
}

func (o *Literal) FlatArgs() []any { return []any{o.Value} }

// Param is a placeholder bound from execution parameters.
type Param struct {
	Name string
}

func (o *Param) FlatArgs() []any { return []any{o.Name} }
