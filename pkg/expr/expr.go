// Package expr defines the expression graph relay dispatches.
//
// An expression wraps an Operator. Operators expose their direct operands
// through FlatArgs, which is the only view the resolver and compiler need:
// sub-expressions, backend references and opaque values (names, schemas,
// literals) in declaration order.
package expr

import (
	"github.com/google/uuid"
)

// Backend is a handle on a data-serving target. Two backends are the same
// backend only when their IDs match; configuration equality is irrelevant.
type Backend interface {
	BackendID() uuid.UUID
}

// Operator is a node in the expression graph.
type Operator interface {
	// FlatArgs returns the operator's direct operands in order.
	FlatArgs() []any
}

// Expr is an immutable expression.
type Expr interface {
	// Op returns the operator this expression wraps.
	Op() Operator
	// Scalar reports whether the expression evaluates to a single value.
	Scalar() bool
}

// Table is a table-valued expression.
type Table struct {
	op Operator
}

// NewTable wraps op in a table expression.
func NewTable(op Operator) *Table {
	return &Table{op: op}
}

// Op returns the table's operator, or nil for a nil table.
func (t *Table) Op() Operator {
	if t == nil {
		return nil
	}
	return t.op
}

// Scalar is always false for tables.
func (t *Table) Scalar() bool { return false }

// Select projects the named columns.
func (t *Table) Select(columns ...string) *Table {
	return NewTable(&Projection{Table: t, Columns: columns})
}

// Filter keeps rows matching every predicate.
func (t *Table) Filter(predicates ...Predicate) *Table {
	return NewTable(&Selection{Table: t, Predicates: predicates})
}

// OrderBy sorts rows by keys.
func (t *Table) OrderBy(keys ...SortKey) *Table {
	return NewTable(&Sort{Table: t, Keys: keys})
}

// Limit caps the number of rows, skipping offset rows first.
func (t *Table) Limit(n, offset int64) *Table {
	return NewTable(&Limit{Table: t, N: n, Offset: offset})
}

// Union concatenates the rows of t and other. Duplicates are removed when
// distinct is set.
func (t *Table) Union(other *Table, distinct bool) *Table {
	return NewTable(&Union{Left: t, Right: other, Distinct: distinct})
}

// Materialize stores t in a temporary table called name and reads from it.
func (t *Table) Materialize(name string) *Table {
	return NewTable(&Materialize{Table: t, Name: name})
}

// Count counts the rows of t.
func (t *Table) Count() *Value {
	return NewValue(&Count{Table: t})
}

// Aggregate reduces column with fn.
func (t *Table) Aggregate(fn AggFunc, column string) *Value {
	return NewValue(&Aggregate{Table: t, Func: fn, Column: column})
}

// Value is a scalar expression.
type Value struct {
	op Operator
}

// NewValue wraps op in a scalar expression.
func NewValue(op Operator) *Value {
	return &Value{op: op}
}

// Op returns the value's operator, or nil for a nil value.
func (v *Value) Op() Operator {
	if v == nil {
		return nil
	}
	return v.op
}

// Scalar is always true for values.
func (v *Value) Scalar() bool { return true }

// Lit returns a literal scalar expression.
func Lit(v any) *Value {
	return NewValue(&Literal{Value: v})
}

// NewParam returns a named parameter, bound at execution time.
func NewParam(name string) *Value {
	return NewValue(&Param{Name: name})
}
