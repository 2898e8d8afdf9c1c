// Package result materializes raw cursor rows into typed tables.
package result

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// ColumnDescriptor describes one result column.
type ColumnDescriptor struct {
	Name string
	// Type is the declared semantic type. A nil Type yields an untyped column.
	Type     arrow.DataType
	Nullable bool
	// DatabaseType is the backend's own type name, kept for display.
	DatabaseType string
}

// Column is a single named result column. Exactly one of Array and Raw is
// set: Array for columns that coerced to their declared type, Raw for
// untyped columns.
type Column struct {
	Name  string
	Type  arrow.DataType
	Array arrow.Array
	Raw   []any
	// CoercionErr records why a declared type was abandoned, if it was.
	CoercionErr error
}

// Typed reports whether the column holds an Arrow array.
func (c *Column) Typed() bool {
	return c.Array != nil
}

// Len returns the number of values.
func (c *Column) Len() int {
	if c.Array != nil {
		return c.Array.Len()
	}
	return len(c.Raw)
}

// Value returns the value at row i as a Go value; nulls are nil.
func (c *Column) Value(i int) any {
	if c.Array == nil {
		return c.Raw[i]
	}
	return ValueAt(c.Array, i)
}

// Table is an ordered, name-keyed set of equal-length columns.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns the columns in result order.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in result order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column called name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Row returns row i as a slice in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Value(i)
	}
	return row
}

// Release releases the Arrow memory held by typed columns.
func (t *Table) Release() {
	for _, c := range t.columns {
		if c.Array != nil {
			c.Array.Release()
			c.Array = nil
		}
	}
}
