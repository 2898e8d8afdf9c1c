package expr

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq        CompareOp = "="
	OpNotEq     CompareOp = "<>"
	OpLt        CompareOp = "<"
	OpLe        CompareOp = "<="
	OpGt        CompareOp = ">"
	OpGe        CompareOp = ">="
	OpIsNull    CompareOp = "IS NULL"
	OpIsNotNull CompareOp = "IS NOT NULL"
)

// Unary reports whether the operator takes no right-hand value.
func (op CompareOp) Unary() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// Predicate compares a column to a value. Value is a Go literal or an Expr;
// scalar expressions compile to subqueries and parameters are bound late.
type Predicate struct {
	Column string
	Op     CompareOp
	Value  any
}

func Eq(column string, v any) Predicate    { return Predicate{Column: column, Op: OpEq, Value: v} }
func NotEq(column string, v any) Predicate { return Predicate{Column: column, Op: OpNotEq, Value: v} }
func Lt(column string, v any) Predicate    { return Predicate{Column: column, Op: OpLt, Value: v} }
func Le(column string, v any) Predicate    { return Predicate{Column: column, Op: OpLe, Value: v} }
func Gt(column string, v any) Predicate    { return Predicate{Column: column, Op: OpGt, Value: v} }
func Ge(column string, v any) Predicate    { return Predicate{Column: column, Op: OpGe, Value: v} }
func IsNull(column string) Predicate       { return Predicate{Column: column, Op: OpIsNull} }
func IsNotNull(column string) Predicate    { return Predicate{Column: column, Op: OpIsNotNull} }

// SortKey orders by Column.
type SortKey struct {
	Column     string
	Descending bool
}

// Asc sorts column ascending.
func Asc(column string) SortKey { return SortKey{Column: column} }

// Desc sorts column descending.
func Desc(column string) SortKey { return SortKey{Column: column, Descending: true} }
