package result

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/relay/pkg/errors"
)

// Materialize converts row tuples into a Table shaped by cols.
//
// Every column is built independently. A column whose values cannot be
// coerced to its declared type is kept as an untyped column of the raw
// values, with the reason stored in Column.CoercionErr; it never fails the
// call. Zero rows yield an empty table with the declared column types.
func Materialize(alloc memory.Allocator, rows [][]any, cols []ColumnDescriptor) (*Table, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := index[c.Name]; dup {
			return nil, errors.Newf(errors.CodeInvalidRequest, "duplicate column name %q", c.Name)
		}
		index[c.Name] = i
	}

	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, errors.Newf(errors.CodeInternal, "row %d has %d values, expected %d", i, len(row), len(cols))
		}
	}

	t := &Table{
		columns: make([]*Column, len(cols)),
		index:   index,
		rows:    len(rows),
	}

	for j, desc := range cols {
		values := make([]any, len(rows))
		for i, row := range rows {
			values[i] = row[j]
		}

		col := &Column{Name: desc.Name, Type: desc.Type}
		if desc.Type == nil {
			col.Raw = values
			t.columns[j] = col
			continue
		}

		arr, err := buildArray(alloc, desc, values)
		if err != nil {
			col.Type = nil
			col.Raw = values
			col.CoercionErr = errors.Wrapf(err, errors.CodeCoercionFailed, "column %q declared as %s", desc.Name, desc.Type)
		} else {
			col.Array = arr
		}
		t.columns[j] = col
	}

	return t, nil
}

// Fallbacks returns the columns that could not keep their declared type.
func (t *Table) Fallbacks() []*Column {
	var out []*Column
	for _, c := range t.columns {
		if c.CoercionErr != nil {
			out = append(out, c)
		}
	}
	return out
}

func buildArray(alloc memory.Allocator, desc ColumnDescriptor, values []any) (arrow.Array, error) {
	if !buildable(desc.Type) {
		return nil, errors.Newf(errors.CodeUnsupportedType, "no builder for %s", desc.Type)
	}

	b := array.NewBuilder(alloc, desc.Type)
	defer b.Release()
	b.Reserve(len(values))

	for i, v := range values {
		if v == nil {
			if !desc.Nullable {
				return nil, fmt.Errorf("row %d: null in non-nullable column", i)
			}
			b.AppendNull()
			continue
		}
		if err := appendValue(b, desc.Type, v); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	return b.NewArray(), nil
}

func buildable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64,
		arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY,
		arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP, arrow.TIME32, arrow.TIME64,
		arrow.DECIMAL128:
		return true
	default:
		return false
	}
}

// appendValue appends a non-nil raw value to the builder for dt.
func appendValue(b array.Builder, dt arrow.DataType, v any) error {
	switch fb := b.(type) {
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(bv)

	case *array.Int8Builder:
		n, err := intInRange(v, dt, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		fb.Append(int8(n))
	case *array.Int16Builder:
		n, err := intInRange(v, dt, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		fb.Append(int16(n))
	case *array.Int32Builder:
		n, err := intInRange(v, dt, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		fb.Append(int32(n))
	case *array.Int64Builder:
		n, err := intInRange(v, dt, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		fb.Append(n)

	case *array.Uint8Builder:
		n, err := uintInRange(v, dt, math.MaxUint8)
		if err != nil {
			return err
		}
		fb.Append(uint8(n))
	case *array.Uint16Builder:
		n, err := uintInRange(v, dt, math.MaxUint16)
		if err != nil {
			return err
		}
		fb.Append(uint16(n))
	case *array.Uint32Builder:
		n, err := uintInRange(v, dt, math.MaxUint32)
		if err != nil {
			return err
		}
		fb.Append(uint32(n))
	case *array.Uint64Builder:
		n, err := uintInRange(v, dt, math.MaxUint64)
		if err != nil {
			return err
		}
		fb.Append(n)

	case *array.Float32Builder:
		f, ok := toFloat64(v)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(float32(f))
	case *array.Float64Builder:
		f, ok := toFloat64(v)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(f)

	case *array.StringBuilder:
		s, ok := toString(v)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(s)
	case *array.LargeStringBuilder:
		s, ok := toString(v)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(s)
	case *array.BinaryBuilder:
		switch bv := v.(type) {
		case []byte:
			fb.Append(bv)
		case string:
			fb.AppendString(bv)
		default:
			return mismatch(v, dt)
		}

	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(arrow.Date32FromTime(t))
	case *array.Date64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(arrow.Date64FromTime(t))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(arrow.Timestamp(sinceEpoch(t, dt.(*arrow.TimestampType).Unit)))
	case *array.Time32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(arrow.Time32(sinceMidnight(t, dt.(*arrow.Time32Type).Unit)))
	case *array.Time64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch(v, dt)
		}
		fb.Append(arrow.Time64(sinceMidnight(t, dt.(*arrow.Time64Type).Unit)))

	case *array.Decimal128Builder:
		n, err := toDecimal128(v, dt.(*arrow.Decimal128Type))
		if err != nil {
			return err
		}
		fb.Append(n)

	default:
		return fmt.Errorf("unsupported builder %T", b)
	}

	return nil
}

func mismatch(v any, dt arrow.DataType) error {
	return fmt.Errorf("cannot coerce %T to %s", v, dt)
}

func intInRange(v any, dt arrow.DataType, lo, hi int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows %s", x, dt)
		}
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows %s", x, dt)
		}
		n = int64(x)
	case *big.Int:
		if !x.IsInt64() {
			return 0, fmt.Errorf("value %s overflows %s", x, dt)
		}
		n = x.Int64()
	default:
		return 0, mismatch(v, dt)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("value %d overflows %s", n, dt)
	}
	return n, nil
}

func uintInRange(v any, dt arrow.DataType, hi uint64) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case uint:
		n = uint64(x)
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case int, int8, int16, int32, int64:
		s, _ := intInRange(v, arrow.PrimitiveTypes.Int64, math.MinInt64, math.MaxInt64)
		if s < 0 {
			return 0, fmt.Errorf("negative value %d for %s", s, dt)
		}
		n = uint64(s)
	case *big.Int:
		if x.Sign() < 0 || !x.IsUint64() {
			return 0, fmt.Errorf("value %s overflows %s", x, dt)
		}
		n = x.Uint64()
	default:
		return 0, mismatch(v, dt)
	}
	if n > hi {
		return 0, fmt.Errorf("value %d overflows %s", n, dt)
	}
	return n, nil
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return "", false
	}
}

func toDecimal128(v any, dt *arrow.Decimal128Type) (decimal128.Num, error) {
	switch x := v.(type) {
	case string:
		return decimal128.FromString(x, dt.Precision, dt.Scale)
	case float64:
		return decimal128.FromFloat64(x, dt.Precision, dt.Scale)
	case float32:
		return decimal128.FromFloat64(float64(x), dt.Precision, dt.Scale)
	case fmt.Stringer:
		return decimal128.FromString(x.String(), dt.Precision, dt.Scale)
	}
	if n, err := intInRange(v, dt, math.MinInt64, math.MaxInt64); err == nil {
		return decimal128.FromString(fmt.Sprintf("%d", n), dt.Precision, dt.Scale)
	}
	return decimal128.Num{}, mismatch(v, dt)
}

func sinceEpoch(t time.Time, unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return t.Unix()
	case arrow.Millisecond:
		return t.UnixMilli()
	case arrow.Nanosecond:
		return t.UnixNano()
	default:
		return t.UnixMicro()
	}
}

func sinceMidnight(t time.Time, unit arrow.TimeUnit) int64 {
	d := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	switch unit {
	case arrow.Second:
		return int64(d / time.Second)
	case arrow.Millisecond:
		return int64(d / time.Millisecond)
	case arrow.Nanosecond:
		return int64(d)
	default:
		return int64(d / time.Microsecond)
	}
}
