package duckdb

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/TFMV/relay/pkg/errors"
)

var typeMap = map[string]arrow.DataType{
	"tinyint":   arrow.PrimitiveTypes.Int8,
	"smallint":  arrow.PrimitiveTypes.Int16,
	"integer":   arrow.PrimitiveTypes.Int32,
	"int":       arrow.PrimitiveTypes.Int32,
	"bigint":    arrow.PrimitiveTypes.Int64,
	"hugeint":   arrow.PrimitiveTypes.Int64, // values beyond int64 fall back to untyped
	"utinyint":  arrow.PrimitiveTypes.Uint8,
	"usmallint": arrow.PrimitiveTypes.Uint16,
	"uinteger":  arrow.PrimitiveTypes.Uint32,
	"uint":      arrow.PrimitiveTypes.Uint32,
	"ubigint":   arrow.PrimitiveTypes.Uint64,

	"real":   arrow.PrimitiveTypes.Float32,
	"float":  arrow.PrimitiveTypes.Float32,
	"double": arrow.PrimitiveTypes.Float64,

	"boolean": arrow.FixedWidthTypes.Boolean,
	"bool":    arrow.FixedWidthTypes.Boolean,

	"varchar": arrow.BinaryTypes.String,
	"text":    arrow.BinaryTypes.String,
	"string":  arrow.BinaryTypes.String,
	"enum":    arrow.BinaryTypes.String,
	"uuid":    arrow.BinaryTypes.String,
	"json":    arrow.BinaryTypes.String,

	"blob":      arrow.BinaryTypes.Binary,
	"bytea":     arrow.BinaryTypes.Binary,
	"varbinary": arrow.BinaryTypes.Binary,

	"date":                     arrow.FixedWidthTypes.Date32,
	"time":                     arrow.FixedWidthTypes.Time64us,
	"timestamp":                arrow.FixedWidthTypes.Timestamp_us,
	"timestamp_s":              arrow.FixedWidthTypes.Timestamp_s,
	"timestamp_ms":             arrow.FixedWidthTypes.Timestamp_ms,
	"timestamp_ns":             arrow.FixedWidthTypes.Timestamp_ns,
	"timestamptz":              &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"},
	"timestamp with time zone": &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"},
}

var decimalPattern = regexp.MustCompile(`^(decimal|numeric)\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

// TypeOf maps a DuckDB type name to an Arrow type. Nested types (LIST,
// STRUCT, MAP, UNION) and INTERVAL have no mapping.
func TypeOf(duckdbType string) (arrow.DataType, error) {
	name := strings.ToLower(strings.TrimSpace(duckdbType))
	if dt, ok := typeMap[name]; ok {
		return dt, nil
	}

	if name == "decimal" || name == "numeric" {
		return &arrow.Decimal128Type{Precision: 18, Scale: 3}, nil
	}
	if m := decimalPattern.FindStringSubmatch(name); m != nil {
		p, _ := strconv.ParseInt(m[2], 10, 32)
		s, _ := strconv.ParseInt(m[3], 10, 32)
		if p < 1 || p > 38 {
			return nil, errors.Newf(errors.CodeUnsupportedType, "precision %d out of range (1-38) for %s", p, duckdbType)
		}
		if s > p {
			return nil, errors.Newf(errors.CodeUnsupportedType, "scale %d out of range (0-%d) for %s", s, p, duckdbType)
		}
		return &arrow.Decimal128Type{Precision: int32(p), Scale: int32(s)}, nil
	}

	return nil, errors.Newf(errors.CodeUnsupportedType, "unsupported DuckDB type: %s", duckdbType)
}
