package duckdb

import (
	"context"
	"math/big"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb/v2"

	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
)

// connection rewrites driver-specific values into plain Go values.
type connection struct {
	cursor.Connection
}

func (c connection) Execute(ctx context.Context, stmt string) (cursor.Cursor, error) {
	cur, err := c.Connection.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return normalizingCursor{cur}, nil
}

type normalizingCursor struct {
	cursor.Cursor
}

func (n normalizingCursor) FetchAll(ctx context.Context) ([][]any, error) {
	rows, err := n.Cursor.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	cols := n.Columns()
	for _, row := range rows {
		for i, v := range row {
			var dbType string
			if i < len(cols) {
				dbType = cols[i].DatabaseType
			}
			if row[i], err = normalize(dbType, v); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

// normalize converts a scanned value to the Go value its column type maps
// to. dbType is the column's DuckDB type name and may be empty.
func normalize(dbType string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case duckdb.Decimal:
		return decimalString(x.Value, int(x.Scale)), nil
	case *duckdb.Decimal:
		if x == nil {
			return nil, nil
		}
		return decimalString(x.Value, int(x.Scale)), nil
	}

	switch strings.ToUpper(dbType) {
	case "UUID":
		return uuidString(v)
	case "JSON":
		return jsonString(v)
	default:
		return v, nil
	}
}

// uuidString renders a UUID column value in canonical form. The driver
// scans UUIDs as their 16 raw bytes.
func uuidString(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		id, err := uuid.FromBytes(x)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeExecutionFailed, "malformed UUID value")
		}
		return id.String(), nil
	case duckdb.UUID:
		return uuid.UUID(x).String(), nil
	case uuid.UUID:
		return x.String(), nil
	default:
		return v, nil
	}
}

// jsonString re-encodes a decoded JSON column value as JSON text.
func jsonString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeExecutionFailed, "cannot encode JSON value")
		}
		return string(b), nil
	}
}

// decimalString renders an unscaled integer with scale fractional digits.
func decimalString(unscaled *big.Int, scale int) string {
	if unscaled == nil {
		return "0"
	}
	digits := new(big.Int).Abs(unscaled).String()
	if scale > 0 {
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if unscaled.Sign() < 0 {
		return "-" + digits
	}
	return digits
}
