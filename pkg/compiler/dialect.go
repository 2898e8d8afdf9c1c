package compiler

import (
	"strings"

	"github.com/TFMV/relay/pkg/errors"
)

// Dialect captures the SQL differences between backends.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// MaterializeDDL returns the statements that store query under the
	// already quoted table name.
	MaterializeDDL(quotedName, query string) []string
	// Explain wraps query in the dialect's plan-inspection statement.
	Explain(query string) string
}

// ANSI quotes identifiers with double quotes and materializes with
// CREATE TEMP TABLE.
type ANSI struct{}

func (ANSI) Name() string { return "ansi" }

func (ANSI) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (ANSI) MaterializeDDL(quotedName, query string) []string {
	return []string{"CREATE TEMP TABLE " + quotedName + " AS\n" + query}
}

func (ANSI) Explain(query string) string { return "EXPLAIN " + query }

// DuckDB dialect.
type DuckDB struct{ ANSI }

func (DuckDB) Name() string { return "duckdb" }

func (DuckDB) MaterializeDDL(quotedName, query string) []string {
	return []string{"CREATE OR REPLACE TEMP TABLE " + quotedName + " AS\n" + query}
}

// SQLite dialect. SQLite has no CREATE OR REPLACE, so the table is dropped
// first.
type SQLite struct{ ANSI }

func (SQLite) Name() string { return "sqlite" }

func (SQLite) MaterializeDDL(quotedName, query string) []string {
	return []string{
		"DROP TABLE IF EXISTS " + quotedName,
		"CREATE TEMP TABLE " + quotedName + " AS\n" + query,
	}
}

func (SQLite) Explain(query string) string { return "EXPLAIN QUERY PLAN " + query }

// QualifiedName quotes each dot-separated part of name.
func QualifiedName(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// DialectByName returns the dialect called name: "ansi", "duckdb" or
// "sqlite". An empty name is ANSI.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "ansi":
		return ANSI{}, nil
	case "duckdb":
		return DuckDB{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidRequest, "unknown SQL dialect %q", name)
	}
}
