package compiler

import "regexp"

// StatementKind is the broad category of a SQL statement.
type StatementKind int

const (
	KindOther       StatementKind = iota // unrecognized
	KindQuery                            // SELECT, WITH, VALUES, TABLE, FROM
	KindDDL                              // CREATE, DROP, ALTER, TRUNCATE
	KindDML                              // INSERT, UPDATE, DELETE, MERGE, COPY
	KindTransaction                      // BEGIN, COMMIT, ROLLBACK, SAVEPOINT
	KindUtility                          // SHOW, DESCRIBE, EXPLAIN, PRAGMA
)

// String returns the string representation of the kind.
func (k StatementKind) String() string {
	switch k {
	case KindQuery:
		return "QUERY"
	case KindDDL:
		return "DDL"
	case KindDML:
		return "DML"
	case KindTransaction:
		return "TCL"
	case KindUtility:
		return "UTILITY"
	default:
		return "OTHER"
	}
}

// ReturnsRows reports whether statements of this kind produce a result set.
func (k StatementKind) ReturnsRows() bool {
	return k == KindQuery || k == KindUtility
}

var leadingComments = regexp.MustCompile(`^(\s*(--[^\n]*(\n|$)|/\*(?s:.*?)\*/))*\s*`)

var kindPatterns = []struct {
	kind StatementKind
	re   *regexp.Regexp
}{
	{KindQuery, regexp.MustCompile(`(?i)^(SELECT|WITH|VALUES|TABLE|FROM)\b`)},
	{KindQuery, regexp.MustCompile(`(?i)^\(\s*SELECT\b`)},
	{KindDDL, regexp.MustCompile(`(?i)^(CREATE|DROP|ALTER|TRUNCATE|RENAME|COMMENT\s+ON)\b`)},
	{KindDML, regexp.MustCompile(`(?i)^(INSERT|UPDATE|DELETE|REPLACE|MERGE|UPSERT|COPY)\b`)},
	{KindTransaction, regexp.MustCompile(`(?i)^(BEGIN|START\s+TRANSACTION|COMMIT|ROLLBACK|SAVEPOINT|RELEASE|SET\s+TRANSACTION)\b`)},
	{KindUtility, regexp.MustCompile(`(?i)^(SHOW|DESCRIBE|DESC|EXPLAIN|PRAGMA|SUMMARIZE)\b`)},
}

// Classify returns the kind of stmt from its leading keyword. Leading
// comments are skipped.
func Classify(stmt string) StatementKind {
	s := leadingComments.ReplaceAllString(stmt, "")
	for _, p := range kindPatterns {
		if p.re.MatchString(s) {
			return p.kind
		}
	}
	return KindOther
}
