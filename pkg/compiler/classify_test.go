package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		stmt string
		want StatementKind
	}{
		{"SELECT 1", KindQuery},
		{"  select * from t", KindQuery},
		{"WITH x AS (SELECT 1) SELECT * FROM x", KindQuery},
		{"(SELECT 1) UNION (SELECT 2)", KindQuery},
		{"FROM orders LIMIT 3", KindQuery},
		{"VALUES (1), (2)", KindQuery},
		{"-- leading\n/* block\ncomment */ SELECT 1", KindQuery},
		{"CREATE TABLE t (a INT)", KindDDL},
		{"drop table t", KindDDL},
		{"INSERT INTO t VALUES (1)", KindDML},
		{"COPY t FROM 'x.csv'", KindDML},
		{"BEGIN", KindTransaction},
		{"SET TRANSACTION ISOLATION LEVEL SERIALIZABLE", KindTransaction},
		{"SHOW TABLES", KindUtility},
		{"PRAGMA table_info('t')", KindUtility},
		{"SET threads = 4", KindOther},
		{"SELECTED", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.stmt), tt.stmt)
	}
}

func TestStatementKindReturnsRows(t *testing.T) {
	assert.True(t, KindQuery.ReturnsRows())
	assert.True(t, KindUtility.ReturnsRows())
	assert.False(t, KindDDL.ReturnsRows())
	assert.False(t, KindDML.ReturnsRows())
	assert.Equal(t, "UTILITY", KindUtility.String())
	assert.Equal(t, "OTHER", StatementKind(99).String())
}
