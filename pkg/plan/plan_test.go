package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(n int64) *int64 { return &n }

func TestSelectRender(t *testing.T) {
	tests := []struct {
		name string
		sel  *Select
		want string
	}{
		{
			name: "star",
			sel:  &Select{From: `"orders"`},
			want: "SELECT *\nFROM \"orders\"",
		},
		{
			name: "full",
			sel: &Select{
				From:    `"orders"`,
				Columns: []string{`"id"`, `"total"`},
				Where:   []string{`"total" > 10`, `"status" = 'open'`},
				OrderBy: []string{`"id" DESC`},
				Limit:   &Limit{N: 5, Offset: 10},
			},
			want: "SELECT \"id\", \"total\"\nFROM \"orders\"\nWHERE \"total\" > 10 AND \"status\" = 'open'\nORDER BY \"id\" DESC\nLIMIT 5 OFFSET 10",
		},
		{
			name: "constant",
			sel:  &Select{Columns: []string{"1 AS tmp"}},
			want: "SELECT 1 AS tmp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sel.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectRenderEmpty(t *testing.T) {
	_, err := (&Select{}).Render()
	assert.Error(t, err)
}

func TestSequenceRender(t *testing.T) {
	seq := Sequence{
		&Statement{Text: "CREATE TEMP TABLE x AS SELECT 1"},
		&Select{From: "x"},
	}
	got, err := seq.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TEMP TABLE x AS SELECT 1", "SELECT *\nFROM x"}, got)
}

func TestApplyLimitDefaultInjection(t *testing.T) {
	sel := &Select{From: "t"}
	ApplyLimit(Sequence{sel}, false, nil, 100)
	assert.Equal(t, &Limit{N: 100, Offset: 0}, sel.Limit)
}

func TestApplyLimitCallerWins(t *testing.T) {
	sel := &Select{From: "t"}
	ApplyLimit(Sequence{sel}, false, int64p(7), 100)
	assert.Equal(t, &Limit{N: 7, Offset: 0}, sel.Limit)
}

func TestApplyLimitPreservesOffset(t *testing.T) {
	sel := &Select{From: "t", Limit: &Limit{N: 10, Offset: 5}}
	ApplyLimit(Sequence{sel}, false, int64p(20), 100)
	assert.Equal(t, &Limit{N: 20, Offset: 5}, sel.Limit)
}

func TestApplyLimitKeepsExplicitLimitWithoutCaller(t *testing.T) {
	sel := &Select{From: "t", Limit: &Limit{N: 10, Offset: 5}}
	ApplyLimit(Sequence{sel}, false, nil, 100)
	assert.Equal(t, &Limit{N: 10, Offset: 5}, sel.Limit)
}

func TestApplyLimitNoDefault(t *testing.T) {
	sel := &Select{From: "t"}
	ApplyLimit(Sequence{sel}, false, nil, 0)
	assert.Nil(t, sel.Limit)

	// A zero caller limit defers to the default.
	ApplyLimit(Sequence{sel}, false, int64p(0), 0)
	assert.Nil(t, sel.Limit)
}

func TestApplyLimitScalar(t *testing.T) {
	sel := &Select{From: "t", Columns: []string{"count(*) AS count"}}
	ApplyLimit(Sequence{sel}, true, int64p(10), 100)
	assert.Nil(t, sel.Limit)
}

func TestApplyLimitIdempotent(t *testing.T) {
	for _, caller := range []*int64{nil, int64p(20)} {
		a := &Select{From: "t", Limit: &Limit{N: 3, Offset: 2}}
		b := &Select{From: "u"}

		ApplyLimit(Sequence{a}, false, caller, 50)
		ApplyLimit(Sequence{b}, false, caller, 50)
		firstA, firstB := *a.Limit, *b.Limit

		ApplyLimit(Sequence{a}, false, caller, 50)
		ApplyLimit(Sequence{b}, false, caller, 50)
		assert.Equal(t, firstA, *a.Limit)
		assert.Equal(t, firstB, *b.Limit)
	}
}

func TestApplyLimitOnlyOutermostPlan(t *testing.T) {
	first := &Select{From: "a"}
	setup := &Statement{Text: "CREATE TEMP TABLE b AS SELECT 1"}
	last := &Select{From: "b"}
	trailing := &Statement{Text: "-- done"}

	ApplyLimit(Sequence{first, setup, last, trailing}, false, nil, 25)

	assert.Nil(t, first.Limit)
	assert.Equal(t, &Limit{N: 25, Offset: 0}, last.Limit)
}

func TestApplyLimitNoRowProducingPlan(t *testing.T) {
	stmt := &Statement{Text: "DROP TABLE x"}
	ApplyLimit(Sequence{stmt}, false, int64p(5), 5)
	assert.Nil(t, stmt.RowLimit())
}
