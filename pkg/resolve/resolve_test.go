package resolve

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/options"
)

// fakeBackend carries configuration that is equal across instances; only
// the ID distinguishes them.
type fakeBackend struct {
	id  uuid.UUID
	dsn string
}

func (b *fakeBackend) BackendID() uuid.UUID { return b.id }

func newBackend() *fakeBackend {
	return &fakeBackend{id: uuid.New(), dsn: "memory"}
}

func tableOn(b expr.Backend, name string) *expr.Table {
	return expr.NewTable(&expr.DatabaseTable{Name: name, Source: b})
}

func TestFindBackendSingle(t *testing.T) {
	b := newBackend()
	orders := tableOn(b, "orders")
	e := orders.
		Filter(expr.Gt("total", orders.Aggregate(expr.Avg, "total"))).
		Union(tableOn(b, "archive"), false).
		Count()

	got, err := FindBackend(e)
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.Len(t, Backends(e), 1)
}

func TestFindBackendSameIDDistinctInstances(t *testing.T) {
	id := uuid.New()
	a := &fakeBackend{id: id}
	b := &fakeBackend{id: id}

	got, err := FindBackend(tableOn(a, "x").Union(tableOn(b, "y"), true))
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestFindBackendAmbiguous(t *testing.T) {
	a, b := newBackend(), newBackend()
	e := tableOn(a, "x").Filter(expr.Eq("k", tableOn(b, "y").Count()))

	_, err := FindBackend(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAmbiguousBackend)

	var re *errors.RelayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{a.id.String(), b.id.String()}, re.Details["backends"])
}

func TestFindBackendDefault(t *testing.T) {
	t.Cleanup(options.Reset)

	_, err := FindBackend(expr.Lit(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoBackend)

	def := newBackend()
	options.SetDefaultBackend(def)

	got, err := FindBackend(expr.Lit(1))
	require.NoError(t, err)
	assert.Same(t, def, got)

	// A referenced backend beats the default.
	b := newBackend()
	got, err = FindBackend(tableOn(b, "t"))
	require.NoError(t, err)
	assert.Same(t, b, got)
}

func TestBackendsOrder(t *testing.T) {
	a, b := newBackend(), newBackend()
	e := tableOn(b, "x").Union(tableOn(a, "y"), false).Union(tableOn(b, "z"), false)

	found := Backends(e)
	require.Len(t, found, 2)
	assert.Same(t, b, found[0])
	assert.Same(t, a, found[1])
	assert.Nil(t, Backends(nil))
}

func TestBackendsSkipsNilOperands(t *testing.T) {
	b := newBackend()
	e := expr.NewTable(&expr.Union{Left: nil, Right: tableOn(b, "y")})

	var found []expr.Backend
	require.NotPanics(t, func() { found = Backends(e) })
	require.Len(t, found, 1)
	assert.Same(t, b, found[0])

	var nilTable *expr.Table
	assert.Empty(t, Backends(expr.NewTable(&expr.Projection{Table: nilTable, Columns: []string{"a"}})))
	assert.Empty(t, Backends(nilTable))
}
