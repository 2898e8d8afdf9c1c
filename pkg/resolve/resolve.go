// Package resolve finds the backend an expression belongs to.
package resolve

import (
	"github.com/google/uuid"

	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/options"
)

// FindBackend returns the single backend e depends on. An expression that
// references no backend resolves to options.DefaultBackend. Backends are
// compared by BackendID only.
func FindBackend(e expr.Expr) (expr.Backend, error) {
	found := Backends(e)

	switch len(found) {
	case 0:
		if b := options.DefaultBackend(); b != nil {
			return b, nil
		}
		return nil, errors.ErrNoBackend
	case 1:
		return found[0], nil
	default:
		ids := make([]string, len(found))
		for i, b := range found {
			ids[i] = b.BackendID().String()
		}
		return nil, errors.New(errors.CodeAmbiguousBackend, errors.ErrAmbiguousBackend.Message).
			WithDetail("backends", ids)
	}
}

// Backends returns the distinct backends reachable from e in depth-first
// order of first appearance.
func Backends(e expr.Expr) []expr.Backend {
	if e == nil {
		return nil
	}
	w := &walker{seen: make(map[uuid.UUID]struct{})}
	if op := e.Op(); op != nil {
		w.visit(op)
	}
	return w.found
}

type walker struct {
	seen  map[uuid.UUID]struct{}
	found []expr.Backend
}

func (w *walker) visit(op expr.Operator) {
	for _, arg := range op.FlatArgs() {
		switch a := arg.(type) {
		case expr.Backend:
			id := a.BackendID()
			if _, ok := w.seen[id]; ok {
				continue
			}
			w.seen[id] = struct{}{}
			w.found = append(w.found, a)
		case expr.Expr:
			if op := a.Op(); op != nil {
				w.visit(op)
			}
		}
	}
}
