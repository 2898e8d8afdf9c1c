// Package relay executes query expressions against the backend they
// belong to.
//
// The backend is found by walking the expression (see pkg/resolve). Callers
// holding a *client.Client can call its methods directly and skip
// resolution.
package relay

import (
	"context"
	"fmt"

	"github.com/TFMV/relay/pkg/client"
	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
	"github.com/TFMV/relay/pkg/resolve"
)

// Executor is a backend that can run expressions.
type Executor interface {
	expr.Backend
	Execute(ctx context.Context, e expr.Expr, opts ...client.ExecOption) (any, error)
	Compile(e expr.Expr, opts ...client.ExecOption) (client.Statements, error)
	Explain(ctx context.Context, e expr.Expr, opts ...client.ExecOption) (string, error)
}

var _ Executor = (*client.Client)(nil)

// Execute runs e on its backend and returns the value of the last plan.
func Execute(ctx context.Context, e expr.Expr, opts ...client.ExecOption) (any, error) {
	ex, err := executorFor(e)
	if err != nil {
		return nil, err
	}
	return ex.Execute(ctx, e, opts...)
}

// Compile renders e for its backend without running it.
func Compile(e expr.Expr, opts ...client.ExecOption) (client.Statements, error) {
	ex, err := executorFor(e)
	if err != nil {
		return nil, err
	}
	return ex.Compile(e, opts...)
}

// Explain returns the backend's plan for e.
func Explain(ctx context.Context, e expr.Expr, opts ...client.ExecOption) (string, error) {
	ex, err := executorFor(e)
	if err != nil {
		return "", err
	}
	return ex.Explain(ctx, e, opts...)
}

func executorFor(e expr.Expr) (Executor, error) {
	b, err := resolve.FindBackend(e)
	if err != nil {
		return nil, err
	}
	ex, ok := b.(Executor)
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidRequest, "backend %s cannot execute expressions", b.BackendID()).
			WithDetail("backend_type", fmt.Sprintf("%T", b))
	}
	return ex, nil
}
