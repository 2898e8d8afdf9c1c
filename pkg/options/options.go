// Package options holds process-wide defaults consulted during execution.
package options

import (
	"sync"

	"github.com/TFMV/relay/pkg/expr"
)

var (
	mu             sync.RWMutex
	defaultBackend expr.Backend
	defaultLimit   int64
)

// DefaultBackend returns the backend used for expressions that reference
// none, or nil.
func DefaultBackend() expr.Backend {
	mu.RLock()
	defer mu.RUnlock()
	return defaultBackend
}

// SetDefaultBackend sets the fallback backend. Nil clears it.
func SetDefaultBackend(b expr.Backend) {
	mu.Lock()
	defer mu.Unlock()
	defaultBackend = b
}

// DefaultLimit returns the row cap applied to unlimited queries. Zero means
// no cap.
func DefaultLimit() int64 {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLimit
}

// SetDefaultLimit sets the default row cap.
func SetDefaultLimit(n int64) {
	mu.Lock()
	defer mu.Unlock()
	defaultLimit = n
}

// Reset clears all defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	defaultBackend = nil
	defaultLimit = 0
}
