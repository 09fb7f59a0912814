package filter

import (
	"sort"
	"sync"

	"github.com/norjs/nopg/internal/nerr"
)

// Function is a named predicate function a BIND node may reference.
// Functions are registered statically at startup; a filter specification can
// only name them, never transmit executable source. The database-side
// dispatch procedure resolves the name to its trusted implementation.
type Function struct {
	Name       string // Registered name, matched exactly at compile time
	ReturnType string // SQL cast of the call result; "boolean" when empty
}

// Registry is the closed set of predicate functions available to BIND
// nodes. Safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Function)}
}

// Register adds a function to the registry. Registering a name twice fails.
func (r *Registry) Register(fn Function) error {
	if fn.Name == "" || !isIdent(fn.Name) {
		return nerr.Newf(nerr.ErrInvalidPredicate, "invalid predicate function name %q", fn.Name)
	}
	if fn.ReturnType == "" {
		fn.ReturnType = "boolean"
	} else if !isIdent(fn.ReturnType) {
		return nerr.Newf(nerr.ErrInvalidPredicate, "invalid return type %q for predicate function %q", fn.ReturnType, fn.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fns[fn.Name]; exists {
		return nerr.Newf(nerr.ErrInvalidPredicate, "predicate function %q already registered", fn.Name)
	}
	r.fns[fn.Name] = fn
	return nil
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.fns[name]
	return fn, ok
}

// Names returns all registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isIdent reports whether s is a plain lower-case identifier.
func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}
