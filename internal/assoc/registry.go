package assoc

import (
	"fmt"
	"sort"
	"sync"
)

// Body is the evaluator of an action. EvaluateOverride reads the action's
// records and parameters, rewrites the objects it owns and returns nil, or
// returns an error leaving the action FailedToEvaluate. A body that cannot
// continue because its input disappeared calls a.MarkErased and returns nil.
type Body interface {
	Kind() string
	EvaluateOverride(ec *EvaluationContext, a *Action) error
}

// Binder is implemented by bodies that finish configuring themselves from
// their action once it exists: its parameters, records and id.
type Binder interface {
	Bind(a *Action) error
}

// Factory builds an unbound body of one kind. A body that implements Binder
// is bound by Action.Bind after its action's parameters are set.
type Factory func() Body

// Registry maps kind tags to body factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for kind.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKind, kind)
	}
	r.factories[kind] = f
	return nil
}

// New builds a body of the given kind.
func (r *Registry) New(kind string) (Body, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f(), nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
