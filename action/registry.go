package action

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentlite/core"
)

// ErrRegistrySealed is returned when an action is registered after the
// registry has been sealed.
var ErrRegistrySealed = errors.New("action registry is sealed")

// Registry is the catalog of actions available to an agent. Names are unique
// and matched case-sensitively.
//
// A Registry is mutable until Seal is called; after that it is read-only and
// lookups no longer take the lock. Executors seal their registry on
// construction so that the set of actions cannot change while a reasoning
// loop is running.
type Registry struct {
	mu      sync.RWMutex
	sealed  atomic.Bool
	actions map[string]Action
	order   []string
}

// NewRegistry creates a registry holding the given actions.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an action. It fails with *core.DuplicateActionError when the
// name is taken and with ErrRegistrySealed once the registry is sealed.
func (r *Registry) Register(a Action) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if r.actions == nil {
		r.actions = map[string]Action{}
	}
	if _, ok := r.actions[a.Name()]; ok {
		return &core.DuplicateActionError{Name: a.Name()}
	}

	r.actions[a.Name()] = a
	r.order = append(r.order, a.Name())

	return nil
}

// MustRegister registers actions and panics on error. Intended for wiring
// code with static action sets.
func (r *Registry) MustRegister(actions ...Action) {
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the action with the given name or *core.UnknownActionError.
func (r *Registry) Lookup(name string) (Action, error) {
	if !r.sealed.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	if a, ok := r.actions[name]; ok {
		return a, nil
	}

	return nil, &core.UnknownActionError{Name: name, Available: r.sortedNames()}
}

// Has reports whether an action with the given name is registered.
func (r *Registry) Has(name string) bool {
	if !r.sealed.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	_, ok := r.actions[name]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	if !r.sealed.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Actions returns the registered actions in registration order.
func (r *Registry) Actions() []Action {
	if !r.sealed.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	out := make([]Action, len(r.order))
	for i, n := range r.order {
		out[i] = r.actions[n]
	}
	return out
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	if !r.sealed.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.order)
}

// Subset returns a new unsealed registry containing only the named actions.
// Unknown names yield *core.UnknownActionError.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	out := &Registry{actions: make(map[string]Action, len(names))}
	for _, n := range names {
		a, err := r.Lookup(n)
		if err != nil {
			return nil, err
		}
		if err := out.Register(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns an unsealed copy of the registry. Extra actions are
// registered on the copy after the existing ones.
func (r *Registry) Clone(extra ...Action) (*Registry, error) {
	out, err := NewRegistry(r.Actions()...)
	if err != nil {
		return nil, err
	}
	for _, a := range extra {
		if err := out.Register(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Seal makes the registry read-only. Sealing is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (r *Registry) sortedNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}
