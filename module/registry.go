package module

import (
	"sync"

	"github.com/nodalis/framework/apperr"
)

// Registry is the compile-time module graph: a process-global append-only
// set of Descriptors populated before Build(). Concurrent readers are
// fine; writers (RegisterModule) synchronize through mu.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

var global = NewRegistry()

// Global returns the process-wide module registry used by package-level
// Register/CalculateLoadOrder convenience functions.
func Global() *Registry { return global }

// ResetRegistry clears the process-global registry. Test-only escape
// hatch: production bootstrap code must never call this, since the
// registry is meant to be append-only once Build() runs.
func ResetRegistry() { global = NewRegistry() }

// RegisterModule inserts a descriptor. Duplicate names fail with a
// RegistrationError wrapping DuplicateRegistrationError-equivalent detail.
func (r *Registry) RegisterModule(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Name]; exists {
		return &apperr.RegistrationError{Reason: "duplicate module " + d.Name}
	}
	r.descriptors[d.Name] = d
	return nil
}

func Register(d *Descriptor) error { return global.RegisterModule(d) }

// CalculateLoadOrder returns a permutation of all registered module names
// such that for every edge (A imports B), index(B) < index(A). Fails with
// a CircularDependencyError or MissingDependencyError.
func (r *Registry) CalculateLoadOrder() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortModules(r.descriptors)
}

func CalculateLoadOrder() ([]string, error) { return global.CalculateLoadOrder() }

// Get returns the descriptor for name, if registered.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// All returns every registered descriptor, in no particular order.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// CanResolve enforces the provider visibility rule: a provider is
// resolvable from requesterModule iff it is owned by requesterModule
// itself, or owned by a module requesterModule imports (transitively) AND
// listed in that owner's Exports.
func (r *Registry) CanResolve(requesterModule, ownerModule, providerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if requesterModule == ownerModule {
		return true
	}

	owner, ok := r.descriptors[ownerModule]
	if !ok || !owner.ownsProvider(providerName) {
		return false
	}
	if !owner.exportsProvider(providerName) {
		return false
	}

	return transitivelyImports(r.descriptors, requesterModule, ownerModule)
}

func CanResolve(requesterModule, ownerModule, providerName string) bool {
	return global.CanResolve(requesterModule, ownerModule, providerName)
}

// ResolveDependencies walks the load order and invokes contribute for each
// module's descriptor, in dependency order, so a container builder can
// register each module's providers once its imports have already been
// contributed.
func (r *Registry) ResolveDependencies(contribute func(*Descriptor) error) error {
	order, err := r.CalculateLoadOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		d, _ := r.Get(name)
		if err := contribute(d); err != nil {
			return &apperr.RegistrationError{Reason: "module " + name, Cause: err}
		}
	}
	return nil
}

func ResolveDependencies(contribute func(*Descriptor) error) error {
	return global.ResolveDependencies(contribute)
}
