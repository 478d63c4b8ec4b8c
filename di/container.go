package di

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/nodalis/framework/apperr"
)

// Container is the immutable, built snapshot of a Builder: descriptors and
// collections never change after Build(), only the instance caches do.
type Container struct {
	descriptors map[ServiceId]*ServiceDescriptor
	collections map[reflect.Type][]*ServiceDescriptor

	mu                sync.Mutex
	singletons        map[ServiceId]any
	constructionOrder []ServiceId
	// failed caches a singleton construction failure so that a second
	// Resolve of the same broken service returns the same error instead of
	// retrying and potentially succeeding inconsistently.
	failed map[ServiceId]error

	lifecycle  *lifecycleManager
	visibility VisibilityPolicy
}

func newContainer(descriptors map[ServiceId]*ServiceDescriptor, collections map[reflect.Type][]*ServiceDescriptor, visibility VisibilityPolicy) *Container {
	return &Container{
		descriptors: descriptors,
		collections: collections,
		singletons:  make(map[ServiceId]any),
		failed:      make(map[ServiceId]error),
		lifecycle:   newLifecycleManager(),
		visibility:  visibility,
	}
}

// Scope is a request-scoped (or job-scoped) resolution boundary: Scoped
// services resolve once per Scope and are disposed when the Scope ends.
type Scope struct {
	container *Container
	mu        sync.Mutex
	instances map[ServiceId]any
	disposers []disposer
}

// BeginScope opens a new Scope bound to c.
func (c *Container) BeginScope() *Scope {
	return &Scope{container: c, instances: make(map[ServiceId]any)}
}

func resolveValue[T any](c *Container, scope *Scope, name, requester string) (T, error) {
	var zero T
	id := ServiceId{Type: reflect.TypeOf(&zero).Elem(), Name: name}
	v, err := c.resolve(scope, id, make(map[ServiceId]bool), requester)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &apperr.ResolutionError{ServiceType: id.Type, ServiceName: name, Reason: "resolved value has unexpected type"}
	}
	return typed, nil
}

// Resolve returns the singleton or transient instance of T, on behalf of
// the application host (no module boundary applies). Resolving a Scoped
// service outside a Scope fails.
func Resolve[T any](c *Container) (T, error) { return resolveValue[T](c, nil, "", "") }

// ResolveNamed resolves T registered under name.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	return resolveValue[T](c, nil, name, "")
}

// ResolveFrom resolves T on behalf of module: a provider owned by another
// module must be exported by its owner and importable per the installed
// visibility policy.
func ResolveFrom[T any](c *Container, module string) (T, error) {
	return resolveValue[T](c, nil, "", module)
}

// ResolveNamedFrom is ResolveFrom for a named registration.
func ResolveNamedFrom[T any](c *Container, module, name string) (T, error) {
	return resolveValue[T](c, nil, name, module)
}

// ResolveScoped resolves T within scope, required for Scoped lifetimes.
func ResolveScoped[T any](c *Container, scope *Scope) (T, error) {
	return resolveValue[T](c, scope, "", "")
}

// ResolveScopedFrom is ResolveScoped on behalf of module.
func ResolveScopedFrom[T any](c *Container, scope *Scope, module string) (T, error) {
	return resolveValue[T](c, scope, "", module)
}

// MustResolve panics if Resolve fails. Reserved for application bootstrap
// where a missing core service is unrecoverable.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// ResolveAll returns every eligible instance registered against T, ordered
// by descending Priority then registration order.
func ResolveAll[T any](c *Container) ([]T, error) { return resolveAllFrom[T](c, "") }

// ResolveAllFrom is ResolveAll on behalf of module; collection members
// the module may not see are skipped rather than failing the whole
// collection.
func ResolveAllFrom[T any](c *Container, module string) ([]T, error) {
	return resolveAllFrom[T](c, module)
}

func resolveAllFrom[T any](c *Container, requester string) ([]T, error) {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	descs := c.collections[t]
	out := make([]T, 0, len(descs))
	for _, d := range descs {
		if err := c.checkVisibility(d, requester); err != nil {
			continue
		}
		v, err := c.resolve(nil, d.ServiceId, make(map[ServiceId]bool), requester)
		if err != nil {
			return nil, err
		}
		typed, ok := v.(T)
		if !ok {
			return nil, &apperr.ResolutionError{ServiceType: t, Reason: "collection member has unexpected type"}
		}
		out = append(out, typed)
	}
	return out, nil
}

// Invalidate clears T's cached singleton instance and any sticky
// construction failure, so the next Resolve retries the factory. The
// evicted instance is not disposed; callers invalidating a resource-
// holding service should dispose it themselves first.
func Invalidate[T any](c *Container, name ...string) {
	var zero T
	id := ServiceId{Type: reflect.TypeOf(&zero).Elem()}
	if len(name) > 0 {
		id.Name = name[0]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failed, id)
	delete(c.singletons, id)
	for i, constructed := range c.constructionOrder {
		if constructed == id {
			c.constructionOrder = append(c.constructionOrder[:i], c.constructionOrder[i+1:]...)
			break
		}
	}
}

// Contains reports whether T (unnamed) has a registered descriptor.
func Contains[T any](c *Container) bool {
	var zero T
	_, ok := c.descriptors[ServiceId{Type: reflect.TypeOf(&zero).Elem()}]
	return ok
}

// resolve is the shared resolution path for Resolve/ResolveNamed/ResolveAll.
// resolving tracks the current call chain to detect a resolve-time cycle
// that build-time validation could not see (for example, two descriptors
// reached only through a collection binding rather than a declared
// Dependency). requester names the module the resolution runs on behalf
// of; empty means the application host, which no module boundary applies
// to.
func (c *Container) resolve(scope *Scope, id ServiceId, resolving map[ServiceId]bool, requester string) (any, error) {
	d, ok := c.descriptors[id]
	if !ok && id.Name == "" {
		// No unnamed registration: a sole named variant serves as the
		// default, two or more are ambiguous and need a name.
		switch variants := c.collections[id.Type]; len(variants) {
		case 0:
		case 1:
			d, ok = variants[0], true
		default:
			return nil, &apperr.ResolutionError{ServiceType: id.Type, Reason: "ambiguous resolution: multiple registrations, resolve by name"}
		}
	}
	if !ok && id.Name == "" {
		d, ok = c.findImplementation(id.Type)
	}
	if !ok {
		return nil, &apperr.ResolutionError{ServiceType: id.Type, ServiceName: id.Name, Reason: "no registration found"}
	}

	if err := c.checkVisibility(d, requester); err != nil {
		return nil, err
	}

	if d.instance {
		return d.value, nil
	}

	switch d.Lifetime {
	case Singleton:
		return c.resolveSingleton(scope, d, resolving)
	case Scoped:
		if scope == nil {
			return nil, &apperr.ResolutionError{ServiceType: id.Type, ServiceName: id.Name, Reason: "scoped service resolved outside a scope"}
		}
		return c.resolveScoped(scope, d, resolving)
	default:
		return c.construct(scope, d, resolving)
	}
}

// checkVisibility enforces the cross-module provider rule: a module-owned
// descriptor resolved on behalf of another module must be exported by its
// owner and, when a policy is installed, importable per the module graph.
// The owning module and the application host (empty requester) always
// pass.
func (c *Container) checkVisibility(d *ServiceDescriptor, requester string) error {
	if d.Module == "" || requester == "" || requester == d.Module {
		return nil
	}
	name := providerName(d)
	if c.visibility != nil {
		if c.visibility(requester, d.Module, name) {
			return nil
		}
	} else if d.Exported {
		return nil
	}
	return &apperr.ResolutionError{
		ServiceType: d.ServiceId.Type,
		ServiceName: d.ServiceId.Name,
		Reason:      fmt.Sprintf("provider %s of module %q is not visible to module %q", name, d.Module, requester),
	}
}

// providerName renders the descriptor's implementation type the way
// module descriptors list their providers: package-qualified, pointer
// stripped.
func providerName(d *ServiceDescriptor) string {
	t := d.ImplType
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

func (c *Container) resolveSingleton(scope *Scope, d *ServiceDescriptor, resolving map[ServiceId]bool) (any, error) {
	c.mu.Lock()
	if err, failedBefore := c.failed[d.ServiceId]; failedBefore {
		c.mu.Unlock()
		return nil, err
	}
	if v, ok := c.singletons[d.ServiceId]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.construct(scope, d, resolving)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed[d.ServiceId] = err
		return nil, err
	}
	c.singletons[d.ServiceId] = v
	c.constructionOrder = append(c.constructionOrder, d.ServiceId)
	if disp := asDisposer(v); disp != nil {
		c.lifecycle.track(disp)
	}
	return v, nil
}

func (c *Container) resolveScoped(scope *Scope, d *ServiceDescriptor, resolving map[ServiceId]bool) (any, error) {
	scope.mu.Lock()
	if v, ok := scope.instances[d.ServiceId]; ok {
		scope.mu.Unlock()
		return v, nil
	}
	scope.mu.Unlock()

	v, err := c.construct(scope, d, resolving)
	if err != nil {
		return nil, err
	}

	scope.mu.Lock()
	scope.instances[d.ServiceId] = v
	if disp := asDisposer(v); disp != nil {
		scope.disposers = append(scope.disposers, disp)
	}
	scope.mu.Unlock()
	return v, nil
}

func (c *Container) construct(scope *Scope, d *ServiceDescriptor, resolving map[ServiceId]bool) (any, error) {
	if resolving[d.ServiceId] {
		return nil, &apperr.ResolutionError{ServiceType: d.ServiceId.Type, ServiceName: d.ServiceId.Name, Reason: "resolve-time cycle detected"}
	}
	resolving[d.ServiceId] = true
	defer delete(resolving, d.ServiceId)

	// Dependencies resolve on behalf of the owning module, so a module's
	// own wiring is never blocked while its cross-module dependencies are
	// still checked against the owner's imports.
	args := make([]reflect.Value, 0, len(d.Dependencies))
	for _, depId := range d.Dependencies {
		if depId.Type == containerType {
			args = append(args, reflect.ValueOf(c))
			continue
		}
		dep, err := c.resolve(scope, depId, resolving, d.Module)
		if err != nil {
			return nil, &apperr.ResolutionError{
				ServiceType: d.ServiceId.Type,
				ServiceName: d.ServiceId.Name,
				Reason:      fmt.Sprintf("constructing dependency %s", formatServiceId(depId)),
				Cause:       err,
			}
		}
		if dep == nil {
			args = append(args, reflect.Zero(depId.Type))
		} else {
			args = append(args, reflect.ValueOf(dep))
		}
	}

	factoryVal := reflect.ValueOf(d.Factory)
	results := factoryVal.Call(args)

	if len(results) == 2 && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// End disposes every Scoped instance created within scope, LIFO. Errors
// from multiple disposers are joined.
func (s *Scope) End(ctx context.Context) error {
	s.mu.Lock()
	disposers := append([]disposer{}, s.disposers...)
	s.mu.Unlock()

	var errs []error
	for i := len(disposers) - 1; i >= 0; i-- {
		if err := disposers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

// Statistics summarizes the frozen registration set: total services, a
// breakdown by lifetime, and the deepest dependency chain, useful for a
// `routes`/`modules`-style introspection command.
type Statistics struct {
	TotalServices      int
	ByLifetime         map[string]int
	MaxDependencyDepth int
}

// Registration is one frozen descriptor's public shape, exposed so
// introspection tools (bootstrap discovery, `modules` CLI output) can walk
// the registration set without reaching into Container internals.
type Registration struct {
	ServiceId ServiceId
	ImplType  reflect.Type
	Lifetime  Lifetime
	Module    string
	Exported  bool
	Depth     int
}

// Inspect returns every frozen registration with its dependency depth
// precomputed, in deterministic ServiceId order.
func (c *Container) Inspect() []Registration {
	depth := make(map[ServiceId]int)
	var depthOf func(id ServiceId) int
	depthOf = func(id ServiceId) int {
		if d, ok := depth[id]; ok {
			return d
		}
		descriptor, ok := c.descriptors[id]
		if !ok || len(descriptor.Dependencies) == 0 {
			depth[id] = 0
			return 0
		}
		max := 0
		for _, dep := range descriptor.Dependencies {
			if d := depthOf(dep); d > max {
				max = d
			}
		}
		depth[id] = max + 1
		return max + 1
	}

	ids := make([]ServiceId, 0, len(c.descriptors))
	for id := range c.descriptors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })

	out := make([]Registration, 0, len(ids))
	for _, id := range ids {
		d := c.descriptors[id]
		out = append(out, Registration{
			ServiceId: id,
			ImplType:  d.ImplType,
			Lifetime:  d.Lifetime,
			Module:    d.Module,
			Exported:  d.Exported,
			Depth:     depthOf(id),
		})
	}
	return out
}

func (c *Container) Statistics() Statistics {
	stats := Statistics{ByLifetime: make(map[string]int)}
	for _, r := range c.Inspect() {
		stats.TotalServices++
		stats.ByLifetime[r.Lifetime.String()]++
		if r.Depth > stats.MaxDependencyDepth {
			stats.MaxDependencyDepth = r.Depth
		}
	}
	return stats
}

// ValidateAll eagerly constructs every non-scoped registration to surface
// factory errors at startup rather than on the first request that happens
// to need them.
func (c *Container) ValidateAll() error {
	var errs []error
	for id, d := range c.descriptors {
		if d.Lifetime == Scoped || d.instance {
			continue
		}
		if _, err := c.resolve(nil, id, make(map[ServiceId]bool), d.Module); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &apperr.InternalError{Cause: fmt.Errorf("%d errors: %v", len(errs), msgs)}
}
