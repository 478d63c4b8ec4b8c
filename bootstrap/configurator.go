package bootstrap

import (
	"reflect"

	"github.com/nodalis/framework/apperr"
	"github.com/nodalis/framework/di"
)

// LifetimeHint lets a provider type override the convention-derived
// default lifetime.
type LifetimeHint interface {
	LifetimeHint() di.Lifetime
}

// DefaultLifetime derives a lifetime from the naming convention:
// services and repositories are scoped to the request, controllers and
// everything else are transient.
func DefaultLifetime(t reflect.Type) di.Lifetime {
	switch ClassifyByName(t) {
	case RoleService, RoleRepository:
		return di.Scoped
	case RoleController:
		return di.Transient
	default:
		return di.Transient
	}
}

// Configurator turns provider factories into di descriptors with
// convention-derived lifetimes, and reports on the resulting set before
// the container is built.
type Configurator struct {
	builder    *di.Builder
	discovered []*di.ServiceDescriptor
}

func NewConfigurator(b *di.Builder) *Configurator {
	return &Configurator{builder: b}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Provide registers factory (func(deps...) T or func(deps...) (T, error))
// under the lifetime DefaultLifetime derives from T's name, unless T
// implements LifetimeHint. Module and exported tag the registration for
// cross-module visibility checks.
func (c *Configurator) Provide(factory any, module string, exported bool) error {
	ft := reflect.TypeOf(factory)
	if ft == nil || ft.Kind() != reflect.Func {
		return &apperr.RegistrationError{Reason: "provider factory must be a function"}
	}
	if ft.NumOut() == 0 || (ft.NumOut() > 1 && ft.Out(1) != errType) {
		return &apperr.RegistrationError{Reason: "provider factory must return (T) or (T, error)"}
	}

	serviceType := ft.Out(0)
	lifetime := DefaultLifetime(serviceType)
	if hint, ok := zeroValueOf(serviceType).(LifetimeHint); ok {
		lifetime = hint.LifetimeHint()
	}

	deps := make([]di.ServiceId, 0, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		deps = append(deps, di.ServiceId{Type: ft.In(i)})
	}

	d := &di.ServiceDescriptor{
		ServiceId:    di.ServiceId{Type: serviceType},
		ImplType:     serviceType,
		Lifetime:     lifetime,
		Activation:   di.ActivationAutoWired,
		Dependencies: deps,
		Factory:      factory,
		Module:       module,
		Exported:     exported,
	}
	if err := c.builder.Register(d); err != nil {
		return err
	}
	c.discovered = append(c.discovered, d)
	return nil
}

// Validate summarizes everything Provide registered so tooling can flag
// anti-patterns before the container is built. Dependency depth is
// computed over the declared dependencies of the discovered set only.
func (c *Configurator) Validate() *Report {
	types := make([]reflect.Type, 0, len(c.discovered))
	lifetimes := make(map[reflect.Type]di.Lifetime, len(c.discovered))
	depths := make(map[reflect.Type]int, len(c.discovered))

	byType := make(map[reflect.Type]*di.ServiceDescriptor, len(c.discovered))
	for _, d := range c.discovered {
		byType[d.ImplType] = d
	}

	var depthOf func(t reflect.Type, seen map[reflect.Type]bool) int
	depthOf = func(t reflect.Type, seen map[reflect.Type]bool) int {
		d, ok := byType[t]
		if !ok || seen[t] {
			return 0
		}
		seen[t] = true
		defer delete(seen, t)
		max := 0
		for _, dep := range d.Dependencies {
			if n := depthOf(dep.Type, seen) + 1; n > max {
				max = n
			}
		}
		return max
	}

	for _, d := range c.discovered {
		types = append(types, d.ImplType)
		lifetimes[d.ImplType] = d.Lifetime
		depths[d.ImplType] = depthOf(d.ImplType, map[reflect.Type]bool{})
	}

	report := Discover(types, lifetimes, depths)

	for _, d := range c.discovered {
		if d.Lifetime != di.Singleton {
			continue
		}
		for _, dep := range d.Dependencies {
			if depDesc, ok := byType[dep.Type]; ok && depDesc.Lifetime == di.Scoped {
				report.PotentialIssues = append(report.PotentialIssues,
					d.ImplType.String()+": singleton depends on scoped "+dep.Type.String())
			}
		}
	}
	return report
}

func zeroValueOf(t reflect.Type) any {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.Zero(t).Interface()
}
