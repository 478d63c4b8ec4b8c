package di

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/nodalis/framework/apperr"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()
var containerType = reflect.TypeOf((*Container)(nil))

// Builder accumulates ServiceDescriptors until Build() freezes them into an
// immutable Container. Descriptors are owned by the builder until then.
type Builder struct {
	descriptors map[ServiceId]*ServiceDescriptor
	collections map[reflect.Type][]*ServiceDescriptor
	order       []ServiceId
	visibility  VisibilityPolicy
}

func NewBuilder() *Builder {
	return &Builder{
		descriptors: make(map[ServiceId]*ServiceDescriptor),
		collections: make(map[reflect.Type][]*ServiceDescriptor),
	}
}

// WithVisibility installs the policy every module-tagged resolution is
// checked against when it crosses a module boundary.
func (b *Builder) WithVisibility(p VisibilityPolicy) *Builder {
	b.visibility = p
	return b
}

// Register adds a descriptor. Duplicate ServiceIds fail.
func (b *Builder) Register(d *ServiceDescriptor) error {
	if _, exists := b.descriptors[d.ServiceId]; exists {
		return &apperr.DuplicateRegistrationError{ServiceType: d.ServiceId.Type, Name: d.ServiceId.Name}
	}
	b.descriptors[d.ServiceId] = d
	b.order = append(b.order, d.ServiceId)
	b.collections[d.ServiceId.Type] = append(b.collections[d.ServiceId.Type], d)
	return nil
}

// Registrar is the fluent per-type registration API: For[T](b).AsSingleton().Use(factory).
type Registrar[T any] struct {
	builder    *Builder
	lifetime   Lifetime
	name       string
	conditions []Condition
	priority   int
	module     string
	exported   bool
}

// For starts a fluent registration for type T.
func For[T any](b *Builder) *Registrar[T] {
	return &Registrar[T]{builder: b, lifetime: Transient}
}

func (r *Registrar[T]) AsTransient() *Registrar[T] { r.lifetime = Transient; return r }
func (r *Registrar[T]) AsSingleton() *Registrar[T] { r.lifetime = Singleton; return r }
func (r *Registrar[T]) AsScoped() *Registrar[T]    { r.lifetime = Scoped; return r }

func (r *Registrar[T]) Named(name string) *Registrar[T] { r.name = name; return r }
func (r *Registrar[T]) When(conditions ...Condition) *Registrar[T] {
	r.conditions = append(r.conditions, conditions...)
	return r
}
func (r *Registrar[T]) WithPriority(p int) *Registrar[T] { r.priority = p; return r }

// OwnedBy tags the registration with the module that contributed it, and
// whether that module exports it to importers.
func (r *Registrar[T]) OwnedBy(module string, exported bool) *Registrar[T] {
	r.module = module
	r.exported = exported
	return r
}

// Use registers factory, a func(deps...) T or func(deps...) (T, error).
// Dependencies are inferred from the factory's parameter types and are
// resolved recursively, in declared (parameter) order, before the factory
// runs.
func (r *Registrar[T]) Use(factory any) error {
	var zero T
	serviceType := reflect.TypeOf(&zero).Elem()

	factoryType := reflect.TypeOf(factory)
	if factoryType == nil || factoryType.Kind() != reflect.Func {
		return &apperr.RegistrationError{Reason: "factory must be a function"}
	}
	if factoryType.NumOut() == 0 {
		return &apperr.RegistrationError{Reason: "factory must return at least one value"}
	}
	if !factoryType.Out(0).AssignableTo(serviceType) {
		return &apperr.RegistrationError{Reason: fmt.Sprintf("factory return type %v is not assignable to %v", factoryType.Out(0), serviceType)}
	}
	if factoryType.NumOut() > 1 && factoryType.Out(1) != errorType {
		return &apperr.RegistrationError{Reason: "factory second return value must be error"}
	}

	// A *Container parameter is injected directly rather than resolved, so
	// a factory can reach back into the container for named or collection
	// lookups.
	deps := make([]ServiceId, 0, factoryType.NumIn())
	for i := 0; i < factoryType.NumIn(); i++ {
		deps = append(deps, ServiceId{Type: factoryType.In(i)})
	}

	return r.builder.Register(&ServiceDescriptor{
		ServiceId:    ServiceId{Type: serviceType, Name: r.name},
		ImplType:     serviceType,
		Lifetime:     r.lifetime,
		Activation:   ActivationAutoWired,
		Dependencies: deps,
		Conditions:   r.conditions,
		Priority:     r.priority,
		Factory:      factory,
		Module:       r.module,
		Exported:     r.exported,
	})
}

// UseInstance registers a pre-built singleton instance directly.
func (r *Registrar[T]) UseInstance(instance T) error {
	var zero T
	serviceType := reflect.TypeOf(&zero).Elem()
	return r.builder.Register(&ServiceDescriptor{
		ServiceId:  ServiceId{Type: serviceType, Name: r.name},
		ImplType:   serviceType,
		Lifetime:   Singleton,
		Activation: ActivationFactory,
		Conditions: r.conditions,
		Priority:   r.priority,
		Module:     r.module,
		Exported:   r.exported,
		instance:   true,
		value:      instance,
	})
}

// Bind registers Interface as resolvable through an already-registered
// Impl: the Interface descriptor depends on Impl and returns it as-is.
func Bind[Interface any, Impl any](b *Builder) error {
	return For[Interface](b).Use(func(impl Impl) Interface {
		return any(impl).(Interface)
	})
}

// BindNamed registers factory for T under name.
func BindNamed[T any](b *Builder, name string, factory any) error {
	return For[T](b).Named(name).Use(factory)
}

// BindSingleton registers factory for T with a Singleton lifetime.
func BindSingleton[T any](b *Builder, factory any) error {
	return For[T](b).AsSingleton().Use(factory)
}

// BindTransient registers factory for T with a Transient lifetime.
func BindTransient[T any](b *Builder, factory any) error {
	return For[T](b).AsTransient().Use(factory)
}

// BindFactory registers a factory that receives the built container, for
// constructions that need named or collection lookups at resolve time.
func BindFactory[T any](b *Builder, factory func(*Container) (T, error)) error {
	return For[T](b).Use(factory)
}

// BindLazy registers a singleton Lazy[T] handle around fn; the value is
// produced on the first Get(), not at construction time.
func BindLazy[T any](b *Builder, fn func() (T, error)) error {
	return For[*Lazy[T]](b).AsSingleton().Use(func() *Lazy[T] {
		return NewLazy(fn)
	})
}

// BindCollection marks Interface as a collection slot: ResolveAll[Interface]
// will return every eligible descriptor registered against that type, in
// registration order unless a Priority hint says otherwise.
func BindCollection[Interface any](b *Builder) {
	var zero Interface
	t := reflect.TypeOf(&zero).Elem()
	if _, ok := b.collections[t]; !ok {
		b.collections[t] = nil
	}
}

// Build validates the dependency graph, evaluates conditions, and freezes
// the builder into an immutable Container.
func (b *Builder) Build(env Environment) (*Container, error) {
	eligible := make(map[ServiceId]*ServiceDescriptor, len(b.descriptors))
	for id, d := range b.descriptors {
		if d.Eligible(env) {
			eligible[id] = d
		}
	}

	if err := validateGraph(eligible); err != nil {
		return nil, err
	}

	collections := make(map[reflect.Type][]*ServiceDescriptor, len(b.collections))
	for t, ds := range b.collections {
		var filtered []*ServiceDescriptor
		for _, d := range ds {
			if _, ok := eligible[d.ServiceId]; ok {
				filtered = append(filtered, d)
			}
		}
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Priority > filtered[j].Priority })
		collections[t] = filtered
	}

	return newContainer(eligible, collections, b.visibility), nil
}
