package app

import (
	"github.com/nodalis/framework/di"
	"github.com/nodalis/framework/module"
)

type Provider interface {
	// Provide provides the services
	Provide(a App) error
}

type CommandProvider interface {
	// AddCommands appends the given commands to the existing ones
	AddCommands() []Command
}

type RouteProvider interface {
	// AddRoutes appends the given routes to the existing ones
	AddRoutes() RouteCallback
}

type MiddlewareProvider interface {
	// AddMiddlewares appends the given middleware to the existing ones
	AddMiddlewares() []Handler
}

// ModuleProvider is a Provider that also contributes a module.Descriptor to
// the compile-time module graph and binds its services into the di builder
// once that module's imports have been contributed, rather than reaching
// for the plain service registry AddService does.
type ModuleProvider interface {
	Descriptor() *module.Descriptor
	ProvideServices(b *di.Builder) error
}

func Get[T any](a App) T {
	var zero T
	v := a.Service(zero)
	if v == nil {
		return zero
	}
	return v.(T)
}
