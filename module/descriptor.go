// Package module implements the compile-time module graph: a process-global
// registry of ModuleDescriptors, topological load-order calculation with
// cycle detection, and cross-module provider visibility enforcement. It
// feeds the di container builder with one module's worth of service
// descriptors at a time, in dependency order.
package module

// Descriptor declares a named unit that contributes controllers and
// providers to the container, plus its import/export boundary.
//
//   - Controllers: convention-discovered handler-bearing types.
//   - Providers: service type names this module registers.
//   - Imports: other module names this module depends on.
//   - Exports: the subset of Providers visible to importing modules.
type Descriptor struct {
	Name        string
	Controllers []string
	Providers   []string
	Imports     []string
	Exports     []string
}

// exportsProvider checks whether providerName is in this module's export list.
func (d *Descriptor) exportsProvider(providerName string) bool {
	for _, e := range d.Exports {
		if e == providerName {
			return true
		}
	}
	return false
}

// ownsProvider checks whether providerName was declared by this module.
func (d *Descriptor) ownsProvider(providerName string) bool {
	for _, p := range d.Providers {
		if p == providerName {
			return true
		}
	}
	return false
}
