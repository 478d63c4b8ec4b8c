package di

import (
	"reflect"
	"sort"
)

// findImplementation searches every registered descriptor for one whose
// implementation type satisfies the requested interface, used as a
// fallback when no descriptor was registered directly against that
// interface type. The search runs once per miss and the match is
// deterministic (lowest ServiceId wins ties) rather than dependent on map
// iteration order.
func (c *Container) findImplementation(iface reflect.Type) (*ServiceDescriptor, bool) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, false
	}

	var candidates []*ServiceDescriptor
	for _, d := range c.descriptors {
		implType := d.ImplType
		if implType == nil {
			continue
		}
		if implType.Implements(iface) || reflect.PointerTo(implType).Implements(iface) {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool { return idLess(candidates[i].ServiceId, candidates[j].ServiceId) })
	return candidates[0], true
}
