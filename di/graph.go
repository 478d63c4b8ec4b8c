package di

import (
	"fmt"
	"sort"

	"github.com/nodalis/framework/apperr"
)

// nodeMark is the three-color DFS state for cycle detection over declared
// dependencies. The walk runs once at Build() time so Resolve never pays
// for cycle detection.
type nodeMark int

const (
	nodeUnvisited nodeMark = iota
	nodeInProgress
	nodeDone
)

// validateGraph walks every descriptor's declared Dependencies and fails
// fast on a missing dependency or a circular one: Build() must reject a
// graph no Resolve call could ever satisfy, rather than discovering the
// problem lazily per-request.
func validateGraph(descriptors map[ServiceId]*ServiceDescriptor) error {
	ids := make([]ServiceId, 0, len(descriptors))
	for id := range descriptors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })

	marks := make(map[ServiceId]nodeMark, len(descriptors))
	var path []ServiceId

	var visit func(id ServiceId) error
	visit = func(id ServiceId) error {
		switch marks[id] {
		case nodeDone:
			return nil
		case nodeInProgress:
			cyclePath := append(append([]ServiceId{}, path...), id)
			return &apperr.CircularDependencyError{Path: idPathStrings(cyclePath)}
		}

		d, ok := descriptors[id]
		if !ok {
			// Not reached for dependencies: the loop below skips a
			// *Container dependency and reports an unregistered one before
			// recursing.
			return nil
		}

		marks[id] = nodeInProgress
		path = append(path, id)

		deps := append([]ServiceId{}, d.Dependencies...)
		sort.Slice(deps, func(i, j int) bool { return idLess(deps[i], deps[j]) })
		for _, dep := range deps {
			if dep.Type == containerType {
				continue
			}
			if _, exists := descriptors[dep]; !exists {
				return &apperr.ResolutionError{
					ServiceType: id.Type,
					ServiceName: id.Name,
					Reason:      fmt.Sprintf("depends on unregistered service %s", formatServiceId(dep)),
				}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		marks[id] = nodeDone
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

func idLess(a, b ServiceId) bool {
	as, bs := formatServiceId(a), formatServiceId(b)
	return as < bs
}

func formatServiceId(id ServiceId) string {
	if id.Type == nil {
		return "<nil>[name=" + id.Name + "]"
	}
	if id.Name == "" {
		return id.Type.String()
	}
	return fmt.Sprintf("%s[name=%s]", id.Type.String(), id.Name)
}

func idPathStrings(path []ServiceId) []string {
	out := make([]string, len(path))
	for i, id := range path {
		out[i] = formatServiceId(id)
	}
	return out
}
