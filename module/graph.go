package module

import (
	"sort"

	"github.com/nodalis/framework/apperr"
)

// mark is the three-color DFS state used by the topological sort: an
// in-progress re-visit is a cycle, and the path at that point names it.
type mark int

const (
	unvisited mark = iota
	inProgress
	done
)

// sortModules performs a deterministic topological sort over the import
// DAG: dependencies visit before dependents, ties broken by lexicographic
// module name so regeneration is stable across runs.
func sortModules(descriptors map[string]*Descriptor) ([]string, error) {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)

	marks := make(map[string]mark, len(descriptors))
	order := make([]string, 0, len(descriptors))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return nil
		case inProgress:
			cyclePath := append(append([]string{}, path...), name)
			return &apperr.CircularDependencyError{Path: cyclePath}
		}

		d, ok := descriptors[name]
		if !ok {
			return &apperr.MissingDependencyError{Module: name, Dependency: name}
		}

		marks[name] = inProgress
		path = append(path, name)

		imports := append([]string{}, d.Imports...)
		sort.Strings(imports)
		for _, imp := range imports {
			if _, exists := descriptors[imp]; !exists {
				return &apperr.MissingDependencyError{Module: name, Dependency: imp}
			}
			if err := visit(imp); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// transitivelyImports reports whether `from` imports `to`, directly or
// through a chain of imports.
func transitivelyImports(descriptors map[string]*Descriptor, from, to string) bool {
	seen := map[string]bool{}
	var walk func(name string) bool
	walk = func(name string) bool {
		if seen[name] {
			return false
		}
		seen[name] = true
		d, ok := descriptors[name]
		if !ok {
			return false
		}
		for _, imp := range d.Imports {
			if imp == to || walk(imp) {
				return true
			}
		}
		return false
	}
	return walk(from)
}
