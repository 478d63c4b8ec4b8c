// Package bootstrap implements convention-based service discovery: given a
// set of candidate Go types (typically everything a module's provider
// function constructs), classify each by name suffix into a controller,
// service, or repository role and report on the resulting dependency
// shape. Classification runs over reflect types at boot time, since the
// framework boots from already-constructed di descriptors rather than
// from a source-tree walk.
package bootstrap

import (
	"reflect"
	"sort"
	"strings"

	"github.com/nodalis/framework/di"
	"github.com/nodalis/framework/utils"
)

// Role is the convention-based classification of a discovered type.
type Role int

const (
	RoleUnknown Role = iota
	RoleController
	RoleService
	RoleRepository
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RoleService:
		return "service"
	case RoleRepository:
		return "repository"
	default:
		return "unknown"
	}
}

// ClassifyByName applies the naming convention: a type named *Controller is
// a controller, *Service or *Repository name their own role, anything else
// is unclassified.
func ClassifyByName(t reflect.Type) Role {
	name := t.Name()
	if t.Kind() == reflect.Ptr {
		name = t.Elem().Name()
	}
	switch {
	case strings.HasSuffix(name, "Controller"):
		return RoleController
	case strings.HasSuffix(name, "Repository"):
		return RoleRepository
	case strings.HasSuffix(name, "Service"):
		return RoleService
	default:
		return RoleUnknown
	}
}

// Finding is one classified descriptor, along with its dependency depth
// within the container it was discovered in.
type Finding struct {
	PackagePath string
	TypeName    string
	Role        Role
	Lifetime    di.Lifetime
	Depth       int
}

// Report summarizes a container's registrations by convention role, built
// from the live registration set.
type Report struct {
	Findings           []Finding
	ByRole             map[string]int
	ByLifetime         map[string]int
	MaxDependencyDepth int
	PotentialIssues    []string
}

// Discover classifies each type in the caller-supplied list by name and
// tallies it under the lifetime and dependency depth the caller supplies
// for it in lifetimes and depths (for example taken from the registrations
// Container.Inspect returns).
func Discover(types []reflect.Type, lifetimes map[reflect.Type]di.Lifetime, depths map[reflect.Type]int) *Report {
	report := &Report{
		ByRole:     make(map[string]int),
		ByLifetime: make(map[string]int),
	}

	for _, t := range types {
		role := ClassifyByName(t)
		lt := lifetimes[t]
		depth := depths[t]

		report.Findings = append(report.Findings, Finding{
			PackagePath: utils.PkgName(reflect.New(derefOrSelf(t)).Interface()),
			TypeName:    t.String(),
			Role:        role,
			Lifetime:    lt,
			Depth:       depth,
		})
		report.ByRole[role.String()]++
		report.ByLifetime[lt.String()]++
		if depth > report.MaxDependencyDepth {
			report.MaxDependencyDepth = depth
		}

		if role == RoleController && lt == di.Singleton {
			report.PotentialIssues = append(report.PotentialIssues,
				t.String()+": controllers are conventionally transient or scoped per request, not singleton")
		}
	}

	sort.Slice(report.Findings, func(i, j int) bool { return report.Findings[i].TypeName < report.Findings[j].TypeName })
	return report
}

func derefOrSelf(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}
