// Package routing implements path-pattern compilation, typed parameter
// matching, deterministic route precedence, and offline conflict
// diagnostics for the HTTP router. It is transport-free: the app router
// feeds it raw pattern strings and request paths, nothing else.
package routing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nodalis/framework/apperr"
)

// ParamType is the type tag a parameter segment carries, used at match
// time to coerce (and reject) captures.
type ParamType int

const (
	TypeString ParamType = iota
	TypeInt
	TypeUUID
)

func (t ParamType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeUUID:
		return "uuid"
	default:
		return "string"
	}
}

func parseParamType(s string) (ParamType, error) {
	switch s {
	case "", "string":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return TypeString, fmt.Errorf("unknown parameter type %q", s)
	}
}

// Param describes one {name} or {name:type} placeholder.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     string
	Constraints []string
}

// segment is one slash-delimited piece of a compiled pattern: either a
// literal or a parameter capture.
type segment struct {
	literal string
	param   *Param
}

// Pattern is a compiled path pattern.
type Pattern struct {
	Raw      string
	segments []segment
}

// Compile parses pattern into literal and parameter segments, rejecting
// malformed placeholders at registration time: empty {}, nested braces,
// invalid names, and double slashes.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q must start with /", pattern)}
	}
	if strings.Contains(pattern, "//") {
		return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q contains a double slash", pattern)}
	}

	p := &Pattern{Raw: pattern}
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return p, nil
	}

	for _, raw := range strings.Split(trimmed, "/") {
		if !strings.Contains(raw, "{") && !strings.Contains(raw, "}") {
			p.segments = append(p.segments, segment{literal: raw})
			continue
		}
		if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
			return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q: malformed segment %q", pattern, raw)}
		}
		inner := raw[1 : len(raw)-1]
		if inner == "" {
			return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q: empty parameter {}", pattern)}
		}
		if strings.ContainsAny(inner, "{}") {
			return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q: nested braces in %q", pattern, raw)}
		}

		name, typeTag, _ := strings.Cut(inner, ":")
		if !validParamName(name) {
			return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q: invalid parameter name %q", pattern, name)}
		}
		paramType, err := parseParamType(typeTag)
		if err != nil {
			return nil, &apperr.RegistrationError{Reason: fmt.Sprintf("route pattern %q: %v", pattern, err)}
		}
		p.segments = append(p.segments, segment{param: &Param{Name: name, Type: paramType, Required: true}})
	}
	return p, nil
}

// MustCompile is Compile for statically known patterns; invalid input
// panics, matching the registration-time failure mode of the router.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Match reports whether path matches the pattern, returning the captured
// parameters. A typed parameter rejects a capture that does not parse as
// its type, so the router can fall through to the next candidate.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	trimmed := strings.Trim(path, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}
	if len(parts) != len(p.segments) {
		return nil, false
	}

	captures := make(map[string]string, len(p.segments))
	for i, seg := range p.segments {
		if seg.param == nil {
			if seg.literal != parts[i] {
				return nil, false
			}
			continue
		}
		if !seg.param.Type.accepts(parts[i]) {
			return nil, false
		}
		captures[seg.param.Name] = parts[i]
	}
	return captures, true
}

func (t ParamType) accepts(raw string) bool {
	if raw == "" {
		return false
	}
	switch t {
	case TypeInt:
		_, err := strconv.ParseInt(raw, 10, 64)
		return err == nil
	case TypeUUID:
		_, err := uuid.Parse(raw)
		return err == nil
	default:
		return true
	}
}

// Params returns the pattern's parameter specs, in path order.
func (p *Pattern) Params() []Param {
	var out []Param
	for _, seg := range p.segments {
		if seg.param != nil {
			out = append(out, *seg.param)
		}
	}
	return out
}

// LiteralCount returns the number of literal segments, the primary
// precedence key: more literal segments match first.
func (p *Pattern) LiteralCount() int {
	n := 0
	for _, seg := range p.segments {
		if seg.param == nil {
			n++
		}
	}
	return n
}

// SegmentCount returns the total number of segments.
func (p *Pattern) SegmentCount() int { return len(p.segments) }

// Normalized renders the pattern with parameter names erased and type
// tags preserved, the canonical form conflict detection compares:
// /users/{id:int}/posts becomes /users/{:int}/posts.
func (p *Pattern) Normalized() string {
	if len(p.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p.segments {
		b.WriteByte('/')
		if seg.param == nil {
			b.WriteString(seg.literal)
		} else {
			b.WriteString("{:")
			b.WriteString(seg.param.Type.String())
			b.WriteByte('}')
		}
	}
	return b.String()
}

// Less orders patterns by matching precedence: more literal segments
// first, then longer (more constrained) raw patterns, leaving insertion
// order to break the remaining ties (callers use a stable sort).
func (p *Pattern) Less(other *Pattern) bool {
	if p.LiteralCount() != other.LiteralCount() {
		return p.LiteralCount() > other.LiteralCount()
	}
	return len(p.Raw) > len(other.Raw)
}
