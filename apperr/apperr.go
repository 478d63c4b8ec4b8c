// Package apperr defines the error taxonomy shared by every subsystem of
// the framework core: configuration, registration, resolution, request,
// handler, database, cancellation and internal errors. Errors cross
// subsystem boundaries as these typed variants, never as bare strings, so
// the HTTP edge can map them to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind int

const (
	KindConfiguration Kind = iota
	KindRegistration
	KindResolution
	KindRequest
	KindHandler
	KindDatabase
	KindCancellation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindRegistration:
		return "registration"
	case KindResolution:
		return "resolution"
	case KindRequest:
		return "request"
	case KindHandler:
		return "handler"
	case KindDatabase:
		return "database"
	case KindCancellation:
		return "cancellation"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the common shape every taxonomy error satisfies. It is
// deliberately not a concrete type: ConfigError, RegistrationError, etc.
// below are the concrete types callers construct and errors.As against.
type Error interface {
	error
	Kind() Kind
	Code() string
}

// ConfigError reports an invalid or missing configuration value. Fatal at
// startup.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration: %s: %s", e.Key, e.Message)
	}
	return "configuration: " + e.Message
}
func (e *ConfigError) Kind() Kind   { return KindConfiguration }
func (e *ConfigError) Code() string { return "CONFIG_ERROR" }

// RegistrationError reports a duplicate service id, a missing or circular
// module dependency, or an invalid route pattern. Fatal at Build() time.
type RegistrationError struct {
	Reason string
	Cause  error
}

func (e *RegistrationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("registration: %s: %v", e.Reason, e.Cause)
	}
	return "registration: " + e.Reason
}
func (e *RegistrationError) Unwrap() error { return e.Cause }
func (e *RegistrationError) Kind() Kind    { return KindRegistration }
func (e *RegistrationError) Code() string  { return "REGISTRATION_ERROR" }

// DuplicateRegistrationError is a specific RegistrationError: the same
// ServiceId was registered twice.
type DuplicateRegistrationError struct {
	ServiceType reflect.Type
	Name        string
}

func (e *DuplicateRegistrationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("registration: service %s[name=%s] already registered", formatType(e.ServiceType), e.Name)
	}
	return fmt.Sprintf("registration: service %s already registered", formatType(e.ServiceType))
}
func (e *DuplicateRegistrationError) Kind() Kind   { return KindRegistration }
func (e *DuplicateRegistrationError) Code() string { return "DUPLICATE_REGISTRATION" }

// CircularDependencyError names the cycle found while sorting a module
// graph or validating container dependencies.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	s := "circular dependency detected: "
	for i, p := range e.Path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}
	return s
}
func (e *CircularDependencyError) Kind() Kind   { return KindRegistration }
func (e *CircularDependencyError) Code() string { return "CIRCULAR_DEPENDENCY" }

// MissingDependencyError names a module or service that referenced a
// dependency never registered anywhere.
type MissingDependencyError struct {
	Module     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("module %q depends on unregistered module %q", e.Module, e.Dependency)
}
func (e *MissingDependencyError) Kind() Kind   { return KindRegistration }
func (e *MissingDependencyError) Code() string { return "MISSING_DEPENDENCY" }

// ResolutionError reports an unknown service, ambiguous resolution,
// resolve-time cycle, or condition conflict. Request-fatal but
// recoverable with a retry after re-configuration.
type ResolutionError struct {
	ServiceType reflect.Type
	ServiceName string
	Reason      string
	Cause       error
}

func (e *ResolutionError) Error() string {
	base := fmt.Sprintf("resolution: %s", formatType(e.ServiceType))
	if e.ServiceName != "" {
		base += fmt.Sprintf("[name=%s]", e.ServiceName)
	}
	if e.Reason != "" {
		base += ": " + e.Reason
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}
func (e *ResolutionError) Unwrap() error { return e.Cause }
func (e *ResolutionError) Kind() Kind    { return KindResolution }
func (e *ResolutionError) Code() string  { return "RESOLUTION_ERROR" }

// RequestError is a client-facing error: bad request, not found, method
// not allowed, unsupported media type, or failed validation.
type RequestError struct {
	Status      int
	Field       string
	Message     string
	FieldErrors map[string][]string
}

func (e *RequestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("request: field %q: %s", e.Field, e.Message)
	}
	return "request: " + e.Message
}
func (e *RequestError) Kind() Kind   { return KindRequest }
func (e *RequestError) Code() string { return http.StatusText(e.Status) }

func BadRequest(message string, field ...string) *RequestError {
	e := &RequestError{Status: http.StatusBadRequest, Message: message}
	if len(field) > 0 {
		e.Field = field[0]
	}
	return e
}

func NotFound(message string) *RequestError {
	return &RequestError{Status: http.StatusNotFound, Message: message}
}

func Validation(fieldErrors map[string][]string) *RequestError {
	return &RequestError{Status: http.StatusUnprocessableEntity, Message: "validation failed", FieldErrors: fieldErrors}
}

// HandlerError wraps a domain error raised by user handler code, mapped to
// an explicit HTTP status by the handler author.
type HandlerError struct {
	Status int
	Cause  error
}

func (e *HandlerError) Error() string { return e.Cause.Error() }
func (e *HandlerError) Unwrap() error { return e.Cause }
func (e *HandlerError) Kind() Kind    { return KindHandler }
func (e *HandlerError) Code() string  { return "HANDLER_ERROR" }

// DatabaseError reports a query timeout, connection failure, or constraint
// violation. Plan execution surfaces these per-node alongside partial
// results rather than aborting the whole request.
type DatabaseError struct {
	Op    string
	Cause error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("database: %s: %v", e.Op, e.Cause) }
func (e *DatabaseError) Unwrap() error { return e.Cause }
func (e *DatabaseError) Kind() Kind    { return KindDatabase }
func (e *DatabaseError) Code() string  { return "DATABASE_ERROR" }

// QueryTimeoutError is a DatabaseError specialization raised when a single
// query-plan node exceeds its configured timeout; it never aborts sibling
// nodes in the same execution phase.
type QueryTimeoutError struct {
	NodeID  string
	Timeout string
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("database: node %q timed out after %s", e.NodeID, e.Timeout)
}
func (e *QueryTimeoutError) Kind() Kind   { return KindDatabase }
func (e *QueryTimeoutError) Code() string { return "QUERY_TIMEOUT" }

// CancelledError reports cooperative cancellation or timeout of a request
// or sub-operation.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string { return "cancelled: " + e.Reason }
func (e *CancelledError) Kind() Kind    { return KindCancellation }
func (e *CancelledError) Code() string  { return "CANCELLED" }

// InternalError represents an invariant violation. Logged with full
// context by the caller before being wrapped; never exposes its Cause in
// the wire payload.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string { return "internal: " + e.Cause.Error() }
func (e *InternalError) Unwrap() error { return e.Cause }
func (e *InternalError) Kind() Kind    { return KindInternal }
func (e *InternalError) Code() string  { return "INTERNAL_ERROR" }

// StatusCode maps the taxonomy to an HTTP status.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	var he *HandlerError
	if errors.As(err, &he) {
		if he.Status != 0 {
			return he.Status
		}
		return http.StatusInternalServerError
	}
	var ce *CancelledError
	if errors.As(err, &ce) {
		return http.StatusGatewayTimeout
	}
	var qte *QueryTimeoutError
	if errors.As(err, &qte) {
		return http.StatusGatewayTimeout
	}
	var rege *RegistrationError
	if errors.As(err, &rege) {
		return http.StatusInternalServerError
	}
	var dre *DuplicateRegistrationError
	if errors.As(err, &dre) {
		return http.StatusInternalServerError
	}
	var cde *CircularDependencyError
	if errors.As(err, &cde) {
		return http.StatusInternalServerError
	}
	var mde *MissingDependencyError
	if errors.As(err, &mde) {
		return http.StatusInternalServerError
	}
	var res *ResolutionError
	if errors.As(err, &res) {
		return http.StatusInternalServerError
	}
	var dbe *DatabaseError
	if errors.As(err, &dbe) {
		return http.StatusInternalServerError
	}
	var cfge *ConfigError
	if errors.As(err, &cfge) {
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Ptr {
		return "*" + t.Elem().String()
	}
	return t.String()
}
