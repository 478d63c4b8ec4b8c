package app

import (
	"fmt"
	"strconv"

	"github.com/nodalis/framework/apperr"
)

// Query extracts and converts a single query-string value. For whole-struct
// binding use Input() and the httpin tags instead.
func Query[T any](c Context, key string) (T, error) {
	return parseScalar[T](c.Query(key), key)
}

// Path extracts and converts a {name:type}-style route parameter.
func Path[T any](c Context, key string) (T, error) {
	return parseScalar[T](c.Param(key), key)
}

// State reads a request-scoped value previously stored with Set, asserting
// it to T. Missing or mistyped keys return a RequestError rather than a
// zero value, so a handler never silently proceeds on bad wiring.
func State[T any](c Context, key string) (T, error) {
	var zero T
	v := c.Get(key)
	if v == nil {
		return zero, apperr.BadRequest(fmt.Sprintf("missing state value %q", key), key)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, apperr.BadRequest(fmt.Sprintf("state value %q has unexpected type", key), key)
	}
	return typed, nil
}

// Json decodes the request body as JSON into a freshly allocated T.
func Json[T any](c Context) (T, error) {
	var v T
	if err := c.DecodeJSON(&v); err != nil {
		return v, apperr.BadRequest("malformed JSON body: " + err.Error())
	}
	return v, nil
}

func parseScalar[T any](raw string, key string) (T, error) {
	var zero T
	switch any(zero).(type) {
	case string:
		return any(raw).(T), nil
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return zero, apperr.BadRequest(fmt.Sprintf("%q must be an integer", key), key)
		}
		return any(n).(T), nil
	case int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return zero, apperr.BadRequest(fmt.Sprintf("%q must be an integer", key), key)
		}
		return any(n).(T), nil
	case float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return zero, apperr.BadRequest(fmt.Sprintf("%q must be a number", key), key)
		}
		return any(n).(T), nil
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return zero, apperr.BadRequest(fmt.Sprintf("%q must be a boolean", key), key)
		}
		return any(b).(T), nil
	default:
		return zero, apperr.BadRequest(fmt.Sprintf("unsupported extractor type for %q", key), key)
	}
}
