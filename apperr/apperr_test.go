package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsAndCodes(t *testing.T) {
	cases := []struct {
		err  Error
		kind Kind
		code string
	}{
		{&ConfigError{Key: "app.port", Message: "missing"}, KindConfiguration, "CONFIG_ERROR"},
		{&RegistrationError{Reason: "bad pattern"}, KindRegistration, "REGISTRATION_ERROR"},
		{&DuplicateRegistrationError{ServiceType: reflect.TypeOf("")}, KindRegistration, "DUPLICATE_REGISTRATION"},
		{&CircularDependencyError{Path: []string{"a", "b", "a"}}, KindRegistration, "CIRCULAR_DEPENDENCY"},
		{&MissingDependencyError{Module: "A", Dependency: "D"}, KindRegistration, "MISSING_DEPENDENCY"},
		{&ResolutionError{ServiceType: reflect.TypeOf(0)}, KindResolution, "RESOLUTION_ERROR"},
		{&DatabaseError{Op: "query", Cause: errors.New("boom")}, KindDatabase, "DATABASE_ERROR"},
		{&QueryTimeoutError{NodeID: "posts", Timeout: "30s"}, KindDatabase, "QUERY_TIMEOUT"},
		{&CancelledError{Reason: "shutdown"}, KindCancellation, "CANCELLED"},
		{&InternalError{Cause: errors.New("invariant")}, KindInternal, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.err.Kind(), tc.err.Error())
		assert.Equal(t, tc.code, tc.err.Code(), tc.err.Error())
	}
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(BadRequest("nope")))
	assert.Equal(t, http.StatusNotFound, StatusCode(NotFound("gone")))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(Validation(map[string][]string{"name": {"required"}})))
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(&CancelledError{Reason: "timeout"}))
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(&QueryTimeoutError{NodeID: "n"}))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(&ResolutionError{}))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("anything else")))

	he := &HandlerError{Status: http.StatusConflict, Cause: errors.New("duplicate slug")}
	assert.Equal(t, http.StatusConflict, StatusCode(he))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(&HandlerError{Cause: errors.New("x")}))
}

func TestStatusMappingThroughWrapping(t *testing.T) {
	inner := BadRequest("bad id", "id")
	wrapped := fmt.Errorf("handling request: %w", inner)
	assert.Equal(t, http.StatusBadRequest, StatusCode(wrapped))
}

func TestUnwrapPreservesSourceChain(t *testing.T) {
	root := errors.New("connection refused")
	dbErr := &DatabaseError{Op: "acquire", Cause: root}
	resErr := &ResolutionError{ServiceType: reflect.TypeOf(0), Reason: "constructing dependency", Cause: dbErr}

	assert.True(t, errors.Is(resErr, root))

	var dbe *DatabaseError
	require.ErrorAs(t, resErr, &dbe)
	assert.Equal(t, "acquire", dbe.Op)
}

func TestToResponseNeverLeaksInternalDetail(t *testing.T) {
	resp, status := ToResponse(&InternalError{Cause: errors.New("password=hunter2 leaked")}, "v1")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "hunter2")
	assert.Equal(t, "v1", resp.APIVersion)
}

func TestToResponseCarriesFieldErrors(t *testing.T) {
	fieldErrs := map[string][]string{"email": {"must be valid"}}
	resp, status := ToResponse(Validation(fieldErrs), "v2")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, fieldErrs, resp.Error.FieldErrors)
	assert.Contains(t, resp.Error.Message, "validation")
}

func TestBuilder(t *testing.T) {
	resp := NewBuilder("NOT_FOUND", "no such user").
		WithDetails(map[string]any{"request_id": "abc"}).
		WithAPIVersion("v1").
		WithMigration(&MigrationInfo{RecommendedVersion: "v2", SunsetDate: "2026-12-31"}).
		Build()

	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "abc", resp.Error.Details["request_id"])
	require.NotNil(t, resp.MigrationInfo)
	assert.Equal(t, "v2", resp.MigrationInfo.RecommendedVersion)
}
