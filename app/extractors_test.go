package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalis/framework/apperr"
)

func testContext(t *testing.T, target string, body string) Context {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(http.MethodGet, target, nil)
	}
	return NewContext(newTestApp(), httptest.NewRecorder(), r)
}

func TestQueryExtraction(t *testing.T) {
	c := testContext(t, "/search?a=x&b=3", "")

	a, err := Query[string](c, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", a)

	b, err := Query[int](c, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, b)
}

func TestQueryExtractionFailureNamesField(t *testing.T) {
	c := testContext(t, "/search?a=x&b=notanumber", "")

	_, err := Query[int](c, "b")
	require.Error(t, err)

	var re *apperr.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.Equal(t, "b", re.Field)
	assert.Contains(t, re.Error(), "b")
}

func TestMissingOptionalQueryValue(t *testing.T) {
	c := testContext(t, "/search?a=x", "")

	a, err := Query[string](c, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", a)

	// An absent key reads as the empty string for string extraction; typed
	// extraction of an absent key is a bad request.
	missing, err := Query[string](c, "b")
	require.NoError(t, err)
	assert.Equal(t, "", missing)

	_, err = Query[int](c, "b")
	require.Error(t, err)
}

func TestPathExtraction(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	r.SetPathValue("id", "42")
	c := NewContext(newTestApp(), httptest.NewRecorder(), r)

	id, err := Path[int](c, "id")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = Path[bool](c, "id")
	require.Error(t, err)
}

func TestStateExtraction(t *testing.T) {
	c := testContext(t, "/x", "")
	c.Set("user_id", 99)

	v, err := State[int](c, "user_id")
	require.NoError(t, err)
	assert.Equal(t, 99, v)

	_, err = State[string](c, "user_id")
	require.Error(t, err, "mistyped state is an error, not a zero value")

	_, err = State[int](c, "absent")
	require.Error(t, err)
}

func TestJsonExtraction(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	c := testContext(t, "/things", `{"name":"widget","count":2}`)
	got, err := Json[payload](c)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "widget", Count: 2}, got)

	c = testContext(t, "/things", `{"name":`)
	_, err = Json[payload](c)
	require.Error(t, err)

	var re *apperr.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
}
