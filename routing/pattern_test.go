package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRejectsMalformedPatterns(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
	}{
		{"empty braces", "/users/{}"},
		{"nested braces", "/users/{{id}}"},
		{"double slash", "/users//posts"},
		{"missing leading slash", "users/{id}"},
		{"name starting with digit", "/users/{1id}"},
		{"name with dash", "/users/{user-id}"},
		{"unknown type tag", "/users/{id:float}"},
		{"brace inside literal", "/users/id}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.pattern)
			require.Error(t, err)
		})
	}
}

func TestCompileAcceptsValidPatterns(t *testing.T) {
	for _, pattern := range []string{
		"/",
		"/users",
		"/users/{id}",
		"/users/{id:int}",
		"/users/{id:uuid}/posts/{post_id:int}",
		"/_internal/{Name}",
	} {
		_, err := Compile(pattern)
		require.NoError(t, err, pattern)
	}
}

func TestTypedMatching(t *testing.T) {
	intPattern := MustCompile("/users/{id:int}")
	strPattern := MustCompile("/users/{name}")

	captures, ok := intPattern.Match("/users/42")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "42"}, captures)

	_, ok = intPattern.Match("/users/alice")
	assert.False(t, ok, "int parameter must reject a non-numeric capture")

	captures, ok = strPattern.Match("/users/alice")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"name": "alice"}, captures)

	_, ok = strPattern.Match("/users/")
	assert.False(t, ok, "empty trailing segment is not a capture")

	_, ok = strPattern.Match("/users/alice/posts")
	assert.False(t, ok)
}

func TestUUIDMatching(t *testing.T) {
	p := MustCompile("/orders/{ref:uuid}")

	captures, ok := p.Match("/orders/7f9c24e8-3b12-4fd9-aa39-43b2ed552e52")
	require.True(t, ok)
	assert.Equal(t, "7f9c24e8-3b12-4fd9-aa39-43b2ed552e52", captures["ref"])

	_, ok = p.Match("/orders/12345")
	assert.False(t, ok)
}

func TestNormalizedErasesNamesKeepsTypes(t *testing.T) {
	a := MustCompile("/users/{id:int}/posts")
	b := MustCompile("/users/{userId:int}/posts")
	c := MustCompile("/users/{id:uuid}/posts")

	assert.Equal(t, "/users/{:int}/posts", a.Normalized())
	assert.Equal(t, a.Normalized(), b.Normalized())
	assert.NotEqual(t, a.Normalized(), c.Normalized())
	assert.Equal(t, "/", MustCompile("/").Normalized())
}

func TestPrecedenceOrdering(t *testing.T) {
	literal := MustCompile("/users/me")
	param := MustCompile("/users/{id}")

	assert.True(t, literal.Less(param), "more literal segments sort first")
	assert.False(t, param.Less(literal))
}

func TestParams(t *testing.T) {
	p := MustCompile("/users/{id:int}/posts/{slug}")
	params := p.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "id", params[0].Name)
	assert.Equal(t, TypeInt, params[0].Type)
	assert.Equal(t, "slug", params[1].Name)
	assert.Equal(t, TypeString, params[1].Type)
	assert.True(t, params[0].Required)
}
