package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func helperContext(t *testing.T, target string) Context {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return NewContext(newTestApp(), httptest.NewRecorder(), r)
}

func TestStringIntegerBoolean(t *testing.T) {
	c := helperContext(t, "/items?name=bolt&count=3&active=true")

	assert.Equal(t, "bolt", c.String("name"))
	assert.Equal(t, "fallback", c.String("missing", "fallback"))
	assert.Equal(t, 3, c.Integer("count"))
	assert.Equal(t, 10, c.Integer("missing", 10))
	assert.Equal(t, 10, c.Integer("name", 10), "non-numeric value falls back")
	assert.True(t, c.Boolean("active"))
	assert.True(t, c.Boolean("missing", true))
}

func TestBooleanFormStyleValues(t *testing.T) {
	c := helperContext(t, "/items?a=on&b=yes&c=off&d=no")
	assert.True(t, c.Boolean("a"))
	assert.True(t, c.Boolean("b"))
	assert.False(t, c.Boolean("c"))
	assert.False(t, c.Boolean("d"))
}

func TestPathParamShadowsQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/users/7?id=999", nil)
	r.SetPathValue("id", "7")
	c := NewContext(newTestApp(), httptest.NewRecorder(), r)

	assert.Equal(t, 7, c.Integer("id"))
}

func TestArray(t *testing.T) {
	c := helperContext(t, "/items?tag=a&tag=b&cat[]=x&cat[]=y")
	assert.Equal(t, []string{"a", "b"}, c.Array("tag"))
	assert.Equal(t, []string{"x", "y"}, c.Array("cat"))
	assert.Empty(t, c.Array("missing"))
}

func TestHasAndFilled(t *testing.T) {
	c := helperContext(t, "/items?present=&filled=x")
	assert.True(t, c.Has("present"))
	assert.False(t, c.Filled("present"))
	assert.True(t, c.Filled("filled"))
	assert.False(t, c.Has("absent"))
}

func TestPagination(t *testing.T) {
	c := helperContext(t, "/items?page=3&per_page=25")
	page, perPage := c.Pagination()
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, perPage)

	c = helperContext(t, "/items")
	page, perPage = c.Pagination()
	assert.Equal(t, 1, page)
	assert.Equal(t, 15, perPage)

	c = helperContext(t, "/items?page=-1&per_page=5000")
	page, perPage = c.Pagination()
	assert.Equal(t, 1, page)
	assert.Equal(t, 100, perPage, "per_page is clamped")
}

func TestSorting(t *testing.T) {
	c := helperContext(t, "/items?sort=-created_at")
	field, desc := c.Sorting()
	assert.Equal(t, "created_at", field)
	assert.True(t, desc)

	c = helperContext(t, "/items?sort=name")
	field, desc = c.Sorting()
	assert.Equal(t, "name", field)
	assert.False(t, desc)

	c = helperContext(t, "/items")
	field, _ = c.Sorting()
	assert.Empty(t, field)
}

func TestFilters(t *testing.T) {
	c := helperContext(t, "/items?filter[status]=active&filter[role]=admin&other=1")
	filters := c.Filters()
	assert.Equal(t, map[string]string{"status": "active", "role": "admin"}, filters)
}
