package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nodalis/framework/app"
	"github.com/nodalis/framework/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCache_MissThenHit(t *testing.T) {
	store := cache.NewMemoryStore("test")
	rc := NewResponseCache(ResponseCacheConfig{Store: store, TTLSeconds: 60})
	p := NewPipeline(rc)
	handler := p.Handler()

	calls := 0
	newContext := func() app.Context {
		req := httptest.NewRequest("GET", "/widgets/1", nil)
		w := httptest.NewRecorder()
		return app.NewContext(nil, w, req, handler, func(c app.Context) error {
			calls++
			return c.JSON(app.M{"id": 1})
		})
	}

	c1 := newContext()
	require.NoError(t, c1.Next())
	assert.Equal(t, 1, calls)

	c2 := newContext()
	require.NoError(t, c2.Next())
	assert.Equal(t, 1, calls, "second request should be served from cache, not re-run the handler")
	assert.Equal(t, "HIT", c2.ResponseWriter().Header().Get("X-Cache"))
}

func TestResponseCache_SkipsNonCacheableStatus(t *testing.T) {
	store := cache.NewMemoryStore("test")
	rc := NewResponseCache(ResponseCacheConfig{Store: store, TTLSeconds: 60})
	p := NewPipeline(rc)
	handler := p.Handler()

	req := httptest.NewRequest("GET", "/widgets/missing", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, handler, func(c app.Context) error {
		return c.SetStatus(http.StatusNotFound).JSON(app.M{"error": "not found"})
	})
	require.NoError(t, c.Next())

	key, _ := c.Get(responseCacheKeyKey).(string)
	assert.Nil(t, store.Get(key))
}
