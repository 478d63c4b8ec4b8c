package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/nodalis/framework/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders_StrictPresetSetsExpectedHeaders(t *testing.T) {
	sh := NewSecurityHeaders(StrictSecurityHeaders())
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	w.Header().Set("Server", "nginx")
	c := app.NewContext(nil, w, req, func(c app.Context) error { return nil })

	_, err := sh.ProcessRequest(c)
	require.NoError(t, err)
	require.NoError(t, sh.ProcessResponse(c, nil))

	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=63072000")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Server"))
}

func TestSecurityHeaders_DevelopmentPresetSkipsCSP(t *testing.T) {
	sh := NewSecurityHeaders(DevelopmentSecurityHeaders())
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, func(c app.Context) error { return nil })

	require.NoError(t, sh.ProcessResponse(c, nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
}
