package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/nodalis/framework/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersioning_ResolvesFromURLPath(t *testing.T) {
	v := NewVersioning(VersioningConfig{Strategy: StrategyURLPath, Default: "v1"})
	req := httptest.NewRequest("GET", "/v2/widgets", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, func(c app.Context) error { return nil })

	proceed, err := v.ProcessRequest(c)
	require.NoError(t, err)
	assert.True(t, proceed)

	info, ok := c.Get(VersionInfoKey).(VersionInfo)
	require.True(t, ok)
	assert.Equal(t, "v2", info.Version)
}

func TestVersioning_ResolvesFromHeaderAndFallsBackToDefault(t *testing.T) {
	v := NewVersioning(VersioningConfig{Strategy: StrategyHeader, Default: "v1"})
	req := httptest.NewRequest("GET", "/widgets", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, func(c app.Context) error { return nil })

	_, err := v.ProcessRequest(c)
	require.NoError(t, err)
	info, _ := c.Get(VersionInfoKey).(VersionInfo)
	assert.Equal(t, "v1", info.Version)
}

func TestVersioning_DeprecatedVersionGetsSunsetHeaders(t *testing.T) {
	v := NewVersioning(VersioningConfig{
		Strategy: StrategyQuery,
		Default:  "v1",
		Deprecated: map[string]DeprecationInfo{
			"v1": {Sunset: "Wed, 01 Jan 2027 00:00:00 GMT", Warning: "deprecated"},
		},
	})
	req := httptest.NewRequest("GET", "/widgets?version=v1", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, func(c app.Context) error { return nil })

	_, err := v.ProcessRequest(c)
	require.NoError(t, err)
	require.NoError(t, v.ProcessResponse(c, nil))

	assert.Equal(t, "true", w.Header().Get("Deprecation"))
	assert.Equal(t, "deprecated", w.Header().Get("Warning"))
	assert.Equal(t, "Wed, 01 Jan 2027 00:00:00 GMT", w.Header().Get("Sunset"))
}
