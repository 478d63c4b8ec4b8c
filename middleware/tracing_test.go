package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/nodalis/framework/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing_AssignsRequestIDAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tracing := NewTracing(logger)

	req := httptest.NewRequest("GET", "/orders", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, func(c app.Context) error { return nil })

	proceed, err := tracing.ProcessRequest(c)
	require.NoError(t, err)
	assert.True(t, proceed)

	id, _ := c.Get(RequestIDKey).(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	require.NoError(t, tracing.ProcessResponse(c, nil))

	logged := buf.String()
	assert.NotContains(t, logged, "Bearer secret")
	assert.Contains(t, logged, "[REDACTED]")
}

func TestRedactHeaders_HidesSensitiveValuesOnly(t *testing.T) {
	headers := map[string][]string{
		"Authorization": {"Bearer x"},
		"X-Request-Id":  {"abc"},
	}
	redacted := redactHeaders(headers)
	assert.Equal(t, "[REDACTED]", redacted["Authorization"])
	assert.Equal(t, "abc", redacted["X-Request-Id"])
}
