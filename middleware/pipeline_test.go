package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/nodalis/framework/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMiddleware struct {
	name         string
	trace        *[]string
	shortCircuit bool
	reqErr       error
}

func (m *recordingMiddleware) Name() string { return m.name }

func (m *recordingMiddleware) ProcessRequest(c app.Context) (bool, error) {
	*m.trace = append(*m.trace, "req:"+m.name)
	if m.reqErr != nil {
		return false, m.reqErr
	}
	return !m.shortCircuit, nil
}

func (m *recordingMiddleware) ProcessResponse(c app.Context, handlerErr error) error {
	*m.trace = append(*m.trace, "resp:"+m.name)
	return handlerErr
}

// Request phases run forward, response phases unwind in exact reverse:
// Tracing -> Auth -> RateLimit -> handler on the way in, reversed on the
// way back.
func TestPipeline_ResponseOrderIsReverseOfRequestOrder(t *testing.T) {
	var trace []string
	tracing := &recordingMiddleware{name: "Tracing", trace: &trace}
	auth := &recordingMiddleware{name: "Auth", trace: &trace}
	rateLimit := &recordingMiddleware{name: "RateLimit", trace: &trace}

	p := NewPipeline(tracing, auth, rateLimit)
	handlerRan := false
	handler := p.Handler()

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, handler, func(c app.Context) error {
		handlerRan = true
		trace = append(trace, "handler")
		return nil
	})

	require.NoError(t, c.Next())
	assert.True(t, handlerRan)
	assert.Equal(t, []string{
		"req:Tracing", "req:Auth", "req:RateLimit", "handler",
		"resp:RateLimit", "resp:Auth", "resp:Tracing",
	}, trace)
}

// When Auth short-circuits, the response unwind only covers Auth and
// Tracing, since RateLimit's request phase never ran.
func TestPipeline_ShortCircuitSkipsLaterMiddleware(t *testing.T) {
	var trace []string
	tracing := &recordingMiddleware{name: "Tracing", trace: &trace}
	auth := &recordingMiddleware{name: "Auth", trace: &trace, shortCircuit: true}
	rateLimit := &recordingMiddleware{name: "RateLimit", trace: &trace}

	p := NewPipeline(tracing, auth, rateLimit)
	handlerRan := false
	handler := p.Handler()

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, handler, func(c app.Context) error {
		handlerRan = true
		return nil
	})

	require.NoError(t, c.Next())
	assert.False(t, handlerRan)
	assert.Equal(t, []string{
		"req:Tracing", "req:Auth",
		"resp:Auth", "resp:Tracing",
	}, trace)
}

func TestPipeline_RequestErrorPropagatesThroughResponsePhases(t *testing.T) {
	var trace []string
	boom := errors.New("boom")
	tracing := &recordingMiddleware{name: "Tracing", trace: &trace}
	auth := &recordingMiddleware{name: "Auth", trace: &trace, reqErr: boom}

	p := NewPipeline(tracing, auth)
	handler := p.Handler()

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	c := app.NewContext(nil, w, req, handler)

	err := c.Next()
	require.ErrorIs(t, err, boom)
}
