package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nodalis/framework/app"
)

// RequestIDKey is the Context key the request id is stored and retrieved
// under; RequestIDHeader is the response header it is echoed back on.
const RequestIDKey = "request_id"
const RequestIDHeader = "X-Request-Id"

// sensitiveHeaders are redacted before a request's headers are logged.
var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
	"x-auth-token":  {},
}

const tracingStartKey = "_tracing_start"

// Tracing assigns a request id, attaches it to the request context and
// response header, and emits structured slog request/response records.
type Tracing struct {
	logger *slog.Logger
}

func NewTracing(logger *slog.Logger) *Tracing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracing{logger: logger}
}

func (t *Tracing) Name() string {
	return "tracing"
}

func (t *Tracing) ProcessRequest(c app.Context) (bool, error) {
	id := uuid.NewString()
	c.Set(RequestIDKey, id)
	c.Set(tracingStartKey, time.Now())
	c.SetHeader(RequestIDHeader, id)

	t.logger.Info("request started",
		"request_id", id,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"headers", redactHeaders(c.Request().Header),
	)
	return true, nil
}

func (t *Tracing) ProcessResponse(c app.Context, handlerErr error) error {
	id, _ := c.Get(RequestIDKey).(string)
	var elapsed time.Duration
	if start, ok := c.Get(tracingStartKey).(time.Time); ok {
		elapsed = time.Since(start)
	}

	args := []any{
		"request_id", id,
		"status", c.Status(),
		"duration", elapsed.String(),
	}
	if handlerErr != nil {
		args = append(args, "error", handlerErr.Error())
		t.logger.Error("request completed", args...)
	} else {
		t.logger.Info("request completed", args...)
	}
	return handlerErr
}

func redactHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, sensitive := sensitiveHeaders[strings.ToLower(k)]; sensitive {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}
