package middleware

import "github.com/nodalis/framework/app"

// Middleware is a two-phase request/response interceptor: ProcessRequest
// runs forward through the pipeline before the route handler, and
// ProcessResponse unwinds in reverse, but only for middleware whose
// ProcessRequest actually ran. Returning proceed=false from ProcessRequest
// short-circuits the remaining request phases and jumps straight to the
// response unwind starting at that middleware's own position.
type Middleware interface {
	Name() string
	ProcessRequest(c app.Context) (proceed bool, err error)
	ProcessResponse(c app.Context, handlerErr error) error
}

// Pipeline composes a fixed ordered list of Middleware into a single
// app.Handler. Middleware implementations must not share mutable state
// without their own synchronization; the pipeline itself does no locking
// since each request walks its own Pipeline.Handler() closure invocation.
type Pipeline struct {
	middlewares []Middleware
}

func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{middlewares: middlewares}
}

// Handler renders the pipeline as a plain app.Handler suitable for
// route-level BeforeMiddleware, wrapping the rest of the chain (reached via
// c.Next()) as the pipeline's innermost step.
func (p *Pipeline) Handler() app.Handler {
	return func(c app.Context) error {
		ran := make([]Middleware, 0, len(p.middlewares))
		var handlerErr error
		shortCircuited := false

		for _, m := range p.middlewares {
			proceed, err := m.ProcessRequest(c)
			ran = append(ran, m)
			if err != nil {
				handlerErr = err
				shortCircuited = true
				break
			}
			if !proceed {
				shortCircuited = true
				break
			}
		}

		if !shortCircuited {
			handlerErr = c.Next()
		}

		for i := len(ran) - 1; i >= 0; i-- {
			if err := ran[i].ProcessResponse(c, handlerErr); err != nil {
				handlerErr = err
			}
		}

		return handlerErr
	}
}
