package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/ggicci/httpin"
	"github.com/ggicci/httpin/core"

	"github.com/nodalis/framework/routing"
)

const HTTPInKey = "input"

type Handler func(c Context) error

type Middleware func(next Handler) Handler

type HTTPMiddleware func(http.Handler) http.Handler

type RouteCallback func(a App)

type route struct {
	Method           string
	Path             string
	Handlers         []Handler
	BeforeMiddleware []Handler
	AfterMiddleware  []Handler
	router           *httpRouter

	pattern     *routing.Pattern
	source      string
	handlerName string
	mwNames     []string
	order       int
}

type httpRouter struct {
	routes           []*route
	httpMiddlewares  []HTTPMiddleware
	basePrefix       string
	mux              *http.ServeMux
	beforeMiddleware []Handler
	afterMiddleware  []Handler
	nextOrder        int
}

type routeGroup struct {
	router           *httpRouter
	prefix           string
	beforeMiddleware []Handler
	afterMiddleware  []Handler
}

func (g *routeGroup) Group(prefix string) *routeGroup {
	return &routeGroup{
		router:           g.router,
		prefix:           path.Join(g.prefix, prefix),
		beforeMiddleware: append([]Handler{}, g.beforeMiddleware...),
		afterMiddleware:  append([]Handler{}, g.afterMiddleware...),
	}
}

func (g *routeGroup) UseBefore(handlers ...Handler) {
	g.beforeMiddleware = append(g.beforeMiddleware, handlers...)
}

func (g *routeGroup) UseAfter(handlers ...Handler) {
	g.afterMiddleware = append(handlers, g.afterMiddleware...)
}

func (g *routeGroup) addRoute(method, pattern string, handlers ...Handler) *route {
	fullPath := joinPattern(g.prefix, pattern)
	route := &route{
		Method:           method,
		Path:             fullPath,
		Handlers:         handlers,
		BeforeMiddleware: append(append([]Handler{}, g.router.beforeMiddleware...), g.beforeMiddleware...),
		AfterMiddleware:  append(append([]Handler{}, g.afterMiddleware...), g.router.afterMiddleware...),
		router:           g.router,
		pattern:          routing.MustCompile(fullPath),
		order:            g.router.take(),
	}
	g.router.routes = append(g.router.routes, route)
	return route
}

func (g *routeGroup) Get(pattern string, handlers ...Handler) *route {
	return g.addRoute(http.MethodGet, pattern, handlers...)
}

func (g *routeGroup) Post(pattern string, handlers ...Handler) *route {
	return g.addRoute(http.MethodPost, pattern, handlers...)
}

func (g *routeGroup) Put(pattern string, handlers ...Handler) *route {
	return g.addRoute(http.MethodPut, pattern, handlers...)
}

func (g *routeGroup) Patch(pattern string, handlers ...Handler) *route {
	return g.addRoute(http.MethodPatch, pattern, handlers...)
}

func (g *routeGroup) Delete(pattern string, handlers ...Handler) *route {
	return g.addRoute(http.MethodDelete, pattern, handlers...)
}

// Resource expands prefix into the conventional RESTful set bound to
// ctrl's methods by name: Index, Create, Show, Update, Destroy. Only the
// methods ctrl actually implements are registered.
func (g *routeGroup) Resource(prefix string, ctrl any) {
	expandResource(ctrl, prefix, g.addRoute)
}

// newRouter creates a new httpRouter-based router
func newRouter() *httpRouter {
	return &httpRouter{
		routes:           []*route{},
		httpMiddlewares:  []HTTPMiddleware{},
		mux:              http.NewServeMux(),
		beforeMiddleware: []Handler{},
		afterMiddleware:  []Handler{},
	}
}

func (r *httpRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = r.mux
	for i := len(r.httpMiddlewares) - 1; i >= 0; i-- {
		handler = r.httpMiddlewares[i](handler)
	}
	handler.ServeHTTP(w, req)
}

func (r *httpRouter) Group(prefix string) *routeGroup {
	return &routeGroup{
		router:           r,
		prefix:           prefix,
		beforeMiddleware: []Handler{},
		afterMiddleware:  []Handler{},
	}
}

func (r *httpRouter) UseBefore(handlers ...Handler) {
	r.beforeMiddleware = append(r.beforeMiddleware, handlers...)
}

func (r *httpRouter) UseAfter(handlers ...Handler) {
	r.afterMiddleware = append(handlers, r.afterMiddleware...)
}

func (r *httpRouter) HasRoute(method string, pattern string) bool {
	return slices.ContainsFunc(r.routes, func(route *route) bool {
		return route.Method == method && route.Path == pattern
	})
}

func (r *httpRouter) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

func (r *httpRouter) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	r.mux.HandleFunc(pattern, handler)
}

func (r *httpRouter) Get(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodGet, pattern, handlers...)
}

func (r *httpRouter) Post(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodPost, pattern, handlers...)
}

func (r *httpRouter) Put(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodPut, pattern, handlers...)
}

func (r *httpRouter) Patch(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodPatch, pattern, handlers...)
}

func (r *httpRouter) Delete(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodDelete, pattern, handlers...)
}

func (r *httpRouter) Connect(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodConnect, pattern, handlers...)
}

func (r *httpRouter) Head(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodHead, pattern, handlers...)
}

func (r *httpRouter) Options(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodOptions, pattern, handlers...)
}

func (r *httpRouter) Trace(pattern string, handlers ...Handler) *route {
	return r.addRoute(http.MethodTrace, pattern, handlers...)
}

// Use adds one or more standard net/http middleware to the router
func (r *httpRouter) Use(middlewares ...HTTPMiddleware) {
	r.httpMiddlewares = append(r.httpMiddlewares, middlewares...)
}

// Resource expands prefix into the conventional index/create/show/update/
// destroy set bound to ctrl's methods by name.
func (r *httpRouter) Resource(prefix string, ctrl any) {
	expandResource(ctrl, prefix, r.addRoute)
}

// Merge appends every route and HTTP middleware of other into r. Routes
// keep their own middleware chains; conflict detection runs over the
// combined set on the next Diagnose call.
func (r *httpRouter) Merge(other *httpRouter) {
	for _, rt := range other.routes {
		copied := *rt
		copied.router = r
		copied.order = r.take()
		r.routes = append(r.routes, &copied)
	}
	r.httpMiddlewares = append(r.httpMiddlewares, other.httpMiddlewares...)
}

func (r *httpRouter) take() int {
	n := r.nextOrder
	r.nextOrder++
	return n
}

func (r *httpRouter) addRoute(method, pattern string, handlers ...Handler) *route {
	fullPath := joinPattern(r.basePrefix, pattern)
	route := &route{
		Method:           method,
		Path:             fullPath,
		Handlers:         handlers,
		BeforeMiddleware: r.beforeMiddleware,
		AfterMiddleware:  r.afterMiddleware,
		router:           r,
		pattern:          routing.MustCompile(fullPath),
		order:            r.take(),
	}
	r.routes = append(r.routes, route)
	slog.Debug(fmt.Sprintf("Added route: %s %s", method, fullPath))
	return route
}

// sortRoutes orders the route table by matching precedence: more literal
// segments first, then longer (more constrained) patterns, then
// registration order. A typed parameter renders longer than a bare one, so
// /users/{id:int} is tried before /users/{name}. Matching afterwards is a
// deterministic linear scan with first-match-wins.
func (r *httpRouter) sortRoutes() {
	sort.SliceStable(r.routes, func(i, j int) bool {
		a, b := r.routes[i], r.routes[j]
		if a.pattern.LiteralCount() != b.pattern.LiteralCount() {
			return a.pattern.LiteralCount() > b.pattern.LiteralCount()
		}
		if len(a.Path) != len(b.Path) {
			return len(a.Path) > len(b.Path)
		}
		return a.order < b.order
	})
}

// match finds the first route whose method and compiled pattern accept the
// request path, returning its captured parameters. A typed parameter that
// rejects its capture falls through to the next candidate rather than
// failing the request.
func (r *httpRouter) match(method, requestPath string) (*route, map[string]string, bool) {
	for _, rt := range r.routes {
		if rt.Method != method {
			continue
		}
		if captures, ok := rt.pattern.Match(requestPath); ok {
			return rt, captures, true
		}
	}
	return nil, nil, false
}

// matchesOtherMethod reports whether any route under a different method
// would accept the path, distinguishing a 405 from a plain 404.
func (r *httpRouter) matchesOtherMethod(method, requestPath string) bool {
	for _, rt := range r.routes {
		if rt.Method == method {
			continue
		}
		if _, ok := rt.pattern.Match(requestPath); ok {
			return true
		}
	}
	return false
}

// Diagnose runs the offline conflict pass over the registered route set.
func (r *httpRouter) Diagnose() []routing.Conflict {
	infos := make([]routing.RouteInfo, 0, len(r.routes))
	for _, rt := range r.routes {
		infos = append(infos, routing.RouteInfo{
			Method:     rt.Method,
			Pattern:    rt.pattern,
			Source:     rt.source,
			Handler:    rt.handlerName,
			Middleware: rt.mwNames,
		})
	}
	return routing.Diagnose(infos)
}

func (r *route) UseBefore(handlers ...Handler) *route {
	r.BeforeMiddleware = append(r.BeforeMiddleware, handlers...)
	return r
}

func (r *route) UseAfter(handlers ...Handler) *route {
	r.AfterMiddleware = append(handlers, r.AfterMiddleware...)
	return r
}

// Named tags the route with a middleware name for conflict diagnostics;
// the name has no dispatch effect.
func (r *route) Named(middlewareNames ...string) *route {
	r.mwNames = append(r.mwNames, middlewareNames...)
	return r
}

// resourceActions is the conventional RESTful expansion: handler method
// name to (HTTP method, path suffix).
var resourceActions = []struct {
	handler string
	method  string
	suffix  string
}{
	{"Index", http.MethodGet, ""},
	{"Create", http.MethodPost, ""},
	{"Show", http.MethodGet, "/{id}"},
	{"Update", http.MethodPut, "/{id}"},
	{"Destroy", http.MethodDelete, "/{id}"},
}

var handlerType = reflect.TypeOf((Handler)(nil))

func expandResource(ctrl any, prefix string, add func(method, pattern string, handlers ...Handler) *route) {
	ctrlValue := reflect.ValueOf(ctrl)
	source := reflect.Indirect(ctrlValue).Type().Name()

	for _, action := range resourceActions {
		m := ctrlValue.MethodByName(action.handler)
		if !m.IsValid() || !m.Type().ConvertibleTo(handlerType) {
			continue
		}
		handler := m.Convert(handlerType).Interface().(Handler)
		rt := add(action.method, prefix+action.suffix, handler)
		rt.source = source
		rt.handlerName = action.handler
	}
}

// joinPattern joins a prefix and a pattern. With no prefix the pattern is
// only rooted at "/" and otherwise left as written; with a prefix the two
// are joined by path.Join, which also cleans . and .. segments.
func joinPattern(prefix, pattern string) string {
	if prefix == "" {
		if pattern == "" {
			return "/"
		}
		if !strings.HasPrefix(pattern, "/") {
			return "/" + pattern
		}
		return pattern
	}
	return path.Join(prefix, pattern)
}

func Input(inputStruct any, opts ...core.Option) Middleware {
	co, err := httpin.New(inputStruct, opts...)

	if err != nil {
		panic(err)
	}

	return func(next Handler) Handler {
		return func(ctx Context) error {
			input, err := co.Decode(ctx.Request())
			if err != nil {
				co.GetErrorHandler()(ctx.ResponseWriter(), ctx.Request(), err)
				return nil
			}

			ctx.Set(HTTPInKey, input)
			return next(ctx)
		}
	}
}

type Router interface {
	Group(prefix string) *routeGroup
	UseBefore(handlers ...Handler)
	UseAfter(handlers ...Handler)
	HasRoute(method string, pattern string) bool
	Handle(pattern string, handler http.Handler)
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
	Get(pattern string, handlers ...Handler) *route
	Post(pattern string, handlers ...Handler) *route
	Put(pattern string, handlers ...Handler) *route
	Patch(pattern string, handlers ...Handler) *route
	Delete(pattern string, handlers ...Handler) *route
	Connect(pattern string, handlers ...Handler) *route
	Head(pattern string, handlers ...Handler) *route
	Options(pattern string, handlers ...Handler) *route
	Trace(pattern string, handlers ...Handler) *route
	Use(middlewares ...HTTPMiddleware)
	Resource(prefix string, ctrl any)
	Diagnose() []routing.Conflict
}
