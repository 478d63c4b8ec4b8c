// Package app provides the core application framework: the application
// container, request/response context, HTTP routing, middleware pipeline,
// and service registration mechanisms. It is the central orchestrator that
// boots the module graph and the di container, then drives the HTTP server
// or a CLI command off the result.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodalis/framework/apperr"
	"github.com/nodalis/framework/bootstrap"
	"github.com/nodalis/framework/config"
	"github.com/nodalis/framework/db"
	"github.com/nodalis/framework/di"
	"github.com/nodalis/framework/module"
	"github.com/nodalis/framework/req"
	"github.com/nodalis/framework/routing"
	"github.com/nodalis/framework/shared"
)

// M is a convenience type for map[string]any, commonly used for JSON responses
// and error payloads. It implements the error interface for use in error handling.
type M map[string]any

// Error returns a string representation of the JSON-encoded map.
// This allows M to be used as an error type that can be serialized to JSON.
func (m M) Error() string {
	jsonEncoded, err := json.Marshal(m)
	if err != nil {
		return err.Error()
	}
	return string(jsonEncoded)
}

// Command builds a cobra subcommand bound to the running application,
// registered through WithCommands or a CommandProvider.
type Command func(a App) *cobra.Command

// Bootstrapper defines the interface for configuring and starting the application.
// It provides a fluent API for registering various application components before
// the application starts handling requests.
type Bootstrapper interface {
	// WithConfig sets the configuration map for the application
	WithConfig(c config.M) Bootstrapper

	// WithCommands registers CLI commands with the application
	WithCommands(commands []Command) Bootstrapper

	// WithMiddlewares registers global middleware that runs before route handlers
	WithMiddlewares(middlewares []Handler) Bootstrapper

	// WithHTTPMiddlewares registers HTTP-level middleware in the request pipeline
	WithHTTPMiddlewares(middlewares []HTTPMiddleware) Bootstrapper

	// WithRoutes registers route callback functions for defining application routes
	WithRoutes(routeCallbacks []RouteCallback) Bootstrapper

	// WithProviders registers service providers that configure application services
	WithProviders(providers []Provider) Bootstrapper

	// Run starts the application, either as a web server or CLI command processor
	Run()
}

// AppCore defines the core functionality available to the application.
type AppCore interface {
	// Config returns the application configuration instance
	Config() config.Configuration

	// Router returns the HTTP router for registering routes
	Router() Router

	// DB returns the default database connection.
	DB() *db.Connection

	// Container returns the built di container, available once Run has
	// completed service registration.
	Container() *di.Container

	// Modules returns the module graph registry this application boots from.
	Modules() *module.Registry

	// RunningInConsole returns true if the application is running as a CLI command
	RunningInConsole() bool

	// Bootstrapped returns true if the application has completed bootstrap phase
	Bootstrapped() bool

	// InProduction returns true if the application is running in production environment
	InProduction() bool

	// Env checks if the application is running in the specified environment
	Env(environment string) bool

	// AddService registers a service instance in the service container
	AddService(service any)

	// Service retrieves a service instance from the service container by type
	Service(service any) any

	// EventEmitter provides event publishing and subscription capabilities
	EventEmitter
}

// App represents the main application interface that combines core functionality.
type App interface {
	AppCore
}

// AppEngine combines bootstrapping and core functionality.
type AppEngine interface {
	Bootstrapper
	AppCore
}

// application is the main application implementation that manages the entire
// framework lifecycle including configuration, routing, middleware, services,
// and request handling.
type application struct {
	mu               sync.Mutex
	config           config.Configuration
	router           *httpRouter
	routeCallbacks   []RouteCallback
	commands         []Command
	middleware       []Handler
	httpMiddleware   []HTTPMiddleware
	runningInConsole bool
	bootstrapped     bool

	providers       []Provider
	serviceRegistry *ServiceRegistry
	eventRegistry   *eventRegistry
	moduleRegistry  *module.Registry
	container       *di.Container
	dbConn          *db.Connection
}

func (a *application) On(event string, listener EventListener) {
	a.eventRegistry.On(event, listener)
}

func (a *application) Dispatch(event string, payload ...any) {
	a.eventRegistry.Dispatch(event, payload)
}

func (a *application) WithProviders(providers []Provider) Bootstrapper {
	a.providers = append(a.providers, providers...)
	return a
}

// Options contains configuration options for creating a new application instance.
type Options struct {
	Config    config.M
	Commands  []Command
	Routes    []RouteCallback
	Providers []Provider
}

// OptFunc is a function that modifies Options during application configuration.
type OptFunc func(opts *Options)

func (a *application) Router() Router {
	return a.router
}

func (a *application) DB() *db.Connection {
	return a.dbConn
}

func (a *application) Container() *di.Container {
	return a.container
}

func (a *application) Modules() *module.Registry {
	return a.moduleRegistry
}

func (a *application) Config() config.Configuration {
	return a.config
}

func (a *application) AddService(service any) {
	a.serviceRegistry.Register(service)
}

func (a *application) Service(service any) any {
	val, ok := a.serviceRegistry.GetByType(reflect.TypeOf(service))
	if !ok {
		return nil
	}
	return val
}

// WithConfig returns an OptFunc that sets the configuration map for the application.
func WithConfig(config config.M) OptFunc {
	return func(opts *Options) {
		opts.Config = config
	}
}

// WithCommands returns an OptFunc that registers CLI commands with the application.
func WithCommands(commands []Command) OptFunc {
	return func(opts *Options) {
		opts.Commands = commands
	}
}

// WithRoutes returns an OptFunc that registers route callbacks with the application.
func WithRoutes(routes []RouteCallback) OptFunc {
	return func(opts *Options) {
		opts.Routes = routes
	}
}

// WithProviders returns an OptFunc that registers service providers with the application.
func WithProviders(providers []Provider) OptFunc {
	return func(opts *Options) {
		opts.Providers = providers
	}
}

// Configure creates and configures a new application instance using functional options.
func Configure(optFuncs ...OptFunc) AppEngine {
	opts := &Options{}

	for _, optFunc := range optFuncs {
		optFunc(opts)
	}

	i := &application{
		router:           newRouter(),
		config:           config.GetInstance(),
		runningInConsole: len(os.Args) > 1,
		serviceRegistry:  NewServiceRegistry(),
		eventRegistry:    newEventRegistry(),
		moduleRegistry:   module.Global(),
	}

	if opts.Config != nil {
		i.config.SetConfigMap(opts.Config)
	}
	if len(opts.Commands) > 0 {
		i.commands = append(i.commands, opts.Commands...)
	}
	if opts.Routes != nil {
		i.routeCallbacks = append(i.routeCallbacks, opts.Routes...)
	}
	if opts.Providers != nil {
		i.providers = append(i.providers, opts.Providers...)
	}

	return i
}

// InProduction returns true if the application is running in production environment.
func InProduction() bool {
	return os.Getenv("APP_ENV") == "production"
}

// Env checks if the application is running in the specified environment.
func Env(environment string) bool {
	return os.Getenv("APP_ENV") == environment
}

func (a *application) InProduction() bool {
	return InProduction()
}

func (a *application) Env(environment string) bool {
	return Env(environment)
}

func (a *application) RunningInConsole() bool {
	return a.runningInConsole
}

func (a *application) Bootstrapped() bool {
	return a.bootstrapped
}

// WithConfig sets the config map to the current config instance
func (a *application) WithConfig(c config.M) Bootstrapper {
	a.config.SetConfigMap(c)
	return a
}

// WithRoutes calls the provided callback and registers the routes
func (a *application) WithRoutes(routeCallbacks []RouteCallback) Bootstrapper {
	a.routeCallbacks = append(a.routeCallbacks, routeCallbacks...)
	return a
}

// WithMiddlewares accepts a slice of global middleware
func (a *application) WithMiddlewares(middlewares []Handler) Bootstrapper {
	a.middleware = append(a.middleware, middlewares...)
	return a
}

// WithHTTPMiddlewares accepts a slice of global middleware
func (a *application) WithHTTPMiddlewares(httpMiddlewares []HTTPMiddleware) Bootstrapper {
	a.httpMiddleware = append(a.httpMiddleware, httpMiddlewares...)
	return a
}

// WithCommands register the commands
func (a *application) WithCommands(commands []Command) Bootstrapper {
	a.commands = append(a.commands, commands...)
	return a
}

// bootServices walks the module graph in dependency order, contributing
// each ModuleProvider's bindings into a single di.Builder before freezing
// it into a.container, then runs every provider's plain Provide hook.
func (a *application) bootServices() error {
	builder := di.NewBuilder().WithVisibility(a.moduleRegistry.CanResolve)
	moduleProviders := make(map[string]ModuleProvider)

	for _, provider := range a.providers {
		mp, ok := provider.(ModuleProvider)
		if !ok {
			continue
		}
		d := mp.Descriptor()
		if err := a.moduleRegistry.RegisterModule(d); err != nil {
			return err
		}
		moduleProviders[d.Name] = mp
	}

	if err := a.moduleRegistry.ResolveDependencies(func(d *module.Descriptor) error {
		mp, ok := moduleProviders[d.Name]
		if !ok {
			return nil
		}
		return mp.ProvideServices(builder)
	}); err != nil {
		return err
	}

	container, err := builder.Build(a.config)
	if err != nil {
		return err
	}
	a.container = container

	if err := a.container.InitializeAll(context.Background()); err != nil {
		return err
	}

	for _, provider := range a.providers {
		if err := provider.Provide(a); err != nil {
			return err
		}
		if cp, ok := provider.(CommandProvider); ok {
			a.commands = append(a.commands, cp.AddCommands()...)
		}
		if mwp, ok := provider.(MiddlewareProvider); ok {
			a.middleware = append(a.middleware, mwp.AddMiddlewares()...)
		}
		if rp, ok := provider.(RouteProvider); ok {
			a.routeCallbacks = append(a.routeCallbacks, rp.AddRoutes())
		}
	}

	if conn, err := di.Resolve[*db.Connection](a.container); err == nil {
		a.dbConn = conn
	}

	return nil
}

func (a *application) registerMiddlewares() {
	if a.router != nil {
		for _, middleware := range a.httpMiddleware {
			a.router.Use(middleware)
		}

		for _, middleware := range a.middleware {
			a.router.UseBefore(middleware)
		}
	}
}

func (a *application) registerRoutes() {
	for _, cb := range a.routeCallbacks {
		cb(a)
	}

	a.router.sortRoutes()
	if conflicts := a.router.Diagnose(); len(conflicts) > 0 {
		slog.Warn(routing.Report(conflicts))
	}
	for _, route := range a.router.routes {
		slog.Debug(fmt.Sprintf("Registering route: %s %s", route.Method, route.Path))
	}

	a.router.mux.HandleFunc("/", a.dispatch)
	a.router.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	a.router.mux.Handle("GET /public/", http.StripPrefix("/public/", http.FileServer(http.Dir("public"))))
}

// dispatch walks the precedence-sorted route table, fills the matched
// route's path captures onto the request, and runs the handler chain. No
// route matching the path is a 404; a path registered only under other
// methods is a 405.
func (a *application) dispatch(w http.ResponseWriter, r *http.Request) {
	route, captures, ok := a.router.match(r.Method, r.URL.Path)
	if !ok {
		c := &ctx{app: a, request: r, writer: w}
		if a.router.matchesOtherMethod(r.Method, r.URL.Path) {
			_ = c.Error(http.StatusMethodNotAllowed, &apperr.RequestError{
				Status:  http.StatusMethodNotAllowed,
				Message: fmt.Sprintf("%s is not allowed for %s", r.Method, r.URL.Path),
			})
			return
		}
		_ = c.NotFound(apperr.NotFound(fmt.Sprintf("no route matches %s %s", r.Method, r.URL.Path)))
		return
	}
	for name, value := range captures {
		r.SetPathValue(name, value)
	}
	makeHandlerFunc(a, route)(w, r)
}

func makeHandlerFunc(app *application, route *route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("handling request", "method", route.Method, "path", route.Path)
		if route.router == nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		allHandlers := append(append([]Handler{}, route.BeforeMiddleware...), route.Handlers...)
		allHandlers = append(allHandlers, route.AfterMiddleware...)

		c := &ctx{
			app:      app,
			request:  r,
			writer:   w,
			handlers: allHandlers,
			index:    -1,
		}

		if err := c.Next(); err != nil {
			var fieldErrs shared.ValidationErrors
			if errors.As(err, &fieldErrs) {
				_ = c.ValidationError(err)
				return
			}

			var mfr *req.MalformedRequest
			if errors.As(err, &mfr) {
				_ = c.Error(mfr.Status, mfr)
				return
			}

			var payload M
			if errors.As(err, &payload) {
				_ = c.JSON(payload)
				return
			}

			_ = c.Error(apperr.StatusCode(err), err)
		}
	}
}

func (a *application) Run() {
	if a.config == nil {
		panic(&apperr.ConfigError{Message: "main configuration is missing"})
	}

	a.Dispatch(ServicesRegistering)
	if err := a.bootServices(); err != nil {
		panic(err)
	}
	a.Dispatch(ServicesRegistered)

	a.Dispatch(MiddlewareRegistering)
	a.registerMiddlewares()
	a.Dispatch(MiddlewareRegistered)

	a.Dispatch(RoutesRegistering)
	a.registerRoutes()
	a.Dispatch(RoutesRegistered)

	a.bootstrapped = true
	a.registerCommands()
}

func (a *application) serve() {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetAs[int]("app.port", 3000)),
		Handler: a.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	slog.Info(fmt.Sprintf("%s is running on port %d, Press Ctrl+C to close the server...",
		config.GetAs[string]("app.name", "app"), config.GetAs[int]("app.port", 3000)))
	a.Dispatch(ServerStarted)
	a.HandleSignals(srv)
}

func (a *application) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.serve()
			return nil
		},
	}
}

func (a *application) routesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List every registered route",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, route := range a.router.routes {
				fmt.Printf("%-7s %s\n", route.Method, route.Path)
			}
			fmt.Print(routing.Report(a.router.Diagnose()))
			return nil
		},
	}
}

func (a *application) modulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "Print the module load order and a convention-based discovery report",
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := a.moduleRegistry.CalculateLoadOrder()
			if err != nil {
				return err
			}
			fmt.Println("load order:")
			for i, name := range order {
				fmt.Printf("  %d. %s\n", i+1, name)
			}

			if a.container == nil {
				return nil
			}

			regs := a.container.Inspect()
			types := make([]reflect.Type, 0, len(regs))
			lifetimes := make(map[reflect.Type]di.Lifetime, len(regs))
			depths := make(map[reflect.Type]int, len(regs))
			for _, r := range regs {
				types = append(types, r.ImplType)
				lifetimes[r.ImplType] = r.Lifetime
				depths[r.ImplType] = r.Depth
			}

			report := bootstrap.Discover(types, lifetimes, depths)
			fmt.Printf("services: %d, by role: %v, by lifetime: %v, max depth: %d\n",
				len(report.Findings), report.ByRole, report.ByLifetime, report.MaxDependencyDepth)
			for _, issue := range report.PotentialIssues {
				fmt.Println("warning:", issue)
			}
			return nil
		},
	}
}

func (a *application) registerCommands() {
	serveCmd := a.serveCommand()
	root := &cobra.Command{
		Use:  config.GetAs[string]("app.name", "app"),
		RunE: serveCmd.RunE,
	}
	root.AddCommand(serveCmd, a.routesCommand(), a.modulesCommand())
	for _, command := range a.commands {
		root.AddCommand(command(a))
	}

	if err := root.Execute(); err != nil {
		panic(err)
	}
}

func (a *application) HandleSignals(srv *http.Server) {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel,
		syscall.SIGINT,
		syscall.SIGTERM,
	)

	sig := <-signalChannel
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		// In development, detect if this is likely from Air vs manual Ctrl+C
		// Air will send SIGTERM/SIGKILL shortly after SIGINT, so we can
		// detect this by checking if we receive another signal quickly
		isAirRestart := false
		if !a.InProduction() {
			quickSignalCheck := make(chan os.Signal, 1)
			signal.Notify(quickSignalCheck, syscall.SIGTERM, syscall.SIGKILL)

			select {
			case <-quickSignalCheck:
				isAirRestart = true
			case <-time.After(500 * time.Millisecond):
				isAirRestart = false
			}
			signal.Stop(quickSignalCheck)
		}

		timeout := 30 * time.Second
		if !a.InProduction() {
			if isAirRestart {
				timeout = 100 * time.Millisecond
			} else {
				timeout = 2 * time.Second
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}

		if !isAirRestart {
			a.shutDown()
		}
		os.Exit(0)
	}
}

func (a *application) shutDown() {
	slog.Info("Shutting down application...")
	if a.container == nil {
		return
	}
	if err := a.container.Dispose(context.Background()); err != nil {
		slog.Error(err.Error())
	}
}
