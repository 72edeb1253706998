// Package girouette registers the routes controllers declare with an HTTP
// router.
//
// Controllers are either declarative manifest files found under a root
// directory (posts_controller.yaml, users_controller.json, ...) naming a
// registered controller instance, or Go values implementing
// annotations.Annotator. Load discovers and imports them, resolves their
// annotations into routes and commits the whole route set to the router:
//
//	r := muxrouter.New(middleware)
//	app, err := girouette.New(r, girouette.WithRoot("app"))
//	app.Register("posts", &PostsController{})
//	if err := app.Load(ctx); err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", r)
//
// A controller that fails to import, declares malformed annotations or is
// rejected by the router is skipped and reported by Failures; the others are
// still served.
package girouette

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/girouette/internal/di"
	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/loader"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/internal/manifest"
	"github.com/conneroisu/girouette/internal/materializer"
	"github.com/conneroisu/girouette/internal/registry"
	"github.com/conneroisu/girouette/internal/watcher"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/conneroisu/girouette/pkg/metrics"
	"github.com/conneroisu/girouette/pkg/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/conneroisu/girouette"

// goScheme prefixes the load paths of Go-declared controllers.
const goScheme = "go:"

// App wires the discovery, import, materialization and registration
// pipeline in front of one router.
type App struct {
	opts      options
	container *di.ServiceContainer
	router    router.Router
	store     *annotations.Store
	logger    logging.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	errors    *gerrors.ErrorHandler
	failures  *gerrors.Collector
	cache     *registry.Cache
	loader    *loader.Autoloader
	manifests *manifest.Importer

	mu          sync.RWMutex
	controllers map[string]interface{}
	annotators  map[string]annotations.Annotator
	watcher     *watcher.FileWatcher
}

// New creates an App registering routes with r.
func New(r router.Router, opts ...Option) (*App, error) {
	if r == nil {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "a router is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = annotations.NewStore()
	}

	app := &App{
		opts:        o,
		container:   di.NewServiceContainer(),
		tracer:      otel.Tracer(tracerName),
		controllers: make(map[string]interface{}),
		annotators:  make(map[string]annotations.Annotator),
	}
	app.manifests = manifest.NewImporter(o.store, app.lookup)

	c := app.container
	c.RegisterInstance(di.ServiceRouter, r)
	c.RegisterInstance(di.ServiceLogger, o.logger)
	c.RegisterInstance(di.ServiceStore, o.store)
	c.RegisterInstance(di.ServiceMetrics, o.metrics)
	c.RegisterInstance(di.ServiceImporter, loader.ImporterFunc(app.importModule))
	di.RegisterCoreServices(c, di.CoreOptions{
		Root:           o.root,
		Suffixes:       o.suffixes,
		Extensions:     o.extensions,
		Pattern:        o.pattern,
		HotReload:      o.hotReload,
		MaxConcurrency: o.maxConcurrency,
	})
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := app.resolve(); err != nil {
		return nil, err
	}

	app.loader.On(app.onLoaded)
	return app, nil
}

func (a *App) resolve() error {
	var err error
	if a.router, err = di.Resolve[router.Router](a.container, di.ServiceRouter); err != nil {
		return err
	}
	if a.store, err = di.Resolve[*annotations.Store](a.container, di.ServiceStore); err != nil {
		return err
	}
	if a.logger, err = di.Resolve[logging.Logger](a.container, di.ServiceLogger); err != nil {
		return err
	}
	if a.metrics, err = di.Resolve[*metrics.Metrics](a.container, di.ServiceMetrics); err != nil {
		return err
	}
	if a.failures, err = di.Resolve[*gerrors.Collector](a.container, di.ServiceFailures); err != nil {
		return err
	}
	if a.cache, err = di.Resolve[*registry.Cache](a.container, di.ServiceCache); err != nil {
		return err
	}
	if a.loader, err = di.Resolve[*loader.Autoloader](a.container, di.ServiceLoader); err != nil {
		return err
	}
	a.logger = a.logger.WithComponent("girouette")
	a.errors = gerrors.NewErrorHandler(a.logger)
	return nil
}

// Register makes a controller instance available to manifest files under
// name. A manifest names its controller in its "controller" field, or by
// its file name: posts_controller.yaml uses "posts".
func (a *App) Register(name string, controller interface{}) *App {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controllers[name] = controller
	return a
}

// Controller adds a controller that declares its own routes. It is loaded
// with the controller files and returns its identity.
func (a *App) Controller(ctrl annotations.Annotator) annotations.ID {
	id := annotations.IDOf(ctrl)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.annotators[string(id)] = ctrl
	return id
}

func (a *App) lookup(name string) (interface{}, bool) {
	a.mu.RLock()
	ctrl, ok := a.controllers[name]
	a.mu.RUnlock()
	if ok || a.opts.fallback == nil {
		return ctrl, ok
	}
	ctrl = a.opts.fallback(name)
	return ctrl, ctrl != nil
}

// Load runs the whole pipeline: Go controllers first, then every controller
// file under the root. Per-controller failures are isolated and reported by
// Failures; only a filesystem error for the root is returned.
func (a *App) Load(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "girouette.Load")
	defer span.End()

	start := time.Now()

	for _, name := range a.annotatorNames() {
		// Failures are recorded by importModule.
		_, _ = a.loader.LoadModule(ctx, goScheme+name)
	}

	if err := a.loader.Autoload(ctx); err != nil && !allIsolated(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.errors.Handle(ctx, err)
		return err
	}

	// The router is committed even when nothing was found.
	if a.cache.Count() == 0 {
		if _, _, err := a.cache.Reconcile(ctx); err != nil {
			return err
		}
	}

	routes := a.routeCount()
	span.SetAttributes(
		attribute.Int("girouette.controllers", a.cache.Count()),
		attribute.Int("girouette.routes", routes),
		attribute.Int("girouette.failures", a.failures.Len()),
	)
	a.logger.Info(ctx, "Controllers loaded",
		"root", a.opts.root,
		"controllers", a.cache.Count(),
		"routes", routes,
		"failures", a.failures.Len(),
		"duration", time.Since(start).String())

	return nil
}

// allIsolated reports whether err and every error joined into it are
// isolated.
func allIsolated(err error) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return gerrors.IsIsolated(err)
	}
	for _, e := range joined.Unwrap() {
		if !allIsolated(e) {
			return false
		}
	}
	return true
}

func (a *App) annotatorNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.annotators))
	for name := range a.annotators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *App) routeCount() int {
	n := 0
	for _, e := range a.cache.Entries() {
		n += e.Result.Len()
	}
	return n
}

// Notify reloads one controller file after it changed. Files the app never
// loaded are picked up when they match the controller selector and hot
// reload is enabled.
func (a *App) Notify(ctx context.Context, path string) error {
	return a.loader.Notify(ctx, path, watcher.EventTypeModified)
}

// Watch reloads controller files as they change until ctx is done or Close
// is called.
func (a *App) Watch(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watcher != nil {
		return nil
	}

	fw, err := a.loader.Watch(ctx, a.opts.debounce)
	if err != nil {
		return err
	}
	a.watcher = fw
	return nil
}

// Subscribe returns a channel receiving every cache change and
// reconciliation. Release it with Unsubscribe.
func (a *App) Subscribe() <-chan Event {
	return a.cache.Watch()
}

// Unsubscribe closes a channel returned by Subscribe.
func (a *App) Unsubscribe(ch <-chan Event) {
	a.cache.UnWatch(ch)
}

// Entries returns the cached controllers ordered by path.
func (a *App) Entries() []*Entry {
	return a.cache.Entries()
}

// Failures returns the controllers skipped by the latest load of each file.
func (a *App) Failures() []Failure {
	return a.failures.Failures()
}

// Store returns the annotation store.
func (a *App) Store() *annotations.Store {
	return a.store
}

// Router returns the router routes are registered with.
func (a *App) Router() router.Router {
	return a.router
}

// Close stops watching and releases the app's services.
func (a *App) Close() error {
	a.mu.Lock()
	fw := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	if fw != nil {
		if err := fw.Stop(); err != nil {
			return err
		}
	}
	return a.container.Shutdown(context.Background())
}

// importModule imports a controller file or a Go controller and records
// its failure.
func (a *App) importModule(ctx context.Context, path string) (*loader.Module, error) {
	var mod *loader.Module
	var err error
	if strings.HasPrefix(path, goScheme) {
		mod, err = a.importGo(path)
	} else {
		mod, err = a.manifests.Import(ctx, path)
	}

	if err != nil {
		a.failures.Add(path, err)
		return nil, err
	}
	a.failures.Resolve(path)
	return mod, nil
}

func (a *App) importGo(path string) (*loader.Module, error) {
	name := strings.TrimPrefix(path, goScheme)

	a.mu.RLock()
	ctrl, ok := a.annotators[name]
	a.mu.RUnlock()
	if !ok {
		return nil, gerrors.NewModuleLoadError(gerrors.ErrCodeUnknownController,
			fmt.Sprintf("no Go controller %s", name), nil).WithPath(path)
	}

	id := a.store.Annotate(ctrl)
	return &loader.Module{Path: path, Controller: id, Instance: ctrl}, nil
}

// onLoaded materializes a loaded module and hands its routes to the cache.
func (a *App) onLoaded(ctx context.Context, ev loader.Event) {
	mod := ev.Module

	result, err := materializer.Materialize(a.store, mod.Controller)
	if err != nil {
		var ge *gerrors.GirouetteError
		if errors.As(err, &ge) {
			if ge.Path == "" {
				ge.Path = ev.Path
			}
			err = ge
		}
		a.failures.Add(ev.Path, err)
		a.metrics.ControllerFailed(string(gerrors.TypeOf(err)))
		a.errors.Handle(ctx, err)
		result = &materializer.Result{Controller: mod.Controller}
	}

	entry := &registry.Entry{
		Path:       ev.Path,
		Controller: router.ControllerRef{ID: mod.Controller, Instance: mod.Instance},
		Result:     result,
		LoadedAt:   ev.Timestamp,
	}
	if err := a.cache.Update(ctx, entry); err != nil {
		a.errors.Handle(ctx, err)
	}
}
