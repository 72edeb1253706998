// Package loader imports controller files and reports their lifecycle.
//
// Every successful load emits exactly one event: "added" the first time a
// path is loaded by an Autoloader, "updated" on every later load of the same
// path. Loads of one path are serialized; loads of different paths run
// concurrently.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/internal/scanner"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/conneroisu/girouette/pkg/metrics"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/conneroisu/girouette/internal/loader"

// Module is an imported controller file.
type Module struct {
	Path string
	// Controller is the identity the file's annotations are stored under.
	Controller annotations.ID
	// Instance serves the controller's handlers.
	Instance interface{}
}

// Importer turns a controller file into a Module, storing its annotations as
// a side effect.
type Importer interface {
	Import(ctx context.Context, path string) (*Module, error)
}

// ImporterFunc adapts a function to Importer.
type ImporterFunc func(ctx context.Context, path string) (*Module, error)

// Import implements Importer.
func (f ImporterFunc) Import(ctx context.Context, path string) (*Module, error) {
	return f(ctx, path)
}

// EventType is a module lifecycle event.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
)

// Event reports a successful load.
type Event struct {
	Type      EventType
	Path      string
	Module    *Module
	Timestamp time.Time
}

// Listener receives lifecycle events. Listeners run on the loading
// goroutine, before LoadModule returns.
type Listener func(ctx context.Context, ev Event)

// Autoloader discovers and imports controller files.
type Autoloader struct {
	scanner  *scanner.Scanner
	importer Importer
	logger   logging.Logger
	errors   *gerrors.ErrorHandler
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	// maxConcurrency bounds Autoload; zero means one goroutine per file.
	maxConcurrency int

	mu        sync.Mutex
	seen      map[string]bool
	locks     map[string]*sync.Mutex
	listeners []Listener
	hooks     map[string]bool
	hot       bool
}

// Option configures an Autoloader.
type Option func(*Autoloader)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Autoloader) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Autoloader) {
		l.metrics = m
	}
}

// WithMaxConcurrency bounds the number of files imported at once.
func WithMaxConcurrency(n int) Option {
	return func(l *Autoloader) {
		l.maxConcurrency = n
	}
}

// WithHotReload registers a reload hook for every loaded path.
func WithHotReload(enabled bool) Option {
	return func(l *Autoloader) {
		l.hot = enabled
	}
}

// New creates an Autoloader over the files s discovers.
func New(s *scanner.Scanner, importer Importer, opts ...Option) *Autoloader {
	l := &Autoloader{
		scanner:  s,
		importer: importer,
		logger:   logging.Discard(),
		tracer:   otel.Tracer(tracerName),
		seen:     make(map[string]bool),
		locks:    make(map[string]*sync.Mutex),
		hooks:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("loader")
	l.errors = gerrors.NewErrorHandler(l.logger)
	return l
}

// On subscribes to lifecycle events.
func (l *Autoloader) On(listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// Scanner returns the scanner files are discovered with.
func (l *Autoloader) Scanner() *scanner.Scanner {
	return l.scanner
}

// Discover lists the controller files under the scanner root.
func (l *Autoloader) Discover() ([]string, error) {
	return l.scanner.Discover()
}

// Autoload discovers every controller file and loads them concurrently. A
// discovery failure is returned as is. Per-file failures are logged and
// returned joined once every file was attempted.
func (l *Autoloader) Autoload(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "loader.Autoload")
	defer span.End()

	paths, err := l.Discover()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("girouette.files", len(paths)))

	p := pool.New().WithErrors()
	if l.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(l.maxConcurrency)
	}
	for _, path := range paths {
		path := path
		p.Go(func() error {
			_, err := l.LoadModule(ctx, path)
			return err
		})
	}

	if err := p.Wait(); err != nil {
		span.SetStatus(codes.Error, "some controller files failed to load")
		return err
	}
	return nil
}

// LoadModule imports path and emits its lifecycle event. Import failures are
// returned as module load errors and emit nothing.
func (l *Autoloader) LoadModule(ctx context.Context, path string) (*Module, error) {
	ctx, span := l.tracer.Start(ctx, "loader.LoadModule",
		trace.WithAttributes(attribute.String("girouette.path", path)))
	defer span.End()

	lock := l.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	mod, err := l.importer.Import(ctx, path)
	if err != nil {
		err = asModuleLoadError(path, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.metrics.ModuleFailed()
		l.errors.Handle(ctx, err)
		return nil, err
	}
	if mod.Path == "" {
		mod.Path = path
	}

	l.mu.Lock()
	eventType := EventAdded
	if l.seen[path] {
		eventType = EventUpdated
	}
	l.seen[path] = true
	if l.hot {
		l.hooks[path] = true
	}
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	span.SetAttributes(attribute.String("girouette.event", string(eventType)))
	l.metrics.ModuleLoaded(string(eventType))
	l.logger.Debug(ctx, "Controller module loaded",
		"path", path,
		"event", string(eventType),
		"controller", string(mod.Controller))

	ev := Event{Type: eventType, Path: path, Module: mod, Timestamp: time.Now()}
	for _, listener := range listeners {
		listener(ctx, ev)
	}

	return mod, nil
}

// Seen reports whether path was loaded before.
func (l *Autoloader) Seen(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[path]
}

// Hooked reports whether a reload hook is registered for path.
func (l *Autoloader) Hooked(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hooks[path]
}

func (l *Autoloader) pathLock(path string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[path] = lock
	}
	return lock
}

func asModuleLoadError(path string, err error) error {
	var ge *gerrors.GirouetteError
	if errors.As(err, &ge) {
		if ge.Path == "" {
			ge.Path = path
		}
		return ge
	}
	return gerrors.NewModuleLoadError(gerrors.ErrCodeDecodeFailed, "failed to import controller file", err).
		WithPath(path)
}
