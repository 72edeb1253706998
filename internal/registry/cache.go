// Package registry keeps the latest route descriptors of every controller
// file and reconciles them with the router.
//
// Reconciliation is whole-cache: every update re-pushes all known entries
// and commits once, so the router's committed set always reflects the most
// recent materialization of each file. Entries are replaced on reload and
// never removed.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/internal/materializer"
	"github.com/conneroisu/girouette/pkg/metrics"
	"github.com/conneroisu/girouette/pkg/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/conneroisu/girouette/internal/registry"

// Entry is the latest materialization of one controller file.
type Entry struct {
	Path       string
	Controller router.ControllerRef
	Result     *materializer.Result
	LoadedAt   time.Time
}

// EventType represents the type of cache event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeReconciled
)

func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// Event reports an entry change followed by its reconciliation.
type Event struct {
	Type  EventType
	Path  string
	Entry *Entry
	// Routes is the number of descriptors committed.
	Routes int
	// Skipped lists the files the router rejected.
	Skipped   []string
	Err       error
	Timestamp time.Time
}

// Cache maps controller files to their route descriptors.
type Cache struct {
	router   router.Router
	logger   logging.Logger
	errors   *gerrors.ErrorHandler
	failures *gerrors.Collector
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	entries  map[string]*Entry
	watchers []chan Event
	mutex    sync.RWMutex

	// reconcile serializes push and commit sequences.
	reconcile sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithCollector records rejected controllers in failures.
func WithCollector(failures *gerrors.Collector) Option {
	return func(c *Cache) {
		c.failures = failures
	}
}

// NewCache creates an empty cache in front of r.
func NewCache(r router.Router, opts ...Option) *Cache {
	c := &Cache{
		router:   r,
		logger:   logging.Discard(),
		failures: gerrors.NewCollector(),
		tracer:   otel.Tracer(tracerName),
		entries:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("registry")
	c.errors = gerrors.NewErrorHandler(c.logger)
	return c
}

// Update replaces the entry for its path and reconciles the router. Only a
// failed commit is returned; rejected controllers are isolated.
func (c *Cache) Update(ctx context.Context, entry *Entry) error {
	if entry.LoadedAt.IsZero() {
		entry.LoadedAt = time.Now()
	}

	c.mutex.Lock()
	eventType := EventTypeAdded
	if _, exists := c.entries[entry.Path]; exists {
		eventType = EventTypeUpdated
	}
	c.entries[entry.Path] = entry
	c.mutex.Unlock()

	routes, skipped, err := c.Reconcile(ctx)

	c.notify(Event{
		Type:      eventType,
		Path:      entry.Path,
		Entry:     entry,
		Routes:    routes,
		Skipped:   skipped,
		Err:       err,
		Timestamp: time.Now(),
	})
	return err
}

// Reconcile pushes every entry, ordered by path, and commits once. It
// returns the number of descriptors committed and the files whose push the
// router rejected.
func (c *Cache) Reconcile(ctx context.Context) (int, []string, error) {
	c.reconcile.Lock()
	defer c.reconcile.Unlock()

	ctx, span := c.tracer.Start(ctx, "registry.Reconcile")
	defer span.End()

	start := time.Now()
	entries := c.Entries()

	routes := 0
	var skipped []string
	for _, entry := range entries {
		handles := Handles(c.router, entry)
		if len(handles) == 0 {
			continue
		}

		if err := c.router.Push(handles...); err != nil {
			err = tagRejection(entry, err)
			c.failures.Add(entry.Path, err)
			c.metrics.ControllerFailed(string(gerrors.TypeOf(err)))
			c.errors.Handle(ctx, err)
			skipped = append(skipped, entry.Path)
			continue
		}

		c.failures.ResolveType(entry.Path, gerrors.ErrorTypeRegistration)
		routes += entry.Result.Len()
	}

	span.SetAttributes(
		attribute.Int("girouette.entries", len(entries)),
		attribute.Int("girouette.routes", routes),
		attribute.Int("girouette.skipped", len(skipped)),
	)

	if err := c.router.Commit(); err != nil {
		if !gerrors.IsRegistrationError(err) {
			err = gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected, "router commit failed", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error(ctx, err, "Route commit failed", "entries", len(entries))
		return 0, skipped, err
	}

	c.metrics.Reconciled(routes, time.Since(start))
	c.logger.Debug(ctx, "Routes reconciled",
		"entries", len(entries),
		"routes", routes,
		"skipped", len(skipped),
		"duration", time.Since(start).String())

	c.notify(Event{
		Type:      EventTypeReconciled,
		Routes:    routes,
		Skipped:   skipped,
		Timestamp: time.Now(),
	})

	return routes, skipped, nil
}

func tagRejection(entry *Entry, err error) error {
	var ge *gerrors.GirouetteError
	if !errors.As(err, &ge) {
		ge = gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected, "router rejected controller", err)
	}
	if ge.Path == "" {
		ge.Path = entry.Path
	}
	if ge.Controller == "" {
		ge.Controller = entry.Controller.String()
	}
	return ge
}

// Get retrieves the entry of a file
func (c *Cache) Get(path string) (*Entry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[path]
	return entry, exists
}

// Entries returns every entry ordered by path
func (c *Cache) Entries() []*Entry {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

// Count returns the number of cached files
func (c *Cache) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// Failures returns the collector rejected controllers are recorded in.
func (c *Cache) Failures() *gerrors.Collector {
	return c.failures
}

// Watch returns a channel that receives cache events
func (c *Cache) Watch() <-chan Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ch := make(chan Event, 100)
	c.watchers = append(c.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (c *Cache) UnWatch(ch <-chan Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, watcher := range c.watchers {
		if watcher == ch {
			close(watcher)
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
}

func (c *Cache) notify(event Event) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, watcher := range c.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
