package girouette

import (
	"log/slog"
	"time"

	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/conneroisu/girouette/pkg/metrics"
)

// DefaultRoot is the controllers directory used when none is configured.
const DefaultRoot = "app"

// DefaultDebounce is the delay between a file change and its reload.
const DefaultDebounce = 100 * time.Millisecond

type options struct {
	root           string
	suffixes       []string
	extensions     []string
	pattern        string
	hotReload      bool
	debounce       time.Duration
	maxConcurrency int
	logger         logging.Logger
	metrics        *metrics.Metrics
	store          *annotations.Store
	fallback       func(name string) interface{}
}

func defaultOptions() options {
	return options{
		root:     DefaultRoot,
		debounce: DefaultDebounce,
		logger:   logging.Discard(),
	}
}

// Option configures an App.
type Option func(*options)

// WithRoot sets the directory scanned for controller files.
func WithRoot(root string) Option {
	return func(o *options) {
		o.root = root
	}
}

// WithSuffixes sets the file name suffixes that mark a controller file:
// "controller" matches posts_controller.yaml.
func WithSuffixes(suffixes ...string) Option {
	return func(o *options) {
		o.suffixes = suffixes
	}
}

// WithExtensions sets the accepted controller file extensions.
func WithExtensions(extensions ...string) Option {
	return func(o *options) {
		o.extensions = extensions
	}
}

// WithPattern selects controller files by a regular expression on their
// base name instead of by suffix.
func WithPattern(pattern string) Option {
	return func(o *options) {
		o.pattern = pattern
	}
}

// WithHotReload reloads loaded controller files when they change.
func WithHotReload(enabled bool) Option {
	return func(o *options) {
		o.hotReload = enabled
	}
}

// WithDebounce sets the delay Watch waits for a burst of changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithMaxConcurrency bounds the number of files imported at once.
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithLogger logs through logger. A nil logger keeps the default, which
// discards everything.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSlog logs through a host slog logger.
func WithSlog(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logging.FromSlog(logger)
	}
}

// WithMetrics records loads, failures and reconciliations on m. Build m with
// metrics.WithRegistry to keep the instruments off the default registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithStore shares an annotation store with the host.
func WithStore(store *annotations.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithFallback supplies the instance for manifest controllers that were
// never registered. A nil result keeps them unknown.
func WithFallback(fn func(name string) interface{}) Option {
	return func(o *options) {
		o.fallback = fn
	}
}

// FromConfig applies the controllers and development settings of cfg.
func FromConfig(cfg *Config) Option {
	return func(o *options) {
		o.root = cfg.Controllers.Path
		o.suffixes = cfg.Controllers.Suffixes
		o.extensions = cfg.Controllers.Extensions
		o.pattern = cfg.Controllers.Pattern
		o.hotReload = cfg.Development.HotReload
		if cfg.Development.Debounce > 0 {
			o.debounce = cfg.Development.Debounce
		}
	}
}
