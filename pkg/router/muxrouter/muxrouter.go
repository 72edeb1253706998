// Package muxrouter serves girouette routes with gorilla/mux.
package muxrouter

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/router"
	"github.com/gorilla/mux"
)

// wildcard is the mux spelling of a trailing "*" segment.
const wildcard = "{path:.*}"

// Router rebuilds a mux.Router on every commit and swaps it in atomically.
type Router struct {
	*router.Pending

	commitMu sync.Mutex
	current  atomic.Pointer[mux.Router]
	notFound http.Handler
}

// Option configures a Router.
type Option func(*Router)

// WithNotFound sets the handler for unmatched requests.
func WithNotFound(h http.Handler) Option {
	return func(r *Router) {
		r.notFound = h
	}
}

// New creates an empty router.
func New(set *router.MiddlewareSet, opts ...Option) *Router {
	r := &Router{}
	r.Pending = router.NewPending(set).CheckWith(r.check)
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(r.newMux())
	return r
}

func (r *Router) newMux() *mux.Router {
	m := mux.NewRouter()
	if r.notFound != nil {
		m.NotFoundHandler = r.notFound
	}
	return m
}

// check registers routes on a scratch mux.Router. mux matches in order, so
// routes already queued cannot make a new one fail.
func (r *Router) check(_, routes []*router.Route) error {
	m := mux.NewRouter()
	for _, rt := range routes {
		if err := add(m, rt, http.NotFoundHandler()); err != nil {
			return err
		}
	}
	return nil
}

// Commit builds a mux.Router from the pushed handles and starts serving it.
func (r *Router) Commit() error {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	m := r.newMux()
	for _, rt := range router.Flatten(r.Drain()) {
		h, err := router.Compile(rt, r.Middleware())
		if err != nil {
			return err
		}
		if err := add(m, rt, h); err != nil {
			return err
		}
	}

	r.current.Store(m)
	return nil
}

// add registers rt on m. mux panics on some matchers it cannot compile, such
// as expressions with capturing groups.
func add(m *mux.Router, rt *router.Route, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = rejected(rt, fmt.Errorf("%v", rec))
		}
	}()

	route := m.Handle(router.BracePattern(rt, wildcard), h).Methods(rt.Methods...)
	if rt.Host != "" {
		route = route.Host(router.BraceHost(rt.Host))
	}
	if rt.Name != "" {
		route = route.Name(rt.Name)
	}
	if err := route.GetError(); err != nil {
		return rejected(rt, err)
	}
	return nil
}

func rejected(rt *router.Route, cause error) error {
	return gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected,
		"mux rejected "+rt.Pattern, cause).WithController(rt.Handler.String())
}

// ServeHTTP dispatches to the last committed route set.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.current.Load().ServeHTTP(w, req)
}

// URL builds the URL of a named route from key/value pairs.
func (r *Router) URL(name string, pairs ...string) (*url.URL, error) {
	route := r.current.Load().Get(name)
	if route == nil {
		return nil, gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected, "no route named "+name, nil)
	}
	return route.URL(pairs...)
}

// Walk visits every committed route.
func (r *Router) Walk(fn mux.WalkFunc) error {
	return r.current.Load().Walk(fn)
}

var _ router.Router = (*Router)(nil)
