// Package chirouter serves girouette routes with go-chi/chi. Routes with a
// domain are mounted on a per-host chi router chosen by the request host.
package chirouter

import (
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/router"
	"github.com/go-chi/chi/v5"
)

type hostRouter struct {
	labels []string
	mux    *chi.Mux
}

type snapshot struct {
	hosts    []hostRouter
	fallback *chi.Mux
}

// Router rebuilds its chi routers on every commit and swaps them in atomically.
type Router struct {
	*router.Pending

	commitMu sync.Mutex
	current  atomic.Pointer[snapshot]
	use      []func(http.Handler) http.Handler
}

// New creates an empty router. mws run before every route, outside the
// route's own middleware.
func New(set *router.MiddlewareSet, mws ...func(http.Handler) http.Handler) *Router {
	r := &Router{use: mws}
	r.Pending = router.NewPending(set).CheckWith(r.check)
	r.current.Store(&snapshot{fallback: r.newMux()})
	return r
}

func (r *Router) newMux() *chi.Mux {
	m := chi.NewRouter()
	if len(r.use) > 0 {
		m.Use(r.use...)
	}
	return m
}

// check rebuilds the queued routes plus routes on scratch chi routers. chi
// panics on conflicts between routes, so a route is only accepted alongside
// everything queued before it.
func (r *Router) check(queued, routes []*router.Route) error {
	noop := func(*router.Route) (http.Handler, error) { return http.NotFoundHandler(), nil }
	_, err := r.build(append(append([]*router.Route(nil), queued...), routes...), noop)
	return err
}

// Commit builds chi routers from the pushed handles and starts serving them.
func (r *Router) Commit() error {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	snap, err := r.build(router.Flatten(r.Drain()), func(rt *router.Route) (http.Handler, error) {
		return router.Compile(rt, r.Middleware())
	})
	if err != nil {
		return err
	}
	r.current.Store(snap)
	return nil
}

func (r *Router) build(routes []*router.Route, handler func(*router.Route) (http.Handler, error)) (*snapshot, error) {
	snap := &snapshot{fallback: r.newMux()}
	byHost := make(map[string]*chi.Mux)

	for _, rt := range routes {
		h, err := handler(rt)
		if err != nil {
			return nil, err
		}

		target := snap.fallback
		if rt.Host != "" {
			host := strings.ToLower(rt.Host)
			m, ok := byHost[host]
			if !ok {
				m = r.newMux()
				byHost[host] = m
				snap.hosts = append(snap.hosts, hostRouter{labels: strings.Split(host, "."), mux: m})
			}
			target = m
		}

		if err := add(target, rt, h); err != nil {
			return nil, err
		}
	}

	// Literal hosts win over parameterized ones.
	sort.SliceStable(snap.hosts, func(i, j int) bool {
		return literalCount(snap.hosts[i].labels) > literalCount(snap.hosts[j].labels)
	})
	return snap, nil
}

// add registers rt on m, turning chi's panics into a registration error.
func add(m *chi.Mux, rt *router.Route, h http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected,
				"chi rejected "+rt.Pattern, fmt.Errorf("%v", rec)).
				WithController(rt.Handler.String())
		}
	}()

	pattern := router.BracePattern(rt, "*")
	for _, method := range rt.Methods {
		m.Method(method, pattern, h)
	}
	return nil
}

// ServeHTTP dispatches by host, then to the routes without a domain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	snap := r.current.Load()
	host := req.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	labels := strings.Split(strings.ToLower(host), ".")
	for _, hr := range snap.hosts {
		if matchHost(hr.labels, labels) {
			hr.mux.ServeHTTP(w, req)
			return
		}
	}
	snap.fallback.ServeHTTP(w, req)
}

func matchHost(pattern, labels []string) bool {
	if len(pattern) != len(labels) {
		return false
	}
	for i, p := range pattern {
		if _, ok := router.Param(p); ok {
			continue
		}
		if p != labels[i] {
			return false
		}
	}
	return true
}

func literalCount(labels []string) int {
	n := 0
	for _, l := range labels {
		if _, ok := router.Param(l); !ok {
			n++
		}
	}
	return n
}

var _ router.Router = (*Router)(nil)
