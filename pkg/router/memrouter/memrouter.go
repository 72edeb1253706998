// Package memrouter is a Router that records committed routes instead of
// serving them. The CLI lists routes through it and tests assert on it.
package memrouter

import (
	"sync"

	"github.com/conneroisu/girouette/pkg/router"
)

// RouteInfo is a committed route in printable form.
type RouteInfo struct {
	Methods    []string          `json:"methods" yaml:"methods"`
	Pattern    string            `json:"pattern" yaml:"pattern"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Domain     string            `json:"domain,omitempty" yaml:"domain,omitempty"`
	Handler    string            `json:"handler" yaml:"handler"`
	Middleware []string          `json:"middleware,omitempty" yaml:"middleware,omitempty"`
	Matchers   map[string]string `json:"matchers,omitempty" yaml:"matchers,omitempty"`
}

// Router records routes on Commit.
type Router struct {
	*router.Pending

	mu        sync.RWMutex
	committed []*router.Route
	commits   int
}

// New creates a recording router.
func New(set *router.MiddlewareSet) *Router {
	return &Router{Pending: router.NewPending(set)}
}

// Commit replaces the recorded route set with the pushed handles.
func (r *Router) Commit() error {
	routes := router.Flatten(r.Drain())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = routes
	r.commits++
	return nil
}

// Committed returns the route handles of the last commit.
func (r *Router) Committed() []*router.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*router.Route(nil), r.committed...)
}

// Commits returns how many times Commit ran.
func (r *Router) Commits() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commits
}

// Routes returns the last committed routes in push order.
func (r *Router) Routes() []RouteInfo {
	committed := r.Committed()
	out := make([]RouteInfo, 0, len(committed))
	for _, rt := range committed {
		info := RouteInfo{
			Methods: append([]string(nil), rt.Methods...),
			Pattern: rt.Pattern,
			Name:    rt.Name,
			Domain:  rt.Host,
			Handler: rt.Handler.String(),
		}
		for _, m := range rt.Middleware {
			info.Middleware = append(info.Middleware, m.String())
		}
		if len(rt.Matchers) > 0 {
			info.Matchers = make(map[string]string, len(rt.Matchers))
			for _, c := range rt.Matchers {
				info.Matchers[c.Key] = c.Matcher
			}
		}
		out = append(out, info)
	}
	return out
}

// Find returns the first committed route with the given name.
func (r *Router) Find(name string) (RouteInfo, bool) {
	for _, info := range r.Routes() {
		if info.Name == name {
			return info, true
		}
	}
	return RouteInfo{}, false
}

var _ router.Router = (*Router)(nil)
