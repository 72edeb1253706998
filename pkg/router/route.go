package router

import (
	"strings"

	"github.com/conneroisu/girouette/pkg/annotations"
)

// Route is a single pattern bound to a controller method.
type Route struct {
	Pattern    string
	Methods    []string
	Handler    HandlerRef
	Name       string
	Matchers   []annotations.Constraint
	Middleware []annotations.MiddlewareRef
	Host       string

	// optional routes serve 501 when the controller lacks the method.
	optional bool
}

// NewRoute creates a route handle. Methods are upper-cased.
func NewRoute(pattern string, methods []string, handler HandlerRef) *Route {
	ms := make([]string, len(methods))
	for i, m := range methods {
		ms[i] = strings.ToUpper(m)
	}
	return &Route{
		Pattern: pattern,
		Methods: ms,
		Handler: handler,
	}
}

// Kind implements Handle.
func (r *Route) Kind() Kind {
	return KindRoute
}

// As names the route.
func (r *Route) As(name string) *Route {
	r.Name = name
	return r
}

// Where constrains a parameter. A later matcher for the same key wins.
func (r *Route) Where(key, matcher string) *Route {
	for i, c := range r.Matchers {
		if c.Key == key {
			r.Matchers[i].Matcher = matcher
			return r
		}
	}
	r.Matchers = append(r.Matchers, annotations.Constraint{Key: key, Matcher: matcher})
	return r
}

// Use appends middleware.
func (r *Route) Use(refs ...annotations.MiddlewareRef) *Route {
	r.Middleware = append(r.Middleware, refs...)
	return r
}

// Domain restricts the route to a host pattern such as ":tenant.example.com".
func (r *Route) Domain(domain string) *Route {
	r.Host = domain
	return r
}

// Optional reports whether a missing handler method is tolerated.
func (r *Route) Optional() bool {
	return r.optional
}

// Matcher returns the matcher declared for key.
func (r *Route) Matcher(key string) (string, bool) {
	for _, c := range r.Matchers {
		if c.Key == key {
			return c.Matcher, true
		}
	}
	return "", false
}
