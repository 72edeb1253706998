// Package router defines the boundary between girouette and the HTTP router
// that serves the routes: route and resource handles, the Router interface
// adapters implement, and the helpers they share to turn a handle into an
// http.Handler.
package router

import (
	"fmt"
	"sync"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
)

// ControllerRef is a controller instance together with its identity.
type ControllerRef struct {
	ID       annotations.ID
	Instance interface{}
}

func (c ControllerRef) String() string {
	if c.ID != "" {
		return c.ID.Short()
	}
	return fmt.Sprintf("%T", c.Instance)
}

// HandlerRef points at one method of a controller.
type HandlerRef struct {
	Controller ControllerRef
	Method     string
}

func (h HandlerRef) String() string {
	return h.Controller.String() + "." + h.Method
}

// Kind distinguishes route handles from resource handles.
type Kind int

const (
	KindRoute Kind = iota
	KindResource
)

// Handle is a route or resource waiting to be pushed.
type Handle interface {
	Kind() Kind
}

// Router is the host router girouette registers routes with.
//
// Route and Resource only build handles. Push validates the handles of one
// controller and queues all of them or none. Commit replaces the served route
// set with everything pushed since the previous commit, so pushing the full
// set again before every commit is safe.
type Router interface {
	Route(pattern string, methods []string, handler HandlerRef) *Route
	Resource(identity string, controller ControllerRef) *Resource
	Push(handles ...Handle) error
	Commit() error
}

// Pending implements the handle-building and queueing half of Router.
// Adapters embed it and implement Commit on top of Drain.
type Pending struct {
	mu         sync.Mutex
	handles    []Handle
	middleware *MiddlewareSet
	check      Checker
}

// Checker reports whether an adapter can serve routes once queued is already
// registered. A rejected Push leaves the queue unchanged.
type Checker func(queued, routes []*Route) error

// NewPending creates a queue that resolves named middleware from set.
func NewPending(set *MiddlewareSet) *Pending {
	if set == nil {
		set = NewMiddlewareSet()
	}
	return &Pending{middleware: set}
}

// CheckWith installs the adapter's acceptance check, run by Push after the
// adapter-neutral validation.
func (p *Pending) CheckWith(fn Checker) *Pending {
	p.check = fn
	return p
}

// Middleware returns the named middleware set.
func (p *Pending) Middleware() *MiddlewareSet {
	return p.middleware
}

// Route builds a route handle.
func (p *Pending) Route(pattern string, methods []string, handler HandlerRef) *Route {
	return NewRoute(pattern, methods, handler)
}

// Resource builds a resource handle.
func (p *Pending) Resource(identity string, controller ControllerRef) *Resource {
	return NewResource(identity, controller)
}

// Push validates every handle and queues them together.
func (p *Pending) Push(handles ...Handle) error {
	var routes []*Route
	for _, h := range handles {
		if res, ok := h.(*Resource); ok && res.Identity == "" {
			return gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected,
				"resource has no identity", nil).WithController(res.Controller.String())
		}
		for _, r := range Routes(h) {
			if _, err := Compile(r, p.middleware); err != nil {
				return err
			}
			routes = append(routes, r)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.check != nil {
		if err := p.check(Flatten(p.handles), routes); err != nil {
			return err
		}
	}
	p.handles = append(p.handles, handles...)
	return nil
}

// Drain returns the queued handles and empties the queue.
func (p *Pending) Drain() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.handles
	p.handles = nil
	return out
}

// Routes flattens a handle into concrete routes.
func Routes(h Handle) []*Route {
	switch v := h.(type) {
	case *Route:
		return []*Route{v}
	case *Resource:
		return v.Expand()
	default:
		return nil
	}
}

// Flatten expands every handle in order.
func Flatten(handles []Handle) []*Route {
	var out []*Route
	for _, h := range handles {
		out = append(out, Routes(h)...)
	}
	return out
}
