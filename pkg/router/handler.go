package router

import (
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"sync"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
)

// Dispatcher lets a controller resolve its own handlers instead of exposing
// them as methods.
type Dispatcher interface {
	Dispatch(method string) (http.Handler, bool)
}

// MiddlewareSet holds the named middleware routes may reference.
type MiddlewareSet struct {
	mu    sync.RWMutex
	named map[string]annotations.Middleware
}

// NewMiddlewareSet creates an empty set.
func NewMiddlewareSet() *MiddlewareSet {
	return &MiddlewareSet{named: make(map[string]annotations.Middleware)}
}

// Register adds or replaces named middleware.
func (s *MiddlewareSet) Register(name string, mw annotations.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.named[name] = mw
}

// Lookup returns the middleware registered under name.
func (s *MiddlewareSet) Lookup(name string) (annotations.Middleware, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mw, ok := s.named[name]
	return mw, ok
}

// Names returns the registered names, sorted.
func (s *MiddlewareSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.named))
	for n := range s.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve turns references into middleware functions, in order.
func (s *MiddlewareSet) Resolve(refs []annotations.MiddlewareRef) ([]annotations.Middleware, error) {
	out := make([]annotations.Middleware, 0, len(refs))
	for _, ref := range refs {
		if ref.Fn != nil {
			out = append(out, ref.Fn)
			continue
		}
		mw, ok := s.Lookup(ref.Name)
		if !ok {
			return nil, gerrors.NewRegistrationError(gerrors.ErrCodeMiddlewareNotFound,
				"unknown middleware: "+ref.Name, nil)
		}
		out = append(out, mw)
	}
	return out, nil
}

// Chain wraps h so the first middleware runs first.
func Chain(h http.Handler, mws ...annotations.Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ResolveHandler finds the http handler a reference points at. Controllers
// implementing Dispatcher are asked first; otherwise the method is looked up
// by reflection, as written or in its exported form.
func ResolveHandler(ref HandlerRef) (http.Handler, bool) {
	if ref.Controller.Instance == nil {
		return nil, false
	}
	if d, ok := ref.Controller.Instance.(Dispatcher); ok {
		if h, ok := d.Dispatch(ref.Method); ok {
			return h, true
		}
	}

	v := reflect.ValueOf(ref.Controller.Instance)
	for _, name := range []string{ref.Method, MethodName(ref.Method)} {
		m := v.MethodByName(name)
		if !m.IsValid() {
			continue
		}
		switch fn := m.Interface().(type) {
		case func(http.ResponseWriter, *http.Request):
			return http.HandlerFunc(fn), true
		case func() http.Handler:
			return fn(), true
		}
	}
	return nil, false
}

func notImplemented(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
}

// Compile validates a route and builds its handler chain.
func Compile(r *Route, set *MiddlewareSet) (http.Handler, error) {
	if r.Pattern == "" {
		return nil, gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected,
			"route has no pattern", nil).WithController(r.Handler.String())
	}
	if len(r.Methods) == 0 {
		return nil, gerrors.NewRegistrationError(gerrors.ErrCodeRouteRejected,
			"route has no methods: "+r.Pattern, nil).WithController(r.Handler.String())
	}
	for _, c := range r.Matchers {
		if _, err := regexp.Compile(c.Matcher); err != nil {
			return nil, gerrors.NewRegistrationError(gerrors.ErrCodeInvalidMatcher,
				"invalid matcher for "+c.Key, err).WithController(r.Handler.String())
		}
	}

	h, ok := ResolveHandler(r.Handler)
	if !ok {
		if !r.optional {
			return nil, gerrors.NewRegistrationError(gerrors.ErrCodeHandlerNotFound,
				"handler not found", nil).WithController(r.Handler.String())
		}
		h = http.HandlerFunc(notImplemented)
	}

	if set == nil {
		set = NewMiddlewareSet()
	}
	mws, err := set.Resolve(r.Middleware)
	if err != nil {
		if ge, ok := err.(*gerrors.GirouetteError); ok {
			ge.WithController(r.Handler.String())
		}
		return nil, err
	}
	return Chain(h, mws...), nil
}
