package router

import (
	"net/http"
	"strings"

	"github.com/conneroisu/girouette/pkg/annotations"
)

// MiddlewareRule applies middleware to the selected resource actions.
type MiddlewareRule struct {
	Actions    annotations.ActionSelector
	Middleware []annotations.MiddlewareRef
}

// Resource is a conventional CRUD route set for one controller.
//
// The identity "posts" expands to /posts, /posts/create, /posts/:id and
// /posts/:id/edit. Dots nest resources: "posts.comments" expands under
// /posts/:post_id/comments.
type Resource struct {
	Identity   string
	Controller ControllerRef
	Name       string
	ParamNames map[string]string
	Rules      []MiddlewareRule

	apiOnly bool
	only    []annotations.Action
	except  []annotations.Action
}

// NewResource creates a resource handle.
func NewResource(identity string, controller ControllerRef) *Resource {
	return &Resource{
		Identity:   strings.Trim(identity, "/"),
		Controller: controller,
	}
}

// Kind implements Handle.
func (r *Resource) Kind() Kind {
	return KindResource
}

// As replaces the route name prefix.
func (r *Resource) As(name string) *Resource {
	r.Name = name
	return r
}

// Params renames the parameter of resource segments: {"posts": "post"} turns
// /posts/:id into /posts/:post.
func (r *Resource) Params(params map[string]string) *Resource {
	if r.ParamNames == nil {
		r.ParamNames = make(map[string]string, len(params))
	}
	for k, v := range params {
		r.ParamNames[k] = v
	}
	return r
}

// Use applies middleware to the selected actions. Rules accumulate.
func (r *Resource) Use(actions annotations.ActionSelector, refs ...annotations.MiddlewareRef) *Resource {
	r.Rules = append(r.Rules, MiddlewareRule{Actions: actions, Middleware: refs})
	return r
}

// APIOnly drops create and edit.
func (r *Resource) APIOnly() *Resource {
	r.apiOnly = true
	return r
}

// Only keeps exactly the given actions.
func (r *Resource) Only(actions ...annotations.Action) *Resource {
	r.only = append([]annotations.Action{}, actions...)
	return r
}

// Except drops the given actions.
func (r *Resource) Except(actions ...annotations.Action) *Resource {
	r.except = append([]annotations.Action{}, actions...)
	return r
}

// Actions returns the active actions in standard order. The filters narrow in
// a fixed order: api-only, then only, then except.
func (r *Resource) Actions() []annotations.Action {
	var out []annotations.Action
	for _, a := range annotations.StandardActions {
		if r.apiOnly && (a == annotations.ActionCreate || a == annotations.ActionEdit) {
			continue
		}
		if r.only != nil && !containsAction(r.only, a) {
			continue
		}
		if r.except != nil && containsAction(r.except, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// RouteName returns the name prefix of the generated routes.
func (r *Resource) RouteName() string {
	if r.Name != "" {
		return r.Name
	}
	tokens := strings.Split(r.Identity, ".")
	for i, t := range tokens {
		tokens[i] = SnakeCase(t)
	}
	return strings.Join(tokens, ".")
}

// BaseURL returns the collection URL with parent segments expanded.
func (r *Resource) BaseURL() string {
	tokens := strings.Split(r.Identity, ".")
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens[:len(tokens)-1] {
		parts = append(parts, t+"/:"+r.param(t, ParentParam(t)))
	}
	parts = append(parts, tokens[len(tokens)-1])
	return "/" + strings.Join(parts, "/")
}

// MemberURL returns the URL of a single resource.
func (r *Resource) MemberURL() string {
	tokens := strings.Split(r.Identity, ".")
	return r.BaseURL() + "/:" + r.param(tokens[len(tokens)-1], "id")
}

func (r *Resource) param(token, fallback string) string {
	if p, ok := r.ParamNames[token]; ok && p != "" {
		return p
	}
	return fallback
}

// Expand generates the concrete routes of the active actions.
func (r *Resource) Expand() []*Route {
	base := r.BaseURL()
	member := r.MemberURL()
	name := r.RouteName()

	var routes []*Route
	for _, action := range r.Actions() {
		var pattern string
		var methods []string
		switch action {
		case annotations.ActionIndex:
			pattern, methods = base, []string{http.MethodGet, http.MethodHead}
		case annotations.ActionCreate:
			pattern, methods = base+"/create", []string{http.MethodGet, http.MethodHead}
		case annotations.ActionStore:
			pattern, methods = base, []string{http.MethodPost}
		case annotations.ActionShow:
			pattern, methods = member, []string{http.MethodGet, http.MethodHead}
		case annotations.ActionEdit:
			pattern, methods = member+"/edit", []string{http.MethodGet, http.MethodHead}
		case annotations.ActionUpdate:
			pattern, methods = member, []string{http.MethodPut, http.MethodPatch}
		case annotations.ActionDestroy:
			pattern, methods = member, []string{http.MethodDelete}
		}

		route := NewRoute(pattern, methods, HandlerRef{Controller: r.Controller, Method: string(action)})
		route.Name = name + "." + string(action)
		route.optional = true
		for _, rule := range r.Rules {
			if rule.Actions.Matches(action) {
				route.Use(rule.Middleware...)
			}
		}
		routes = append(routes, route)
	}
	return routes
}

func containsAction(list []annotations.Action, a annotations.Action) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
