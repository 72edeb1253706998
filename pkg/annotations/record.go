// Package annotations holds the routing metadata controllers declare about
// themselves and the per-application Store it is kept in.
//
// A controller declares its routes through a Declaration:
//
//	func (c *PostsController) Annotate(d *annotations.Declaration) {
//		d.Group("posts", "/posts")
//		d.GroupMiddleware(annotations.Named("auth"))
//		d.Get("Index", "/").As("index")
//		d.Get("Show", "/:id").As("show").Where("id", `^\d+$`)
//	}
//
// Controller manifest files decode into the same Record.
package annotations

import (
	"net/http"
	"reflect"
	"strings"
)

// ID identifies a controller type inside a Store.
type ID string

// IDOf derives the identity of a controller from its Go type.
func IDOf(v interface{}) ID {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return ID(t.String())
	}
	return ID(t.PkgPath() + "." + t.Name())
}

// Short returns the type name without its package path.
func (id ID) Short() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// MiddlewareRef is either a named middleware resolved by the router or an
// inline function.
type MiddlewareRef struct {
	Name string
	Fn   Middleware
}

// Named references middleware registered on the router under name.
func Named(name string) MiddlewareRef {
	return MiddlewareRef{Name: name}
}

// Inline wraps a middleware function.
func Inline(fn Middleware) MiddlewareRef {
	return MiddlewareRef{Fn: fn}
}

func (m MiddlewareRef) String() string {
	if m.Name != "" {
		return m.Name
	}
	return "inline"
}

// Layer is one middleware declaration: a single item or a list.
type Layer []MiddlewareRef

// Flatten concatenates layers in order.
func Flatten(layers ...Layer) []MiddlewareRef {
	var out []MiddlewareRef
	for _, l := range layers {
		out = append(out, l...)
	}
	return out
}

// Constraint restricts a route parameter to a regular expression.
type Constraint struct {
	Key     string `json:"key" yaml:"key" toml:"key"`
	Matcher string `json:"matcher" yaml:"matcher" toml:"matcher"`
}

// RouteAnnotation is the routing metadata of one controller method.
type RouteAnnotation struct {
	Method     string
	Pattern    string
	Name       string
	Where      []Constraint
	Middleware []Layer
}

// GroupAnnotation names and prefixes every route of a controller.
type GroupAnnotation struct {
	Name   string
	Prefix string
}

// MountAnnotation concatenates a base pattern and a name prefix onto every
// route before group settings apply.
type MountAnnotation struct {
	Pattern    string
	NamePrefix string
}

// ResourceAnnotation turns a controller into a conventional CRUD resource.
// Pattern wins over Name as the identity; when both are set Name becomes the
// route name prefix.
type ResourceAnnotation struct {
	Pattern string
	Name    string
	Params  map[string]string
}

// Identity returns the resource identity handed to the router.
func (r *ResourceAnnotation) Identity() string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Name
}

// Action is a resource action name.
type Action string

const (
	ActionIndex   Action = "index"
	ActionCreate  Action = "create"
	ActionStore   Action = "store"
	ActionShow    Action = "show"
	ActionEdit    Action = "edit"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// StandardActions lists resource actions in registration order.
var StandardActions = []Action{
	ActionIndex,
	ActionCreate,
	ActionStore,
	ActionShow,
	ActionEdit,
	ActionUpdate,
	ActionDestroy,
}

// Valid reports whether a is one of the standard actions.
func (a Action) Valid() bool {
	for _, s := range StandardActions {
		if a == s {
			return true
		}
	}
	return false
}

// ActionSelector selects every action ('*') or an explicit list.
type ActionSelector struct {
	All     bool
	Actions []Action
}

// AllActions selects every action.
func AllActions() ActionSelector {
	return ActionSelector{All: true}
}

// ForActions selects the given actions.
func ForActions(actions ...Action) ActionSelector {
	return ActionSelector{Actions: actions}
}

// ParseSelector reads the manifest form: "*" or a list of action names.
func ParseSelector(names ...string) ActionSelector {
	var s ActionSelector
	for _, n := range names {
		if n == "*" {
			return AllActions()
		}
		s.Actions = append(s.Actions, Action(n))
	}
	return s
}

// Matches reports whether a is selected.
func (s ActionSelector) Matches(a Action) bool {
	if s.All {
		return true
	}
	for _, x := range s.Actions {
		if x == a {
			return true
		}
	}
	return false
}

func (s ActionSelector) String() string {
	if s.All {
		return "*"
	}
	names := make([]string, len(s.Actions))
	for i, a := range s.Actions {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}

// ResourceMiddlewareRule applies middleware to the selected resource actions.
type ResourceMiddlewareRule struct {
	Actions    ActionSelector
	Middleware Layer
}

// Record is every annotation attached to one controller.
type Record struct {
	// Methods keeps route declaration order.
	Methods []string
	Routes  map[string]*RouteAnnotation

	Mount           *MountAnnotation
	Group           *GroupAnnotation
	GroupDomain     string
	GroupMiddleware Layer

	Resource           *ResourceAnnotation
	ResourceMiddleware []ResourceMiddlewareRule
	// Only and Except are nil when undeclared.
	Only    []Action
	Except  []Action
	APIOnly bool
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{Routes: make(map[string]*RouteAnnotation)}
}

// Route returns the annotation for method, creating it on first use.
func (r *Record) Route(method string) *RouteAnnotation {
	if r.Routes == nil {
		r.Routes = make(map[string]*RouteAnnotation)
	}
	if ra, ok := r.Routes[method]; ok {
		return ra
	}
	ra := &RouteAnnotation{}
	r.Routes[method] = ra
	r.Methods = append(r.Methods, method)
	return ra
}

// Empty reports whether the record declares neither routes nor a resource.
func (r *Record) Empty() bool {
	return len(r.Routes) == 0 && r.Resource == nil
}

// Clone returns a copy that shares no slices or maps with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Methods:         append([]string(nil), r.Methods...),
		Routes:          make(map[string]*RouteAnnotation, len(r.Routes)),
		GroupDomain:     r.GroupDomain,
		GroupMiddleware: append(Layer(nil), r.GroupMiddleware...),
		APIOnly:         r.APIOnly,
	}
	for k, v := range r.Routes {
		ra := *v
		ra.Where = append([]Constraint(nil), v.Where...)
		ra.Middleware = make([]Layer, len(v.Middleware))
		for i, l := range v.Middleware {
			ra.Middleware[i] = append(Layer(nil), l...)
		}
		c.Routes[k] = &ra
	}
	if r.Mount != nil {
		m := *r.Mount
		c.Mount = &m
	}
	if r.Group != nil {
		g := *r.Group
		c.Group = &g
	}
	if r.Resource != nil {
		res := *r.Resource
		if r.Resource.Params != nil {
			res.Params = make(map[string]string, len(r.Resource.Params))
			for k, v := range r.Resource.Params {
				res.Params[k] = v
			}
		}
		c.Resource = &res
	}
	for _, rule := range r.ResourceMiddleware {
		c.ResourceMiddleware = append(c.ResourceMiddleware, ResourceMiddlewareRule{
			Actions: ActionSelector{
				All:     rule.Actions.All,
				Actions: append([]Action(nil), rule.Actions.Actions...),
			},
			Middleware: append(Layer(nil), rule.Middleware...),
		})
	}
	if r.Only != nil {
		c.Only = append([]Action{}, r.Only...)
	}
	if r.Except != nil {
		c.Except = append([]Action{}, r.Except...)
	}
	return c
}
