// Package materializer turns the annotation record of one controller into
// router-ready descriptors.
//
// Route annotations are merged with the controller-level mount and group
// settings: patterns are prefixed, names are dotted, group middleware runs
// first and the group domain applies to every route. Resource annotations
// are forwarded as configuration; the router expands them into concrete
// routes.
package materializer

import (
	"net/http"
	"strings"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
)

// RouteDescriptor is a fully resolved route of one controller method.
type RouteDescriptor struct {
	Handler    string
	Pattern    string
	Methods    []string
	Name       string
	Where      []annotations.Constraint
	Middleware []annotations.MiddlewareRef
	Domain     string
}

// ResourceDescriptor configures the router's resource expansion.
type ResourceDescriptor struct {
	Identity string
	// Name overrides the route name prefix when both a pattern and a name
	// were declared.
	Name   string
	Params map[string]string
	Rules  []annotations.ResourceMiddlewareRule
	// Only and Except are nil when undeclared.
	Only    []annotations.Action
	Except  []annotations.Action
	APIOnly bool
}

// Result is everything one controller contributes to the router.
type Result struct {
	Controller annotations.ID
	Routes     []RouteDescriptor
	Resource   *ResourceDescriptor
}

// Len returns the number of descriptors in the result.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	n := len(r.Routes)
	if r.Resource != nil {
		n++
	}
	return n
}

// anyMethods is the method set of an ANY route.
var anyMethods = []string{
	http.MethodHead,
	http.MethodOptions,
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// Methods expands an annotation verb into the HTTP methods it answers.
func Methods(verb string) ([]string, bool) {
	switch v := strings.ToUpper(verb); v {
	case http.MethodGet:
		return []string{http.MethodGet, http.MethodHead}, true
	case annotations.MethodAny:
		return append([]string(nil), anyMethods...), true
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return []string{v}, true
	default:
		return nil, false
	}
}

// NormalizePrefix ensures a leading slash and drops trailing ones. The root
// prefix normalizes to "/".
func NormalizePrefix(prefix string) string {
	return "/" + strings.Trim(prefix, "/")
}

// JoinPattern prefixes pattern with a group or mount prefix.
func JoinPattern(prefix, pattern string) string {
	return strings.TrimSuffix(NormalizePrefix(prefix), "/") + "/" + strings.TrimLeft(pattern, "/")
}

// PrefixName dots prefix onto name. An empty name stays empty.
func PrefixName(prefix, name string) string {
	if prefix == "" || name == "" {
		return name
	}
	return prefix + "." + name
}

// MergeMiddleware flattens group middleware ahead of the route's layers.
func MergeMiddleware(group annotations.Layer, layers []annotations.Layer) []annotations.MiddlewareRef {
	return annotations.Flatten(append([]annotations.Layer{group}, layers...)...)
}

// Materialize resolves the annotations stored for ctrl. A controller without
// a record yields an empty result. Any malformed annotation fails the whole
// controller with a metadata error.
func Materialize(store *annotations.Store, ctrl annotations.ID) (*Result, error) {
	res := &Result{Controller: ctrl}

	rec, ok := store.Get(ctrl)
	if !ok {
		return res, nil
	}

	routes, err := materializeRoutes(ctrl, rec)
	if err != nil {
		return nil, err
	}
	res.Routes = routes

	resource, err := materializeResource(ctrl, rec)
	if err != nil {
		return nil, err
	}
	res.Resource = resource

	return res, nil
}

func materializeRoutes(ctrl annotations.ID, rec *annotations.Record) ([]RouteDescriptor, error) {
	routes := make([]RouteDescriptor, 0, len(rec.Methods))
	for _, method := range rec.Methods {
		ra := rec.Routes[method]
		if ra == nil || ra.Method == "" || ra.Pattern == "" {
			return nil, gerrors.ErrIncompleteRoute(string(ctrl), method)
		}

		methods, ok := Methods(ra.Method)
		if !ok {
			return nil, gerrors.NewMetadataError(gerrors.ErrCodeUnknownVerb, "unknown HTTP verb: "+ra.Method).
				WithController(string(ctrl)).
				WithContext("method", method)
		}

		pattern, name := ra.Pattern, ra.Name
		if m := rec.Mount; m != nil {
			if m.Pattern != "" {
				pattern = JoinPattern(m.Pattern, pattern)
			}
			name = PrefixName(m.NamePrefix, name)
		}
		if g := rec.Group; g != nil {
			if g.Prefix != "" {
				pattern = JoinPattern(g.Prefix, pattern)
			}
			name = PrefixName(g.Name, name)
		}

		routes = append(routes, RouteDescriptor{
			Handler:    method,
			Pattern:    pattern,
			Methods:    methods,
			Name:       name,
			Where:      append([]annotations.Constraint(nil), ra.Where...),
			Middleware: MergeMiddleware(rec.GroupMiddleware, ra.Middleware),
			Domain:     rec.GroupDomain,
		})
	}
	return routes, nil
}

func materializeResource(ctrl annotations.ID, rec *annotations.Record) (*ResourceDescriptor, error) {
	ann := rec.Resource
	if ann == nil {
		return nil, nil
	}

	identity := ann.Identity()
	if strings.Trim(identity, "/") == "" {
		return nil, gerrors.NewMetadataError(gerrors.ErrCodeIncompleteRoute, "resource needs a name or a pattern").
			WithController(string(ctrl))
	}

	desc := &ResourceDescriptor{
		Identity: identity,
		APIOnly:  rec.APIOnly,
	}
	if ann.Pattern != "" && ann.Name != "" {
		desc.Name = ann.Name
	}
	if len(ann.Params) > 0 {
		desc.Params = make(map[string]string, len(ann.Params))
		for k, v := range ann.Params {
			desc.Params[k] = v
		}
	}

	var err error
	if desc.Only, err = checkActions(ctrl, rec.Only); err != nil {
		return nil, err
	}
	if desc.Except, err = checkActions(ctrl, rec.Except); err != nil {
		return nil, err
	}

	for _, rule := range rec.ResourceMiddleware {
		if _, err := checkActions(ctrl, rule.Actions.Actions); err != nil {
			return nil, err
		}
		desc.Rules = append(desc.Rules, annotations.ResourceMiddlewareRule{
			Actions: annotations.ActionSelector{
				All:     rule.Actions.All,
				Actions: append([]annotations.Action(nil), rule.Actions.Actions...),
			},
			Middleware: append(annotations.Layer(nil), rule.Middleware...),
		})
	}

	return desc, nil
}

// checkActions copies actions, keeping nil as nil, and rejects names
// outside the standard set.
func checkActions(ctrl annotations.ID, actions []annotations.Action) ([]annotations.Action, error) {
	if actions == nil {
		return nil, nil
	}
	out := make([]annotations.Action, 0, len(actions))
	for _, a := range actions {
		if !a.Valid() {
			return nil, gerrors.ErrUnknownAction(string(ctrl), string(a))
		}
		out = append(out, a)
	}
	return out, nil
}
