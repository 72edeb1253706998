package registry

import (
	"github.com/conneroisu/girouette/internal/materializer"
	"github.com/conneroisu/girouette/pkg/router"
)

// Handles builds the router handles of one entry: its routes in declaration
// order followed by its resource.
func Handles(r router.Router, entry *Entry) []router.Handle {
	if entry == nil || entry.Result == nil {
		return nil
	}
	res := entry.Result

	handles := make([]router.Handle, 0, res.Len())
	for _, d := range res.Routes {
		handles = append(handles, routeHandle(r, entry.Controller, d))
	}
	if res.Resource != nil {
		handles = append(handles, resourceHandle(r, entry.Controller, res.Resource))
	}
	return handles
}

func routeHandle(r router.Router, ctrl router.ControllerRef, d materializer.RouteDescriptor) *router.Route {
	route := r.Route(d.Pattern, d.Methods, router.HandlerRef{Controller: ctrl, Method: d.Handler})
	if d.Name != "" {
		route.As(d.Name)
	}
	for _, c := range d.Where {
		route.Where(c.Key, c.Matcher)
	}
	if len(d.Middleware) > 0 {
		route.Use(d.Middleware...)
	}
	if d.Domain != "" {
		route.Domain(d.Domain)
	}
	return route
}

func resourceHandle(r router.Router, ctrl router.ControllerRef, d *materializer.ResourceDescriptor) *router.Resource {
	res := r.Resource(d.Identity, ctrl)
	if d.Name != "" {
		res.As(d.Name)
	}
	if len(d.Params) > 0 {
		res.Params(d.Params)
	}
	for _, rule := range d.Rules {
		res.Use(rule.Actions, rule.Middleware...)
	}
	if d.APIOnly {
		res.APIOnly()
	}
	if d.Only != nil {
		res.Only(d.Only...)
	}
	if d.Except != nil {
		res.Except(d.Except...)
	}
	return res
}
