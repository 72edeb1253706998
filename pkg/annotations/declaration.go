package annotations

import (
	"net/http"
	"strings"
)

// MethodAny registers a route for every HTTP method.
const MethodAny = "ANY"

// Annotator is implemented by controllers that declare their own routes.
type Annotator interface {
	Annotate(d *Declaration)
}

// Declaration builds the Record of one controller. Controller-level
// annotations replace earlier ones of the same kind; route annotations and
// resource middleware rules accumulate.
type Declaration struct {
	rec *Record
}

func newDeclaration() *Declaration {
	return &Declaration{rec: NewRecord()}
}

// Record returns the record built so far.
func (d *Declaration) Record() *Record {
	return d.rec
}

// RouteDeclaration configures the route of one controller method.
type RouteDeclaration struct {
	route *RouteAnnotation
}

// Get registers handler for GET (and HEAD) requests on pattern.
func (d *Declaration) Get(handler, pattern string) *RouteDeclaration {
	return d.Route(handler).Verb(http.MethodGet, pattern)
}

// Post registers handler for POST requests on pattern.
func (d *Declaration) Post(handler, pattern string) *RouteDeclaration {
	return d.Route(handler).Verb(http.MethodPost, pattern)
}

// Put registers handler for PUT requests on pattern.
func (d *Declaration) Put(handler, pattern string) *RouteDeclaration {
	return d.Route(handler).Verb(http.MethodPut, pattern)
}

// Patch registers handler for PATCH requests on pattern.
func (d *Declaration) Patch(handler, pattern string) *RouteDeclaration {
	return d.Route(handler).Verb(http.MethodPatch, pattern)
}

// Delete registers handler for DELETE requests on pattern.
func (d *Declaration) Delete(handler, pattern string) *RouteDeclaration {
	return d.Route(handler).Verb(http.MethodDelete, pattern)
}

// Any registers handler for every method on pattern.
func (d *Declaration) Any(handler, pattern string) *RouteDeclaration {
	return d.Route(handler).Verb(MethodAny, pattern)
}

// Route returns the declaration for handler without setting a verb, so
// constraints and middleware can be declared first.
func (d *Declaration) Route(handler string) *RouteDeclaration {
	return &RouteDeclaration{route: d.rec.Route(handler)}
}

// Verb sets the HTTP method and pattern, keeping constraints and middleware.
func (r *RouteDeclaration) Verb(method, pattern string) *RouteDeclaration {
	r.route.Method = strings.ToUpper(method)
	r.route.Pattern = pattern
	return r
}

// As names the route.
func (r *RouteDeclaration) As(name string) *RouteDeclaration {
	r.route.Name = name
	return r
}

// Where constrains the key parameter to matcher.
func (r *RouteDeclaration) Where(key, matcher string) *RouteDeclaration {
	r.route.Where = append(r.route.Where, Constraint{Key: key, Matcher: matcher})
	return r
}

// Middleware appends one middleware layer.
func (r *RouteDeclaration) Middleware(refs ...MiddlewareRef) *RouteDeclaration {
	if len(refs) > 0 {
		r.route.Middleware = append(r.route.Middleware, Layer(refs))
	}
	return r
}

// Mount prefixes every route pattern with pattern and every route name with
// namePrefix.
func (d *Declaration) Mount(pattern, namePrefix string) *Declaration {
	d.rec.Mount = &MountAnnotation{Pattern: pattern, NamePrefix: namePrefix}
	return d
}

// Group sets the name and prefix shared by every route. Either may be empty.
func (d *Declaration) Group(name, prefix string) *Declaration {
	d.rec.Group = &GroupAnnotation{Name: name, Prefix: prefix}
	return d
}

// GroupDomain restricts every route to domain.
func (d *Declaration) GroupDomain(domain string) *Declaration {
	d.rec.GroupDomain = domain
	return d
}

// GroupMiddleware sets middleware that runs before each route's own.
func (d *Declaration) GroupMiddleware(refs ...MiddlewareRef) *Declaration {
	d.rec.GroupMiddleware = Layer(refs)
	return d
}

// ResourceDeclaration configures the resource of a controller.
type ResourceDeclaration struct {
	res *ResourceAnnotation
}

// Resource declares a resource at pattern, e.g. "posts" or "posts.comments".
func (d *Declaration) Resource(pattern string) *ResourceDeclaration {
	d.rec.Resource = &ResourceAnnotation{Pattern: pattern}
	return &ResourceDeclaration{res: d.rec.Resource}
}

// ResourceWith declares a resource from a full annotation.
func (d *Declaration) ResourceWith(res ResourceAnnotation) *ResourceDeclaration {
	d.rec.Resource = &res
	return &ResourceDeclaration{res: d.rec.Resource}
}

// As overrides the resource route name prefix.
func (r *ResourceDeclaration) As(name string) *ResourceDeclaration {
	r.res.Name = name
	return r
}

// Params renames the parameter of a resource segment.
func (r *ResourceDeclaration) Params(params map[string]string) *ResourceDeclaration {
	r.res.Params = params
	return r
}

// ResourceMiddleware applies middleware to the selected actions. Rules
// accumulate in declaration order.
func (d *Declaration) ResourceMiddleware(actions ActionSelector, refs ...MiddlewareRef) *Declaration {
	d.rec.ResourceMiddleware = append(d.rec.ResourceMiddleware, ResourceMiddlewareRule{
		Actions:    actions,
		Middleware: Layer(refs),
	})
	return d
}

// Only keeps exactly the named actions.
func (d *Declaration) Only(actions ...Action) *Declaration {
	d.rec.Only = append([]Action{}, actions...)
	return d
}

// Except drops the named actions.
func (d *Declaration) Except(actions ...Action) *Declaration {
	d.rec.Except = append([]Action{}, actions...)
	return d
}

// APIOnly drops the create and edit actions.
func (d *Declaration) APIOnly() *Declaration {
	d.rec.APIOnly = true
	return d
}
