package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postsController struct{}

func (postsController) Index(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("index")) }
func (postsController) Show(w http.ResponseWriter, _ *http.Request)  { _, _ = w.Write([]byte("show")) }
func (postsController) PartialUpdate(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("patch"))
}
func (postsController) Helper() string { return "not a handler" }

type dispatchController struct{}

func (dispatchController) Dispatch(method string) (http.Handler, bool) {
	if method != "ping" {
		return nil, false
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}), true
}

func ctrl() ControllerRef {
	return ControllerRef{ID: "app.PostsController", Instance: postsController{}}
}

func patterns(routes []*Route) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.Pattern
	}
	return out
}

func TestResourceExpand(t *testing.T) {
	routes := NewResource("/posts/", ctrl()).Expand()
	require.Len(t, routes, 7)

	expected := []struct {
		pattern string
		methods []string
		name    string
		method  string
	}{
		{"/posts", []string{"GET", "HEAD"}, "posts.index", "index"},
		{"/posts/create", []string{"GET", "HEAD"}, "posts.create", "create"},
		{"/posts", []string{"POST"}, "posts.store", "store"},
		{"/posts/:id", []string{"GET", "HEAD"}, "posts.show", "show"},
		{"/posts/:id/edit", []string{"GET", "HEAD"}, "posts.edit", "edit"},
		{"/posts/:id", []string{"PUT", "PATCH"}, "posts.update", "update"},
		{"/posts/:id", []string{"DELETE"}, "posts.destroy", "destroy"},
	}
	for i, e := range expected {
		assert.Equal(t, e.pattern, routes[i].Pattern)
		assert.Equal(t, e.methods, routes[i].Methods)
		assert.Equal(t, e.name, routes[i].Name)
		assert.Equal(t, e.method, routes[i].Handler.Method)
		assert.True(t, routes[i].Optional())
	}
}

func TestNestedResourceParams(t *testing.T) {
	res := NewResource("posts.comments", ctrl())
	assert.Equal(t, "/posts/:post_id/comments", res.BaseURL())
	assert.Equal(t, "/posts/:post_id/comments/:id", res.MemberURL())
	assert.Equal(t, "posts.comments", res.RouteName())

	res.Params(map[string]string{"posts": "post", "comments": "comment"})
	assert.Equal(t, "/posts/:post/comments", res.BaseURL())
	assert.Equal(t, "/posts/:post/comments/:comment", res.MemberURL())

	single := NewResource("posts", ctrl()).Params(map[string]string{"posts": "post"})
	for _, r := range single.Expand() {
		assert.NotContains(t, r.Pattern, ":id")
	}
	assert.Contains(t, patterns(single.Expand()), "/posts/:post/edit")
}

func TestResourceNaming(t *testing.T) {
	res := NewResource("blogPosts.user-comments", ctrl())
	assert.Equal(t, "blog_posts.user_comments", res.RouteName())
	assert.Equal(t, "/blogPosts/:blog_post_id/user-comments", res.BaseURL())

	res.As("comments")
	assert.Equal(t, "comments.index", res.Expand()[0].Name)
}

func TestResourceFilters(t *testing.T) {
	all := annotations.StandardActions

	testCases := []struct {
		name     string
		build    func(*Resource)
		expected []annotations.Action
	}{
		{"none", func(r *Resource) {}, all},
		{"api only", func(r *Resource) { r.APIOnly() }, []annotations.Action{"index", "store", "show", "update", "destroy"}},
		{"only", func(r *Resource) { r.Only("update", "destroy") }, []annotations.Action{"update", "destroy"}},
		{"except", func(r *Resource) { r.Except("create", "show") }, []annotations.Action{"index", "store", "edit", "update", "destroy"}},
		{"api only then only", func(r *Resource) { r.Only("create", "index").APIOnly() }, []annotations.Action{"index"}},
		{"only and except conflict", func(r *Resource) { r.Except("update").Only("update", "destroy") }, []annotations.Action{"destroy"}},
		{"empty only", func(r *Resource) { r.Only() }, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewResource("posts", ctrl())
			tc.build(res)
			assert.Equal(t, tc.expected, res.Actions())
			assert.Len(t, res.Expand(), len(tc.expected))
		})
	}
}

func TestResourceMiddlewareRulesAccumulate(t *testing.T) {
	res := NewResource("posts", ctrl()).
		Use(annotations.AllActions(), annotations.Named("auth")).
		Use(annotations.ForActions(annotations.ActionStore), annotations.Named("csrf"), annotations.Named("throttle"))

	for _, r := range res.Expand() {
		var got []string
		for _, m := range r.Middleware {
			got = append(got, m.Name)
		}
		if r.Handler.Method == "store" {
			assert.Equal(t, []string{"auth", "csrf", "throttle"}, got)
		} else {
			assert.Equal(t, []string{"auth"}, got, r.Name)
		}
	}
}

func TestRouteBuilder(t *testing.T) {
	r := NewRoute("/posts/:id", []string{"get", "head"}, HandlerRef{Controller: ctrl(), Method: "Show"}).
		As("posts.show").
		Where("id", `^\d+$`).
		Where("id", `^[0-9]+$`).
		Use(annotations.Named("auth")).
		Domain(":tenant.example.com")

	assert.Equal(t, []string{"GET", "HEAD"}, r.Methods)
	assert.Equal(t, KindRoute, r.Kind())
	assert.Len(t, r.Matchers, 1)
	m, ok := r.Matcher("id")
	assert.True(t, ok)
	assert.Equal(t, `^[0-9]+$`, m)
	assert.Equal(t, ":tenant.example.com", r.Host)
	assert.Equal(t, "PostsController.Show", r.Handler.String())
}

func TestResolveHandler(t *testing.T) {
	testCases := []struct {
		method string
		body   string
		found  bool
	}{
		{"Index", "index", true},
		{"index", "index", true},
		{"partial_update", "patch", true},
		{"partialUpdate", "patch", true},
		{"Helper", "", false},
		{"missing", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			h, ok := ResolveHandler(HandlerRef{Controller: ctrl(), Method: tc.method})
			assert.Equal(t, tc.found, ok)
			if !ok {
				return
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.body, rec.Body.String())
		})
	}

	h, ok := ResolveHandler(HandlerRef{Controller: ControllerRef{Instance: dispatchController{}}, Method: "ping"})
	require.True(t, ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "pong", rec.Body.String())

	_, ok = ResolveHandler(HandlerRef{Method: "Index"})
	assert.False(t, ok)
}

func TestCompile(t *testing.T) {
	set := NewMiddlewareSet()
	set.Register("tag", func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Order", "tag")
			next.ServeHTTP(w, r)
		})
	})
	inline := annotations.Inline(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Order", "inline")
			next.ServeHTTP(w, r)
		})
	})

	t.Run("middleware runs in declaration order", func(t *testing.T) {
		r := NewRoute("/posts", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Index"}).
			Use(annotations.Named("tag"), inline)
		h, err := Compile(r, set)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
		assert.Equal(t, []string{"tag", "inline"}, rec.Header().Values("X-Order"))
	})

	t.Run("missing resource action serves 501", func(t *testing.T) {
		routes := NewResource("posts", ctrl()).Only("destroy").Expand()
		require.Len(t, routes, 1)
		h, err := Compile(routes[0], nil)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/posts/1", nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	rejected := []struct {
		name  string
		route *Route
		code  string
	}{
		{"missing handler", NewRoute("/x", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Nope"}), gerrors.ErrCodeHandlerNotFound},
		{"unknown middleware", NewRoute("/x", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Index"}).Use(annotations.Named("nope")), gerrors.ErrCodeMiddlewareNotFound},
		{"bad matcher", NewRoute("/x/:id", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Index"}).Where("id", "(["), gerrors.ErrCodeInvalidMatcher},
		{"no methods", NewRoute("/x", nil, HandlerRef{Controller: ctrl(), Method: "Index"}), gerrors.ErrCodeRouteRejected},
		{"no pattern", NewRoute("", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Index"}), gerrors.ErrCodeRouteRejected},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.route, set)
			require.Error(t, err)
			assert.True(t, gerrors.IsRegistrationError(err))
			var ge *gerrors.GirouetteError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tc.code, ge.Code)
			assert.Equal(t, "PostsController."+tc.route.Handler.Method, ge.Controller)
		})
	}
}

func TestPendingPushIsAllOrNothing(t *testing.T) {
	p := NewPending(nil)
	good := p.Route("/posts", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Index"})
	bad := p.Route("/broken", []string{"GET"}, HandlerRef{Controller: ctrl(), Method: "Nope"})

	err := p.Push(good, bad)
	require.Error(t, err)
	assert.Empty(t, p.Drain())

	require.NoError(t, p.Push(good, p.Resource("posts", ctrl()).APIOnly()))
	handles := p.Drain()
	assert.Len(t, handles, 2)
	assert.Len(t, Flatten(handles), 6)
	assert.Empty(t, p.Drain())

	err = p.Push(p.Resource("/", ctrl()))
	assert.True(t, gerrors.IsRegistrationError(err))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "blog_posts", SnakeCase("blogPosts"))
	assert.Equal(t, "blog_posts", SnakeCase("blog-posts"))
	assert.Equal(t, "posts", SnakeCase("posts"))
	assert.Equal(t, "post_id", ParentParam("posts"))
	assert.Equal(t, "category_id", ParentParam("categories"))
	assert.Equal(t, "Index", MethodName("index"))
	assert.Equal(t, "PartialUpdate", MethodName("partial_update"))
}

func TestPatterns(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"posts", "/posts"},
		{"/posts/", "/posts"},
		{"//posts//:id/", "/posts/:id"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, NormalizePattern(tc.in), tc.in)
		assert.Equal(t, NormalizePattern(tc.in), NormalizePattern(NormalizePattern(tc.in)))
	}

	r := NewRoute("/posts/:slug/files/*", []string{"GET"}, HandlerRef{}).
		Where("slug", `^[a-z0-9-]+$`)
	assert.Equal(t, "/posts/{slug:[a-z0-9-]+}/files/{path:.*}", BracePattern(r, "{path:.*}"))
	assert.Equal(t, []string{"slug"}, Params(r.Pattern))
	assert.Equal(t, "{tenant}.example.com", BraceHost(":tenant.example.com"))
	assert.Equal(t, `cost\$`, StripAnchors(`^cost\$`))
}
