package muxrouter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/conneroisu/girouette/pkg/router"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postsController struct{}

func (postsController) Index(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("index")) }

func (postsController) Show(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("show " + mux.Vars(r)["slug"]))
}

func (postsController) Tenant(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("tenant " + mux.Vars(r)["tenant"]))
}

func ref() router.ControllerRef {
	return router.ControllerRef{ID: "app.PostsController", Instance: postsController{}}
}

func serve(h http.Handler, method, target, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if host != "" {
		req.Host = host
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeCommittedRoutes(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Push(
		r.Route("/posts/", []string{"GET", "HEAD"}, router.HandlerRef{Controller: ref(), Method: "Index"}).As("posts.index"),
		r.Route("/posts/:slug", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Show"}).
			As("posts.show").
			Where("slug", `^[a-z0-9-]+$`),
	))

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/posts", "").Code)
	require.NoError(t, r.Commit())

	rec := serve(r, http.MethodGet, "/posts", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index", rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(r, http.MethodHead, "/posts", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPost, "/posts", "").Code)

	assert.Equal(t, "show 333", serve(r, http.MethodGet, "/posts/333", "").Body.String())
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/posts/foo~~12312", "").Code)

	u, err := r.URL("posts.show", "slug", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "/posts/hello-world", u.Path)

	_, err = r.URL("missing")
	assert.Error(t, err)
}

func TestDomainRoutes(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Push(
		r.Route("/", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Tenant"}).Domain(":tenant.example.com"),
		r.Route("/admin", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Index"}).Domain("admin.example.com"),
	))
	require.NoError(t, r.Commit())

	assert.Equal(t, "tenant acme", serve(r, http.MethodGet, "/", "acme.example.com").Body.String())
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", "admin.example.com").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/admin", "other.example.org").Code)
}

func TestResourceAndMiddleware(t *testing.T) {
	set := router.NewMiddlewareSet()
	set.Register("deny", func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	})

	r := New(set)
	require.NoError(t, r.Push(
		r.Resource("posts", ref()).
			APIOnly().
			Use(annotations.ForActions(annotations.ActionStore), annotations.Named("deny")),
	))
	require.NoError(t, r.Commit())

	assert.Equal(t, "index", serve(r, http.MethodGet, "/posts", "").Body.String())
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/posts", "").Code)
	assert.Equal(t, http.StatusNotImplemented, serve(r, http.MethodDelete, "/posts/1", "").Code)

	var count int
	require.NoError(t, r.Walk(func(*mux.Route, *mux.Router, []*mux.Route) error {
		count++
		return nil
	}))
	assert.Equal(t, 5, count)
}

func TestCommitSwapsRouteSet(t *testing.T) {
	r := New(nil, WithNotFound(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	require.NoError(t, r.Push(r.Route("/old", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Index"})))
	require.NoError(t, r.Commit())
	require.NoError(t, r.Push(r.Route("/new", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Index"})))
	require.NoError(t, r.Commit())

	assert.Equal(t, http.StatusTeapot, serve(r, http.MethodGet, "/old", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/new", "").Code)
}

func TestPushRejectsCapturingMatcher(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Push(r.Route("/posts", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Index"})))

	err := r.Push(r.Route("/posts/:slug", []string{"GET"}, router.HandlerRef{Controller: ref(), Method: "Show"}).
		Where("slug", `^(draft|live)$`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mux rejected /posts/:slug")
	var gerr *gerrors.GirouetteError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, gerrors.ErrCodeRouteRejected, gerr.Code)
	assert.Contains(t, gerr.Controller, "PostsController")

	require.NoError(t, r.Commit())
	assert.Equal(t, "index", serve(r, http.MethodGet, "/posts", "").Body.String())
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/posts/draft", "").Code)
}
