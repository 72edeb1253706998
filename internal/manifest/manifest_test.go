package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlManifest = `
controller: posts
mount: {pattern: /api, name: api}
group: {name: posts, prefix: /posts}
domain: admin.example.com
middleware: [session, auth]
routes:
  - handler: index
    method: get
    pattern: /
    name: index
  - handler: show
    method: get
    pattern: /:id
    where: {id: '^\d+$', format: '^(json|html)$'}
    middleware: throttle
resource:
  pattern: posts
  name: articles
  params: {posts: post}
resource_middleware:
  - {actions: '*', middleware: [auth]}
  - {actions: [store], middleware: [csrf]}
only: [index, show, store]
except: []
api_only: true
`

const jsonManifest = `{
  "controller": "posts",
  "mount": {"pattern": "/api", "name": "api"},
  "group": {"name": "posts", "prefix": "/posts"},
  "domain": "admin.example.com",
  "middleware": ["session", "auth"],
  "routes": [
    {"handler": "index", "method": "get", "pattern": "/", "name": "index"},
    {"handler": "show", "method": "get", "pattern": "/:id",
     "where": {"id": "^\\d+$", "format": "^(json|html)$"}, "middleware": "throttle"}
  ],
  "resource": {"pattern": "posts", "name": "articles", "params": {"posts": "post"}},
  "resource_middleware": [
    {"actions": "*", "middleware": ["auth"]},
    {"actions": ["store"], "middleware": ["csrf"]}
  ],
  "only": ["index", "show", "store"],
  "except": [],
  "api_only": true
}`

const tomlManifest = `
controller = "posts"
domain = "admin.example.com"
middleware = ["session", "auth"]
only = ["index", "show", "store"]
except = []
api_only = true
resource = { pattern = "posts", name = "articles", params = { posts = "post" } }

[mount]
pattern = "/api"
name = "api"

[group]
name = "posts"
prefix = "/posts"

[[routes]]
handler = "index"
method = "get"
pattern = "/"
name = "index"

[[routes]]
handler = "show"
method = "get"
pattern = "/:id"
middleware = "throttle"
where = { id = '^\d+$', format = '^(json|html)$' }

[[resource_middleware]]
actions = "*"
middleware = ["auth"]

[[resource_middleware]]
actions = ["store"]
middleware = ["csrf"]
`

func TestDecodeFormatsAgree(t *testing.T) {
	expected := &Manifest{
		Controller: "posts",
		Mount:      &Mount{Pattern: "/api", Name: "api"},
		Group:      &Group{Name: "posts", Prefix: "/posts"},
		Domain:     "admin.example.com",
		Middleware: StringList{"session", "auth"},
		Routes: []Route{
			{Handler: "index", Method: "get", Pattern: "/", Name: "index"},
			{
				Handler:    "show",
				Method:     "get",
				Pattern:    "/:id",
				Where:      map[string]string{"id": `^\d+$`, "format": "^(json|html)$"},
				Middleware: StringList{"throttle"},
			},
		},
		Resource: &Resource{Pattern: "posts", Name: "articles", Params: map[string]string{"posts": "post"}},
		ResourceMiddleware: []MiddlewareRule{
			{Actions: StringList{"*"}, Middleware: StringList{"auth"}},
			{Actions: StringList{"store"}, Middleware: StringList{"csrf"}},
		},
		Only:    StringList{"index", "show", "store"},
		Except:  StringList{},
		APIOnly: true,
	}

	testCases := []struct {
		path string
		data string
	}{
		{"posts_controller.yaml", yamlManifest},
		{"posts_controller.YML", yamlManifest},
		{"posts_controller.json", jsonManifest},
		{"posts_controller.toml", tomlManifest},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			m, err := Decode(tc.path, []byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, expected, m)
		})
	}
}

func TestDecodeBareResource(t *testing.T) {
	for path, data := range map[string]string{
		"a.yaml": "resource: posts\n",
		"a.json": `{"resource": "posts"}`,
		"a.toml": `resource = "posts"`,
	} {
		m, err := Decode(path, []byte(data))
		require.NoError(t, err, path)
		assert.Equal(t, &Resource{Name: "posts"}, m.Resource, path)
		assert.Nil(t, m.Only, path)
		assert.Nil(t, m.Except, path)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode("posts_controller.xml", []byte("<x/>"))
	require.Error(t, err)
	assert.True(t, gerrors.IsModuleLoadError(err))
	assert.Contains(t, err.Error(), gerrors.ErrCodeUnsupportedExtension)

	for path, data := range map[string]string{
		"a.yaml": "routes: [unterminated\n",
		"a.json": `{"routes": `,
		"a.toml": `resource = 12`,
	} {
		_, err := Decode(path, []byte(data))
		require.Error(t, err, path)
		assert.True(t, gerrors.IsModuleLoadError(err), path)
	}
}

func TestAnnotateBuildsRecord(t *testing.T) {
	m, err := Decode("posts_controller.yaml", []byte(yamlManifest))
	require.NoError(t, err)

	store := annotations.NewStore()
	store.Declare("posts", m.Annotate)
	rec, ok := store.Get("posts")
	require.True(t, ok)

	assert.Equal(t, []string{"index", "show"}, rec.Methods)
	assert.Equal(t, &annotations.MountAnnotation{Pattern: "/api", NamePrefix: "api"}, rec.Mount)
	assert.Equal(t, &annotations.GroupAnnotation{Name: "posts", Prefix: "/posts"}, rec.Group)
	assert.Equal(t, "admin.example.com", rec.GroupDomain)
	assert.Equal(t, annotations.Layer{annotations.Named("session"), annotations.Named("auth")}, rec.GroupMiddleware)

	show := rec.Routes["show"]
	assert.Equal(t, "GET", show.Method)
	assert.Equal(t, "/:id", show.Pattern)
	assert.Equal(t, []annotations.Constraint{
		{Key: "format", Matcher: "^(json|html)$"},
		{Key: "id", Matcher: `^\d+$`},
	}, show.Where)
	assert.Equal(t, []annotations.Layer{{annotations.Named("throttle")}}, show.Middleware)
	assert.Empty(t, rec.Routes["index"].Middleware)

	assert.Equal(t, "posts", rec.Resource.Identity())
	assert.Equal(t, "articles", rec.Resource.Name)
	assert.Equal(t, map[string]string{"posts": "post"}, rec.Resource.Params)
	require.Len(t, rec.ResourceMiddleware, 2)
	assert.True(t, rec.ResourceMiddleware[0].Actions.All)
	assert.Equal(t, []annotations.Action{"store"}, rec.ResourceMiddleware[1].Actions.Actions)
	assert.Equal(t, []annotations.Action{"index", "show", "store"}, rec.Only)
	assert.NotNil(t, rec.Except)
	assert.Empty(t, rec.Except)
	assert.True(t, rec.APIOnly)
}

func TestControllerName(t *testing.T) {
	assert.Equal(t, "posts", ControllerName("/app/posts_controller.yaml", nil))
	assert.Equal(t, "post_controller_domain", ControllerName("/app/post_controller_domain.yaml", &Manifest{}))
	assert.Equal(t, "articles", ControllerName("/app/posts_controller.yaml", &Manifest{Controller: "articles"}))
}

type postsController struct{}

func writeManifest(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func resolver(names ...string) Resolver {
	return func(name string) (interface{}, bool) {
		for _, n := range names {
			if n == name {
				return postsController{}, true
			}
		}
		return nil, false
	}
}

func TestImporter(t *testing.T) {
	store := annotations.NewStore()
	imp := NewImporter(store, resolver("posts"))

	path := writeManifest(t, "posts_controller.yaml", "routes:\n  - {handler: index, method: get, pattern: /posts}\n")
	mod, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, mod.Path)
	assert.Equal(t, annotations.ID("posts"), mod.Controller)
	assert.Equal(t, postsController{}, mod.Instance)

	rec, ok := store.Get("posts")
	require.True(t, ok)
	assert.Len(t, rec.Routes, 1)

	// A reload replaces the record.
	require.NoError(t, os.WriteFile(path, []byte("resource: posts\n"), 0o644))
	_, err = imp.Import(context.Background(), path)
	require.NoError(t, err)
	rec, _ = store.Get("posts")
	assert.Empty(t, rec.Routes)
	assert.NotNil(t, rec.Resource)
}

func TestImporterErrors(t *testing.T) {
	imp := NewImporter(annotations.NewStore(), resolver("posts"))
	ctx := context.Background()

	_, err := imp.Import(ctx, filepath.Join(t.TempDir(), "missing_controller.yaml"))
	assert.True(t, gerrors.IsModuleLoadError(err))

	_, err = imp.Import(ctx, writeManifest(t, "users_controller.yaml", "routes: []\n"))
	require.Error(t, err)
	assert.True(t, gerrors.IsModuleLoadError(err))
	assert.Contains(t, err.Error(), gerrors.ErrCodeUnknownController)

	_, err = imp.Import(ctx, writeManifest(t, "posts_controller.yaml",
		"routes:\n  - {handler: index, method: get, pattern: /a}\n  - {handler: index, method: get, pattern: /b}\n"))
	require.Error(t, err)
	assert.True(t, gerrors.IsMetadataError(err))

	_, err = imp.Import(ctx, writeManifest(t, "posts_controller.yaml", "routes:\n  - {method: get, pattern: /a}\n"))
	assert.True(t, gerrors.IsMetadataError(err))
}
