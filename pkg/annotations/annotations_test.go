package annotations

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postsController struct{}

func (postsController) Annotate(d *Declaration) {
	d.Group("posts", "posts")
	d.GroupMiddleware(Named("auth"))
	d.Get("Index", "/").As("index")
	d.Route("Show").Where("id", `^\d+$`).Middleware(Named("log")).Verb("get", "/:id").As("show")
}

func TestIDOf(t *testing.T) {
	id := IDOf(&postsController{})
	assert.Equal(t, IDOf(postsController{}), id)
	assert.Equal(t, "postsController", id.Short())
	assert.Contains(t, string(id), "pkg/annotations.postsController")
	assert.Equal(t, ID(""), IDOf(nil))
}

func TestDeclarationBuildsRecord(t *testing.T) {
	store := NewStore()
	id := store.Annotate(postsController{})

	rec, ok := store.Get(id)
	require.True(t, ok)

	assert.Equal(t, []string{"Index", "Show"}, rec.Methods)
	assert.Equal(t, &GroupAnnotation{Name: "posts", Prefix: "posts"}, rec.Group)
	assert.Equal(t, Layer{Named("auth")}, rec.GroupMiddleware)

	show := rec.Routes["Show"]
	assert.Equal(t, http.MethodGet, show.Method)
	assert.Equal(t, "/:id", show.Pattern)
	assert.Equal(t, "show", show.Name)
	assert.Equal(t, []Constraint{{Key: "id", Matcher: `^\d+$`}}, show.Where)
	assert.Equal(t, []Layer{{Named("log")}}, show.Middleware)
}

func TestDeclareReplacesPreviousRecord(t *testing.T) {
	store := NewStore()
	store.Declare("ctrl", func(d *Declaration) {
		d.Get("Index", "/a")
		d.Get("Show", "/a/:id")
	})
	store.Declare("ctrl", func(d *Declaration) {
		d.Get("Index", "/b")
	})

	rec, ok := store.Get("ctrl")
	require.True(t, ok)
	assert.Equal(t, []string{"Index"}, rec.Methods)
	assert.Equal(t, "/b", rec.Routes["Index"].Pattern)
}

func TestControllerAnnotationsReplaceButRulesAccumulate(t *testing.T) {
	store := NewStore()
	store.Declare("ctrl", func(d *Declaration) {
		d.Resource("posts")
		d.ResourceWith(ResourceAnnotation{Name: "articles", Params: map[string]string{"articles": "article"}})
		d.GroupDomain("a.example.com").GroupDomain("b.example.com")
		d.ResourceMiddleware(AllActions(), Named("auth"))
		d.ResourceMiddleware(ForActions(ActionStore, ActionUpdate), Named("csrf"))
		d.Only(ActionIndex).Only(ActionShow)
		d.Except(ActionEdit)
		d.APIOnly()
	})

	rec, _ := store.Get("ctrl")
	assert.Equal(t, "articles", rec.Resource.Identity())
	assert.Equal(t, "b.example.com", rec.GroupDomain)
	require.Len(t, rec.ResourceMiddleware, 2)
	assert.True(t, rec.ResourceMiddleware[0].Actions.All)
	assert.Equal(t, "store,update", rec.ResourceMiddleware[1].Actions.String())
	assert.Equal(t, []Action{ActionShow}, rec.Only)
	assert.Equal(t, []Action{ActionEdit}, rec.Except)
	assert.True(t, rec.APIOnly)
}

func TestResourceIdentity(t *testing.T) {
	assert.Equal(t, "posts", (&ResourceAnnotation{Pattern: "posts"}).Identity())
	assert.Equal(t, "posts", (&ResourceAnnotation{Name: "posts"}).Identity())
	assert.Equal(t, "/posts", (&ResourceAnnotation{Pattern: "/posts", Name: "blog.posts"}).Identity())
}

func TestActionSelector(t *testing.T) {
	all := ParseSelector("*")
	assert.True(t, all.Matches(ActionEdit))
	assert.Equal(t, "*", all.String())

	some := ParseSelector("store", "update")
	assert.True(t, some.Matches(ActionStore))
	assert.False(t, some.Matches(ActionIndex))

	assert.True(t, ActionDestroy.Valid())
	assert.False(t, Action("list").Valid())
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := NewRecord()
	rec.Route("Index").Where = []Constraint{{Key: "id", Matcher: "x"}}
	rec.Resource = &ResourceAnnotation{Name: "posts", Params: map[string]string{"posts": "post"}}
	rec.Only = []Action{ActionIndex}

	c := rec.Clone()
	c.Routes["Index"].Where[0].Matcher = "y"
	c.Resource.Params["posts"] = "article"
	c.Only[0] = ActionShow

	assert.Equal(t, "x", rec.Routes["Index"].Where[0].Matcher)
	assert.Equal(t, "post", rec.Resource.Params["posts"])
	assert.Equal(t, ActionIndex, rec.Only[0])
	assert.Nil(t, c.Except)
	assert.Nil(t, (*Record)(nil).Clone())
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ID(string(rune('a' + i)))
			store.Define(id, func(r *Record) { r.Route("Index").Pattern = "/" })
			_, _ = store.Get(id)
			_ = store.IDs()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
	ids := store.IDs()
	assert.Equal(t, ID("a"), ids[0])

	store.Delete("a")
	_, ok := store.Get("a")
	assert.False(t, ok)
}

func TestFlatten(t *testing.T) {
	out := Flatten(Layer{Named("a"), Named("b")}, nil, Layer{Named("c")})
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[2].String())
	assert.Equal(t, "inline", Inline(func(h http.Handler) http.Handler { return h }).String())
}
