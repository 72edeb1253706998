package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/internal/scanner"
	"github.com/conneroisu/girouette/internal/watcher"
	"github.com/conneroisu/girouette/pkg/annotations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types(path string) []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, ev := range r.events {
		if ev.Path == path {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, filepath.Base(ev.Path))
	}
	sort.Strings(out)
	return out
}

func fixture(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("controller: x\n"), 0o644))
	}
	return root
}

func stubImporter(fail ...string) ImporterFunc {
	return func(_ context.Context, path string) (*Module, error) {
		for _, f := range fail {
			if filepath.Base(path) == f {
				return nil, errors.New("syntax error")
			}
		}
		return &Module{Controller: annotations.ID(filepath.Base(path))}, nil
	}
}

func TestLoadModuleEmitsAddedThenUpdated(t *testing.T) {
	root := fixture(t, "posts_controller.yaml")
	path := filepath.Join(root, "posts_controller.yaml")

	l := New(scanner.New(root), stubImporter())
	rec := &recorder{}
	l.On(rec.listen)

	assert.False(t, l.Seen(path))
	for i := 0; i < 3; i++ {
		mod, err := l.LoadModule(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, path, mod.Path)
	}

	assert.Equal(t, []EventType{EventAdded, EventUpdated, EventUpdated}, rec.types(path))
	assert.True(t, l.Seen(path))
	assert.False(t, l.Hooked(path))
}

func TestLoadModuleFailureEmitsNothing(t *testing.T) {
	root := fixture(t, "broken_controller.yaml")
	path := filepath.Join(root, "broken_controller.yaml")

	l := New(scanner.New(root), stubImporter("broken_controller.yaml"))
	rec := &recorder{}
	l.On(rec.listen)

	_, err := l.LoadModule(context.Background(), path)
	require.Error(t, err)
	assert.True(t, gerrors.IsModuleLoadError(err))
	assert.Empty(t, rec.types(path))
	assert.False(t, l.Seen(path))
}

func TestAutoloadIsolatesFailures(t *testing.T) {
	root := fixture(t,
		"posts_controller.yaml",
		"broken_controller.yaml",
		"admin/users_controller.json",
		"readme.md",
	)

	l := New(scanner.New(root), stubImporter("broken_controller.yaml"), WithMaxConcurrency(2))
	rec := &recorder{}
	l.On(rec.listen)

	err := l.Autoload(context.Background())
	require.Error(t, err)
	assert.True(t, gerrors.IsModuleLoadError(err))
	assert.Contains(t, err.Error(), "broken_controller.yaml")

	assert.Equal(t, []string{"posts_controller.yaml", "users_controller.json"}, rec.paths())
}

func TestAutoloadMissingRootIsFatal(t *testing.T) {
	l := New(scanner.New(filepath.Join(t.TempDir(), "nope")), stubImporter())
	rec := &recorder{}
	l.On(rec.listen)

	err := l.Autoload(context.Background())
	require.Error(t, err)
	assert.True(t, gerrors.IsFilesystemError(err))
	assert.Empty(t, rec.paths())
}

func TestLoadsOfOnePathAreSerialized(t *testing.T) {
	root := fixture(t, "posts_controller.yaml")
	path := filepath.Join(root, "posts_controller.yaml")

	var active, peak int32
	importer := ImporterFunc(func(_ context.Context, path string) (*Module, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &Module{Controller: "posts"}, nil
	})

	l := New(scanner.New(root), importer)
	rec := &recorder{}
	l.On(rec.listen)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.LoadModule(context.Background(), path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	types := rec.types(path)
	require.Len(t, types, 8)
	assert.Equal(t, EventAdded, types[0])
	for _, typ := range types[1:] {
		assert.Equal(t, EventUpdated, typ)
	}
}

func TestNotify(t *testing.T) {
	root := fixture(t, "posts_controller.yaml", "notes.txt")
	posts := filepath.Join(root, "posts_controller.yaml")
	ctx := context.Background()

	l := New(scanner.New(root), stubImporter(), WithHotReload(true))
	rec := &recorder{}
	l.On(rec.listen)

	require.NoError(t, l.Autoload(ctx))
	assert.True(t, l.Hooked(posts))

	require.NoError(t, l.Notify(ctx, posts, watcher.EventTypeModified))
	assert.Equal(t, []EventType{EventAdded, EventUpdated}, rec.types(posts))

	require.NoError(t, l.Notify(ctx, filepath.Join(root, "notes.txt"), watcher.EventTypeModified))
	require.NoError(t, l.Notify(ctx, posts, watcher.EventTypeDeleted))
	assert.Len(t, rec.types(posts), 2)

	comments := filepath.Join(root, "comments_controller.yaml")
	require.NoError(t, os.WriteFile(comments, []byte("controller: comments\n"), 0o644))
	require.NoError(t, l.Notify(ctx, comments, watcher.EventTypeCreated))
	assert.Equal(t, []EventType{EventAdded}, rec.types(comments))
}

func TestNotifyWithoutHotReloadIgnoresUnloadedFiles(t *testing.T) {
	root := fixture(t, "posts_controller.yaml")
	l := New(scanner.New(root), stubImporter())
	rec := &recorder{}
	l.On(rec.listen)

	require.NoError(t, l.Notify(context.Background(), filepath.Join(root, "posts_controller.yaml"), watcher.EventTypeModified))
	assert.Empty(t, rec.paths())
}

func TestWatchReloadsChangedFiles(t *testing.T) {
	root := fixture(t, "posts_controller.yaml")
	posts := filepath.Join(root, "posts_controller.yaml")

	l := New(scanner.New(root), stubImporter())
	rec := &recorder{}
	l.On(rec.listen)
	require.NoError(t, l.Autoload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw, err := l.Watch(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, os.WriteFile(posts, []byte("controller: posts\nroutes: []\n"), 0o644))

	assert.Eventually(t, func() bool {
		types := rec.types(posts)
		return len(types) >= 2 && types[len(types)-1] == EventUpdated
	}, 2*time.Second, 10*time.Millisecond)
}
