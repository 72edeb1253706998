package watcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/conneroisu/girouette/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
		gone      bool
	}{
		{EventTypeCreated, "created", false},
		{EventTypeModified, "modified", false},
		{EventTypeDeleted, "deleted", true},
		{EventTypeRenamed, "renamed", true},
		{EventType(99), "unknown", false},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
			assert.Equal(t, tc.gone, tc.eventType.Gone())
		})
	}
}

func TestDebouncerCollapsesEventsPerPath(t *testing.T) {
	d := newDebouncer(20*time.Millisecond, logging.Discard())

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b_controller.yaml"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a_controller.yaml"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b_controller.yaml"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a_controller.yaml", events[0].Path)
		assert.Equal(t, "b_controller.yaml", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(time.Second):
		t.Fatal("debouncer never flushed")
	}

	d.flush()
	select {
	case events := <-d.output:
		t.Fatalf("unexpected flush of %d events", len(events))
	default:
	}
}

func TestDebouncerLogsDroppedBatch(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Format: "text", Output: &logs})
	d := newDebouncer(time.Hour, logger)
	d.output = make(chan []ChangeEvent)

	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "posts_controller.yaml"})
	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "users_controller.yaml"})
	d.stop()
	d.flush()

	assert.Contains(t, logs.String(), "Dropped change batch")
	assert.Contains(t, logs.String(), "events=2")
	assert.Contains(t, logs.String(), "posts_controller.yaml")
	assert.Empty(t, d.pending)
}

func TestFilters(t *testing.T) {
	assert.True(t, NoHiddenFilter("/app/posts_controller.yaml"))
	assert.False(t, NoHiddenFilter("/app/.posts_controller.yaml.swp"))
	assert.False(t, NoHiddenFilter("/app/posts_controller.yaml~"))

	assert.False(t, NoVendorFilter("vendor/x_controller.yaml"))
	assert.False(t, NoVendorFilter("/app/vendor/x_controller.yaml"))
	assert.True(t, NoVendorFilter("/app/x_controller.yaml"))

	assert.False(t, NoGitFilter("/app/.git/HEAD"))
	assert.True(t, NoGitFilter("/app/posts_controller.yaml"))
}

func TestAddRecursiveSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"admin/users", ".git/objects", "vendor/lib"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, fw.AddRecursive(root))
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "admin"),
		filepath.Join(root, "admin", "users"),
	}, fw.WatchList())
}

func TestFileWatcherReportsFilteredChanges(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(func(path string) bool { return filepath.Ext(path) == ".yaml" })

	var (
		mu       sync.Mutex
		received []ChangeEvent
	)
	fw.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, events...)
		return nil
	})

	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	target := filepath.Join(root, "posts_controller.yaml")
	require.NoError(t, os.WriteFile(target, []byte("controller: posts\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range received {
			if ev.Path == target {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range received {
		assert.Equal(t, ".yaml", filepath.Ext(ev.Path))
	}
}
