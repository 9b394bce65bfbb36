package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsixgrab/internal/orchestrator"
	"vsixgrab/internal/presentation"
	"vsixgrab/internal/schedule"
	"vsixgrab/internal/watcher"
)

func listing(identifier, version string) string {
	return fmt.Sprintf(`<html><head>
<link rel="canonical" href="https://marketplace.visualstudio.com/items?itemName=%s">
</head><body><div class="ux-item-name">listing</div>
<table class="ux-table-metadata"><tr><td>Version</td><td>%s</td></tr></table>
</body></html>`, identifier, version)
}

type staticSettings bool

func (s staticSettings) AutoInject(context.Context) bool { return bool(s) }

func setup(t *testing.T, autoInject bool) (*Session, string, *schedule.FakeClock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listing.html")
	require.NoError(t, os.WriteFile(path, []byte(listing("ms-python.python", "2024.0.0")), 0644))

	clock := schedule.NewFakeClock(time.Unix(0, 0))
	s := New(Config{Path: path, Clock: clock, Settings: staticSettings(autoInject)})
	t.Cleanup(s.Stop)
	return s, path, clock
}

func injected(t *testing.T, path string) *goquery.Selection {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc.Find("#" + presentation.MarkerID)
}

func TestStartInjectsControls(t *testing.T) {
	s, path, _ := setup(t, true)
	s.Start()

	assert.Equal(t, orchestrator.Complete, s.Orchestrator().State())
	assert.True(t, s.Watcher().Armed())
	block := injected(t, path)
	require.Equal(t, 1, block.Length())
	assert.Equal(t, "ms-python.python", block.AttrOr("data-identifier", ""))
}

func TestRerenderDropsControlsAndWatcherRestoresThem(t *testing.T) {
	s, path, clock := setup(t, true)
	s.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(listing("ms-python.python", "2024.0.0")), 0644))
		s.HandleChange()
	}
	assert.Equal(t, 0, injected(t, path).Length())

	clock.Advance(watcher.DebounceWindow)
	assert.Equal(t, 1, injected(t, path).Length())
	assert.Equal(t, 1, s.Watcher().Reassemblies())
}

func TestNavigationRebuildsForNewListing(t *testing.T) {
	s, path, clock := setup(t, true)
	s.Start()

	require.NoError(t, os.WriteFile(path, []byte(listing("golang.go", "0.41.2")), 0644))
	s.HandleChange()
	assert.Equal(t, orchestrator.Idle, s.Orchestrator().State())
	assert.False(t, s.Watcher().Armed())

	clock.Advance(orchestrator.SettleDelay)
	assert.Equal(t, orchestrator.Complete, s.Orchestrator().State())
	assert.Equal(t, "golang.go", s.Orchestrator().Descriptor().Identifier)

	block := injected(t, path)
	require.Equal(t, 1, block.Length())
	assert.Equal(t, "golang.go", block.AttrOr("data-identifier", ""))
	assert.Equal(t, "0.41.2", block.AttrOr("data-version", ""))
}

func TestNavigationRemovesStaleControls(t *testing.T) {
	s, path, clock := setup(t, true)
	s.Start()
	require.Equal(t, 1, injected(t, path).Length())

	// same page with the old block still in it, now showing another listing
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	next := strings.Replace(string(data), "itemName=ms-python.python", "itemName=golang.go", 1)
	next = strings.Replace(next, "<td>2024.0.0</td>", "<td>n/a</td>", 1)
	require.NoError(t, os.WriteFile(path, []byte(next), 0644))

	s.HandleChange()
	assert.Equal(t, 0, injected(t, path).Length())

	clock.Advance(time.Hour)
	assert.Equal(t, orchestrator.Exhausted, s.Orchestrator().State())
	assert.Empty(t, s.Orchestrator().Descriptor().Version)
	assert.Equal(t, 0, injected(t, path).Length())
}

func TestAutoInjectDisabled(t *testing.T) {
	s, path, clock := setup(t, false)
	s.Start()

	assert.Equal(t, orchestrator.Complete, s.Orchestrator().State())
	assert.False(t, s.Watcher().Armed())
	s.HandleChange()
	clock.Advance(time.Minute)
	assert.Equal(t, 0, injected(t, path).Length())
}

func TestRunStopsWithContext(t *testing.T) {
	s, path, _ := setup(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return injected(t, path).Length() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
