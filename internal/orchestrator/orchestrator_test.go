package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vsixgrab/internal/extractor"
	"vsixgrab/internal/models"
	"vsixgrab/internal/schedule"
)

const (
	pythonListing = "https://marketplace.visualstudio.com/items?itemName=ms-python.python"
	goListing     = "https://marketplace.visualstudio.com/items?itemName=golang.go"

	completeHTML   = `<table class="ux-table-metadata"><tr><td>Version</td><td>2024.0.0</td></tr></table>`
	incompleteHTML = `<div>Loading...</div>`
)

type fakePage struct {
	mu       sync.Mutex
	clock    *schedule.FakeClock
	location string
	html     string
	err      error
	calls    []time.Time
	// before runs at the start of each Document call with the 1-based call number.
	before func(n int)
}

func (p *fakePage) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

func (p *fakePage) set(location, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = location
	p.html = html
}

func (p *fakePage) Document(ctx context.Context) (extractor.Document, error) {
	p.mu.Lock()
	p.calls = append(p.calls, p.clock.Now())
	n := len(p.calls)
	before := p.before
	p.mu.Unlock()

	if before != nil {
		before(n)
	}

	p.mu.Lock()
	html, err := p.html, p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + html + "</body></html>"))
}

func (p *fakePage) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func setup(location, html string, opts ...Option) (*Orchestrator, *fakePage, *schedule.FakeClock) {
	clock := schedule.NewFakeClock(time.Unix(1700000000, 0))
	page := &fakePage{clock: clock, location: location, html: html}
	o := New(page, append([]Option{WithClock(clock)}, opts...)...)
	return o, page, clock
}

func TestCompleteOnFirstPass(t *testing.T) {
	var completed []models.Descriptor
	o, page, clock := setup(pythonListing, completeHTML, WithHooks(Hooks{
		OnComplete: func(d models.Descriptor) { completed = append(completed, d) },
	}))

	require.True(t, o.Start())
	assert.Equal(t, Complete, o.State())
	assert.Equal(t, 1, page.callCount())
	assert.Equal(t, 0, clock.Pending())
	require.Len(t, completed, 1)
	assert.Equal(t, "ms-python.python", completed[0].Identifier)
	assert.Equal(t, "2024.0.0", completed[0].Version)

	assert.False(t, o.Start(), "second start is a no-op")
}

func TestRetryBoundAndBackoff(t *testing.T) {
	exhausted := 0
	o, page, clock := setup(pythonListing, incompleteHTML, WithHooks(Hooks{
		OnExhausted: func(models.Descriptor) { exhausted++ },
	}))

	require.True(t, o.Start())
	assert.Equal(t, Retrying, o.State())

	clock.Advance(time.Hour)

	assert.Equal(t, Exhausted, o.State())
	assert.Equal(t, 1+MaxRetries, page.callCount())
	assert.Equal(t, 1+MaxRetries, o.Attempts())
	assert.Equal(t, 1, exhausted)
	assert.Equal(t, 0, clock.Pending())

	var gaps []time.Duration
	for i := 1; i < len(page.calls); i++ {
		gaps = append(gaps, page.calls[i].Sub(page.calls[i-1]))
	}
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, gaps)

	// identity from the URL survives even though the pass never completed
	d := o.Descriptor()
	assert.Equal(t, "ms-python.python", d.Identifier)
	assert.False(t, d.IsComplete())

	clock.Advance(time.Hour)
	assert.Equal(t, 1+MaxRetries, page.callCount(), "no attempts after exhaustion")
}

func TestDocumentErrorsCountAsIncomplete(t *testing.T) {
	o, page, clock := setup(pythonListing, completeHTML, WithMaxRetries(2))
	page.err = errors.New("connection refused")

	o.Start()
	clock.Advance(time.Minute)
	assert.Equal(t, Exhausted, o.State())
	assert.Equal(t, 3, page.callCount())
}

func TestCompletesWhenPageFinishesRendering(t *testing.T) {
	o, page, clock := setup(pythonListing, incompleteHTML)
	page.before = func(n int) {
		if n == 3 {
			page.set(pythonListing, completeHTML)
		}
	}

	o.Start()
	clock.Advance(2 * time.Second)
	assert.Equal(t, Retrying, o.State())
	clock.Advance(time.Second)
	assert.Equal(t, Complete, o.State())
	assert.Equal(t, 3, page.callCount())
	assert.Equal(t, 0, clock.Pending())
}

func TestNoReentrantProcessing(t *testing.T) {
	o, page, _ := setup(pythonListing, completeHTML)
	page.before = func(n int) {
		if n == 1 {
			o.process()
		}
	}

	o.Start()
	assert.Equal(t, 1, page.callCount())
	assert.Equal(t, Complete, o.State())
}

func TestNavigationResetsPageView(t *testing.T) {
	var resets []string
	o, page, clock := setup(pythonListing, incompleteHTML, WithHooks(Hooks{
		OnReset: func(location string) { resets = append(resets, location) },
	}))

	o.Start()
	require.Equal(t, Retrying, o.State())

	page.set(goListing, `<span class="ux-item-version">0.41.2</span>`)
	o.Navigate(goListing)

	assert.Equal(t, []string{goListing}, resets)
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, models.Descriptor{}, o.Descriptor())
	assert.Equal(t, 0, o.Attempts())

	clock.Advance(SettleDelay - time.Millisecond)
	assert.Equal(t, Idle, o.State())
	clock.Advance(time.Millisecond)

	assert.Equal(t, Complete, o.State())
	assert.Equal(t, "golang.go", o.Descriptor().Identifier)
	assert.Equal(t, 1, o.Attempts())
	assert.Equal(t, 2, page.callCount(), "old retry was cancelled")
}

func TestNavigateToSameLocationIsIgnored(t *testing.T) {
	o, page, _ := setup(pythonListing, completeHTML)
	o.Start()
	o.Navigate(pythonListing)
	assert.Equal(t, Complete, o.State())
	assert.Equal(t, 1, page.callCount())
}

func TestNavigateAwayFromListing(t *testing.T) {
	o, page, clock := setup(pythonListing, incompleteHTML)
	o.Start()
	o.Navigate("https://marketplace.visualstudio.com/search?term=python")

	clock.Advance(time.Hour)
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, 1, page.callCount())
	assert.Equal(t, 0, clock.Pending())
}

func TestStalePassIsDiscarded(t *testing.T) {
	o, page, clock := setup(pythonListing, completeHTML)
	page.before = func(n int) {
		if n == 1 {
			page.set(goListing, `<span class="ux-item-version">0.41.2</span>`)
			o.Navigate(goListing)
		}
	}

	o.Start()
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, models.Descriptor{}, o.Descriptor())

	clock.Advance(SettleDelay)
	assert.Equal(t, Complete, o.State())
	assert.Equal(t, "golang.go", o.Descriptor().Identifier)
}

func TestWatchLocationDetectsNavigation(t *testing.T) {
	o, page, clock := setup(pythonListing, completeHTML)
	o.Start()
	o.WatchLocation(250 * time.Millisecond)

	clock.Advance(time.Second)
	assert.Equal(t, Complete, o.State())
	assert.Equal(t, 1, page.callCount())

	page.set(goListing, `<span class="ux-item-version">0.41.2</span>`)
	clock.Advance(250*time.Millisecond + SettleDelay)
	assert.Equal(t, Complete, o.State())
	assert.Equal(t, goListing, o.Location())
	assert.Equal(t, "0.41.2", o.Descriptor().Version)

	o.Unload()
	assert.Equal(t, 0, clock.Pending())
}

func TestUnloadCancelsEverything(t *testing.T) {
	o, page, clock := setup(pythonListing, incompleteHTML)
	o.Start()
	o.Unload()

	clock.Advance(time.Hour)
	assert.Equal(t, 1, page.callCount())
	assert.Equal(t, 0, clock.Pending())

	_, _, err := o.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUnloaded)

	o.Navigate(goListing)
	assert.Equal(t, 0, clock.Pending())
}

func TestStartRejectsNonListing(t *testing.T) {
	o, page, _ := setup("https://example.com/", completeHTML)
	assert.False(t, o.Start())
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, 0, page.callCount())

	o2, _, _ := setup("https://example.com/", completeHTML+`<table class="ux-table-metadata"><tr><td>Identifier</td><td>a.b</td></tr></table>`,
		WithQualifier(func(string) bool { return true }))
	assert.True(t, o2.Start())
	assert.Equal(t, Complete, o2.State())
}

func TestWait(t *testing.T) {
	o, _, clock := setup(pythonListing, incompleteHTML)
	o.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, state, err := o.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Retrying, state)

	clock.Advance(time.Hour)
	d, state, err := o.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Exhausted, state)
	assert.Equal(t, "ms-python.python", d.Identifier)
}

func TestWaitSurvivesNavigation(t *testing.T) {
	o, page, clock := setup(pythonListing, incompleteHTML)
	o.Start()

	done := make(chan models.Descriptor)
	go func() {
		d, _, _ := o.Wait(context.Background())
		done <- d
	}()

	page.set(goListing, `<span class="ux-item-version">0.41.2</span>`)
	o.Navigate(goListing)
	clock.Advance(SettleDelay)

	select {
	case d := <-done:
		assert.Equal(t, "golang.go", d.Identifier)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "retrying", Retrying.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Exhausted.Terminal())
	assert.False(t, Processing.Terminal())
}
