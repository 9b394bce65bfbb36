// Package watcher re-asserts the injected download controls when the host
// page re-renders and drops them.
package watcher

import (
	"sync"
	"time"

	"vsixgrab/internal/schedule"
	"vsixgrab/internal/utils"
)

const (
	DebounceWindow = time.Second

	debounceKey = "debounce"
)

// Presence is the rendered UI the watcher keeps alive.
type Presence interface {
	Present() bool
	Assemble() error
}

// Watcher coalesces mutation notifications: a burst of Notify calls leads
// to a single presence check once the page has been quiet for one window.
type Watcher struct {
	slots    *schedule.Slots
	window   time.Duration
	presence Presence
	logger   *utils.Logger

	mu           sync.Mutex
	armed        bool
	reassemblies int
}

// New returns a disarmed watcher. A non-positive window falls back to
// DebounceWindow.
func New(clock schedule.Clock, window time.Duration, presence Presence) *Watcher {
	if window <= 0 {
		window = DebounceWindow
	}
	return &Watcher{
		slots:    schedule.NewSlots(clock),
		window:   window,
		presence: presence,
		logger:   utils.NewNamedLogger("watcher"),
	}
}

// Arm starts reacting to Notify. Call it once the descriptor is complete.
func (w *Watcher) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
}

// Disarm stops reacting and drops any pending check.
func (w *Watcher) Disarm() {
	w.mu.Lock()
	w.armed = false
	w.mu.Unlock()
	w.slots.Cancel(debounceKey)
}

func (w *Watcher) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Notify records one structural change of the page.
func (w *Watcher) Notify() {
	w.mu.Lock()
	armed := w.armed
	w.mu.Unlock()
	if !armed {
		return
	}
	w.slots.Schedule(debounceKey, w.window, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.armed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	if w.presence.Present() {
		return
	}

	w.logger.LogDebug("download controls missing, re-assembling")
	if err := w.presence.Assemble(); err != nil {
		w.logger.LogWarning("failed to re-assemble download controls: %v", err)
	}

	w.mu.Lock()
	w.reassemblies++
	w.mu.Unlock()
}

// Reassemblies counts how many times the controls were rebuilt.
func (w *Watcher) Reassemblies() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reassemblies
}
