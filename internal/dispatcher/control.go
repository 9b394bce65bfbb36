package dispatcher

import "sync"

// Toggle is a Control with no rendering of its own. It backs the per-action
// controls of the bridge and the terminal.
type Toggle struct {
	mu       sync.Mutex
	disabled bool
}

func (t *Toggle) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = !enabled
}

func (t *Toggle) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.disabled
}

// Acquire disables the toggle and reports whether it was enabled.
func (t *Toggle) Acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled {
		return false
	}
	t.disabled = true
	return true
}
