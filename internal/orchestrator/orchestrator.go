// Package orchestrator drives the field extractor for one page view until
// the descriptor is complete or the retry budget runs out, and restarts
// the cycle when the page navigates to another listing.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"vsixgrab/internal/extractor"
	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/schedule"
	"vsixgrab/internal/utils"
)

const (
	MaxRetries    = 5
	BaseDelay     = time.Second
	BackoffFactor = 2
	SettleDelay   = 500 * time.Millisecond

	retryKey    = "retry"
	settleKey   = "settle"
	locationKey = "location"
)

var ErrUnloaded = errors.New("page unloaded")

type State int

const (
	Idle State = iota
	Processing
	Retrying
	Complete
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Retrying:
		return "retrying"
	case Complete:
		return "complete"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == Complete || s == Exhausted
}

// Page is the live listing being watched.
type Page interface {
	Location() string
	// Document returns the current rendering of the page. An error means
	// the page is not readable yet and counts as an incomplete pass.
	Document(ctx context.Context) (extractor.Document, error)
}

type Hooks struct {
	OnComplete  func(models.Descriptor)
	OnExhausted func(models.Descriptor)
	// OnReset runs after a navigation discarded the previous page view.
	OnReset func(location string)
}

type Option func(*Orchestrator)

func WithClock(c schedule.Clock) Option {
	return func(o *Orchestrator) { o.slots = schedule.NewSlots(c) }
}

func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.baseDelay = d }
}

func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = d }
}

// WithQualifier decides which locations are listing pages worth processing.
// The default accepts marketplace item pages only.
func WithQualifier(f func(location string) bool) Option {
	return func(o *Orchestrator) { o.qualifies = f }
}

func WithHooks(h Hooks) Option {
	return func(o *Orchestrator) { o.hooks = h }
}

type Orchestrator struct {
	page        Page
	slots       *schedule.Slots
	maxRetries  int
	baseDelay   time.Duration
	settleDelay time.Duration
	qualifies   func(string) bool
	hooks       Hooks
	logger      *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	location   string
	descriptor models.Descriptor
	retries    int
	attempts   int
	inFlight   bool
	generation uint64
	settled    chan struct{}
	woken      bool
	unloaded   bool
}

func New(page Page, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		page:        page,
		maxRetries:  MaxRetries,
		baseDelay:   BaseDelay,
		settleDelay: SettleDelay,
		qualifies:   marketplace.IsListingURL,
		logger:      utils.NewNamedLogger("orchestrator"),
		ctx:         ctx,
		cancel:      cancel,
		settled:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.slots == nil {
		o.slots = schedule.NewSlots(schedule.Real())
	}
	return o
}

// Start begins processing the current location. It reports false when the
// location is not a listing page or the orchestrator already left Idle.
func (o *Orchestrator) Start() bool {
	o.mu.Lock()
	if o.state != Idle || o.unloaded {
		o.mu.Unlock()
		return false
	}
	o.location = o.page.Location()
	if !o.qualifies(o.location) {
		o.logger.LogDebug("not a listing page: %s", o.location)
		o.mu.Unlock()
		return false
	}
	o.mu.Unlock()

	o.process()
	return true
}

func (o *Orchestrator) process() {
	o.mu.Lock()
	if o.inFlight || o.unloaded || o.state.Terminal() {
		o.mu.Unlock()
		return
	}
	o.inFlight = true
	o.state = Processing
	o.attempts++
	gen := o.generation
	location := o.location
	work := o.descriptor
	o.mu.Unlock()

	var doc extractor.Document
	if d, err := o.page.Document(o.ctx); err != nil {
		o.logger.LogDebug("listing %s not readable: %v", location, err)
	} else {
		doc = d
	}
	extractor.Extract(doc, location, &work)

	o.mu.Lock()
	if gen != o.generation {
		// navigated away while this pass was running
		o.mu.Unlock()
		return
	}
	o.inFlight = false
	o.descriptor = work

	if work.IsComplete() {
		o.state = Complete
		o.wakeLocked()
		hook := o.hooks.OnComplete
		o.mu.Unlock()
		o.logger.LogExtensionInfo(work.Identifier, work.Version)
		if hook != nil {
			hook(work)
		}
		return
	}

	if o.retries < o.maxRetries {
		o.retries++
		retry := o.retries
		delay := schedule.Backoff(o.baseDelay, BackoffFactor, retry-1)
		o.state = Retrying
		o.slots.Schedule(retryKey, delay, o.process)
		o.mu.Unlock()
		o.logger.LogDebug("descriptor incomplete for %s, retry %d/%d in %v", location, retry, o.maxRetries, delay)
		return
	}

	o.state = Exhausted
	attempts := o.attempts
	o.wakeLocked()
	hook := o.hooks.OnExhausted
	o.mu.Unlock()
	o.logger.LogDebug("giving up on %s after %d attempts", location, attempts)
	if hook != nil {
		hook(work)
	}
}

// Navigate discards the current page view when location differs from the
// one being processed, and schedules a fresh pass after the settling delay
// if the new location is a listing page.
func (o *Orchestrator) Navigate(location string) {
	o.mu.Lock()
	if o.unloaded || location == o.location {
		o.mu.Unlock()
		return
	}
	o.resetLocked(location)
	if o.qualifies(location) {
		o.slots.Schedule(settleKey, o.settleDelay, o.process)
	}
	hook := o.hooks.OnReset
	o.mu.Unlock()

	o.logger.LogDebug("navigated to %s", location)
	if hook != nil {
		hook(location)
	}
}

// WatchLocation samples the page location every interval and treats any
// change as a navigation.
func (o *Orchestrator) WatchLocation(interval time.Duration) {
	var sample func()
	sample = func() {
		o.Navigate(o.page.Location())
		o.mu.Lock()
		unloaded := o.unloaded
		o.mu.Unlock()
		if !unloaded {
			o.slots.Schedule(locationKey, interval, sample)
		}
	}
	o.slots.Schedule(locationKey, interval, sample)
}

// Unload cancels every pending timer and stops all further processing.
func (o *Orchestrator) Unload() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unloaded {
		return
	}
	o.unloaded = true
	o.generation++
	o.slots.CancelAll()
	o.cancel()
	o.state = Idle
	o.inFlight = false
	o.descriptor = models.Descriptor{}
	o.wakeLocked()
}

func (o *Orchestrator) resetLocked(location string) {
	o.generation++
	o.slots.Cancel(retryKey)
	o.slots.Cancel(settleKey)
	o.location = location
	o.descriptor = models.Descriptor{}
	o.retries = 0
	o.attempts = 0
	o.inFlight = false
	o.state = Idle
	o.wakeLocked()
	o.settled = make(chan struct{})
	o.woken = false
}

func (o *Orchestrator) wakeLocked() {
	if !o.woken {
		close(o.settled)
		o.woken = true
	}
}

// Wait blocks until the current page view is Complete or Exhausted.
func (o *Orchestrator) Wait(ctx context.Context) (models.Descriptor, State, error) {
	for {
		o.mu.Lock()
		d, s := o.descriptor, o.state
		if s.Terminal() {
			o.mu.Unlock()
			return d, s, nil
		}
		if o.unloaded {
			o.mu.Unlock()
			return d, s, ErrUnloaded
		}
		ch := o.settled
		o.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return d, s, ctx.Err()
		}
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Descriptor() models.Descriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.descriptor
}

func (o *Orchestrator) Location() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.location
}

// Attempts is the number of extraction passes run for the current page view.
func (o *Orchestrator) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}
