// Package session runs one watched listing page: extraction with retries,
// navigation tracking, and keeping the download controls injected.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"vsixgrab/internal/models"
	"vsixgrab/internal/orchestrator"
	"vsixgrab/internal/page"
	"vsixgrab/internal/presentation"
	"vsixgrab/internal/schedule"
	"vsixgrab/internal/utils"
	"vsixgrab/internal/watcher"
)

const DefaultPollInterval = 250 * time.Millisecond

// AutoInjector tells whether controls may be injected without asking.
type AutoInjector interface {
	AutoInject(ctx context.Context) bool
}

type Config struct {
	Path     string
	Location string

	PollInterval time.Duration
	Clock        schedule.Clock
	Settings     AutoInjector
	Notifier     *presentation.Notifier

	OrchestratorOptions []orchestrator.Option
}

type Session struct {
	path     string
	page     *page.File
	shell    *presentation.Shell
	orch     *orchestrator.Orchestrator
	watcher  *watcher.Watcher
	settings AutoInjector
	notifier *presentation.Notifier
	poll     time.Duration
	logger   *utils.Logger

	ctx context.Context
}

func New(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = schedule.Real()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	s := &Session{
		path:     filepath.Clean(cfg.Path),
		page:     page.NewFile(cfg.Path, cfg.Location),
		shell:    presentation.NewShell(cfg.Path),
		settings: cfg.Settings,
		notifier: cfg.Notifier,
		poll:     poll,
		logger:   utils.NewNamedLogger("session"),
		ctx:      context.Background(),
	}
	s.watcher = watcher.New(clock, watcher.DebounceWindow, s.shell)

	opts := []orchestrator.Option{
		orchestrator.WithClock(clock),
		orchestrator.WithHooks(orchestrator.Hooks{
			OnComplete: s.onComplete,
			OnReset:    s.onReset,
		}),
	}
	s.orch = orchestrator.New(s.page, append(opts, cfg.OrchestratorOptions...)...)
	return s
}

func (s *Session) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

func (s *Session) Watcher() *watcher.Watcher {
	return s.watcher
}

func (s *Session) onComplete(d models.Descriptor) {
	if s.notifier != nil {
		s.notifier.Descriptor(d)
	}
	if s.settings != nil && !s.settings.AutoInject(s.ctx) {
		s.logger.LogInfo("auto-inject disabled, leaving %s untouched", s.path)
		return
	}

	s.shell.SetDescriptor(d)
	s.watcher.Arm()
	if s.shell.Present() {
		return
	}
	if err := s.shell.Assemble(); err != nil {
		s.logger.LogWarning("failed to inject download controls: %v", err)
	}
}

// onReset drops the controls of the previous listing along with its descriptor.
func (s *Session) onReset(location string) {
	s.watcher.Disarm()
	s.shell.SetDescriptor(models.Descriptor{})
	if err := s.shell.Remove(); err != nil {
		s.logger.LogWarning("failed to remove stale download controls: %v", err)
	}
}

// Start processes the page as it is now and begins sampling its location.
func (s *Session) Start() {
	s.orch.Start()
	s.orch.WatchLocation(s.poll)
}

// HandleChange reacts to one modification of the page file.
func (s *Session) HandleChange() {
	if err := s.page.Refresh(); err != nil {
		s.logger.LogDebug("page not readable yet: %v", err)
	}
	s.orch.Navigate(s.page.Location())
	s.watcher.Notify()
}

// Stop unloads the page view and cancels every pending timer.
func (s *Session) Stop() {
	s.watcher.Disarm()
	s.orch.Unload()
}

// Run watches the page file until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	// editors often replace the file, so watch its directory
	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	s.Start()
	defer s.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.HandleChange()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.LogWarning("file watcher error: %v", err)
		}
	}
}
