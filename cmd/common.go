package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"vsixgrab/internal/config"
	"vsixgrab/internal/database"
	"vsixgrab/internal/dispatcher"
	"vsixgrab/internal/download"
	"vsixgrab/internal/marketplace"
	"vsixgrab/internal/models"
	"vsixgrab/internal/orchestrator"
	"vsixgrab/internal/page"
	"vsixgrab/internal/presentation"
)

type targetFlags struct {
	id       string
	version  string
	location string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "extension identifier (publisher.name) instead of a listing")
	cmd.Flags().StringVar(&f.version, "version", "", "version to use with --id (default: latest)")
	cmd.Flags().StringVar(&f.location, "location", "", "listing URL of a saved page (default: its canonical link)")
}

func newGallery(cfg config.Config) *marketplace.Client {
	return marketplace.New(
		marketplace.WithUserAgent(cfg.UserAgent),
		marketplace.WithHTTPClient(&http.Client{Timeout: cfg.DownloadTimeout}),
	)
}

func acceptAll(string) bool { return true }

// describe recovers a complete descriptor from a listing URL, a saved
// listing page, or an identifier.
func describe(ctx context.Context, cfg config.Config, args []string, f targetFlags) (models.Descriptor, error) {
	if f.id != "" {
		if f.version == "" {
			return newGallery(cfg).LatestVersion(ctx, f.id)
		}
		d := models.Descriptor{}
		if !d.SetIdentifier(f.id) {
			return d, fmt.Errorf("%w: identifier %q", models.ErrMalformedInput, f.id)
		}
		if !d.SetVersion(f.version) {
			return d, fmt.Errorf("%w: version %q", models.ErrMalformedInput, f.version)
		}
		return d, nil
	}

	if len(args) == 0 {
		return models.Descriptor{}, fmt.Errorf("%w: pass a listing URL, a saved page or --id", models.ErrMalformedInput)
	}
	target := args[0]

	if _, err := os.Stat(target); err != nil {
		return page.NewContent(newGallery(cfg)).Extract(ctx, target)
	}

	o := orchestrator.New(page.NewFile(target, f.location), orchestrator.WithQualifier(acceptAll))
	defer o.Unload()
	o.Start()
	d, state, err := o.Wait(ctx)
	if err != nil {
		return d, err
	}
	if state != orchestrator.Complete {
		return d, fmt.Errorf("%w: %s", models.ErrIncompleteData, target)
	}
	return d, nil
}

func openDatabase(cfg config.Config) (*database.Database, error) {
	db, err := database.Open(cfg.DBPath, cfg.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}

func newManager(cfg config.Config, db *database.Database) *download.Manager {
	return download.NewManager(cfg.DownloadDir,
		download.WithHTTPClient(&http.Client{Timeout: cfg.DownloadTimeout}),
		download.WithUserAgent(cfg.UserAgent),
		download.WithRecorder(db),
	)
}

func newDispatcher(downloader dispatcher.Downloader, notifier *presentation.Notifier) *dispatcher.Dispatcher {
	return dispatcher.New(downloader, dispatcher.SystemClipboard{}, dispatcher.BrowserOpener{},
		dispatcher.WithNotifier(notifier))
}

func outcomeError(o dispatcher.Outcome) error {
	if o.OK() {
		return nil
	}
	if o.Err != nil {
		return fmt.Errorf("%s: %w", o.Kind, o.Err)
	}
	return fmt.Errorf("%s", o.Kind)
}
