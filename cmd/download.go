package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vsixgrab/internal/bridge"
	"vsixgrab/internal/config"
	"vsixgrab/internal/models"
	"vsixgrab/internal/presentation"
)

var (
	downloadTarget targetFlags
	downloadKind   string
	downloadRemote bool
)

var downloadCmd = &cobra.Command{
	Use:   "download [LISTING_URL | PAGE_FILE]",
	Short: "Downloads an extension package from a Marketplace listing",
	Long: `Reads the listing (a Marketplace URL, a saved HTML page, or --id) and downloads
the .vsix (default) or .vsixpackage into the download directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runDownload(cmd.Context(), args)
	},
}

func init() {
	downloadTarget.register(downloadCmd)
	downloadCmd.Flags().StringVar(&downloadKind, "kind", string(models.KindVSIX), "package kind: vsix or vsixpackage")
	downloadCmd.Flags().BoolVar(&downloadRemote, "remote", false, "hand the download to a running 'vsixgrab serve'")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(ctx context.Context, args []string) error {
	cfg := config.GetConfig()
	notifier := presentation.NewNotifier(nil)

	action := models.Action(downloadKind)
	if kind, purpose, ok := action.Request(); !ok || purpose != models.PurposeDownload || !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", models.ErrMalformedInput, downloadKind)
	}

	desc, err := describe(ctx, cfg, args, downloadTarget)
	if err != nil {
		return fmt.Errorf("error reading extension information: %w", err)
	}
	notifier.Descriptor(desc)

	if downloadRemote {
		resp, err := bridge.NewClient(cfg.BridgeURL).Request(ctx, bridge.TargetBackground, bridge.Message{
			Action:        bridge.ActionDownload,
			Descriptor:    &desc,
			PackageAction: action,
		})
		if err != nil {
			return fmt.Errorf("error contacting bridge: %w", err)
		}
		if err := resp.Err(); err != nil {
			return fmt.Errorf("error downloading extension: %w", err)
		}
		notifier.Info("Download %s handed to bridge", resp.DownloadID)
		return nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	o := newDispatcher(newManager(cfg, db), notifier).Dispatch(ctx, desc, action, nil)
	return outcomeError(o)
}
