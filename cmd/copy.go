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
	copyTarget targetFlags
	copyRemote bool
)

var copyCmd = &cobra.Command{
	Use:   "copy [LISTING_URL | PAGE_FILE]",
	Short: "Copies both download URLs to the clipboard",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCopy(cmd.Context(), args)
	},
}

func init() {
	copyTarget.register(copyCmd)
	copyCmd.Flags().BoolVar(&copyRemote, "remote", false, "copy through a running 'vsixgrab serve'")
	rootCmd.AddCommand(copyCmd)
}

func runCopy(ctx context.Context, args []string) error {
	cfg := config.GetConfig()
	notifier := presentation.NewNotifier(nil)

	desc, err := describe(ctx, cfg, args, copyTarget)
	if err != nil {
		return fmt.Errorf("error reading extension information: %w", err)
	}

	if copyRemote {
		resp, err := bridge.NewClient(cfg.BridgeURL).Request(ctx, bridge.TargetBackground, bridge.Message{
			Action:     bridge.ActionCopy,
			Descriptor: &desc,
		})
		if err != nil {
			return fmt.Errorf("error contacting bridge: %w", err)
		}
		if err := resp.Err(); err != nil {
			return fmt.Errorf("error copying URLs: %w", err)
		}
		notifier.Info("Download URLs for %s copied by bridge", desc.Identifier)
		return nil
	}

	// copying never downloads, so no database is opened
	o := newDispatcher(nil, notifier).Dispatch(ctx, desc, models.ActionCopyURL, nil)
	return outcomeError(o)
}
