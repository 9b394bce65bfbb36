package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vsixgrab/internal/config"
	"vsixgrab/internal/presentation"
)

var urlsTarget targetFlags

var urlsCmd = &cobra.Command{
	Use:   "urls [LISTING_URL | PAGE_FILE]",
	Short: "Prints the extension fields and both download URLs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runURLs(cmd.Context(), args)
	},
}

func init() {
	urlsTarget.register(urlsCmd)
	rootCmd.AddCommand(urlsCmd)
}

func runURLs(ctx context.Context, args []string) error {
	desc, err := describe(ctx, config.GetConfig(), args, urlsTarget)
	if err != nil {
		return fmt.Errorf("error reading extension information: %w", err)
	}
	presentation.NewNotifier(nil).Descriptor(desc)
	return nil
}
