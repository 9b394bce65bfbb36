package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vsixgrab/internal/config"
	"vsixgrab/internal/presentation"
	"vsixgrab/internal/session"
	"vsixgrab/internal/settings"
)

var watchLocation string

var watchCmd = &cobra.Command{
	Use:   "watch PAGE_FILE",
	Short: "Keeps download controls injected into a saved listing page",
	Long: `Watches an HTML file holding a Marketplace listing. Whenever the page settles
on a listing, the extension is identified and a block of download links is
injected into the file. The block is restored if the page is re-rendered
without it, and rebuilt when the page navigates to another listing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runWatch(cmd.Context(), args[0])
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchLocation, "location", "", "listing URL of the page (default: its canonical link)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(parent context.Context, path string) error {
	cfg := config.GetConfig()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("error opening page: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	s := session.New(session.Config{
		Path:         path,
		Location:     watchLocation,
		PollInterval: cfg.PollInterval,
		Settings:     settings.New(db),
		Notifier:     presentation.NewNotifier(nil),
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s. Press Ctrl+C to stop\n", path)
	return s.Run(ctx)
}
