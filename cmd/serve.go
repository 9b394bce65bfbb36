package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vsixgrab/internal/bridge"
	"vsixgrab/internal/config"
	"vsixgrab/internal/page"
	"vsixgrab/internal/presentation"
	"vsixgrab/internal/settings"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the message bridge",
	Long: `Starts the local HTTP bridge that performs downloads, clipboard writes and
settings access on behalf of page-side clients, and extracts listings on request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.GetConfig()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	manager := newManager(cfg, db)
	srv := bridge.New(
		newDispatcher(manager, presentation.NewNotifier(nil)),
		manager,
		settings.New(db),
		bridge.WithContent(page.NewContent(newGallery(cfg))),
	)
	addr := fmt.Sprintf("%s:%d", cfg.BridgeHost, cfg.BridgePort)

	fmt.Printf("Bridge started. Messages are accepted at: http://%s/bridge/{content,background}\n", addr)
	fmt.Println("Press Ctrl+C to stop the server")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fmt.Printf("\nSignal received: %v. Stopping server...\n", sig)
	case err := <-errChan:
		return fmt.Errorf("server start error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		fmt.Printf("Error during server shutdown: %v\n", err)
	}
	return err
}
