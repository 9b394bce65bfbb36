package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"vsixgrab/internal/config"
	"vsixgrab/internal/database"
	"vsixgrab/internal/utils"
)

var (
	historyIdentifier string
	historyPage       int
	historyLimit      int
	historyYes        bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists past downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runHistoryList(cmd.Context())
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [DOWNLOAD_ID]",
	Short: "Deletes one history entry, or all of them with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			return fmt.Errorf("pass a download id or --all")
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return runHistoryDelete(cmd.Context(), id)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyIdentifier, "id", "", "only show downloads of this extension")
	historyCmd.Flags().IntVar(&historyPage, "page", utils.DefaultPage, "page number")
	historyCmd.Flags().IntVar(&historyLimit, "limit", utils.DefaultLimit, "entries per page")

	historyDeleteCmd.Flags().Bool("all", false, "delete every history entry")
	historyDeleteCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "do not ask for confirmation")

	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(ctx context.Context) error {
	db, err := openDatabase(config.GetConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	limit := historyLimit
	if limit > utils.MaxPageSize {
		limit = utils.MaxPageSize
	}
	rows, total, err := db.ListDownloads(ctx, historyIdentifier, historyPage, limit)
	if err != nil {
		return fmt.Errorf("error reading history: %w", err)
	}
	if total == 0 {
		pterm.Info.Println("No downloads recorded")
		return nil
	}

	table := pterm.TableData{{"ID", "Extension", "Version", "Kind", "Status", "Size", "When"}}
	for _, rec := range database.ToDownloadRecords(rows) {
		status := string(rec.Status)
		if rec.Error != "" {
			status += ": " + rec.Error
		}
		table = append(table, []string{
			rec.ID, rec.Identifier, rec.Version, string(rec.Kind), status,
			fmt.Sprintf("%d", rec.Size), rec.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
		return err
	}
	pterm.Info.Printfln("%d of %d entries", len(rows), total)
	return nil
}

func runHistoryDelete(ctx context.Context, id string) error {
	db, err := openDatabase(config.GetConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	if id != "" {
		rec, err := db.GetDownloadByID(ctx, id)
		if err != nil {
			return fmt.Errorf("error reading history: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("download with ID %s not found", id)
		}
		fmt.Printf("Found history entry for deletion:\n")
		fmt.Printf("  ID: %s\n", rec.ID)
		fmt.Printf("  Extension: %s\n", rec.Identifier)
		fmt.Printf("  Version: %s\n", rec.Version)
		fmt.Printf("  File: %s\n", rec.FilePath)
	}

	if !historyYes && !confirm("Delete? Downloaded files are kept. (y/N): ") {
		fmt.Println("Deletion cancelled")
		return nil
	}

	if id != "" {
		if err := db.DeleteDownload(ctx, id); err != nil {
			return fmt.Errorf("error deleting history entry: %w", err)
		}
		return nil
	}

	n, err := db.DeleteAllDownloads(ctx)
	if err != nil {
		return fmt.Errorf("error clearing history: %w", err)
	}
	pterm.Success.Printfln("Deleted %d history entries", n)
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	var response string
	fmt.Scanln(&response)
	response = strings.TrimSpace(response)
	return response == "y" || response == "Y"
}
