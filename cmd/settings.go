package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"vsixgrab/internal/config"
	"vsixgrab/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Shows or changes stored preferences",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [KEY...]",
	Short: "Prints stored preferences (default: autoInject)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSettingsGet(cmd.Context(), args)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY=VALUE...",
	Short: "Stores preferences; values are parsed as JSON when possible",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSettingsSet(cmd.Context(), args)
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsGet(ctx context.Context, keys []string) error {
	db, err := openDatabase(config.GetConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	defaults := map[string]any{settings.KeyAutoInject: true}
	if len(keys) > 0 {
		defaults = make(map[string]any, len(keys))
		for _, key := range keys {
			defaults[key] = nil
		}
		if _, ok := defaults[settings.KeyAutoInject]; ok {
			defaults[settings.KeyAutoInject] = true
		}
	}

	values, err := settings.New(db).Get(ctx, defaults)
	if err != nil {
		return fmt.Errorf("error reading settings: %w", err)
	}

	names := make([]string, 0, len(values))
	for key := range values {
		names = append(names, key)
	}
	sort.Strings(names)

	rows := pterm.TableData{{"Key", "Value"}}
	for _, key := range names {
		encoded, _ := json.Marshal(values[key])
		rows = append(rows, []string{key, string(encoded)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// parseAssignments turns KEY=VALUE arguments into settings values.
func parseAssignments(args []string) (map[string]any, error) {
	partial := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		partial[key] = value
	}
	return partial, nil
}

func runSettingsSet(ctx context.Context, args []string) error {
	partial, err := parseAssignments(args)
	if err != nil {
		return err
	}

	db, err := openDatabase(config.GetConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := settings.New(db).Set(ctx, partial); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}
	pterm.Success.Printfln("Saved %d setting(s)", len(partial))
	return nil
}
