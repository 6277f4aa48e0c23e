// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bot-catalog/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent data build runs",
	Long: `History lists the most recent data builds recorded in the state
directory, newest first, with their outcome, interpreter and record count.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 lists all)")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadBuildConfig()
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(cfg.Root, cfg.StateDir))
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Started", "Variant", "Outcome", "Reason", "Interpreter", "Exit", "Records", "Took"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			humanize.Time(r.StartedAt),
			r.Variant,
			r.Outcome,
			r.Reason,
			r.Interpreter,
			r.ExitCode,
			r.Records,
			r.Duration.Round(time.Millisecond),
		})
	}
	t.Render()
	return nil
}
