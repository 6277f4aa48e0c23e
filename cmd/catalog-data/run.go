// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bot-catalog/internal/databuild"
	"github.com/pdiddy/bot-catalog/internal/history"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversion script and publish the catalog JSON",
	Long: `Run invokes the variant's conversion script with the first Python
interpreter that succeeds (python3 then python; python first on Windows),
validates the JSON it wrote and atomically replaces the published file.

A script that exits non-zero is tolerated when its output is valid. Missing
output or an empty package list is a clean skip and leaves the published
file untouched.

With --watch the build runs again whenever the variant's watch paths change.`,
	RunE: runBuild,
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("watch", false, "rebuild when the source documents change")
	cmd.Flags().Bool("no-history", false, "do not record this run in the history ledger")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadBuildConfig()
	if err != nil {
		return err
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	opts := []databuild.Option{databuild.WithLogger(logger.With("variant", string(cfg.Variant)))}
	if cfg.History && !noHistory {
		store, err := history.Open(filepath.Join(cfg.Root, cfg.StateDir))
		if err != nil {
			logger.Warn("run history unavailable", "error", err)
		} else {
			defer store.Close()
			opts = append(opts, databuild.WithRecorder(store))
		}
	}

	o, err := databuild.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return o.Watch(ctx)
	}

	if _, err := o.Run(ctx); err != nil {
		return reportedError{err}
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("variant", "merge", "build variant: merge (update_from_docx.py) or generate (generate_new_bots_json.py)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-interpreter timeout for the conversion script (0 disables)")
	_ = viper.BindPFlag("variant", rootCmd.PersistentFlags().Lookup("variant"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	addBuildFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
