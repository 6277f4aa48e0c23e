// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bot-catalog/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the published catalog JSON",
	Long: `Report counts packages, categories and bots in the published catalog,
how many bots carry about, limits and example text, and which bots have no
link. A few sample bots are listed with their fields truncated.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("format", "table", "output format: table, json or yaml")
	reportCmd.Flags().String("file", "", "catalog JSON to summarize (default: the variant's destination)")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cfg, err := loadBuildConfig()
		if err != nil {
			return err
		}
		v, _ := cfg.Selected()
		path = v.Destination
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Root, path)
		}
	}

	c, err := report.Load(path)
	if err != nil {
		return err
	}

	s := report.Summarize(c)
	s.Path = path
	format, _ := cmd.Flags().GetString("format")
	return report.Write(os.Stdout, s, report.Format(format))
}
