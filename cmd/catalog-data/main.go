// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the catalog-data CLI. It rebuilds the
// bot catalog JSON from the Word documents and publishes it for the web
// front end.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bot-catalog/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built from configuration before any subcommand runs.
var logger = logging.Discard()

// reportedError wraps errors that have already been logged, so main only
// sets the exit status.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// rootCmd is the base command for the catalog-data CLI.
var rootCmd = &cobra.Command{
	Use:   "catalog-data",
	Short: "Build and publish the bot catalog JSON",
	Long: `catalog-data runs the catalog conversion script, validates the JSON it
writes and publishes it to the web front end's public/ directory.

Without a subcommand it runs one data build for the configured variant.
Exit status is 0 when the catalog was published or there was nothing new
to publish, and 1 when the output was malformed or could not be written.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{
			Level:  viper.GetString("log_level"),
			Format: viper.GetString("log_format"),
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	RunE: runBuild,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./catalog-data.yaml or ~/.config/catalog-data/config.yaml)")
	rootCmd.PersistentFlags().String("root", ".", "repository root; scripts run from here and paths resolve against it")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")

	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	addBuildFlags(rootCmd)
}

func initConfig() {
	root, _ := rootCmd.PersistentFlags().GetString("root")

	// Values already in the environment win over .env, as with the vite dev server.
	if err := godotenv.Load(filepath.Join(root, ".env")); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from", filepath.Join(root, ".env"))
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("catalog-data")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(root)

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "catalog-data"))
		}
	}

	setDefaults()

	viper.SetEnvPrefix("CATALOG_DATA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
