// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bot-catalog/pkg/types"
)

func setDefaults() {
	def := types.DefaultBuildConfig(".")
	viper.SetDefault("variant", string(def.Variant))
	viper.SetDefault("state_dir", def.StateDir)
	viper.SetDefault("history", def.History)
	viper.SetDefault("timeout", "0s")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")
}

// loadBuildConfig resolves the build configuration from flags, environment,
// config file and defaults. Per-variant keys in the config file override the
// built-in paths field by field.
func loadBuildConfig() (types.BuildConfig, error) {
	root, err := filepath.Abs(viper.GetString("root"))
	if err != nil {
		return types.BuildConfig{}, fmt.Errorf("resolving root: %w", err)
	}

	cfg := types.DefaultBuildConfig(root)
	cfg.Variant = types.Variant(viper.GetString("variant"))
	cfg.StateDir = viper.GetString("state_dir")
	cfg.History = viper.GetBool("history")
	cfg.Timeout = viper.GetDuration("timeout")
	cfg.Interpreters = viper.GetStringSlice("interpreters")

	for name, v := range cfg.Variants {
		cfg.Variants[name] = overrideVariant(string(name), v)
	}
	if _, ok := cfg.Variants[cfg.Variant]; !ok && viper.IsSet("variants."+string(cfg.Variant)) {
		cfg.Variants[cfg.Variant] = overrideVariant(string(cfg.Variant), types.VariantConfig{})
	}

	if _, ok := cfg.Selected(); !ok {
		return types.BuildConfig{}, fmt.Errorf("unknown variant %q: use merge or generate, or define variants.%s in the config file",
			cfg.Variant, cfg.Variant)
	}
	return cfg, nil
}

func overrideVariant(name string, v types.VariantConfig) types.VariantConfig {
	key := func(field string) string { return "variants." + name + "." + field }
	if viper.IsSet(key("script")) {
		v.Script = viper.GetString(key("script"))
	}
	if viper.IsSet(key("output")) {
		v.Output = viper.GetString(key("output"))
	}
	if viper.IsSet(key("destination")) {
		v.Destination = viper.GetString(key("destination"))
	}
	if viper.IsSet(key("list_field")) {
		v.ListField = viper.GetString(key("list_field"))
	}
	if viper.IsSet(key("watch")) {
		v.Watch = viper.GetStringSlice(key("watch"))
	}
	return v
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBuildConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
