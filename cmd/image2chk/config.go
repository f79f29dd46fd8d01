package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"image2chk/pkg/config"
	errs "image2chk/pkg/errors"
	"image2chk/pkg/storage"
	"image2chk/pkg/ui"
)

// configCmd groups the configuration subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage image2chk configuration files.

Configuration is resolved from, highest priority first:
  - Command line flags
  - Environment variables (IMAGE2CHK_*)
  - .env files
  - Configuration file (YAML or TOML)
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default configuration to .image2chk.yaml, or to the path given
with --config. A .toml extension selects TOML.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".image2chk.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return errs.New(errs.ErrorTypeConfig, "init", path, errors.New("file already exists"))
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return errs.New(errs.ErrorTypeConfig, "init", path, err)
	}

	ui.PrintBanner()
	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return errs.New(errs.ErrorTypeConfig, "load", configFile, err)
	}

	data, err := cfg.Marshal(configFile)
	if err != nil {
		return errs.New(errs.ErrorTypeConfig, "show", configFile, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return errs.New(errs.ErrorTypeConfig, "validate", configFile, err)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("image", cfg.Convert.Image)
	ui.PrintInfo("template", cfg.Convert.Template)
	ui.PrintInfo("threshold", cfg.Convert.Threshold)
	ui.PrintInfo("output", storage.FormatOutput(cfg.Convert.Stub, "", cfg.Output.Extension))
	ui.PrintInfo("log level", cfg.Logging.Level)
	return nil
}
