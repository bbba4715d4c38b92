package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"instaprofiler/pkg/auth"
	"instaprofiler/pkg/config"
	"instaprofiler/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage instaprofiler configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (INSTAPROFILER_*)
  - .env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to .instaprofiler.yaml, or to the path
given with --config. Existing files are not overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration with cookies masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the merged configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".instaprofiler.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.PrintSuccess(out, "Configuration file created: "+path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Store a session with 'instaprofiler auth login'")
	fmt.Fprintln(out, "2. Run 'instaprofiler config validate' to check the configuration")
	fmt.Fprintln(out, "3. Audit an account with 'instaprofiler follows <username>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	masked := (&auth.Session{SessionID: cfg.Instagram.SessionID, CSRFToken: cfg.Instagram.CSRFToken}).Masked()
	if display.Instagram.SessionID != "" {
		display.Instagram.SessionID = masked.SessionID
	}
	if display.Instagram.CSRFToken != "" {
		display.Instagram.CSRFToken = masked.CSRFToken
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Load validates and collects every problem
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	if err := cfg.RequireSession(); err != nil {
		ui.PrintWarning(out, "No session in configuration; a stored session will be used: "+err.Error())
	}
	if cfg.Output.SnapshotDir != "" {
		if err := os.MkdirAll(cfg.Output.SnapshotDir, 0755); err != nil {
			return fmt.Errorf("cannot create snapshot directory: %w", err)
		}
	}

	ui.PrintSuccess(out, "Configuration is valid")
	ui.PrintInfo(out, "Database", cfg.Database.Driver+" "+cfg.Database.DSN)
	ui.PrintInfo(out, "Rate limit", fmt.Sprintf("%d requests/minute (%s)", cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Strategy))
	ui.PrintInfo(out, "Page retries", fmt.Sprintf("%d every %s", cfg.Scrape.MaxRetries, cfg.Scrape.RetryDelay))
	ui.PrintInfo(out, "Log level", cfg.Logging.Level)
	return nil
}
