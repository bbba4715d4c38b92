package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"instaprofiler/pkg/ui"
)

var (
	// Version information
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	dbDriver    string
	dbDSN       string
	snapshotDir string
	sessionID   string
	csrfToken   string
	accountName string
	quiet       bool
)

// errAccountsFailed makes the process exit 1 after the report is printed.
var errAccountsFailed = errors.New("one or more accounts failed")

var rootCmd = &cobra.Command{
	Use:   "instaprofiler",
	Short: "Track who Instagram accounts follow and who follows them",
	Long: `instaprofiler scrapes the follow lists of Instagram accounts, compares them
with the previous scrape and records the differences in a SQL database:

  - follows rows with per-direction first seen, last seen and unfollow times
  - follow_events rows for every new follow and unfollow
  - user groups that are audited together, least recently scraped first

A logged-in web session is required. Store one with 'instaprofiler auth login'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logLevel = "error"
		}
		if !quiet && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo(cmd.ErrOrStderr())
		}
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errAccountsFailed) {
			ui.PrintError(os.Stderr, "error", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is ./.instaprofiler.yaml or ~/.config/instaprofiler/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&dbDriver, "db-driver", "", "database driver (sqlite, pgx)")
	pf.StringVar(&dbDSN, "db", "", "database DSN or sqlite file")
	pf.StringVar(&snapshotDir, "snapshot-dir", "", "archive scraped snapshots as JSON under this directory")
	pf.StringVar(&sessionID, "session-id", "", "Instagram sessionid cookie")
	pf.StringVar(&csrfToken, "csrf-token", "", "Instagram csrftoken cookie")
	pf.StringVarP(&accountName, "account", "a", "", "use the stored session of this account")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only log errors and skip the banner")

	rootCmd.SetVersionTemplate(`instaprofiler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
