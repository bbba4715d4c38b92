package main

import (
	"strings"

	"github.com/spf13/cobra"
	"instaprofiler/pkg/audit"
	"instaprofiler/pkg/ui"
)

var followsFlags scrapeFlags

var followsCmd = &cobra.Command{
	Use:   "follows <username>...",
	Short: "Scrape and reconcile the follow lists of accounts",
	Long: `Scrape the follows and followers of each account, compare them with the
state stored by the previous scrape and write the changes to the database.

Private accounts the session does not follow are recorded without scraping.
Accounts that do not exist or keep failing are reported and skipped; any
other error stops the command.`,
	Example: `  # Audit one account
  instaprofiler follows alice

  # Only the follows side, skipping accounts that follow more than 5000 users
  instaprofiler follows alice bob --followers=false --max-follow-amount 5000

  # Archive the raw snapshot next to the database rows
  instaprofiler follows alice --snapshot-dir ./snapshots`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFollows,
}

func init() {
	rootCmd.AddCommand(followsCmd)
	followsFlags.register(followsCmd)
}

func runFollows(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, followsFlags.values(cmd), true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := a.auditOptions()
	var results []*audit.Result
	failed := false

	for _, name := range args {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		res, err := a.auditor.Audit(ctx, audit.ByName(name), opts)
		if res.Account.Username == "" {
			res.Account.Username = name
		}
		results = append(results, res)
		if err != nil {
			failed = true
			if !audit.Continuable(err) {
				ui.RenderResults(cmd.OutOrStdout(), results)
				return err
			}
		}
	}

	ui.RenderResults(cmd.OutOrStdout(), results)
	if failed {
		return errAccountsFailed
	}
	return nil
}
