package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"instaprofiler/pkg/audit"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/store"
	"instaprofiler/pkg/ui"
)

var (
	groupFlags  scrapeFlags
	groupLimit  int
	groupResume bool
	groupNotify bool
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage and audit user groups",
}

var groupRunCmd = &cobra.Command{
	Use:   "run <group>",
	Short: "Audit every member of a group",
	Long: `Audit the members of a group one after another, least recently scraped
first. Members that no longer exist or exhaust their retry budget are
reported and the run continues. Progress is checkpointed so an interrupted
run can continue with --resume.`,
	Example: `  # Audit the ten most stale members
  instaprofiler group run friends --limit 10

  # Continue after an interruption
  instaprofiler group run friends --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runGroup,
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group> <username>...",
	Short: "Resolve accounts and add them to a group",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGroupAdd,
}

var groupListCmd = &cobra.Command{
	Use:   "list <group>",
	Short: "List group members in audit order",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupList,
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupRunCmd, groupAddCmd, groupListCmd)

	groupFlags.register(groupRunCmd)
	groupRunCmd.Flags().IntVar(&groupLimit, "limit", 0, "audit at most this many members (0 means all)")
	groupRunCmd.Flags().BoolVar(&groupResume, "resume", false, "skip members finished by an interrupted run")
	groupRunCmd.Flags().BoolVar(&groupNotify, "notify", false, "send a desktop notification when the run ends")
}

func runGroup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	group := args[0]

	a, err := openApp(ctx, groupFlags.values(cmd), true)
	if err != nil {
		return err
	}
	defer a.Close()

	cp, err := a.checkpoints(group)
	if err != nil {
		return err
	}

	progress := ui.NewGroupProgress(cmd.ErrOrStderr())
	opts := audit.GroupOptions{
		Audit:    a.auditOptions(),
		Limit:    groupLimit,
		Resume:   groupResume,
		OnResult: progress.Update,
	}
	report, runErr := audit.NewGroupRunner(a.auditor, a.store, cp, a.log).Run(ctx, group, opts)
	progress.Summary()

	ui.RenderGroupReport(cmd.OutOrStdout(), report)
	if groupNotify {
		ui.NewNotifier(cmd.ErrOrStderr()).GroupFinished(group, len(report.Results)-report.Count(audit.StatusFailed), report.Count(audit.StatusFailed))
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed() {
		return errAccountsFailed
	}
	return nil
}

func runGroupAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	group := args[0]

	a, err := openApp(ctx, nil, true)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := resolveAll(ctx, a, args[1:])
	if err != nil {
		return err
	}
	if err := a.store.AddGroupMembers(ctx, group, users...); err != nil {
		return err
	}

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Added to %s: %s", group, strings.Join(names, ", ")))
	return nil
}

func resolveAll(ctx context.Context, a *app, names []string) ([]models.User, error) {
	users := make([]models.User, 0, len(names))
	for _, name := range names {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		u, err := a.scraper.ResolveUser(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func runGroupList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, nil, false)
	if err != nil {
		return err
	}
	defer a.Close()

	members, err := a.store.GroupMembers(ctx, args[0], store.GroupQuery{})
	if err != nil {
		return err
	}

	t := ui.NewTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"User ID", "Username", "Follows", "Last scrape"})
	for _, m := range members {
		follows, last := "-", "never"
		if m.FollowsAmount != nil {
			follows = fmt.Sprint(*m.FollowsAmount)
		}
		if m.LastScrape != nil {
			last = m.LastScrape.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{m.UserID, m.UserName, follows, last})
	}
	t.Render()
	return nil
}
