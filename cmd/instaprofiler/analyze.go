package main

import (
	"errors"

	"github.com/spf13/cobra"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/reconcile"
	"instaprofiler/pkg/storage"
	"instaprofiler/pkg/ui"
)

var (
	mutualLimit  int
	mutualLatest bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze archived snapshots",
}

var mutualCmd = &cobra.Command{
	Use:   "mutual [snapshot.json]...",
	Short: "Rank users by how many scraped accounts they are mutual with",
	Long: `Rank users by the number of snapshot accounts they both follow and are
followed by. Only snapshots with both sides scraped are counted.

Snapshots are read from the given files, or with --latest the newest
snapshot of every account under the snapshot directory.`,
	Example: `  instaprofiler analyze mutual snapshots/alice/*.json snapshots/bob/*.json
  instaprofiler analyze mutual --latest --snapshot-dir ./snapshots --limit 20`,
	RunE: runMutual,
}

var showSnapshotCmd = &cobra.Command{
	Use:   "show <snapshot.json>",
	Short: "Summarize one archived snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, err := storage.Load(args[0])
		if err != nil {
			return err
		}
		ui.PrintInfo(cmd.OutOrStdout(), "Scrape", archived.ScrapeID+" "+archived.ScrapeTS.Format("2006-01-02 15:04:05 MST"))
		ui.RenderSnapshot(cmd.OutOrStdout(), archived.Snapshot)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(mutualCmd, showSnapshotCmd)

	mutualCmd.Flags().IntVar(&mutualLimit, "limit", 50, "show at most this many users (0 means all)")
	mutualCmd.Flags().BoolVar(&mutualLatest, "latest", false, "use the newest snapshot of every account in the snapshot directory")
}

func runMutual(cmd *cobra.Command, args []string) error {
	var snapshots []*models.FollowGraphSnapshot

	if mutualLatest {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if cfg.Output.SnapshotDir == "" {
			return errors.New("--latest needs a snapshot directory (--snapshot-dir or output.snapshot_dir)")
		}
		m, err := storage.NewManager(cfg.Output.SnapshotDir)
		if err != nil {
			return err
		}
		latest, err := m.Latest()
		if err != nil {
			return err
		}
		for _, a := range latest {
			snapshots = append(snapshots, a.Snapshot)
		}
	}

	for _, path := range args {
		archived, err := storage.Load(path)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, archived.Snapshot)
	}

	if len(snapshots) == 0 {
		return errors.New("no snapshots given")
	}

	ui.RenderMutual(cmd.OutOrStdout(), reconcile.RankMutualFollows(snapshots, mutualLimit))
	return nil
}
