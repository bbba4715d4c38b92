package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"instaprofiler/pkg/audit"
	"instaprofiler/pkg/scraper"
	"instaprofiler/pkg/store"
	"instaprofiler/pkg/ui"
)

// mediaFlags are the flags shared by commands that scrape timelines.
type mediaFlags struct {
	maxMedia        int
	likers          bool
	likersThreshold int
	maxLikers       int
}

func (f *mediaFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.maxMedia, "max-media", 0, "scrape at most this many recent posts per account (0 means all)")
	fs.BoolVar(&f.likers, "likers", false, "also scrape the likers of each post")
	fs.IntVar(&f.likersThreshold, "likers-threshold", 0, "skip likers of posts with more likes than this (0 disables)")
	fs.IntVar(&f.maxLikers, "max-likers", 0, "collect at most this many likers per post (0 means all)")
}

func (f *mediaFlags) values(cmd *cobra.Command) map[string]interface{} {
	fs := cmd.Flags()
	out := make(map[string]interface{})
	if fs.Changed("max-media") {
		out["max-media"] = f.maxMedia
	}
	if fs.Changed("likers") {
		out["likers"] = f.likers
	}
	if fs.Changed("likers-threshold") {
		out["likers-threshold"] = f.likersThreshold
	}
	if fs.Changed("max-likers") {
		out["max-likers"] = f.maxLikers
	}
	return out
}

var (
	mediaScrapeFlags mediaFlags
	mediaGroupFlags  mediaFlags
	mediaGroupLimit  int
	mediaGroupNotify bool

	mediaNewDays    int
	mediaNewAccount string
	mediaNewLimit   int
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Scrape timelines and report new posts",
}

var mediaScrapeCmd = &cobra.Command{
	Use:   "scrape <username>...",
	Short: "Scrape the recent posts of accounts and record new ones",
	Long: `Scrape the recent posts of each account and store them. Posts not seen
by an earlier scrape are reported as new. With --likers the likers of each
post are stored too and likes not seen before are counted.

Private accounts the session does not follow are recorded without scraping.`,
	Example: `  # Record alice's latest 50 posts
  instaprofiler media scrape alice --max-media 50

  # Include likers, skipping posts with more than 1000 likes
  instaprofiler media scrape alice --likers --likers-threshold 1000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMediaScrape,
}

var mediaGroupCmd = &cobra.Command{
	Use:   "group <group>",
	Short: "Scrape the timelines of every member of a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaGroup,
}

var mediaNewCmd = &cobra.Command{
	Use:   "new",
	Short: "List stored posts published recently",
	Example: `  # Posts from the last three days, newest discoveries first
  instaprofiler media new --days 3`,
	Args: cobra.NoArgs,
	RunE: runMediaNew,
}

func init() {
	rootCmd.AddCommand(mediaCmd)
	mediaCmd.AddCommand(mediaScrapeCmd, mediaGroupCmd, mediaNewCmd)

	mediaScrapeFlags.register(mediaScrapeCmd)
	mediaGroupFlags.register(mediaGroupCmd)
	mediaGroupCmd.Flags().IntVar(&mediaGroupLimit, "limit", 0, "scrape at most this many members (0 means all)")
	mediaGroupCmd.Flags().BoolVar(&mediaGroupNotify, "notify", false, "send a desktop notification when the run ends")

	mediaNewCmd.Flags().IntVar(&mediaNewDays, "days", 1, "only posts published within this many days (0 means all)")
	mediaNewCmd.Flags().StringVar(&mediaNewAccount, "account", "", "only posts of this username")
	mediaNewCmd.Flags().IntVar(&mediaNewLimit, "limit", 0, "list at most this many posts (0 means all)")
}

func (a *app) mediaOptions() scraper.MediaOptions {
	return scraper.MediaOptions{
		MaxMedia:        a.cfg.Media.MaxMedia,
		Likers:          a.cfg.Media.Likers,
		LikersThreshold: a.cfg.Media.LikersThreshold,
		MaxLikers:       a.cfg.Media.MaxLikers,
	}
}

func runMediaScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, mediaScrapeFlags.values(cmd), true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := a.mediaOptions()
	var results []*audit.MediaResult
	failed := false

	for _, name := range args {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		res, err := a.auditor.AuditMedia(ctx, audit.ByName(name), opts)
		if res.Account.Username == "" {
			res.Account.Username = name
		}
		results = append(results, res)
		if err != nil {
			failed = true
			if !audit.Continuable(err) {
				ui.RenderMediaResults(cmd.OutOrStdout(), results)
				return err
			}
		}
	}

	ui.RenderMediaResults(cmd.OutOrStdout(), results)
	if failed {
		return errAccountsFailed
	}
	return nil
}

func runMediaGroup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	group := args[0]

	a, err := openApp(ctx, mediaGroupFlags.values(cmd), true)
	if err != nil {
		return err
	}
	defer a.Close()

	progress := ui.NewGroupProgress(cmd.ErrOrStderr())
	report, runErr := audit.NewGroupRunner(a.auditor, a.store, nil, a.log).RunMedia(ctx, group, audit.MediaGroupOptions{
		Media:    a.mediaOptions(),
		Limit:    mediaGroupLimit,
		OnResult: progress.UpdateMedia,
	})
	progress.Summary()

	ui.RenderMediaGroupReport(cmd.OutOrStdout(), report)
	if mediaGroupNotify {
		ui.NewNotifier(cmd.ErrOrStderr()).GroupFinished(group, len(report.Results)-report.Failed(), report.Failed())
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed() > 0 {
		return errAccountsFailed
	}
	return nil
}

func runMediaNew(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, nil, false)
	if err != nil {
		return err
	}
	defer a.Close()

	q := store.MediaQuery{Limit: mediaNewLimit}
	if mediaNewDays > 0 {
		q.TakenSince = time.Now().UTC().AddDate(0, 0, -mediaNewDays)
	}
	if mediaNewAccount != "" {
		name := strings.TrimPrefix(mediaNewAccount, "@")
		id, err := a.store.UserIDByName(ctx, name)
		if err != nil {
			return fmt.Errorf("look up %s: %w", name, err)
		}
		q.OwnerUserID = id
	}

	media, err := a.store.ListMedia(ctx, q)
	if err != nil {
		return err
	}
	if len(media) == 0 {
		ui.PrintWarning(cmd.OutOrStdout(), "No posts found")
		return nil
	}
	ui.RenderMedia(cmd.OutOrStdout(), media)
	return nil
}
