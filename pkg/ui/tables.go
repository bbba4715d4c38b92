package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"instaprofiler/pkg/audit"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/reconcile"
	"instaprofiler/pkg/store"
)

// NewTable returns a rounded table writer mirrored to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderResults prints one row per audited account.
func RenderResults(w io.Writer, results []*audit.Result) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Account", "Status", "Sides", "+Follows", "-Follows", "+Followers", "-Followers", "Events", "Note"})

	for _, r := range results {
		if r == nil {
			continue
		}
		name := r.Account.Username
		if name == "" {
			name = "?"
		}
		t.AppendRow(table.Row{
			name,
			string(r.Status),
			sidesLabel(r.Scraped),
			r.NewFollows,
			r.Unfollows,
			r.NewFollowers,
			r.LostFollowers,
			r.EventsInserted,
			note(r),
		})
	}
	t.Render()
}

// RenderGroupReport prints the member table and a footer with totals.
func RenderGroupReport(w io.Writer, report *audit.GroupReport) {
	RenderResults(w, report.Results)
	fmt.Fprintf(w, "%s: %d success, %d private, %d too many, %d failed, %d resumed, %s\n",
		report.Group,
		report.Count(audit.StatusSuccess),
		report.Count(audit.StatusSkippedPrivate),
		report.Count(audit.StatusSkippedTooMany),
		report.Count(audit.StatusFailed),
		report.Skipped,
		report.Finished.Sub(report.Started).Round(time.Millisecond),
	)
}

// RenderMediaResults prints one row per timeline audit.
func RenderMediaResults(w io.Writer, results []*audit.MediaResult) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Account", "Status", "Posts", "New posts", "New likes", "Note"})
	for _, r := range results {
		if r == nil {
			continue
		}
		name := r.Account.Username
		if name == "" {
			name = "?"
		}
		n := ""
		if r.Err != nil {
			n = fmt.Sprintf("%s: %v", r.FailedIn, r.Err)
		}
		t.AppendRow(table.Row{name, string(r.Status), r.Media, len(r.NewMedia), r.NewLikes, n})
	}
	t.Render()
}

// RenderMediaGroupReport prints the member table and a footer with totals.
func RenderMediaGroupReport(w io.Writer, report *audit.MediaGroupReport) {
	RenderMediaResults(w, report.Results)
	fmt.Fprintf(w, "%s: %d new posts, %d failed, %s\n",
		report.Group,
		len(report.NewMedia()),
		report.Failed(),
		report.Finished.Sub(report.Started).Round(time.Millisecond),
	)
}

// RenderMedia prints stored posts with their links.
func RenderMedia(w io.Writer, media []store.MediaRecord) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Account", "Type", "Taken", "Discovered", "Likes", "Comments", "Link"})
	for _, m := range media {
		taken := "-"
		if !m.TakenAtTS.IsZero() {
			taken = m.TakenAtTS.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			m.OwnerUserName,
			string(m.MediaType),
			taken,
			m.FirstSeenTS.Format("2006-01-02 15:04"),
			m.LikesAmount,
			m.CommentsAmount,
			PostURL(m.Shortcode),
		})
	}
	t.Render()
}

// PostURL links a post by its shortcode.
func PostURL(shortcode string) string {
	return "https://www.instagram.com/p/" + shortcode + "/"
}

// RenderMutual prints a mutual follow ranking.
func RenderMutual(w io.Writer, ranking []reconcile.MutualCount) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"#", "User", "Mutual with", "Accounts"})
	for i, m := range ranking {
		t.AppendRow(table.Row{i + 1, m.User.Username, m.Count(), strings.Join(m.Accounts, ", ")})
	}
	t.Render()
}

// RenderSnapshot prints the size of each side of a snapshot and its mutuals.
func RenderSnapshot(w io.Writer, snap *models.FollowGraphSnapshot) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Account", "Follows", "Followers", "Mutual", "Follows only", "Followers only"})
	t.AppendRow(table.Row{
		snap.User.Username,
		sideLen(snap.Scraped.Follows, snap.Follows),
		sideLen(snap.Scraped.Followers, snap.Followers),
		snap.Mutual().Len(),
		snap.FollowsOnly().Len(),
		snap.FollowersOnly().Len(),
	})
	t.Render()
}

func sideLen(scraped bool, s *models.UserSet) string {
	if !scraped {
		return "-"
	}
	return fmt.Sprint(s.Len())
}

func sidesLabel(s models.Sides) string {
	switch {
	case s.Follows && s.Followers:
		return "both"
	case s.Follows:
		return models.Following.String()
	case s.Followers:
		return models.Followers.String()
	default:
		return "-"
	}
}

func note(r *audit.Result) string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.FailedIn, r.Err)
	case r.Downgraded.Any():
		return "too many: skipped " + sidesLabel(r.Downgraded)
	default:
		return ""
	}
}
