package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/pkg/audit"
	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/reconcile"
	"instaprofiler/pkg/store"
)

func TestBar(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat(ProgressEmpty, 20)+"] 0/4", Bar(0, 4))
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 10)+strings.Repeat(ProgressEmpty, 10)+"] 2/4", Bar(2, 4))
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 20)+"] 4/4", Bar(4, 4))
	assert.Equal(t, "["+strings.Repeat(ProgressEmpty, 20)+"] 0/0", Bar(0, 0))
}

func TestGroupProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewGroupProgress(&buf)
	start := p.start
	p.now = func() time.Time { return start.Add(90 * time.Second) }

	p.Update(1, 2, &audit.Result{Account: models.User{Username: "alice"}, Status: audit.StatusSuccess})
	p.Update(2, 2, &audit.Result{Status: audit.StatusFailed})
	p.Summary()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "alice")
	assert.Contains(t, lines[0], "1/2")
	assert.Contains(t, lines[1], "?")
	assert.Contains(t, lines[1], "failed")
	assert.Contains(t, lines[2], "2 accounts in 1m30s, 1 failed")
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	RenderResults(&buf, []*audit.Result{
		{
			Account:      models.User{Username: "alice"},
			Status:       audit.StatusSuccess,
			Scraped:      models.Sides{Follows: true, Followers: true},
			NewFollows:   3,
			NewFollowers: 2,
		},
		{
			Account:    models.User{Username: "bob"},
			Status:     audit.StatusSuccess,
			Scraped:    models.Sides{Follows: true},
			Downgraded: models.Sides{Followers: true},
		},
		{
			Account:  models.User{Username: "ghost"},
			Status:   audit.StatusFailed,
			FailedIn: audit.StateResolveAccount,
			Err:      errs.ErrUserDoesNotExist,
		},
		nil,
	})

	out := buf.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "both")
	assert.Contains(t, out, "too many: skipped followers")
	assert.Contains(t, out, "RESOLVE_ACCOUNT: "+errs.ErrUserDoesNotExist.Error())
}

func TestRenderGroupReport(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	RenderGroupReport(&buf, &audit.GroupReport{
		Group: "friends",
		Results: []*audit.Result{
			{Account: models.User{Username: "alice"}, Status: audit.StatusSuccess},
			{Account: models.User{Username: "carol"}, Status: audit.StatusSkippedPrivate},
		},
		Skipped:  1,
		Started:  start,
		Finished: start.Add(2 * time.Second),
	})
	assert.Contains(t, buf.String(), "friends: 1 success, 1 private, 0 too many, 0 failed, 1 resumed, 2s")
}

func TestRenderMediaGroupReport(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	RenderMediaGroupReport(&buf, &audit.MediaGroupReport{
		Group: "friends",
		Results: []*audit.MediaResult{
			{Account: models.User{Username: "alice"}, Status: audit.StatusSuccess, Media: 4,
				NewMedia: []*models.Media{{ID: "m1"}, {ID: "m2"}}, NewLikes: 3},
			{Status: audit.StatusFailed, FailedIn: audit.StateResolveAccount, Err: errs.ErrUserDoesNotExist},
		},
		Started:  start,
		Finished: start.Add(time.Second),
	})
	out := buf.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "RESOLVE_ACCOUNT: "+errs.ErrUserDoesNotExist.Error())
	assert.Contains(t, out, "friends: 2 new posts, 1 failed, 1s")
}

func TestRenderMedia(t *testing.T) {
	var buf bytes.Buffer
	RenderMedia(&buf, []store.MediaRecord{{
		MediaID:       "m1",
		Shortcode:     "BxYz",
		MediaType:     models.MediaVideo,
		OwnerUserName: "alice",
		FirstSeenTS:   time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
		LikesAmount:   12,
	}})
	out := buf.String()
	assert.Contains(t, out, "https://www.instagram.com/p/BxYz/")
	assert.Contains(t, out, "video")
	assert.Contains(t, out, "2024-05-02 08:30")
}

func TestGroupProgressMedia(t *testing.T) {
	var buf bytes.Buffer
	p := NewGroupProgress(&buf)
	p.UpdateMedia(1, 1, &audit.MediaResult{Account: models.User{Username: "alice"}, Status: audit.StatusSuccess})
	assert.Contains(t, buf.String(), "alice")
	assert.Contains(t, buf.String(), "1/1")
}

func TestRenderMutual(t *testing.T) {
	var buf bytes.Buffer
	RenderMutual(&buf, []reconcile.MutualCount{
		{User: models.User{ID: "3", Username: "carol"}, Accounts: []string{"alice", "bob"}},
	})
	assert.Contains(t, buf.String(), "carol")
	assert.Contains(t, buf.String(), "alice, bob")
}

func TestRenderSnapshotUnscrapedSide(t *testing.T) {
	var buf bytes.Buffer
	RenderSnapshot(&buf, &models.FollowGraphSnapshot{
		User:    models.User{ID: "1", Username: "alice"},
		Follows: models.NewUserSet(models.User{ID: "2", Username: "bob"}),
		Scraped: models.Sides{Follows: true},
	})
	assert.Contains(t, buf.String(), "alice")
	assert.Contains(t, buf.String(), "-")
}

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifierGroupFinished(t *testing.T) {
	var buf bytes.Buffer
	sender := &recordingSender{err: errors.New("no display")}
	n := NewNotifierWithSender(&buf, sender)

	n.GroupFinished("friends", 4, 1)
	assert.Equal(t, []string{"instaprofiler: friends"}, sender.titles)
	assert.Equal(t, []string{"4 accounts audited, 1 failed"}, sender.messages)
	assert.Contains(t, buf.String(), "4 accounts audited, 1 failed")

	NewNotifierWithSender(&buf, nil).GroupFinished("friends", 2, 0)
	assert.Contains(t, buf.String(), "2 accounts audited")
}
