package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/internal/igtest"
	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/scraper"
	"instaprofiler/pkg/store"
)

func timelinePost(id string, owner models.User) *models.Media {
	return &models.Media{
		ID:          id,
		Shortcode:   "sc" + id,
		Type:        models.MediaPicture,
		TakenAt:     time.Date(2024, 5, 30, 18, 0, 0, 0, time.UTC),
		Owner:       owner,
		LikesAmount: 2,
	}
}

func newMediaIDs(res *MediaResult) []string {
	ids := make([]string, 0, len(res.NewMedia))
	for _, m := range res.NewMedia {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestAuditMediaDetectsNewPostsAndLikes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.srv.AddAccount(alice)
	m1, m2, m3 := timelinePost("m1", alice), timelinePost("m2", alice), timelinePost("m3", alice)
	h.srv.SetMedia(alice.ID, m1, m2)
	h.srv.SetLikers("scm1", bob)
	opts := scraper.MediaOptions{Likers: true}

	res, err := h.auditor.AuditMedia(ctx, ByName("alice"), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, []State{StateStart, StateResolveAccount, StateScrape, StateReconcile, StatePersist, StateCommit, StateDone}, res.Trace)
	assert.Equal(t, 2, res.Media)
	assert.Equal(t, []string{"m1", "m2"}, newMediaIDs(res))
	assert.Equal(t, 1, res.NewLikes)
	assert.Equal(t, "scrape-1", res.ScrapeID)

	h.now = ts2
	h.srv.SetMedia(alice.ID, m3, m1, m2)
	h.srv.SetLikers("scm1", bob, carol)

	res, err = h.auditor.AuditMedia(ctx, ByName("alice"), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Media)
	assert.Equal(t, []string{"m3"}, newMediaIDs(res))
	assert.Equal(t, 1, res.NewLikes, "carol is the only new liker")
	assert.Equal(t, 3, res.LikersScraped)

	assert.Equal(t, 3, countRows(t, h.store, store.TableMedia))
	assert.Equal(t, 2, countRows(t, h.store, store.TableMediaLikers))

	media, err := h.store.ListMedia(ctx, store.MediaQuery{OwnerUserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, media, 3)
	assert.Equal(t, "m3", media[0].MediaID)
	assert.True(t, ts2.Equal(media[0].FirstSeenTS))
	for _, m := range media[1:] {
		assert.True(t, ts1.Equal(m.FirstSeenTS), "%s keeps its first sighting", m.MediaID)
		assert.True(t, ts2.Equal(m.ScrapeTS))
	}

	user, err := h.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, ts2, user.LatestTS)
	assert.True(t, h.log.HasMessage("new post"))
}

func TestAuditMediaWithoutLikers(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount(alice)
	h.srv.SetMedia(alice.ID, timelinePost("m1", alice))
	h.srv.SetLikers("scm1", bob)

	res, err := h.auditor.AuditMedia(context.Background(), ByName("alice"), scraper.MediaOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, newMediaIDs(res))
	assert.Zero(t, res.NewLikes)
	assert.Zero(t, h.srv.Requests(igtest.LikersKey("scm1")))
	assert.Zero(t, countRows(t, h.store, store.TableMediaLikers))
}

func TestAuditMediaPrivateAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	hidden := models.User{ID: "9", Username: "hidden", IsPrivate: true}
	h.srv.AddAccount(hidden)
	h.srv.SetMedia(hidden.ID, timelinePost("m1", hidden))

	res, err := h.auditor.AuditMedia(ctx, ByName("hidden"), scraper.MediaOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedPrivate, res.Status)
	assert.Equal(t, []State{StateStart, StateResolveAccount, StatePrivateSkip, StatePersist, StateCommit, StateDone}, res.Trace)
	assert.Zero(t, h.srv.Requests(igtest.MediaKey("9")))
	assert.Zero(t, countRows(t, h.store, store.TableMedia))

	user, err := h.store.GetUser(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, ts1, user.LatestTS)
}

func TestAuditMediaRetryExhaustionWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount(alice)
	h.srv.SetMedia(alice.ID, timelinePost("m1", alice))
	h.srv.Throttle(igtest.MediaKey(alice.ID), 100)

	res, err := h.auditor.AuditMedia(context.Background(), ByName("alice"), scraper.MediaOptions{})
	require.ErrorIs(t, err, errs.ErrMaxRetriesReached)
	assert.True(t, Continuable(err))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, StateScrape, res.FailedIn)
	assert.Equal(t, 3, h.srv.Requests(igtest.MediaKey(alice.ID)))
	assert.Zero(t, countRows(t, h.store, store.TableMedia))
	assert.Zero(t, countRows(t, h.store, store.TableUsers))
}

type followOnlyScraper struct{}

func (followOnlyScraper) ResolveUser(context.Context, string) (models.User, error) {
	return alice, nil
}

func (followOnlyScraper) Scrape(context.Context, []models.User, models.Sides) (*models.FollowScrape, error) {
	return nil, nil
}

func TestAuditMediaRequiresMediaScraper(t *testing.T) {
	h := newHarness(t)
	a := New(Config{Scraper: followOnlyScraper{}, Store: h.store})

	res, err := a.AuditMedia(context.Background(), ByName("alice"), scraper.MediaOptions{})
	assert.ErrorIs(t, err, ErrNoMediaScraper)
	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, Continuable(err))
}

func TestGroupRunMedia(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.srv.AddAccount(alice)
	h.srv.AddAccount(dave)
	h.srv.SetMedia(alice.ID, timelinePost("m1", alice))
	h.srv.SetMedia(dave.ID, timelinePost("m2", dave), timelinePost("m3", dave))
	ghost := models.User{ID: "66", Username: "ghost"}
	require.NoError(t, h.store.AddGroupMembers(ctx, "friends", alice, dave, ghost))

	_, err := h.auditor.AuditMedia(ctx, ByName("alice"), scraper.MediaOptions{})
	require.NoError(t, err)

	var progress [][2]int
	report, err := NewGroupRunner(h.auditor, h.store, nil, h.log).RunMedia(ctx, "friends", MediaGroupOptions{
		OnResult: func(done, total int, _ *MediaResult) {
			progress = append(progress, [2]int{done, total})
		},
	})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "dave", report.Results[0].Account.Username, "never scraped first")
	assert.Equal(t, StatusFailed, report.Results[1].Status)
	assert.ErrorIs(t, report.Results[1].Err, errs.ErrUserDoesNotExist)
	assert.Equal(t, "alice", report.Results[2].Account.Username)
	assert.Empty(t, report.Results[2].NewMedia)
	assert.Len(t, report.NewMedia(), 2)
	assert.Equal(t, 1, report.Failed())
}
