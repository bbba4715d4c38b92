package reconcile

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/store"
)

var (
	scrapeTS = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	alice = models.User{ID: "1", Username: "alice"}
	bob   = models.User{ID: "2", Username: "bob"}
	carol = models.User{ID: "3", Username: "carol"}
	dave  = models.User{ID: "4", Username: "dave"}
)

func snapshot(account models.User, sides models.Sides, follows, followers []models.User) *models.FollowGraphSnapshot {
	return &models.FollowGraphSnapshot{
		User:      account,
		Follows:   models.NewUserSet(follows...),
		Followers: models.NewUserSet(followers...),
		Scraped:   sides,
	}
}

func state(account models.User, follows, followers []models.User) *models.FollowState {
	return &models.FollowState{
		User:      account,
		Follows:   models.NewUserSet(follows...),
		Followers: models.NewUserSet(followers...),
	}
}

var both = models.Sides{Follows: true, Followers: true}

func edgeFor(t *testing.T, rec *Reconciliation, id string) Edge {
	t.Helper()
	for _, e := range rec.Edges {
		if e.User.ID == id {
			return e
		}
	}
	t.Fatalf("no edge for %s", id)
	return Edge{}
}

func TestReconcileSideDiff(t *testing.T) {
	a := models.User{ID: "a", Username: "a"}
	b := models.User{ID: "b", Username: "b"}
	c := models.User{ID: "c", Username: "c"}
	d := models.User{ID: "d", Username: "d"}

	snap := snapshot(alice, models.Sides{Follows: true}, []models.User{b, c, d}, nil)
	prev := state(alice, []models.User{a, b, c}, nil)

	rec := Reconcile(snap, prev, "s1", scrapeTS, Options{})

	assert.False(t, rec.FirstScrape)
	assert.True(t, rec.Follows.Scraped)
	assert.Equal(t, []string{"d"}, rec.Follows.New.IDs())
	assert.Equal(t, []string{"a"}, rec.Follows.Unfollowed.IDs())
	assert.Equal(t, []string{"b", "c"}, rec.Follows.Still.IDs())
}

func TestReconcileFirstScrape(t *testing.T) {
	snap := snapshot(alice, both, []models.User{bob}, []models.User{bob, carol})

	rec := Reconcile(snap, nil, "s1", scrapeTS, Options{})

	assert.True(t, rec.FirstScrape)
	assert.Equal(t, []string{"2"}, rec.Follows.New.IDs())
	assert.Equal(t, []string{"2", "3"}, rec.Followers.New.IDs())
	assert.Zero(t, rec.Follows.Unfollowed.Len())
	assert.Zero(t, rec.Followers.Unfollowed.Len())
	require.Len(t, rec.Edges, 2)

	assert.Equal(t, Edge{User: bob, SrcFollows: true, DstFollows: true, SrcSeen: true, DstSeen: true}, edgeFor(t, rec, "2"))
	assert.Equal(t, Edge{User: carol, DstFollows: true, DstSeen: true}, edgeFor(t, rec, "3"))
}

func TestReconcileUnscrapedSideIsCarried(t *testing.T) {
	prev := state(alice, []models.User{bob}, []models.User{bob, carol})
	// Followers not scraped: the empty followers set must not read as
	// everyone having unfollowed.
	snap := snapshot(alice, models.Sides{Follows: true}, []models.User{bob, dave}, nil)

	rec := Reconcile(snap, prev, "s2", scrapeTS, Options{})

	assert.False(t, rec.Followers.Scraped)
	assert.Zero(t, rec.Followers.New.Len())
	assert.Zero(t, rec.Followers.Unfollowed.Len())
	assert.Zero(t, rec.Followers.Still.Len())

	require.Len(t, rec.Edges, 2)
	assert.Equal(t, Edge{User: bob, SrcFollows: true, SrcSeen: true, DstFollows: true}, edgeFor(t, rec, "2"))
	assert.Equal(t, Edge{User: dave, SrcFollows: true, SrcSeen: true}, edgeFor(t, rec, "4"))

	plan := Plan(rec)
	assert.Empty(t, plan.DstUnfollows)
	assert.Empty(t, plan.SrcUnfollows)
	for _, ev := range plan.Events {
		assert.Equal(t, store.Follow, ev.Type)
	}
}

func TestReconcileOnlyMutual(t *testing.T) {
	prev := state(alice, []models.User{carol}, nil)
	snap := snapshot(alice, both, []models.User{bob, dave}, []models.User{bob, carol})

	rec := Reconcile(snap, prev, "s3", scrapeTS, Options{OnlyMutual: true})

	require.Len(t, rec.Edges, 1)
	assert.Equal(t, "2", rec.Edges[0].User.ID)

	plan := Plan(rec)
	require.Len(t, plan.Edges, 1)
	// Events keep the full picture.
	type ev struct {
		Src, Dst string
		Type     store.FollowType
	}
	var got []ev
	for _, e := range plan.Events {
		got = append(got, ev{e.SrcUserName, e.DstUserName, e.Type})
	}
	want := []ev{
		{"alice", "bob", store.Follow},
		{"alice", "dave", store.Follow},
		{"alice", "carol", store.Unfollow},
		{"bob", "alice", store.Follow},
		{"carol", "alice", store.Follow},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, plan.SrcUnfollows, 1)
	assert.Equal(t, "3", plan.SrcUnfollows[0].DstUserID)
}

func TestPlanFollowerChange(t *testing.T) {
	// carol followed alice last time and has stopped; bob started.
	prev := state(alice, nil, []models.User{carol})
	snap := snapshot(alice, both, nil, []models.User{bob})

	rec := Reconcile(snap, prev, "s4", scrapeTS, Options{})
	plan := Plan(rec)

	require.Len(t, plan.DstUnfollows, 1)
	un := plan.DstUnfollows[0]
	assert.Equal(t, "1", un.SrcUserID)
	assert.Equal(t, "3", un.DstUserID)
	assert.Equal(t, models.Followers, un.Relation)
	assert.Equal(t, scrapeTS, un.TS)

	require.Len(t, plan.Events, 2)
	follow, unfollow := plan.Events[0], plan.Events[1]
	assert.Equal(t, "bob", follow.SrcUserName)
	assert.Equal(t, "alice", follow.DstUserName)
	assert.Equal(t, store.Follow, follow.Type)
	assert.Equal(t, "carol", unfollow.SrcUserName)
	assert.Equal(t, "alice", unfollow.DstUserName)
	assert.Equal(t, store.Unfollow, unfollow.Type)

	require.Len(t, plan.Edges, 1)
	e := plan.Edges[0]
	assert.Equal(t, "bob", e.DstUserName)
	assert.True(t, e.DstFollows)
	assert.False(t, e.SrcFollows)
	require.NotNil(t, e.DstFollowsFirstTS)
	assert.Equal(t, scrapeTS, *e.DstFollowsFirstTS)
	assert.Nil(t, e.SrcFollowsFirstTS)
	assert.Nil(t, e.SrcFollowsLatestTS)
	assert.Nil(t, e.DstUnfollowsLatestTS)
}

func TestPlanUnfollowTimestampOnSurvivingEdge(t *testing.T) {
	// bob stays a follower but alice stopped following him.
	prev := state(alice, []models.User{bob}, []models.User{bob})
	snap := snapshot(alice, both, nil, []models.User{bob})

	plan := Plan(Reconcile(snap, prev, "s5", scrapeTS, Options{}))

	require.Len(t, plan.Edges, 1)
	e := plan.Edges[0]
	assert.False(t, e.SrcFollows)
	assert.True(t, e.DstFollows)
	require.NotNil(t, e.SrcUnfollowsLatestTS)
	assert.Equal(t, scrapeTS, *e.SrcUnfollowsLatestTS)
	assert.Nil(t, e.SrcFollowsLatestTS)
}

func TestPlanNoChangeHasNoEvents(t *testing.T) {
	prev := state(alice, []models.User{bob}, []models.User{carol})
	snap := snapshot(alice, both, []models.User{bob}, []models.User{carol})

	plan := Plan(Reconcile(snap, prev, "s6", scrapeTS, Options{}))

	assert.Empty(t, plan.Events)
	assert.Empty(t, plan.SrcUnfollows)
	assert.Empty(t, plan.DstUnfollows)
	assert.Len(t, plan.Edges, 2)
	require.NotNil(t, plan.User)
	assert.Equal(t, "alice", plan.User.UserName)
}

func TestWritePlanBatchOrder(t *testing.T) {
	prev := state(alice, []models.User{carol}, []models.User{dave})
	snap := snapshot(alice, both, []models.User{bob}, []models.User{bob})

	batches := Plan(Reconcile(snap, prev, "s7", scrapeTS, Options{})).Batches()

	require.Len(t, batches, 5)
	assert.Equal(t, store.UnfollowUpdate(models.Following), batches[0].Plan)
	assert.Len(t, batches[0].Records, 1)
	assert.Equal(t, store.UnfollowUpdate(models.Followers), batches[1].Plan)
	assert.Len(t, batches[1].Records, 1)
	assert.Equal(t, store.TableFollows, batches[2].Table)
	assert.Len(t, batches[2].Records, 1)
	assert.Equal(t, store.TableFollowEvents, batches[3].Table)
	assert.Len(t, batches[3].Records, 4)
	assert.Equal(t, store.TableUsers, batches[4].Table)
}

func TestUserOnlyPlan(t *testing.T) {
	private := models.User{ID: "9", Username: "hidden", IsPrivate: true}

	batches := UserOnlyPlan(private, scrapeTS).Batches()

	total := 0
	for _, b := range batches {
		total += len(b.Records)
	}
	assert.Equal(t, 1, total)
	last := batches[len(batches)-1]
	assert.Equal(t, store.TableUsers, last.Table)
}

func TestRankMutualFollows(t *testing.T) {
	erin := models.User{ID: "5", Username: "erin"}
	snaps := []*models.FollowGraphSnapshot{
		snapshot(alice, both, []models.User{bob, carol, erin}, []models.User{bob, carol}),
		snapshot(dave, both, []models.User{carol, erin, dave}, []models.User{carol, erin, dave}),
		snapshot(erin, both, []models.User{carol, bob}, []models.User{carol}),
		// Not fully scraped, ignored.
		snapshot(bob, models.Sides{Follows: true}, []models.User{carol}, nil),
	}

	got := RankMutualFollows(snaps, 0)

	require.Len(t, got, 3)
	assert.Equal(t, "carol", got[0].User.Username)
	assert.Equal(t, []string{"alice", "dave", "erin"}, got[0].Accounts)
	assert.Equal(t, 3, got[0].Count())
	assert.Equal(t, "bob", got[1].User.Username)
	assert.Equal(t, 1, got[1].Count())
	assert.Equal(t, "erin", got[2].User.Username)
	assert.Equal(t, []string{"dave"}, got[2].Accounts)

	limited := RankMutualFollows(snaps, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "carol", limited[0].User.Username)
}
