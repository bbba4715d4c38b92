package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/pkg/models"
)

func testMedia(id string, owner models.User, takenAt time.Time, likes int) *models.Media {
	return &models.Media{
		ID:          id,
		Shortcode:   "sc" + id,
		Type:        models.MediaPicture,
		TakenAt:     takenAt,
		Owner:       owner,
		LikesAmount: likes,
		Taggees:     []models.User{{ID: "7", Username: "bob"}},
	}
}

func TestMediaUpsertKeepsFirstSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := models.User{ID: "1", Username: "alice"}
	taken := time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC)

	_, err := s.Exec(ctx, Batch{Table: TableMedia, Plan: MediaUpsert, Records: []Record{
		NewMediaRecord(testMedia("m1", alice, taken, 10), "scrape-1", ts1),
	}})
	require.NoError(t, err)

	alice.Username = "alice2"
	_, err = s.Exec(ctx, Batch{Table: TableMedia, Plan: MediaUpsert, Records: []Record{
		NewMediaRecord(testMedia("m1", alice, taken, 25), "scrape-2", ts2),
	}})
	require.NoError(t, err)

	media, err := s.ListMedia(ctx, MediaQuery{})
	require.NoError(t, err)
	require.Len(t, media, 1)
	got := media[0]
	assert.Equal(t, "scm1", got.Shortcode)
	assert.Equal(t, models.MediaPicture, got.MediaType)
	assert.Equal(t, "alice2", got.OwnerUserName)
	assert.Equal(t, 25, got.LikesAmount)
	assert.Equal(t, 1, got.TaggeesAmount)
	assert.True(t, taken.Equal(got.TakenAtTS))
	assert.True(t, ts1.Equal(got.FirstSeenTS), "first sighting is kept")
	assert.True(t, ts2.Equal(got.ScrapeTS))
	assert.Equal(t, "scrape-2", got.ScrapeID)
}

func TestKnownMediaAndLikers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := models.User{ID: "1", Username: "alice"}
	carol := models.User{ID: "3", Username: "carol"}

	_, err := s.Exec(ctx, Batch{Table: TableMedia, Plan: MediaUpsert, Records: []Record{
		NewMediaRecord(testMedia("m1", alice, ts1, 1), "scrape-1", ts1),
		NewMediaRecord(testMedia("m2", alice, ts1, 1), "scrape-1", ts1),
		NewMediaRecord(testMedia("m3", carol, ts1, 1), "scrape-1", ts1),
	}})
	require.NoError(t, err)

	liker := func(mediaID, userID string, ts time.Time) Record {
		return &MediaLikerRecord{
			MediaID: mediaID, OwnerUserID: "1", OwnerUserName: "alice",
			LikerUserID: userID, LikerUserName: "user" + userID,
			FirstSeenTS: ts, ScrapeID: "scrape", ScrapeTS: ts,
		}
	}
	_, err = s.Exec(ctx, Batch{Table: TableMediaLikers, Plan: MediaLikerUpsert, Records: []Record{
		liker("m1", "7", ts1), liker("m1", "8", ts1),
	}})
	require.NoError(t, err)
	n, err := s.Exec(ctx, Batch{Table: TableMediaLikers, Plan: MediaLikerUpsert, Records: []Record{
		liker("m1", "7", ts2),
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 2, countRows(t, s, TableMediaLikers))

	known, err := s.KnownMedia(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true, "m2": true}, known)

	likers, err := s.KnownLikers(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"7": true, "8": true}, likers)

	likers, err = s.KnownLikers(ctx, "m2")
	require.NoError(t, err)
	assert.Empty(t, likers)
}

func TestListMediaFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := models.User{ID: "1", Username: "alice"}
	carol := models.User{ID: "3", Username: "carol"}
	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)

	_, err := s.Exec(ctx, Batch{Table: TableMedia, Plan: MediaUpsert, Records: []Record{
		NewMediaRecord(testMedia("m1", alice, old, 1), "scrape-1", ts1),
		NewMediaRecord(testMedia("m2", alice, newer, 1), "scrape-1", ts1),
		NewMediaRecord(testMedia("m3", alice, recent, 1), "scrape-1", ts1),
		NewMediaRecord(testMedia("m4", carol, newer, 1), "scrape-2", ts2),
	}})
	require.NoError(t, err)

	ids := func(records []MediaRecord) []string {
		out := make([]string, 0, len(records))
		for _, r := range records {
			out = append(out, r.MediaID)
		}
		return out
	}

	all, err := s.ListMedia(ctx, MediaQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m1", "m3", "m2"}, ids(all), "latest discovery first, then by publication")

	mine, err := s.ListMedia(ctx, MediaQuery{OwnerUserID: "1", TakenSince: recent})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2"}, ids(mine))

	limited, err := s.ListMedia(ctx, MediaQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m1"}, ids(limited))
}

func TestMediaGroupMembers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := models.User{ID: "1", Username: "alice"}
	bob := models.User{ID: "2", Username: "bob"}
	carol := models.User{ID: "3", Username: "carol"}

	require.NoError(t, s.AddGroupMembers(ctx, "friends", alice, bob, carol))
	_, err := s.Exec(ctx, Batch{Table: TableMedia, Plan: MediaUpsert, Records: []Record{
		NewMediaRecord(testMedia("m1", alice, ts1, 1), "scrape-2", ts2),
		NewMediaRecord(testMedia("m2", carol, ts1, 1), "scrape-1", ts1),
	}})
	require.NoError(t, err)

	members, err := s.MediaGroupMembers(ctx, "friends", 0)
	require.NoError(t, err)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.UserName)
	}
	assert.Equal(t, []string{"bob", "carol", "alice"}, names)

	members, err = s.MediaGroupMembers(ctx, "friends", 1)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "2", members[0].UserID)
}

func TestUserIDByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, NewUserRecord(models.User{ID: "1", Username: "alice"}, ts1)))
	require.NoError(t, s.UpsertUser(ctx, NewUserRecord(models.User{ID: "5", Username: "alice"}, ts2)))

	id, err := s.UserIDByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "5", id)

	_, err = s.UserIDByName(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
