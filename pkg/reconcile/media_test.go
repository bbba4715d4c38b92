package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/store"
)

func mediaScrape(media ...*models.Media) *models.MediaScrape {
	return &models.MediaScrape{ScrapeID: "scrape-1", ScrapeTS: scrapeTS, User: alice, Media: media}
}

func post(id string, likers ...models.User) *models.Media {
	m := &models.Media{ID: id, Shortcode: "sc" + id, Type: models.MediaPicture, Owner: alice, TakenAt: scrapeTS}
	if likers != nil {
		m.Likers = models.NewUserSet(likers...)
	}
	return m
}

func mediaIDs(media []*models.Media) []string {
	ids := make([]string, 0, len(media))
	for _, m := range media {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestReconcileMediaFirstScrape(t *testing.T) {
	rec := ReconcileMedia(mediaScrape(post("m1", bob), post("m2")), nil)

	assert.Equal(t, []string{"m1", "m2"}, mediaIDs(rec.New))
	require.Contains(t, rec.NewLikers, "m1")
	assert.NotContains(t, rec.NewLikers, "m2", "likers not scraped")
	assert.Equal(t, 1, rec.NewLikes())
}

func TestReconcileMediaAgainstBaseline(t *testing.T) {
	baseline := &MediaBaseline{
		Media:  map[string]bool{"m1": true, "m2": true},
		Likers: map[string]map[string]bool{"m1": {"2": true}},
	}
	rec := ReconcileMedia(mediaScrape(post("m3"), post("m1", bob, carol, dave), post("m2")), baseline)

	assert.Equal(t, []string{"m3"}, mediaIDs(rec.New))
	assert.Equal(t, []string{"3", "4"}, rec.NewLikers["m1"].IDs())
	assert.Equal(t, 2, rec.NewLikes())
}

func TestPlanMedia(t *testing.T) {
	rec := ReconcileMedia(mediaScrape(post("m1", bob), post("m2")), nil)
	plan := PlanMedia(rec)

	require.Len(t, plan.Media, 2)
	assert.Equal(t, "scrape-1", plan.Media[0].ScrapeID)
	assert.True(t, scrapeTS.Equal(plan.Media[1].FirstSeenTS))

	want := []*store.MediaLikerRecord{{
		MediaID:       "m1",
		OwnerUserID:   "1",
		OwnerUserName: "alice",
		LikerUserID:   "2",
		LikerUserName: "bob",
		FirstSeenTS:   scrapeTS,
		ScrapeID:      "scrape-1",
		ScrapeTS:      scrapeTS,
	}}
	if diff := cmp.Diff(want, plan.Likers); diff != "" {
		t.Errorf("likers mismatch (-want +got):\n%s", diff)
	}

	batches := plan.Batches()
	require.Len(t, batches, 3)
	assert.Equal(t, store.TableMedia, batches[0].Table)
	assert.Equal(t, store.TableMediaLikers, batches[1].Table)
	assert.Equal(t, store.TableUsers, batches[2].Table)
	assert.Len(t, batches[0].Records, 2)
}
