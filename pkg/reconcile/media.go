package reconcile

import (
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/store"
)

// MediaBaseline is what the store already holds for an account's timeline.
type MediaBaseline struct {
	// Media holds the IDs of stored posts.
	Media map[string]bool
	// Likers holds, per stored post, the IDs of its stored likers.
	Likers map[string]map[string]bool
}

// MediaReconciliation classifies a timeline scrape against its baseline.
type MediaReconciliation struct {
	Scrape *models.MediaScrape
	// New holds posts absent from the baseline, newest first.
	New []*models.Media
	// NewLikers holds, per post with likers scraped, the likers absent
	// from the baseline.
	NewLikers map[string]*models.UserSet
}

// NewLikes counts likes first seen in this scrape.
func (r *MediaReconciliation) NewLikes() int {
	n := 0
	for _, set := range r.NewLikers {
		n += set.Len()
	}
	return n
}

// ReconcileMedia compares scrape with baseline. A nil baseline treats every
// post and like as new.
func ReconcileMedia(scrape *models.MediaScrape, baseline *MediaBaseline) *MediaReconciliation {
	if baseline == nil {
		baseline = &MediaBaseline{}
	}
	rec := &MediaReconciliation{
		Scrape:    scrape,
		NewLikers: make(map[string]*models.UserSet),
	}
	for _, m := range scrape.Media {
		if !baseline.Media[m.ID] {
			rec.New = append(rec.New, m)
		}
		if !m.LikersScraped() {
			continue
		}
		known := baseline.Likers[m.ID]
		fresh := models.NewUserSet()
		for _, u := range m.Likers.Users() {
			if !known[u.ID] {
				fresh.Add(u)
			}
		}
		rec.NewLikers[m.ID] = fresh
	}
	return rec
}

// MediaWritePlan is every write of one timeline scrape.
type MediaWritePlan struct {
	Media  []*store.MediaRecord
	Likers []*store.MediaLikerRecord
	User   *store.UserRecord
}

// PlanMedia turns a timeline reconciliation into writes. Every scraped post
// and like is upserted; the store keeps the first sighting of each.
func PlanMedia(rec *MediaReconciliation) *MediaWritePlan {
	s := rec.Scrape
	plan := &MediaWritePlan{User: store.NewUserRecord(s.User, s.ScrapeTS)}

	for _, m := range s.Media {
		plan.Media = append(plan.Media, store.NewMediaRecord(m, s.ScrapeID, s.ScrapeTS))
		for _, u := range m.Likers.Users() {
			plan.Likers = append(plan.Likers, &store.MediaLikerRecord{
				MediaID:       m.ID,
				OwnerUserID:   m.Owner.ID,
				OwnerUserName: m.Owner.Username,
				LikerUserID:   u.ID,
				LikerUserName: u.Username,
				FirstSeenTS:   s.ScrapeTS,
				ScrapeID:      s.ScrapeID,
				ScrapeTS:      s.ScrapeTS,
			})
		}
	}
	return plan
}

// Batches returns the plan in execution order: posts, likers, profile.
func (p *MediaWritePlan) Batches() []store.Batch {
	batches := []store.Batch{
		{Table: store.TableMedia, Plan: store.MediaUpsert, Records: records(p.Media)},
		{Table: store.TableMediaLikers, Plan: store.MediaLikerUpsert, Records: records(p.Likers)},
	}
	if p.User != nil {
		batches = append(batches, store.Batch{Table: store.TableUsers, Plan: store.UserUpsert, Records: []store.Record{p.User}})
	}
	return batches
}
