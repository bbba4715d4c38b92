package reconcile

import (
	"time"

	"instaprofiler/pkg/models"
	"instaprofiler/pkg/store"
)

// WritePlan is every write for one account, grouped in execution order.
type WritePlan struct {
	SrcUnfollows []*store.UnfollowRecord
	DstUnfollows []*store.UnfollowRecord
	Edges        []*store.FollowRecord
	Events       []*store.FollowEventRecord
	User         *store.UserRecord
}

// Plan turns a reconciliation into writes. Unfollow updates come first so
// the edge upsert of the same pass sees their flags.
func Plan(rec *Reconciliation) *WritePlan {
	ts := rec.ScrapeTS
	account := rec.Account
	plan := UserOnlyPlan(account, ts)

	for _, u := range rec.Follows.Unfollowed.Users() {
		plan.SrcUnfollows = append(plan.SrcUnfollows, &store.UnfollowRecord{
			SrcUserID: account.ID, DstUserID: u.ID, Relation: models.Following, TS: ts,
		})
	}
	for _, u := range rec.Followers.Unfollowed.Users() {
		plan.DstUnfollows = append(plan.DstUnfollows, &store.UnfollowRecord{
			SrcUserID: account.ID, DstUserID: u.ID, Relation: models.Followers, TS: ts,
		})
	}

	for _, e := range rec.Edges {
		r := &store.FollowRecord{
			SrcUserID:   account.ID,
			SrcUserName: account.Username,
			DstUserID:   e.User.ID,
			DstUserName: e.User.Username,
			SrcFollows:  e.SrcFollows,
			DstFollows:  e.DstFollows,
		}
		if e.SrcSeen {
			r.SrcFollowsFirstTS, r.SrcFollowsLatestTS = &ts, &ts
		}
		if e.SrcUnfollowed {
			r.SrcUnfollowsLatestTS = &ts
		}
		if e.DstSeen {
			r.DstFollowsFirstTS, r.DstFollowsLatestTS = &ts, &ts
		}
		if e.DstUnfollowed {
			r.DstUnfollowsLatestTS = &ts
		}
		plan.Edges = append(plan.Edges, r)
	}

	// Events name the follower as src.
	for _, u := range rec.Follows.New.Users() {
		plan.Events = append(plan.Events, event(account, u, store.Follow, ts))
	}
	for _, u := range rec.Follows.Unfollowed.Users() {
		plan.Events = append(plan.Events, event(account, u, store.Unfollow, ts))
	}
	for _, u := range rec.Followers.New.Users() {
		plan.Events = append(plan.Events, event(u, account, store.Follow, ts))
	}
	for _, u := range rec.Followers.Unfollowed.Users() {
		plan.Events = append(plan.Events, event(u, account, store.Unfollow, ts))
	}

	return plan
}

// UserOnlyPlan writes nothing but the account's profile. It is used when the
// graph is not scraped.
func UserOnlyPlan(account models.User, ts time.Time) *WritePlan {
	return &WritePlan{User: store.NewUserRecord(account, ts)}
}

func event(src, dst models.User, t store.FollowType, ts time.Time) *store.FollowEventRecord {
	return &store.FollowEventRecord{
		SrcUserID:   src.ID,
		SrcUserName: src.Username,
		DstUserID:   dst.ID,
		DstUserName: dst.Username,
		Type:        t,
		TS:          ts,
	}
}

// Batches returns the plan as store batches in execution order: follows-side
// unfollows, followers-side unfollows, edges, events, user profile.
func (p *WritePlan) Batches() []store.Batch {
	batches := []store.Batch{
		{Table: store.TableFollows, Plan: store.UnfollowUpdate(models.Following), Records: records(p.SrcUnfollows)},
		{Table: store.TableFollows, Plan: store.UnfollowUpdate(models.Followers), Records: records(p.DstUnfollows)},
		{Table: store.TableFollows, Plan: store.FollowUpsert, Records: records(p.Edges)},
		{Table: store.TableFollowEvents, Plan: store.Ignore{}, Records: records(p.Events)},
	}
	if p.User != nil {
		batches = append(batches, store.Batch{Table: store.TableUsers, Plan: store.UserUpsert, Records: []store.Record{p.User}})
	}
	return batches
}

func records[T store.Record](rs []T) []store.Record {
	out := make([]store.Record, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}
