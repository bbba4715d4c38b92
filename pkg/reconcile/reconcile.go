// Package reconcile diffs a fresh follow-graph snapshot against the stored
// baseline and turns the result into the ordered writes that keep the
// follows aggregate, the follow_events log and the users table in step.
//
// Reconciliation is pure: it reads a snapshot and a baseline and returns
// values. Each relation is diffed only when it was scraped, and both sides
// are diffed against the same pre-scrape baseline.
package reconcile

import (
	"time"

	"instaprofiler/pkg/models"
)

// Options tunes reconciliation.
type Options struct {
	// OnlyMutual keeps only edges followed in both directions in the
	// aggregate projection. Events are produced either way.
	OnlyMutual bool
}

// SideDiff classifies one relation of a snapshot against the baseline.
// When Scraped is false every set is empty.
type SideDiff struct {
	Relation   models.Relation
	Scraped    bool
	New        *models.UserSet
	Unfollowed *models.UserSet
	Still      *models.UserSet
}

// Edge is the state of the (account, User) aggregate row after this pass.
// Src is the account and Dst is User.
type Edge struct {
	User models.User

	SrcFollows bool
	DstFollows bool

	// SrcSeen and DstSeen report that the direction was scraped and
	// observed true in this pass.
	SrcSeen bool
	DstSeen bool

	// SrcUnfollowed and DstUnfollowed report that the direction was lost
	// in this pass.
	SrcUnfollowed bool
	DstUnfollowed bool
}

// Reconciliation is the outcome for one account.
type Reconciliation struct {
	Account     models.User
	ScrapeID    string
	ScrapeTS    time.Time
	FirstScrape bool

	Follows   SideDiff
	Followers SideDiff

	// Edges holds one entry per user in the scraped current sets, minus
	// one-sided edges when OnlyMutual is set.
	Edges []Edge
}

// Side returns the diff for r.
func (r *Reconciliation) Side(rel models.Relation) *SideDiff {
	if rel == models.Followers {
		return &r.Followers
	}
	return &r.Follows
}

// Reconcile compares snapshot with previous, the stored baseline of the same
// account (nil on the first scrape).
func Reconcile(snapshot *models.FollowGraphSnapshot, previous *models.FollowState, scrapeID string, scrapeTS time.Time, opts Options) *Reconciliation {
	rec := &Reconciliation{
		Account:     snapshot.User,
		ScrapeID:    scrapeID,
		ScrapeTS:    scrapeTS,
		FirstScrape: previous == nil,
		Follows:     diffSide(snapshot, previous, models.Following),
		Followers:   diffSide(snapshot, previous, models.Followers),
	}

	current := models.NewUserSet()
	if snapshot.Scraped.Follows {
		current.Merge(snapshot.Follows)
	}
	if snapshot.Scraped.Followers {
		current.Merge(snapshot.Followers)
	}

	for _, u := range current.Users() {
		e := Edge{User: u}
		e.SrcFollows, e.SrcSeen = direction(snapshot, previous, models.Following, u.ID)
		e.DstFollows, e.DstSeen = direction(snapshot, previous, models.Followers, u.ID)
		e.SrcUnfollowed = rec.Follows.Unfollowed.Contains(u.ID)
		e.DstUnfollowed = rec.Followers.Unfollowed.Contains(u.ID)

		if opts.OnlyMutual && !(e.SrcFollows && e.DstFollows) {
			continue
		}
		rec.Edges = append(rec.Edges, e)
	}

	return rec
}

func diffSide(snapshot *models.FollowGraphSnapshot, previous *models.FollowState, rel models.Relation) SideDiff {
	d := SideDiff{
		Relation:   rel,
		Scraped:    snapshot.Scraped.Has(rel),
		New:        models.NewUserSet(),
		Unfollowed: models.NewUserSet(),
		Still:      models.NewUserSet(),
	}
	if !d.Scraped {
		return d
	}

	current := snapshot.Side(rel)
	baseline := previous.Side(rel)
	d.New = current.Difference(baseline)
	d.Unfollowed = baseline.Difference(current)
	d.Still = current.Intersection(baseline)
	return d
}

// direction returns the flag of one direction for user id. A side that was
// not scraped carries its stored flag forward and is never marked seen.
func direction(snapshot *models.FollowGraphSnapshot, previous *models.FollowState, rel models.Relation, id string) (follows, seen bool) {
	if snapshot.Scraped.Has(rel) {
		follows = snapshot.Side(rel).Contains(id)
		return follows, follows
	}
	return previous.Side(rel).Contains(id), false
}
