package reconcile

import (
	"sort"

	"instaprofiler/pkg/models"
)

// MutualCount is a user that is mutual with one or more scraped accounts.
type MutualCount struct {
	User     models.User
	Accounts []string
}

// Count is the number of accounts the user is mutual with.
func (m MutualCount) Count() int { return len(m.Accounts) }

// RankMutualFollows counts, for every user, the snapshots whose account is
// mutual with it and returns the most shared users first. Ties break on
// username then ID. A positive limit truncates the result.
func RankMutualFollows(snapshots []*models.FollowGraphSnapshot, limit int) []MutualCount {
	byID := make(map[string]*MutualCount)
	var order []string

	for _, snap := range snapshots {
		if !snap.Scraped.Follows || !snap.Scraped.Followers {
			continue
		}
		for _, u := range snap.Mutual().Users() {
			if u.ID == snap.User.ID {
				continue
			}
			mc, ok := byID[u.ID]
			if !ok {
				mc = &MutualCount{User: u}
				byID[u.ID] = mc
				order = append(order, u.ID)
			}
			mc.Accounts = append(mc.Accounts, snap.User.Username)
		}
	}

	out := make([]MutualCount, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count() != out[j].Count() {
			return out[i].Count() > out[j].Count()
		}
		if out[i].User.Username != out[j].User.Username {
			return out[i].User.Username < out[j].User.Username
		}
		return out[i].User.ID < out[j].User.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
