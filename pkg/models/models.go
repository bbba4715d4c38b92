package models

import (
	"encoding/json"
	"time"
)

// User is an account on the social graph. Two users are the same user when
// their IDs match; every other field may change between scrapes.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	FullName         string `json:"full_name,omitempty"`
	ProfilePicURL    string `json:"profile_pic_url,omitempty"`
	IsPrivate        bool   `json:"is_private"`
	IsVerified       bool   `json:"is_verified"`
	FollowedByViewer bool   `json:"followed_by_viewer"`
	FollowsAmount    *int   `json:"follows_amount,omitempty"`
	FollowedByAmount *int   `json:"followed_by_amount,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// Relation selects one side of an account's follow graph.
type Relation int

const (
	// Following is the set of users the account follows.
	Following Relation = iota
	// Followers is the set of users following the account.
	Followers
)

func (r Relation) String() string {
	if r == Followers {
		return "followers"
	}
	return "follows"
}

// Sides records which relations a scrape covers.
type Sides struct {
	Follows   bool `json:"follows"`
	Followers bool `json:"followers"`
}

// Has reports whether r is one of the sides.
func (s Sides) Has(r Relation) bool {
	if r == Followers {
		return s.Followers
	}
	return s.Follows
}

// Any reports whether at least one side is set.
func (s Sides) Any() bool {
	return s.Follows || s.Followers
}

// FollowGraphSnapshot is one account's follow graph as observed by a single
// scrape. A side absent from Scraped holds an empty set that says nothing
// about the real graph.
type FollowGraphSnapshot struct {
	User      User     `json:"user"`
	Follows   *UserSet `json:"follows"`
	Followers *UserSet `json:"followers"`
	Scraped   Sides    `json:"scraped"`
}

// Side returns the set for r.
func (s *FollowGraphSnapshot) Side(r Relation) *UserSet {
	if r == Followers {
		return s.Followers
	}
	return s.Follows
}

// Mutual returns users that both follow and are followed by the account.
func (s *FollowGraphSnapshot) Mutual() *UserSet {
	return s.Follows.Intersection(s.Followers)
}

// FollowersOnly returns followers the account does not follow back.
func (s *FollowGraphSnapshot) FollowersOnly() *UserSet {
	return s.Followers.Difference(s.Follows)
}

// FollowsOnly returns users the account follows who do not follow back.
func (s *FollowGraphSnapshot) FollowsOnly() *UserSet {
	return s.Follows.Difference(s.Followers)
}

// FollowScrape is a batch of snapshots taken in one run. Every snapshot in
// the batch shares ScrapeID and ScrapeTS.
type FollowScrape struct {
	ScrapeID  string                 `json:"scrape_id"`
	ScrapeTS  time.Time              `json:"scrape_ts"`
	Snapshots []*FollowGraphSnapshot `json:"snapshots"`
}

// FollowState is the stored baseline for an account: the edges currently
// flagged as active in the store. A nil *FollowState means the account has
// never been scraped.
type FollowState struct {
	User      User
	Follows   *UserSet
	Followers *UserSet
}

// Side returns the baseline set for r. It is never nil.
func (s *FollowState) Side(r Relation) *UserSet {
	if s == nil {
		return NewUserSet()
	}
	set := s.Follows
	if r == Followers {
		set = s.Followers
	}
	if set == nil {
		return NewUserSet()
	}
	return set
}

// UserSet is an insertion-ordered set of users keyed by ID. When the same ID
// is added twice the first occurrence is kept. A nil *UserSet behaves as an
// empty set for every read.
type UserSet struct {
	index map[string]int
	users []User
}

// NewUserSet builds a set from users in order.
func NewUserSet(users ...User) *UserSet {
	s := &UserSet{index: make(map[string]int, len(users))}
	for _, u := range users {
		s.Add(u)
	}
	return s
}

// Add inserts u unless a user with the same ID is present. It reports
// whether u was inserted.
func (s *UserSet) Add(u User) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[u.ID]; ok {
		return false
	}
	s.index[u.ID] = len(s.users)
	s.users = append(s.users, u)
	return true
}

// Merge adds every user of other in order and returns how many were new.
func (s *UserSet) Merge(other *UserSet) int {
	added := 0
	for _, u := range other.Users() {
		if s.Add(u) {
			added++
		}
	}
	return added
}

func (s *UserSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

func (s *UserSet) Get(id string) (User, bool) {
	if s == nil {
		return User{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return User{}, false
	}
	return s.users[i], true
}

func (s *UserSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.users)
}

// Users returns the members in insertion order. The slice must not be modified.
func (s *UserSet) Users() []User {
	if s == nil {
		return nil
	}
	return s.users
}

// IDs returns member IDs in insertion order.
func (s *UserSet) IDs() []string {
	ids := make([]string, 0, s.Len())
	for _, u := range s.Users() {
		ids = append(ids, u.ID)
	}
	return ids
}

// Difference returns members of s not in other, in s's order.
func (s *UserSet) Difference(other *UserSet) *UserSet {
	out := NewUserSet()
	for _, u := range s.Users() {
		if !other.Contains(u.ID) {
			out.Add(u)
		}
	}
	return out
}

// Intersection returns members of s also in other, in s's order, taking
// the user record from s.
func (s *UserSet) Intersection(other *UserSet) *UserSet {
	out := NewUserSet()
	for _, u := range s.Users() {
		if other.Contains(u.ID) {
			out.Add(u)
		}
	}
	return out
}

// Union returns members of s followed by members of other not in s.
func (s *UserSet) Union(other *UserSet) *UserSet {
	out := NewUserSet(s.Users()...)
	out.Merge(other)
	return out
}

// MarshalJSON encodes the set as an ordered array of users.
func (s *UserSet) MarshalJSON() ([]byte, error) {
	users := s.Users()
	if users == nil {
		users = []User{}
	}
	return json.Marshal(users)
}

// UnmarshalJSON decodes an array of users, keeping first occurrences.
func (s *UserSet) UnmarshalJSON(data []byte) error {
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	*s = *NewUserSet(users...)
	return nil
}
