package store

import (
	"time"

	"instaprofiler/pkg/models"
)

// Tables.
const (
	TableFollows      = "follows"
	TableFollowEvents = "follow_events"
	TableUsers        = "users"
	TableUserGroups   = "user_groups"
	TableMedia        = "media"
	TableMediaLikers  = "media_likers"
)

// FollowType tags a follow event.
type FollowType int

const (
	Unfollow FollowType = 0
	Follow   FollowType = 1
)

func (t FollowType) String() string {
	if t == Follow {
		return "FOLLOW"
	}
	return "UNFOLLOW"
}

// SidePrefix is the column prefix of relation in the follows table:
// "src" for the accounts the scraped user follows, "dst" for its followers.
func SidePrefix(relation models.Relation) string {
	if relation == models.Followers {
		return "dst"
	}
	return "src"
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// FollowRecord is one row of the follows table.
type FollowRecord struct {
	SrcUserID   string
	SrcUserName string
	DstUserID   string
	DstUserName string

	SrcFollows           bool
	SrcFollowsFirstTS    *time.Time
	SrcFollowsLatestTS   *time.Time
	SrcUnfollowsLatestTS *time.Time

	DstFollows           bool
	DstFollowsFirstTS    *time.Time
	DstFollowsLatestTS   *time.Time
	DstUnfollowsLatestTS *time.Time
}

var followFields = []string{
	"src_user_id", "src_user_name", "dst_user_id", "dst_user_name",
	"src_follows", "src_follows_first_timestamp", "src_follows_latest_timestamp", "src_unfollows_latest_timestamp",
	"dst_follows", "dst_follows_first_timestamp", "dst_follows_latest_timestamp", "dst_unfollows_latest_timestamp",
}

func (r *FollowRecord) Fields() []string { return followFields }

func (r *FollowRecord) Value(field string) any {
	switch field {
	case "src_user_id":
		return r.SrcUserID
	case "src_user_name":
		return r.SrcUserName
	case "dst_user_id":
		return r.DstUserID
	case "dst_user_name":
		return r.DstUserName
	case "src_follows":
		return r.SrcFollows
	case "src_follows_first_timestamp":
		return timeValue(r.SrcFollowsFirstTS)
	case "src_follows_latest_timestamp":
		return timeValue(r.SrcFollowsLatestTS)
	case "src_unfollows_latest_timestamp":
		return timeValue(r.SrcUnfollowsLatestTS)
	case "dst_follows":
		return r.DstFollows
	case "dst_follows_first_timestamp":
		return timeValue(r.DstFollowsFirstTS)
	case "dst_follows_latest_timestamp":
		return timeValue(r.DstFollowsLatestTS)
	case "dst_unfollows_latest_timestamp":
		return timeValue(r.DstUnfollowsLatestTS)
	}
	return nil
}

// FollowUpsert merges edge rows. Flags and names take the incoming values,
// latest-seen and unfollow timestamps only overwrite when set, and
// first-seen timestamps are written once.
var FollowUpsert = Upsert{
	Conflict: []string{"src_user_id", "dst_user_id"},
	Update: []string{
		SetExcluded("src_user_name"),
		SetExcluded("dst_user_name"),
		SetExcluded("src_follows"),
		SetIfUnset(TableFollows, "src_follows_first_timestamp"),
		SetIfPresent(TableFollows, "src_follows_latest_timestamp"),
		SetIfPresent(TableFollows, "src_unfollows_latest_timestamp"),
		SetExcluded("dst_follows"),
		SetIfUnset(TableFollows, "dst_follows_first_timestamp"),
		SetIfPresent(TableFollows, "dst_follows_latest_timestamp"),
		SetIfPresent(TableFollows, "dst_unfollows_latest_timestamp"),
	},
}

// UnfollowRecord clears one direction of an existing follows row.
type UnfollowRecord struct {
	SrcUserID string
	DstUserID string
	Relation  models.Relation
	TS        time.Time
}

func (r *UnfollowRecord) Fields() []string {
	p := SidePrefix(r.Relation)
	return []string{"src_user_id", "dst_user_id", p + "_follows", p + "_unfollows_latest_timestamp"}
}

func (r *UnfollowRecord) Value(field string) any {
	p := SidePrefix(r.Relation)
	switch field {
	case "src_user_id":
		return r.SrcUserID
	case "dst_user_id":
		return r.DstUserID
	case p + "_follows":
		return false
	case p + "_unfollows_latest_timestamp":
		return r.TS
	}
	return nil
}

// UnfollowUpdate is the plan for UnfollowRecords of relation.
func UnfollowUpdate(relation models.Relation) UpdateByKey {
	p := SidePrefix(relation)
	return UpdateByKey{
		Key: []string{"src_user_id", "dst_user_id"},
		Set: []string{p + "_follows", p + "_unfollows_latest_timestamp"},
	}
}

// FollowEventRecord is one row of the follow_events log. Src is the follower.
type FollowEventRecord struct {
	SrcUserID   string
	SrcUserName string
	DstUserID   string
	DstUserName string
	Type        FollowType
	TS          time.Time
}

var followEventFields = []string{"src_user_id", "src_user_name", "dst_user_id", "dst_user_name", "follow_type_id", "ts"}

func (r *FollowEventRecord) Fields() []string { return followEventFields }

func (r *FollowEventRecord) Value(field string) any {
	switch field {
	case "src_user_id":
		return r.SrcUserID
	case "src_user_name":
		return r.SrcUserName
	case "dst_user_id":
		return r.DstUserID
	case "dst_user_name":
		return r.DstUserName
	case "follow_type_id":
		return int64(r.Type)
	case "ts":
		return r.TS
	}
	return nil
}

// UserRecord is one row of the users table.
type UserRecord struct {
	UserID           string
	UserName         string
	FullName         string
	IsPrivate        bool
	IsVerified       bool
	FollowsAmount    *int
	FollowedByAmount *int
	CreatedTS        time.Time
	LatestTS         time.Time
}

// NewUserRecord captures u as seen at ts.
func NewUserRecord(u models.User, ts time.Time) *UserRecord {
	return &UserRecord{
		UserID:           u.ID,
		UserName:         u.Username,
		FullName:         u.FullName,
		IsPrivate:        u.IsPrivate,
		IsVerified:       u.IsVerified,
		FollowsAmount:    u.FollowsAmount,
		FollowedByAmount: u.FollowedByAmount,
		CreatedTS:        ts,
		LatestTS:         ts,
	}
}

var userFields = []string{
	"user_id", "user_name", "full_name", "is_private", "is_verified",
	"follows_amount", "followed_by_amount", "created_ts", "latest_ts",
}

func (r *UserRecord) Fields() []string { return userFields }

func (r *UserRecord) Value(field string) any {
	switch field {
	case "user_id":
		return r.UserID
	case "user_name":
		return r.UserName
	case "full_name":
		return r.FullName
	case "is_private":
		return r.IsPrivate
	case "is_verified":
		return r.IsVerified
	case "follows_amount":
		return intValue(r.FollowsAmount)
	case "followed_by_amount":
		return intValue(r.FollowedByAmount)
	case "created_ts":
		return r.CreatedTS
	case "latest_ts":
		return r.LatestTS
	}
	return nil
}

// UserUpsert refreshes a user's profile. created_ts is never overwritten.
var UserUpsert = Upsert{
	Conflict: []string{"user_id"},
	Update: []string{
		SetExcluded("user_name"),
		SetExcluded("full_name"),
		SetExcluded("is_private"),
		SetExcluded("is_verified"),
		SetIfPresent(TableUsers, "follows_amount"),
		SetIfPresent(TableUsers, "followed_by_amount"),
		SetExcluded("latest_ts"),
	},
}

// GroupMemberRecord is one row of user_groups.
type GroupMemberRecord struct {
	GroupName string
	UserID    string
	UserName  string
}

var groupMemberFields = []string{"group_name", "user_id", "user_name"}

func (r *GroupMemberRecord) Fields() []string { return groupMemberFields }

func (r *GroupMemberRecord) Value(field string) any {
	switch field {
	case "group_name":
		return r.GroupName
	case "user_id":
		return r.UserID
	case "user_name":
		return r.UserName
	}
	return nil
}

// GroupMemberUpsert keeps member usernames current.
var GroupMemberUpsert = Upsert{
	Conflict: []string{"group_name", "user_id"},
	Update:   []string{SetExcluded("user_name")},
}

// MediaRecord is one row of the media table.
type MediaRecord struct {
	MediaID        string
	Shortcode      string
	MediaType      models.MediaType
	OwnerUserID    string
	OwnerUserName  string
	DisplayURL     string
	TakenAtTS      time.Time
	LikesAmount    int
	CommentsAmount int
	TaggeesAmount  int
	FirstSeenTS    time.Time
	ScrapeID       string
	ScrapeTS       time.Time
}

// NewMediaRecord captures m as seen by one scrape.
func NewMediaRecord(m *models.Media, scrapeID string, ts time.Time) *MediaRecord {
	return &MediaRecord{
		MediaID:        m.ID,
		Shortcode:      m.Shortcode,
		MediaType:      m.Type,
		OwnerUserID:    m.Owner.ID,
		OwnerUserName:  m.Owner.Username,
		DisplayURL:     m.DisplayURL,
		TakenAtTS:      m.TakenAt,
		LikesAmount:    m.LikesAmount,
		CommentsAmount: m.CommentsAmount,
		TaggeesAmount:  len(m.Taggees),
		FirstSeenTS:    ts,
		ScrapeID:       scrapeID,
		ScrapeTS:       ts,
	}
}

var mediaFields = []string{
	"media_id", "shortcode", "media_type", "owner_user_id", "owner_user_name", "display_url",
	"taken_at_ts", "likes_amount", "comments_amount", "taggees_amount",
	"first_seen_ts", "scrape_id", "scrape_ts",
}

func (r *MediaRecord) Fields() []string { return mediaFields }

func (r *MediaRecord) Value(field string) any {
	switch field {
	case "media_id":
		return r.MediaID
	case "shortcode":
		return r.Shortcode
	case "media_type":
		return string(r.MediaType)
	case "owner_user_id":
		return r.OwnerUserID
	case "owner_user_name":
		return r.OwnerUserName
	case "display_url":
		return r.DisplayURL
	case "taken_at_ts":
		return r.TakenAtTS
	case "likes_amount":
		return int64(r.LikesAmount)
	case "comments_amount":
		return int64(r.CommentsAmount)
	case "taggees_amount":
		return int64(r.TaggeesAmount)
	case "first_seen_ts":
		return r.FirstSeenTS
	case "scrape_id":
		return r.ScrapeID
	case "scrape_ts":
		return r.ScrapeTS
	}
	return nil
}

// MediaUpsert refreshes counters and the latest scrape of known posts.
// first_seen_ts keeps the scrape that discovered the post.
var MediaUpsert = Upsert{
	Conflict: []string{"media_id"},
	Update: []string{
		SetExcluded("owner_user_name"),
		SetExcluded("display_url"),
		SetExcluded("likes_amount"),
		SetExcluded("comments_amount"),
		SetExcluded("taggees_amount"),
		SetExcluded("scrape_id"),
		SetExcluded("scrape_ts"),
	},
}

// MediaLikerRecord is one row of media_likers.
type MediaLikerRecord struct {
	MediaID       string
	OwnerUserID   string
	OwnerUserName string
	LikerUserID   string
	LikerUserName string
	FirstSeenTS   time.Time
	ScrapeID      string
	ScrapeTS      time.Time
}

var mediaLikerFields = []string{
	"media_id", "owner_user_id", "owner_user_name", "liker_user_id", "liker_user_name",
	"first_seen_ts", "scrape_id", "scrape_ts",
}

func (r *MediaLikerRecord) Fields() []string { return mediaLikerFields }

func (r *MediaLikerRecord) Value(field string) any {
	switch field {
	case "media_id":
		return r.MediaID
	case "owner_user_id":
		return r.OwnerUserID
	case "owner_user_name":
		return r.OwnerUserName
	case "liker_user_id":
		return r.LikerUserID
	case "liker_user_name":
		return r.LikerUserName
	case "first_seen_ts":
		return r.FirstSeenTS
	case "scrape_id":
		return r.ScrapeID
	case "scrape_ts":
		return r.ScrapeTS
	}
	return nil
}

// MediaLikerUpsert moves a known like to the latest scrape.
var MediaLikerUpsert = Upsert{
	Conflict: []string{"media_id", "liker_user_id"},
	Update: []string{
		SetExcluded("liker_user_name"),
		SetExcluded("scrape_id"),
		SetExcluded("scrape_ts"),
	},
}
