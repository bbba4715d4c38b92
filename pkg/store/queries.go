package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"instaprofiler/pkg/models"
)

// CurrentFollows rebuilds the persisted follow state of account from its
// follows rows, keeping only edges whose flag is set. It returns nil when the
// account has never been stored.
func (c conn) CurrentFollows(ctx context.Context, account models.User) (*models.FollowState, error) {
	rows, err := c.q.QueryContext(ctx, c.dialect.Rebind(`
		SELECT dst_user_id, dst_user_name, src_follows, dst_follows
		FROM follows
		WHERE src_user_id = ?
		ORDER BY dst_user_name, dst_user_id`), account.ID)
	if err != nil {
		return nil, fmt.Errorf("query follows of %s: %w", account.Username, err)
	}
	defer rows.Close()

	state := &models.FollowState{
		User:      account,
		Follows:   models.NewUserSet(),
		Followers: models.NewUserSet(),
	}
	found := false
	for rows.Next() {
		var (
			u                      models.User
			srcFollows, dstFollows bool
		)
		if err := rows.Scan(&u.ID, &u.Username, &srcFollows, &dstFollows); err != nil {
			return nil, fmt.Errorf("scan follows of %s: %w", account.Username, err)
		}
		found = true
		if srcFollows {
			state.Follows.Add(u)
		}
		if dstFollows {
			state.Followers.Add(u)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read follows of %s: %w", account.Username, err)
	}

	if !found {
		return nil, nil
	}
	return state, nil
}

// GetUser loads the stored profile of userID.
func (c conn) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	var (
		r                 UserRecord
		follows, followed sql.NullInt64
	)
	err := c.q.QueryRowContext(ctx, c.dialect.Rebind(`
		SELECT user_id, user_name, full_name, is_private, is_verified,
		       follows_amount, followed_by_amount, created_ts, latest_ts
		FROM users
		WHERE user_id = ?`), userID).Scan(
		&r.UserID, &r.UserName, &r.FullName, &r.IsPrivate, &r.IsVerified,
		&follows, &followed, &r.CreatedTS, &r.LatestTS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user %s: %w", userID, err)
	}

	r.FollowsAmount = nullInt(follows)
	r.FollowedByAmount = nullInt(followed)
	r.CreatedTS = r.CreatedTS.UTC()
	r.LatestTS = r.LatestTS.UTC()
	return &r, nil
}

// UserIDByName finds the stored user currently named username. When a name
// moved between accounts the latest profile wins.
func (c conn) UserIDByName(ctx context.Context, username string) (string, error) {
	var id string
	err := c.q.QueryRowContext(ctx, c.dialect.Rebind(`
		SELECT user_id FROM users
		WHERE user_name = ?
		ORDER BY latest_ts DESC
		LIMIT 1`), username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query user %s: %w", username, err)
	}
	return id, nil
}

// UpsertUser writes one user profile.
func (c conn) UpsertUser(ctx context.Context, r *UserRecord) error {
	_, err := c.Exec(ctx, Batch{Table: TableUsers, Plan: UserUpsert, Records: []Record{r}})
	return err
}

// GroupMember is an account listed in a user group.
type GroupMember struct {
	UserID        string
	UserName      string
	FollowsAmount *int
	LastScrape    *time.Time
}

// User returns the member as a resolvable account.
func (m GroupMember) User() models.User {
	return models.User{ID: m.UserID, Username: m.UserName, FollowsAmount: m.FollowsAmount}
}

// GroupQuery narrows GroupMembers.
type GroupQuery struct {
	// MaxFollowAmount excludes members whose stored follows count exceeds
	// it. 0 disables the filter.
	MaxFollowAmount int
	// Limit caps the number of members. 0 means all.
	Limit int
}

// GroupMembers lists a group's members, least recently scraped first and
// never-scraped members before all others.
func (c conn) GroupMembers(ctx context.Context, group string, q GroupQuery) ([]GroupMember, error) {
	query := `
		SELECT ug.user_id, ug.user_name, u.follows_amount, u.latest_ts
		FROM user_groups ug
		LEFT JOIN users u ON u.user_id = ug.user_id
		WHERE ug.group_name = ?`
	args := []any{group}
	if q.MaxFollowAmount > 0 {
		query += ` AND (u.follows_amount IS NULL OR u.follows_amount <= ?)`
		args = append(args, q.MaxFollowAmount)
	}
	query += ` ORDER BY CASE WHEN u.latest_ts IS NULL THEN 0 ELSE 1 END, u.latest_ts, ug.user_name`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := c.q.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query group %s: %w", group, err)
	}
	defer rows.Close()

	var members []GroupMember
	for rows.Next() {
		var (
			m       GroupMember
			follows sql.NullInt64
			latest  sql.NullTime
		)
		if err := rows.Scan(&m.UserID, &m.UserName, &follows, &latest); err != nil {
			return nil, fmt.Errorf("scan group %s: %w", group, err)
		}
		m.FollowsAmount = nullInt(follows)
		if latest.Valid {
			t := latest.Time.UTC()
			m.LastScrape = &t
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read group %s: %w", group, err)
	}
	return members, nil
}

// AddGroupMembers adds users to group, refreshing usernames of existing
// members.
func (c conn) AddGroupMembers(ctx context.Context, group string, users ...models.User) error {
	records := make([]Record, 0, len(users))
	for _, u := range users {
		records = append(records, &GroupMemberRecord{GroupName: group, UserID: u.ID, UserName: u.Username})
	}
	if _, err := c.Exec(ctx, Batch{Table: TableUserGroups, Plan: GroupMemberUpsert, Records: records}); err != nil {
		return fmt.Errorf("add members to %s: %w", group, err)
	}
	return nil
}

// KnownMedia returns the IDs of ownerID's stored posts.
func (c conn) KnownMedia(ctx context.Context, ownerID string) (map[string]bool, error) {
	return c.idSet(ctx, `SELECT media_id FROM media WHERE owner_user_id = ?`, ownerID)
}

// KnownLikers returns the IDs of the stored likers of mediaID.
func (c conn) KnownLikers(ctx context.Context, mediaID string) (map[string]bool, error) {
	return c.idSet(ctx, `SELECT liker_user_id FROM media_likers WHERE media_id = ?`, mediaID)
}

func (c conn) idSet(ctx context.Context, query string, arg any) (map[string]bool, error) {
	rows, err := c.q.QueryContext(ctx, c.dialect.Rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("query ids for %v: %w", arg, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ids for %v: %w", arg, err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// MediaQuery narrows ListMedia.
type MediaQuery struct {
	// OwnerUserID keeps one account's posts. Empty means every account.
	OwnerUserID string
	// TakenSince keeps posts published at or after it. Zero means all.
	TakenSince time.Time
	// Limit caps the number of posts. 0 means all.
	Limit int
}

// ListMedia lists stored posts, most recently discovered first and oldest
// publication first within one discovery.
func (c conn) ListMedia(ctx context.Context, q MediaQuery) ([]MediaRecord, error) {
	query := `
		SELECT media_id, shortcode, media_type, owner_user_id, owner_user_name, display_url,
		       taken_at_ts, likes_amount, comments_amount, taggees_amount,
		       first_seen_ts, scrape_id, scrape_ts
		FROM media
		WHERE 1 = 1`
	var args []any
	if q.OwnerUserID != "" {
		query += ` AND owner_user_id = ?`
		args = append(args, q.OwnerUserID)
	}
	if !q.TakenSince.IsZero() {
		query += ` AND taken_at_ts >= ?`
		args = append(args, q.TakenSince.UTC())
	}
	query += ` ORDER BY first_seen_ts DESC, taken_at_ts, media_id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := c.q.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	var out []MediaRecord
	for rows.Next() {
		var (
			r         MediaRecord
			mediaType string
		)
		if err := rows.Scan(&r.MediaID, &r.Shortcode, &mediaType, &r.OwnerUserID, &r.OwnerUserName, &r.DisplayURL,
			&r.TakenAtTS, &r.LikesAmount, &r.CommentsAmount, &r.TaggeesAmount,
			&r.FirstSeenTS, &r.ScrapeID, &r.ScrapeTS); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		r.MediaType = models.MediaType(mediaType)
		r.TakenAtTS = r.TakenAtTS.UTC()
		r.FirstSeenTS = r.FirstSeenTS.UTC()
		r.ScrapeTS = r.ScrapeTS.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	return out, nil
}

// MediaGroupMembers lists a group's members for a timeline run: members
// whose posts were never scraped first, then by their latest media scrape.
func (c conn) MediaGroupMembers(ctx context.Context, group string, limit int) ([]GroupMember, error) {
	query := `
		SELECT ug.user_id, ug.user_name
		FROM user_groups ug
		LEFT JOIN media m ON m.owner_user_id = ug.user_id
		WHERE ug.group_name = ?
		GROUP BY ug.user_id, ug.user_name
		ORDER BY CASE WHEN max(m.scrape_ts) IS NULL THEN 0 ELSE 1 END, max(m.scrape_ts), ug.user_name`
	args := []any{group}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.q.QueryContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query media group %s: %w", group, err)
	}
	defer rows.Close()

	var members []GroupMember
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.UserID, &m.UserName); err != nil {
			return nil, fmt.Errorf("scan media group %s: %w", group, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read media group %s: %w", group, err)
	}
	return members, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.IntPtr(int(v.Int64))
}
