package instagram

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/models"
)

// PageInfo is the pagination state shared by every GraphQL edge page.
type PageInfo struct {
	HasNextPage bool
	EndCursor   string
	// Count is the total size of the edge reported by the API, if present.
	Count *int
}

// Info returns the page's pagination state.
func (p PageInfo) Info() PageInfo { return p }

// FollowPage is one decoded page of a follow-graph query.
type FollowPage struct {
	PageInfo
	Users []models.User
}

// MediaPage is one decoded page of an account's timeline.
type MediaPage struct {
	PageInfo
	Media []*models.Media
}

// LikersPage is one decoded page of a post's likers.
type LikersPage struct {
	PageInfo
	Users []models.User
}

// DecodeFollowPage reads data.user.<edge key> from a follow-graph response.
//
// A body that is not JSON, or JSON without the edge object, is what the API
// serves while throttling; it yields a retryable *errors.DecodeError. An
// edge object that is present but inconsistent yields a fatal one.
func DecodeFollowPage(body string, relation models.Relation) (*FollowPage, error) {
	path := "data.user." + EdgeKey(relation)
	edges, info, err := decodeEdge(body, path)
	if err != nil {
		return nil, err
	}

	page := &FollowPage{PageInfo: info}
	for i, e := range edges {
		user, err := normalizeUser(e.Get("node"))
		if err != nil {
			return nil, errs.NewMalformed(fmt.Sprintf("%s.edges.%d.node", path, i), err.Error())
		}
		page.Users = append(page.Users, user)
	}
	return page, nil
}

// DecodeMediaPage reads data.user.edge_owner_to_timeline_media. Throttling
// is reported the same way as for follow pages.
func DecodeMediaPage(body string) (*MediaPage, error) {
	const path = "data.user.edge_owner_to_timeline_media"
	edges, info, err := decodeEdge(body, path)
	if err != nil {
		return nil, err
	}

	page := &MediaPage{PageInfo: info}
	for i, e := range edges {
		m, err := normalizeMedia(e.Get("node"))
		if err != nil {
			return nil, errs.NewMalformed(fmt.Sprintf("%s.edges.%d.node", path, i), err.Error())
		}
		page.Media = append(page.Media, m)
	}
	return page, nil
}

// DecodeLikersPage reads data.shortcode_media.edge_liked_by.
func DecodeLikersPage(body string) (*LikersPage, error) {
	const path = "data.shortcode_media.edge_liked_by"
	edges, info, err := decodeEdge(body, path)
	if err != nil {
		return nil, err
	}

	page := &LikersPage{PageInfo: info}
	for i, e := range edges {
		user, err := normalizeUser(e.Get("node"))
		if err != nil {
			return nil, errs.NewMalformed(fmt.Sprintf("%s.edges.%d.node", path, i), err.Error())
		}
		page.Users = append(page.Users, user)
	}
	return page, nil
}

// decodeEdge validates the edge object at path and returns its edges and
// pagination state.
func decodeEdge(body, path string) ([]gjson.Result, PageInfo, error) {
	if !gjson.Valid(body) {
		return nil, PageInfo{}, errs.NewMissing(path, "response is not JSON: "+preview(body))
	}

	edge := gjson.Get(body, path)
	if !edge.Exists() || edge.Type == gjson.Null {
		return nil, PageInfo{}, errs.NewMissing(path, "key not present")
	}
	if !edge.IsObject() {
		return nil, PageInfo{}, errs.NewMalformed(path, "not an object")
	}

	edges := edge.Get("edges")
	if !edges.IsArray() {
		return nil, PageInfo{}, errs.NewMalformed(path+".edges", "not an array")
	}

	pageInfo := edge.Get("page_info")
	if !pageInfo.IsObject() {
		return nil, PageInfo{}, errs.NewMalformed(path+".page_info", "not an object")
	}
	hasNext := pageInfo.Get("has_next_page")
	if hasNext.Type != gjson.True && hasNext.Type != gjson.False {
		return nil, PageInfo{}, errs.NewMalformed(path+".page_info.has_next_page", "not a boolean")
	}

	info := PageInfo{
		HasNextPage: hasNext.Bool(),
		EndCursor:   pageInfo.Get("end_cursor").String(),
	}
	if info.HasNextPage && info.EndCursor == "" {
		return nil, PageInfo{}, errs.NewMalformed(path+".page_info.end_cursor", "empty cursor with has_next_page set")
	}
	if count := edge.Get("count"); count.Type == gjson.Number {
		info.Count = models.IntPtr(int(count.Int()))
	}
	return edges.Array(), info, nil
}

// DecodeProfile extracts the account from a profile response. Both the
// web_profile_info API (data.user) and the legacy page endpoint
// (graphql.user) are accepted.
//
// A non-JSON body mentioning "minutes" is the "please wait a few minutes"
// throttle page and is retryable. Anything else without a user means the
// account does not exist.
func DecodeProfile(body string) (models.User, error) {
	if !gjson.Valid(body) {
		if strings.Contains(body, "minutes") {
			return models.User{}, errs.NewMissing("user", "throttled: "+preview(body))
		}
		return models.User{}, fmt.Errorf("%w: profile response is not JSON", errs.ErrUserDoesNotExist)
	}

	for _, path := range []string{"data.user", "graphql.user"} {
		node := gjson.Get(body, path)
		if !node.IsObject() {
			continue
		}
		user, err := normalizeUser(node)
		if err != nil {
			return models.User{}, fmt.Errorf("%w: %v", errs.ErrUserDoesNotExist, err)
		}
		return user, nil
	}

	return models.User{}, fmt.Errorf("%w: no user object in profile response", errs.ErrUserDoesNotExist)
}

// normalizeUser maps a user node onto models.User. Counts are only set
// when the node carries them.
func normalizeUser(node gjson.Result) (models.User, error) {
	if !node.IsObject() {
		return models.User{}, fmt.Errorf("node is not an object")
	}

	id := node.Get("id")
	if (id.Type != gjson.String && id.Type != gjson.Number) || id.String() == "" {
		return models.User{}, fmt.Errorf("node has no id")
	}

	user := models.User{
		ID:               id.String(),
		Username:         node.Get("username").String(),
		FullName:         node.Get("full_name").String(),
		ProfilePicURL:    node.Get("profile_pic_url").String(),
		IsPrivate:        node.Get("is_private").Bool(),
		IsVerified:       node.Get("is_verified").Bool(),
		FollowedByViewer: node.Get("followed_by_viewer").Bool(),
	}
	if c := node.Get("edge_follow.count"); c.Type == gjson.Number {
		user.FollowsAmount = models.IntPtr(int(c.Int()))
	}
	if c := node.Get("edge_followed_by.count"); c.Type == gjson.Number {
		user.FollowedByAmount = models.IntPtr(int(c.Int()))
	}

	return user, nil
}

// normalizeMedia maps a timeline node onto models.Media.
func normalizeMedia(node gjson.Result) (*models.Media, error) {
	if !node.IsObject() {
		return nil, fmt.Errorf("node is not an object")
	}
	id := node.Get("id")
	if (id.Type != gjson.String && id.Type != gjson.Number) || id.String() == "" {
		return nil, fmt.Errorf("node has no id")
	}
	shortcode := node.Get("shortcode").String()
	if shortcode == "" {
		return nil, fmt.Errorf("media %s has no shortcode", id.String())
	}
	owner, err := normalizeUser(node.Get("owner"))
	if err != nil {
		return nil, fmt.Errorf("media %s owner: %v", id.String(), err)
	}

	m := &models.Media{
		ID:             id.String(),
		Shortcode:      shortcode,
		Type:           models.MediaPicture,
		DisplayURL:     node.Get("display_url").String(),
		Owner:          owner,
		CommentsAmount: int(node.Get("edge_media_to_comment.count").Int()),
	}
	switch {
	case node.Get("is_video").Bool():
		m.Type = models.MediaVideo
	case node.Get("edge_sidecar_to_children").Exists():
		m.Type = models.MediaAlbum
	}
	if ts := node.Get("taken_at_timestamp"); ts.Type == gjson.Number {
		m.TakenAt = time.Unix(ts.Int(), 0).UTC()
	}
	// the timeline query reports likes under one of two keys
	if likes := node.Get("edge_media_preview_like.count"); likes.Exists() {
		m.LikesAmount = int(likes.Int())
	} else {
		m.LikesAmount = int(node.Get("edge_liked_by.count").Int())
	}
	for _, t := range node.Get("edge_media_to_tagged_user.edges").Array() {
		if u, err := normalizeUser(t.Get("node.user")); err == nil {
			m.Taggees = append(m.Taggees, u)
		}
	}
	return m, nil
}

const previewBytes = 120

// preview shortens body for log and error text without splitting a rune.
func preview(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= previewBytes {
		return body
	}
	cut := previewBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}
