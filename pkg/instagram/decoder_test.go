package instagram

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/models"
)

const followersPage = `{
  "data": {
    "user": {
      "edge_followed_by": {
        "count": 3,
        "page_info": {"has_next_page": true, "end_cursor": "QVFBcursor"},
        "edges": [
          {"node": {"id": "1", "username": "bob", "full_name": "Bob", "profile_pic_url": "https://cdn/bob.jpg",
                    "is_private": false, "is_verified": true, "followed_by_viewer": true}},
          {"node": {"id": 2, "username": "carol", "is_private": true,
                    "edge_follow": {"count": 10}, "edge_followed_by": {"count": 20}}}
        ]
      }
    }
  },
  "status": "ok"
}`

func TestDecodeFollowPage(t *testing.T) {
	page, err := DecodeFollowPage(followersPage, models.Followers)
	require.NoError(t, err)

	assert.True(t, page.HasNextPage)
	assert.Equal(t, "QVFBcursor", page.EndCursor)
	require.NotNil(t, page.Count)
	assert.Equal(t, 3, *page.Count)

	require.Len(t, page.Users, 2)
	bob := page.Users[0]
	assert.Equal(t, models.User{
		ID:               "1",
		Username:         "bob",
		FullName:         "Bob",
		ProfilePicURL:    "https://cdn/bob.jpg",
		IsVerified:       true,
		FollowedByViewer: true,
	}, bob)

	carol := page.Users[1]
	assert.Equal(t, "2", carol.ID, "numeric ids are normalised to strings")
	assert.True(t, carol.IsPrivate)
	require.NotNil(t, carol.FollowsAmount)
	require.NotNil(t, carol.FollowedByAmount)
	assert.Equal(t, 10, *carol.FollowsAmount)
	assert.Equal(t, 20, *carol.FollowedByAmount)
}

func TestDecodeFollowPageLastAndEmptyPages(t *testing.T) {
	body := `{"data":{"user":{"edge_follow":{"count":0,"page_info":{"has_next_page":false,"end_cursor":null},"edges":[]}}}}`

	page, err := DecodeFollowPage(body, models.Following)
	require.NoError(t, err)
	assert.False(t, page.HasNextPage)
	assert.Empty(t, page.EndCursor)
	assert.Empty(t, page.Users)
}

func TestDecodeFollowPageErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		relation    models.Relation
		wantMissing bool
	}{
		{
			name:        "throttle page is not json",
			body:        "Please wait a few minutes before you try again.",
			relation:    models.Followers,
			wantMissing: true,
		},
		{
			name:        "user missing",
			body:        `{"data":{},"status":"fail"}`,
			relation:    models.Followers,
			wantMissing: true,
		},
		{
			name:        "user null",
			body:        `{"data":{"user":null}}`,
			relation:    models.Followers,
			wantMissing: true,
		},
		{
			name:        "wrong edge key for relation",
			body:        followersPage,
			relation:    models.Following,
			wantMissing: true,
		},
		{
			name:     "edges not an array",
			body:     `{"data":{"user":{"edge_follow":{"page_info":{"has_next_page":false},"edges":{}}}}}`,
			relation: models.Following,
		},
		{
			name:     "page info missing",
			body:     `{"data":{"user":{"edge_follow":{"edges":[]}}}}`,
			relation: models.Following,
		},
		{
			name:     "has next page without cursor",
			body:     `{"data":{"user":{"edge_follow":{"page_info":{"has_next_page":true,"end_cursor":""},"edges":[]}}}}`,
			relation: models.Following,
		},
		{
			name:     "has next page not boolean",
			body:     `{"data":{"user":{"edge_follow":{"page_info":{"has_next_page":"yes","end_cursor":"c"},"edges":[]}}}}`,
			relation: models.Following,
		},
		{
			name:     "node without id",
			body:     `{"data":{"user":{"edge_follow":{"page_info":{"has_next_page":false},"edges":[{"node":{"username":"ghost"}}]}}}}`,
			relation: models.Following,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFollowPage(tt.body, tt.relation)
			var de *errs.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantMissing, de.Missing)
			assert.Equal(t, tt.wantMissing, errs.IsSoftFailure(err))
		})
	}
}

const mediaPage = `{
  "data": {
    "user": {
      "edge_owner_to_timeline_media": {
        "count": 120,
        "page_info": {"has_next_page": true, "end_cursor": "QVFBmedia"},
        "edges": [
          {"node": {"id": "900", "shortcode": "BxYz", "display_url": "https://cdn/900.jpg",
                    "is_video": false, "taken_at_timestamp": 1709294400,
                    "owner": {"id": "42", "username": "alice"},
                    "edge_media_preview_like": {"count": 17},
                    "edge_media_to_comment": {"count": 3},
                    "edge_sidecar_to_children": {"edges": []},
                    "edge_media_to_tagged_user": {"edges": [{"node": {"user": {"id": "7", "username": "bob"}}}]}}},
          {"node": {"id": 901, "shortcode": "BxZa", "is_video": true,
                    "owner": {"id": "42"},
                    "edge_liked_by": {"count": 5}}}
        ]
      }
    }
  },
  "status": "ok"
}`

func TestDecodeMediaPage(t *testing.T) {
	page, err := DecodeMediaPage(mediaPage)
	require.NoError(t, err)

	assert.True(t, page.HasNextPage)
	assert.Equal(t, "QVFBmedia", page.EndCursor)
	require.NotNil(t, page.Count)
	assert.Equal(t, 120, *page.Count)
	require.Len(t, page.Media, 2)

	album := page.Media[0]
	assert.Equal(t, "900", album.ID)
	assert.Equal(t, "BxYz", album.Shortcode)
	assert.Equal(t, models.MediaAlbum, album.Type)
	assert.Equal(t, "https://cdn/900.jpg", album.DisplayURL)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), album.TakenAt)
	assert.Equal(t, models.User{ID: "42", Username: "alice"}, album.Owner)
	assert.Equal(t, 17, album.LikesAmount)
	assert.Equal(t, 3, album.CommentsAmount)
	assert.Equal(t, []models.User{{ID: "7", Username: "bob"}}, album.Taggees)
	assert.False(t, album.LikersScraped())

	video := page.Media[1]
	assert.Equal(t, "901", video.ID)
	assert.Equal(t, models.MediaVideo, video.Type)
	assert.Equal(t, 5, video.LikesAmount, "falls back to edge_liked_by")
	assert.True(t, video.TakenAt.IsZero())
}

func TestDecodeMediaPageErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"throttled", "Please wait a few minutes before you try again."},
		{"missing edge", `{"data":{"user":{}}}`},
		{"missing shortcode", `{"data":{"user":{"edge_owner_to_timeline_media":{"page_info":{"has_next_page":false},
			"edges":[{"node":{"id":"1","owner":{"id":"42"}}}]}}}}`},
		{"missing owner", `{"data":{"user":{"edge_owner_to_timeline_media":{"page_info":{"has_next_page":false},
			"edges":[{"node":{"id":"1","shortcode":"a"}}]}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMediaPage(tt.body)
			assert.Error(t, err)
		})
	}
}

func TestDecodeLikersPage(t *testing.T) {
	body := `{"data":{"shortcode_media":{"edge_liked_by":{"count":2,
		"page_info":{"has_next_page":false,"end_cursor":null},
		"edges":[{"node":{"id":"7","username":"bob"}},{"node":{"id":"8","username":"carol","is_private":true}}]}}}}`

	page, err := DecodeLikersPage(body)
	require.NoError(t, err)
	assert.False(t, page.HasNextPage)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "bob", page.Users[0].Username)
	assert.True(t, page.Users[1].IsPrivate)

	_, err = DecodeLikersPage(`{"data":{"shortcode_media":null}}`)
	require.Error(t, err)
	assert.True(t, errs.IsSoftFailure(err), "a missing edge is retried")
}

func TestDecodeProfile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "web profile info",
			body: `{"data":{"user":{"id":"100","username":"alice","full_name":"Alice","is_private":true,
				"followed_by_viewer":false,"edge_follow":{"count":250},"edge_followed_by":{"count":900}}},"status":"ok"}`,
		},
		{
			name: "legacy page",
			body: `{"graphql":{"user":{"id":"100","username":"alice","full_name":"Alice","is_private":true,
				"followed_by_viewer":false,"edge_follow":{"count":250},"edge_followed_by":{"count":900}}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := DecodeProfile(tt.body)
			require.NoError(t, err)
			assert.Equal(t, "100", user.ID)
			assert.Equal(t, "alice", user.Username)
			assert.True(t, user.IsPrivate)
			assert.Equal(t, 250, *user.FollowsAmount)
			assert.Equal(t, 900, *user.FollowedByAmount)
		})
	}
}

func TestDecodeProfileErrors(t *testing.T) {
	_, err := DecodeProfile("Please wait a few minutes before you try again.")
	assert.True(t, errs.IsSoftFailure(err), "throttle page is retryable")
	assert.False(t, errors.Is(err, errs.ErrUserDoesNotExist))

	for _, body := range []string{
		`<html>Sorry, this page isn't available.</html>`,
		`{}`,
		`{"data":{"user":null}}`,
		`{"graphql":{"user":{"username":"noid"}}}`,
	} {
		_, err := DecodeProfile(body)
		assert.ErrorIs(t, err, errs.ErrUserDoesNotExist, "body %s", body)
	}
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", preview("  short \n"))

	// 119 ASCII bytes then a 3-byte rune straddling the limit
	body := strings.Repeat("a", 119) + "€" + strings.Repeat("b", 10)
	got := preview(body)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 119)+"...", got)

	multi := strings.Repeat("ü", 100)
	got = preview(multi)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ü", 60)+"...", got)
}
