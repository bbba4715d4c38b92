package igtest

import (
	"encoding/json"

	"instaprofiler/pkg/instagram"
	"instaprofiler/pkg/models"
)

// ThrottleBody is the text Instagram serves in place of a payload while it
// rate limits a session.
const ThrottleBody = "Please wait a few minutes before you try again."

func userNode(u models.User) map[string]interface{} {
	node := map[string]interface{}{
		"id":                 u.ID,
		"username":           u.Username,
		"full_name":          u.FullName,
		"profile_pic_url":    u.ProfilePicURL,
		"is_private":         u.IsPrivate,
		"is_verified":        u.IsVerified,
		"followed_by_viewer": u.FollowedByViewer,
	}
	if u.FollowsAmount != nil {
		node["edge_follow"] = map[string]interface{}{"count": *u.FollowsAmount}
	}
	if u.FollowedByAmount != nil {
		node["edge_followed_by"] = map[string]interface{}{"count": *u.FollowedByAmount}
	}
	return node
}

// FollowPageJSON renders one GraphQL follow page. An empty next cursor marks
// the last page.
func FollowPageJSON(relation models.Relation, users []models.User, count int, next string) string {
	edges := make([]interface{}, 0, len(users))
	for _, u := range users {
		edges = append(edges, map[string]interface{}{"node": userNode(u)})
	}

	return mustJSON(map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				instagram.EdgeKey(relation): edge(edges, count, next),
			},
		},
		"status": "ok",
	})
}

// MediaPageJSON renders one timeline page.
func MediaPageJSON(media []*models.Media, count int, next string) string {
	edges := make([]interface{}, 0, len(media))
	for _, m := range media {
		edges = append(edges, map[string]interface{}{"node": mediaNode(m)})
	}
	return mustJSON(map[string]interface{}{
		"data": map[string]interface{}{
			"user": map[string]interface{}{
				"edge_owner_to_timeline_media": edge(edges, count, next),
			},
		},
		"status": "ok",
	})
}

// LikersPageJSON renders one page of a post's likers.
func LikersPageJSON(users []models.User, count int, next string) string {
	edges := make([]interface{}, 0, len(users))
	for _, u := range users {
		edges = append(edges, map[string]interface{}{"node": userNode(u)})
	}
	return mustJSON(map[string]interface{}{
		"data": map[string]interface{}{
			"shortcode_media": map[string]interface{}{
				"edge_liked_by": edge(edges, count, next),
			},
		},
		"status": "ok",
	})
}

func edge(edges []interface{}, count int, next string) map[string]interface{} {
	pageInfo := map[string]interface{}{
		"has_next_page": next != "",
		"end_cursor":    nil,
	}
	if next != "" {
		pageInfo["end_cursor"] = next
	}
	return map[string]interface{}{
		"count":     count,
		"page_info": pageInfo,
		"edges":     edges,
	}
}

func mediaNode(m *models.Media) map[string]interface{} {
	node := map[string]interface{}{
		"id":                      m.ID,
		"shortcode":               m.Shortcode,
		"display_url":             m.DisplayURL,
		"is_video":                m.Type == models.MediaVideo,
		"owner":                   userNode(m.Owner),
		"edge_media_preview_like": map[string]interface{}{"count": m.LikesAmount},
		"edge_media_to_comment":   map[string]interface{}{"count": m.CommentsAmount},
	}
	if !m.TakenAt.IsZero() {
		node["taken_at_timestamp"] = m.TakenAt.Unix()
	}
	if m.Type == models.MediaAlbum {
		node["edge_sidecar_to_children"] = map[string]interface{}{"edges": []interface{}{}}
	}
	tagged := make([]interface{}, 0, len(m.Taggees))
	for _, u := range m.Taggees {
		tagged = append(tagged, map[string]interface{}{"node": map[string]interface{}{"user": userNode(u)}})
	}
	node["edge_media_to_tagged_user"] = map[string]interface{}{"edges": tagged}
	return node
}

// ProfileJSON renders a web_profile_info response for u.
func ProfileJSON(u models.User) string {
	return mustJSON(map[string]interface{}{
		"data":   map[string]interface{}{"user": userNode(u)},
		"status": "ok",
	})
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
