package instagram

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/pkg/models"
)

func TestProfileURL(t *testing.T) {
	e := DefaultEndpoints()
	assert.Equal(t, "https://www.instagram.com/api/v1/users/web_profile_info/?username=alice", e.ProfileURL("alice"))

	e.BaseURL = "http://127.0.0.1:9999/"
	assert.Equal(t, "http://127.0.0.1:9999/api/v1/users/web_profile_info/?username=a.b_c", e.ProfileURL("a.b_c"))
}

func TestFollowPageURL(t *testing.T) {
	tests := []struct {
		name          string
		relation      models.Relation
		after         string
		wantHash      string
		wantVariables string
	}{
		{
			name:          "first followers page",
			relation:      models.Followers,
			wantHash:      FollowersQueryHash,
			wantVariables: `{"id":"42","first":300,"include_reel":false,"fetch_mutual":false}`,
		},
		{
			name:          "following page after cursor",
			relation:      models.Following,
			after:         "QVFE==",
			wantHash:      FollowingQueryHash,
			wantVariables: `{"id":"42","first":300,"include_reel":false,"fetch_mutual":false,"after":"QVFE=="}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := DefaultEndpoints().FollowPageURL(tt.relation, "42", tt.after)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, GraphQLEndpoint, u.Path)
			assert.Equal(t, tt.wantHash, u.Query().Get("query_hash"))
			assert.JSONEq(t, tt.wantVariables, u.Query().Get("variables"))
		})
	}
}

func TestMediaAndLikersPageURLs(t *testing.T) {
	e := DefaultEndpoints()

	u, err := url.Parse(e.MediaPageURL("42", ""))
	require.NoError(t, err)
	assert.Equal(t, GraphQLEndpoint, u.Path)
	assert.Equal(t, MediaQueryHash, u.Query().Get("query_hash"))
	assert.JSONEq(t, `{"id":"42","first":50}`, u.Query().Get("variables"))

	u, err = url.Parse(e.LikersPageURL("BxYz", "c1"))
	require.NoError(t, err)
	assert.Equal(t, LikersQueryHash, u.Query().Get("query_hash"))
	assert.JSONEq(t, `{"shortcode":"BxYz","first":50,"include_reel":true,"after":"c1"}`, u.Query().Get("variables"))

	e.MediaPageSize = 12
	e.MediaQueryHash = "custom"
	u, err = url.Parse(e.MediaPageURL("42", "c2"))
	require.NoError(t, err)
	assert.Equal(t, "custom", u.Query().Get("query_hash"))
	assert.JSONEq(t, `{"id":"42","first":12,"after":"c2"}`, u.Query().Get("variables"))
}

func TestFollowPageURLIsStable(t *testing.T) {
	e := Endpoints{BaseURL: "http://x", PageSize: 50, FollowersQueryHash: "custom"}
	a := e.FollowPageURL(models.Followers, "1", "c")
	b := e.FollowPageURL(models.Followers, "1", "c")
	assert.Equal(t, a, b)

	u, err := url.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, "custom", u.Query().Get("query_hash"))
	assert.Contains(t, u.Query().Get("variables"), `"first":50`)
}

func TestEdgeKey(t *testing.T) {
	assert.Equal(t, "edge_follow", EdgeKey(models.Following))
	assert.Equal(t, "edge_followed_by", EdgeKey(models.Followers))
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"john_doe", true},
		{"john.doe", true},
		{"JohnDoe123", true},
		{"", false},
		{"john-doe", false},
		{"john doe", false},
		{"john@doe", false},
		{"abcdefghijklmnopqrstuvwxyz12345", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidUsername(tt.username))
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@john_doe", "john_doe"},
		{"john_doe/", "john_doe"},
		{" @john_doe// ", "john_doe"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeUsername(tt.in), "input %q", tt.in)
	}
}

func TestGetUserProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/alice/", GetUserProfileURL("alice"))
	assert.Equal(t, "", GetUserProfileURL(""))
}
