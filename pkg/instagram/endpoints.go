package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"instaprofiler/pkg/models"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// GraphQLEndpoint serves the follow-graph queries
	GraphQLEndpoint = "/graphql/query/"

	// FollowersQueryHash selects the "who follows this user" query
	FollowersQueryHash = "56066f031e6239f35a904ac20c9f37d9"

	// FollowingQueryHash selects the "who does this user follow" query
	FollowingQueryHash = "c56ee0ae1f89cdbd1c89e2bc6b8f3d18"

	// MediaQueryHash selects an account's timeline posts
	MediaQueryHash = "f2405b236d85e8296cf30347c9f08c2a"

	// LikersQueryHash selects the users who liked a post
	LikersQueryHash = "d5d763b1e2acf209d62d22d184488e57"

	// DefaultPageSize is the number of users requested per page
	DefaultPageSize = 300

	// DefaultMediaPageSize is the number of posts or likers requested per page
	DefaultMediaPageSize = 50
)

// Endpoints builds request URLs against a base URL. Tests point it at an
// httptest server.
type Endpoints struct {
	BaseURL            string
	FollowersQueryHash string
	FollowingQueryHash string
	MediaQueryHash     string
	LikersQueryHash    string
	PageSize           int
	MediaPageSize      int
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		BaseURL:            BaseURL,
		FollowersQueryHash: FollowersQueryHash,
		FollowingQueryHash: FollowingQueryHash,
		MediaQueryHash:     MediaQueryHash,
		LikersQueryHash:    LikersQueryHash,
		PageSize:           DefaultPageSize,
		MediaPageSize:      DefaultMediaPageSize,
	}
}

// ProfileURL constructs the URL for fetching a user's profile
func (e Endpoints) ProfileURL(username string) string {
	params := url.Values{}
	params.Set("username", username)

	return fmt.Sprintf("%s%s?%s", e.base(), ProfileEndpoint, params.Encode())
}

// followVariables is serialised in field order, so identical requests
// produce identical URLs.
type followVariables struct {
	ID          string `json:"id"`
	First       int    `json:"first"`
	IncludeReel bool   `json:"include_reel"`
	FetchMutual bool   `json:"fetch_mutual"`
	After       string `json:"after,omitempty"`
}

// FollowPageURL constructs the GraphQL URL for one page of relation for
// userID, starting after the given cursor (empty for the first page).
func (e Endpoints) FollowPageURL(relation models.Relation, userID, after string) string {
	first := e.PageSize
	if first <= 0 {
		first = DefaultPageSize
	}

	variables, _ := json.Marshal(followVariables{
		ID:    userID,
		First: first,
		After: after,
	})

	return e.graphQL(e.QueryHash(relation), variables)
}

type mediaVariables struct {
	ID    string `json:"id"`
	First int    `json:"first"`
	After string `json:"after,omitempty"`
}

type likersVariables struct {
	Shortcode   string `json:"shortcode"`
	First       int    `json:"first"`
	IncludeReel bool   `json:"include_reel"`
	After       string `json:"after,omitempty"`
}

// MediaPageURL constructs the GraphQL URL for one page of userID's posts.
func (e Endpoints) MediaPageURL(userID, after string) string {
	variables, _ := json.Marshal(mediaVariables{ID: userID, First: e.mediaPageSize(), After: after})
	return e.graphQL(or(e.MediaQueryHash, MediaQueryHash), variables)
}

// LikersPageURL constructs the GraphQL URL for one page of the likers of
// the post with shortcode.
func (e Endpoints) LikersPageURL(shortcode, after string) string {
	variables, _ := json.Marshal(likersVariables{
		Shortcode:   shortcode,
		First:       e.mediaPageSize(),
		IncludeReel: true,
		After:       after,
	})
	return e.graphQL(or(e.LikersQueryHash, LikersQueryHash), variables)
}

func (e Endpoints) graphQL(hash string, variables []byte) string {
	params := url.Values{}
	params.Set("query_hash", hash)
	params.Set("variables", string(variables))
	return fmt.Sprintf("%s%s?%s", e.base(), GraphQLEndpoint, params.Encode())
}

func (e Endpoints) mediaPageSize() int {
	if e.MediaPageSize <= 0 {
		return DefaultMediaPageSize
	}
	return e.MediaPageSize
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// QueryHash returns the GraphQL query hash for relation.
func (e Endpoints) QueryHash(relation models.Relation) string {
	if relation == models.Followers {
		if e.FollowersQueryHash != "" {
			return e.FollowersQueryHash
		}
		return FollowersQueryHash
	}
	if e.FollowingQueryHash != "" {
		return e.FollowingQueryHash
	}
	return FollowingQueryHash
}

func (e Endpoints) base() string {
	if e.BaseURL == "" {
		return BaseURL
	}
	return strings.TrimRight(e.BaseURL, "/")
}

// EdgeKey is the key under data.user holding relation's edges.
func EdgeKey(relation models.Relation) string {
	if relation == models.Followers {
		return "edge_followed_by"
	}
	return "edge_follow"
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, trailing slashes and surrounding spaces.
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
