// Package igtest provides a fake Instagram for tests: an httptest server
// serving profile, follow-graph, timeline and likers endpoints from
// in-memory accounts, and a scripted fetcher for exact control over
// individual responses.
package igtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"instaprofiler/pkg/instagram"
	"instaprofiler/pkg/models"
)

const cursorPrefix = "cursor-"

// Server simulates the Instagram profile and GraphQL endpoints.
type Server struct {
	server *httptest.Server

	mu          sync.RWMutex
	profiles    map[string]models.User
	graph       map[string]map[models.Relation][]models.User
	media       map[string][]*models.Media
	likers      map[string][]models.User
	throttles   map[string]int
	statusCodes map[string]int
	requests    map[string]int

	requestCount int32
}

// NewServer starts a server with no accounts. Close it when done.
func NewServer() *Server {
	s := &Server{
		profiles:    make(map[string]models.User),
		graph:       make(map[string]map[models.Relation][]models.User),
		media:       make(map[string][]*models.Media),
		likers:      make(map[string][]models.User),
		throttles:   make(map[string]int),
		statusCodes: make(map[string]int),
		requests:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(instagram.ProfileEndpoint, s.handleProfile)
	mux.HandleFunc(instagram.GraphQLEndpoint, s.handleGraphQL)

	s.server = httptest.NewServer(mux)
	return s
}

// ProfileKey names the profile endpoint of username for throttling,
// errors and request counts.
func ProfileKey(username string) string {
	return "profile/" + username
}

// PageKey names the follow pages of one relation of an account.
func PageKey(userID string, relation models.Relation) string {
	return "graphql/" + userID + "/" + relation.String()
}

// MediaKey names the timeline pages of an account.
func MediaKey(userID string) string {
	return "graphql/" + userID + "/media"
}

// LikersKey names the likers pages of a post.
func LikersKey(shortcode string) string {
	return "graphql/" + shortcode + "/likers"
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.server.URL
}

// Endpoints returns endpoints pointed at the server.
func (s *Server) Endpoints(pageSize int) instagram.Endpoints {
	e := instagram.DefaultEndpoints()
	e.BaseURL = s.server.URL
	if pageSize > 0 {
		e.PageSize = pageSize
	}
	return e
}

// Close shuts down the server.
func (s *Server) Close() {
	s.server.Close()
}

// AddAccount registers a profile.
func (s *Server) AddAccount(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[u.Username] = u
}

// SetFollows replaces the accounts userID follows.
func (s *Server) SetFollows(userID string, users ...models.User) {
	s.setRelation(userID, models.Following, users)
}

// SetFollowers replaces the accounts following userID.
func (s *Server) SetFollowers(userID string, users ...models.User) {
	s.setRelation(userID, models.Followers, users)
}

func (s *Server) setRelation(userID string, relation models.Relation, users []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph[userID] == nil {
		s.graph[userID] = make(map[models.Relation][]models.User)
	}
	s.graph[userID][relation] = append([]models.User(nil), users...)
}

// SetMedia replaces the timeline of userID, newest post first.
func (s *Server) SetMedia(userID string, media ...*models.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[userID] = append([]*models.Media(nil), media...)
}

// SetLikers replaces the likers of the post with shortcode.
func (s *Server) SetLikers(shortcode string, users ...models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.likers[shortcode] = append([]models.User(nil), users...)
}

// Throttle makes the next n requests to key return the throttle page.
func (s *Server) Throttle(key string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttles[key] = n
}

// SetErrorResponse makes every request to key fail with code.
func (s *Server) SetErrorResponse(key string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCodes[key] = code
}

// ClearErrorResponse removes an error configured with SetErrorResponse.
func (s *Server) ClearErrorResponse(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statusCodes, key)
}

// Requests returns the number of requests made to key.
func (s *Server) Requests(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[key]
}

// RequestCount returns the total number of requests.
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// intercept records the request and writes a configured error or throttle
// page. It reports whether the response was written.
func (s *Server) intercept(w http.ResponseWriter, key string) bool {
	atomic.AddInt32(&s.requestCount, 1)

	s.mu.Lock()
	s.requests[key]++
	code := s.statusCodes[key]
	throttled := s.throttles[key] > 0
	if throttled {
		s.throttles[key]--
	}
	s.mu.Unlock()

	if code > 0 {
		sendError(w, code, key)
		return true
	}
	if throttled {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, ThrottleBody)
		return true
	}
	return false
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if s.intercept(w, ProfileKey(username)) {
		return
	}

	s.mu.RLock()
	user, ok := s.profiles[username]
	s.mu.RUnlock()
	if !ok {
		sendError(w, http.StatusNotFound, username)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, ProfileJSON(user))
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var variables struct {
		ID        string `json:"id"`
		Shortcode string `json:"shortcode"`
		First     int    `json:"first"`
		After     string `json:"after"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	offset, err := parseCursor(variables.After)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch hash := r.URL.Query().Get("query_hash"); hash {
	case instagram.FollowersQueryHash, instagram.FollowingQueryHash:
		relation := models.Followers
		if hash == instagram.FollowingQueryHash {
			relation = models.Following
		}
		if s.intercept(w, PageKey(variables.ID, relation)) {
			return
		}
		s.mu.RLock()
		users := s.graph[variables.ID][relation]
		s.mu.RUnlock()
		start, end, next := window(offset, variables.First, len(users))
		writeJSON(w, FollowPageJSON(relation, users[start:end], len(users), next))

	case instagram.MediaQueryHash:
		if s.intercept(w, MediaKey(variables.ID)) {
			return
		}
		s.mu.RLock()
		media := s.media[variables.ID]
		s.mu.RUnlock()
		start, end, next := window(offset, variables.First, len(media))
		writeJSON(w, MediaPageJSON(media[start:end], len(media), next))

	case instagram.LikersQueryHash:
		if s.intercept(w, LikersKey(variables.Shortcode)) {
			return
		}
		s.mu.RLock()
		users := s.likers[variables.Shortcode]
		s.mu.RUnlock()
		start, end, next := window(offset, variables.First, len(users))
		writeJSON(w, LikersPageJSON(users[start:end], len(users), next))

	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func parseCursor(after string) (int, error) {
	if after == "" {
		return 0, nil
	}
	return strconv.Atoi(strings.TrimPrefix(after, cursorPrefix))
}

// window slices total items into the page starting at offset. next is empty
// on the last page.
func window(offset, first, total int) (start, end int, next string) {
	if first <= 0 {
		first = total
	}
	start = min(offset, total)
	end = min(start+first, total)
	if end < total {
		next = cursorPrefix + strconv.Itoa(end)
	}
	return start, end, next
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func sendError(w http.ResponseWriter, code int, context string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	message := fmt.Sprintf("Error %d", code)
	switch code {
	case http.StatusUnauthorized:
		message = "Login required"
	case http.StatusNotFound:
		message = "Resource not found: " + context
	case http.StatusTooManyRequests:
		message = ThrottleBody
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": message,
		"status":  "fail",
	})
}
