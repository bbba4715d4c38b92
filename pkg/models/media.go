package models

import "time"

// MediaType classifies a post.
type MediaType string

const (
	MediaPicture MediaType = "picture"
	MediaVideo   MediaType = "video"
	MediaAlbum   MediaType = "album"
)

// Media is one post on an account's timeline. Likers is only populated when
// likers were scraped for it.
type Media struct {
	ID             string    `json:"id"`
	Shortcode      string    `json:"shortcode"`
	Type           MediaType `json:"media_type"`
	DisplayURL     string    `json:"display_url,omitempty"`
	TakenAt        time.Time `json:"taken_at"`
	Owner          User      `json:"owner"`
	LikesAmount    int       `json:"likes_amount"`
	CommentsAmount int       `json:"comments_amount"`
	Taggees        []User    `json:"taggees,omitempty"`
	Likers         *UserSet  `json:"likers,omitempty"`
}

// LikersScraped reports whether likers were walked for m.
func (m *Media) LikersScraped() bool {
	return m.Likers != nil
}

// MediaScrape is one account's timeline as observed by a single scrape,
// newest post first.
type MediaScrape struct {
	ScrapeID string    `json:"scrape_id"`
	ScrapeTS time.Time `json:"scrape_ts"`
	User     User      `json:"user"`
	Media    []*Media  `json:"media"`
}
