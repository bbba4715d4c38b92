package scraper

import (
	"context"
	"fmt"
	"time"

	"instaprofiler/pkg/models"
)

// MediaOptions controls a timeline scrape.
type MediaOptions struct {
	// MaxMedia stops after this many posts. 0 walks the whole timeline.
	MaxMedia int
	// Likers walks the likers of each post.
	Likers bool
	// LikersThreshold skips likers of posts with more likes than this.
	// 0 disables the threshold.
	LikersThreshold int
	// MaxLikers caps the likers collected per post. 0 means all.
	MaxLikers int
}

func (o MediaOptions) wantsLikers(m *models.Media) bool {
	if !o.Likers {
		return false
	}
	return o.LikersThreshold <= 0 || m.LikesAmount <= o.LikersThreshold
}

// ScrapeMedia walks account's timeline and, when asked, each post's likers.
// An account without an ID is resolved first.
func (s *Scraper) ScrapeMedia(ctx context.Context, account models.User, opts MediaOptions) (*models.MediaScrape, error) {
	if account.ID == "" {
		resolved, err := s.ResolveUser(ctx, account.Username)
		if err != nil {
			return nil, err
		}
		account = resolved
	}

	start := time.Now()
	scrape := &models.MediaScrape{
		ScrapeID: s.newID(),
		ScrapeTS: s.now().UTC().Truncate(time.Second),
		User:     account,
	}

	media, err := s.walker.WalkMedia(ctx, account, opts.MaxMedia)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", account.Username, err)
	}

	likers := 0
	for _, m := range media {
		if m.Owner.ID == account.ID && m.Owner.Username == "" {
			m.Owner = account
		}
		if !opts.wantsLikers(m) {
			continue
		}
		set, err := s.walker.WalkLikers(ctx, m, opts.MaxLikers)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", account.Username, err)
		}
		m.Likers = set
		likers += set.Len()
	}
	scrape.Media = media

	s.logger.InfoWithFields("scraped media", map[string]interface{}{
		"account":  account.Username,
		"media":    len(media),
		"likers":   likers,
		"duration": time.Since(start),
	})
	return scrape, nil
}
