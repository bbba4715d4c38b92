package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"instaprofiler/pkg/config"
	"instaprofiler/pkg/instagram"
	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/models"
)

// Options configures a Scraper.
type Options struct {
	Walker WalkerConfig

	// Now stamps each batch. Defaults to time.Now.
	Now func() time.Time
	// NewID names each batch. Defaults to a random UUID.
	NewID func() string
}

// OptionsFromConfig maps the scrape and instagram sections of cfg.
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		Walker: WalkerConfig{
			Endpoints: instagram.Endpoints{
				BaseURL:            cfg.Instagram.BaseURL,
				FollowersQueryHash: cfg.Instagram.FollowersQueryHash,
				FollowingQueryHash: cfg.Instagram.FollowingQueryHash,
				MediaQueryHash:     cfg.Instagram.MediaQueryHash,
				LikersQueryHash:    cfg.Instagram.LikersQueryHash,
				PageSize:           cfg.Scrape.PageSize,
				MediaPageSize:      cfg.Media.PageSize,
			},
			PageMaxRetries:    cfg.Scrape.MaxRetries,
			PageRetryDelay:    cfg.Scrape.RetryDelay,
			ProfileMaxRetries: cfg.Scrape.ProfileMaxRetries,
			ProfileRetryDelay: cfg.Scrape.ProfileRetryDelay,
			MaxPages:          cfg.Scrape.MaxPages,
			Logger:            log,
		},
	}
}

// Scraper produces follow-graph snapshots for batches of accounts. It owns
// one fetcher session and is reused across accounts.
type Scraper struct {
	walker *Walker
	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// New creates a Scraper over fetcher.
func New(fetcher Fetcher, opts Options) *Scraper {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	return &Scraper{
		walker: NewWalker(fetcher, opts.Walker),
		now:    now,
		newID:  newID,
		logger: logger.OrNop(opts.Walker.Logger),
	}
}

// ResolveUser fetches an account's profile by username.
func (s *Scraper) ResolveUser(ctx context.Context, username string) (models.User, error) {
	return s.walker.Resolve(ctx, username)
}

// Scrape walks the requested sides of every account. Accounts without an
// ID are resolved by username first. Any error aborts the batch; the
// caller decides whether to continue with other accounts.
func (s *Scraper) Scrape(ctx context.Context, accounts []models.User, sides models.Sides) (*models.FollowScrape, error) {
	batch := &models.FollowScrape{
		ScrapeID: s.newID(),
		ScrapeTS: s.now().UTC().Truncate(time.Second),
	}

	for _, account := range accounts {
		snap, err := s.scrapeAccount(ctx, account, sides)
		if err != nil {
			return nil, err
		}
		batch.Snapshots = append(batch.Snapshots, snap)
	}

	return batch, nil
}

func (s *Scraper) scrapeAccount(ctx context.Context, account models.User, sides models.Sides) (*models.FollowGraphSnapshot, error) {
	if account.ID == "" {
		resolved, err := s.ResolveUser(ctx, account.Username)
		if err != nil {
			return nil, err
		}
		account = resolved
	}

	start := time.Now()
	snap := &models.FollowGraphSnapshot{
		User:      account,
		Follows:   models.NewUserSet(),
		Followers: models.NewUserSet(),
		Scraped:   sides,
	}

	if sides.Follows {
		follows, err := s.walker.Walk(ctx, account, models.Following)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", account.Username, err)
		}
		snap.Follows = follows
	}
	if sides.Followers {
		followers, err := s.walker.Walk(ctx, account, models.Followers)
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", account.Username, err)
		}
		snap.Followers = followers
	}

	s.logger.InfoWithFields("scraped follow graph", map[string]interface{}{
		"account":   account.Username,
		"follows":   snap.Follows.Len(),
		"followers": snap.Followers.Len(),
		"duration":  time.Since(start),
	})
	return snap, nil
}
