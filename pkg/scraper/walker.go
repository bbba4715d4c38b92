package scraper

import (
	"context"
	"fmt"
	"time"

	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/instagram"
	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/retry"
)

// WalkerConfig configures a Walker.
type WalkerConfig struct {
	Endpoints instagram.Endpoints

	// Page fetches: attempts per page and the fixed wait between them.
	PageMaxRetries int
	PageRetryDelay time.Duration

	// Profile fetches used to resolve usernames.
	ProfileMaxRetries int
	ProfileRetryDelay time.Duration

	// MaxPages caps pages per walk; 0 means no cap.
	MaxPages int

	Logger logger.Logger
}

// Walker paginates the GraphQL edges of one account: its follow relations,
// its timeline and the likers of its posts.
type Walker struct {
	fetcher Fetcher
	cfg     WalkerConfig
	logger  logger.Logger
}

// NewWalker creates a walker. Non-positive retry budgets become 1.
func NewWalker(fetcher Fetcher, cfg WalkerConfig) *Walker {
	if cfg.PageMaxRetries <= 0 {
		cfg.PageMaxRetries = 1
	}
	if cfg.ProfileMaxRetries <= 0 {
		cfg.ProfileMaxRetries = 1
	}
	return &Walker{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.OrNop(cfg.Logger),
	}
}

// Walk fetches every page of relation for account and returns the users in
// the order the API returned them. account.ID must be set.
func (w *Walker) Walk(ctx context.Context, account models.User, relation models.Relation) (*models.UserSet, error) {
	if account.ID == "" {
		return nil, fmt.Errorf("walk %s of %q: account has no id", relation, account.Username)
	}

	log := w.logger.WithFields(map[string]interface{}{
		"account":  account.Username,
		"relation": relation.String(),
	})

	users := models.NewUserSet()
	err := paginate(ctx, w, log, "fetched follow page",
		func(cursor string) string { return w.cfg.Endpoints.FollowPageURL(relation, account.ID, cursor) },
		func(body string) (*instagram.FollowPage, error) { return instagram.DecodeFollowPage(body, relation) },
		func(fp *instagram.FollowPage) (int, int, bool) {
			added := 0
			for _, u := range fp.Users {
				if users.Add(u) {
					added++
				}
			}
			return added, users.Len(), false
		})
	if err != nil {
		return nil, fmt.Errorf("walk %s of %s %w", relation, account.Username, err)
	}
	return users, nil
}

// WalkMedia fetches account's timeline, newest post first. A positive limit
// stops the walk once that many posts were collected.
func (w *Walker) WalkMedia(ctx context.Context, account models.User, limit int) ([]*models.Media, error) {
	if account.ID == "" {
		return nil, fmt.Errorf("walk media of %q: account has no id", account.Username)
	}

	log := w.logger.WithFields(map[string]interface{}{"account": account.Username, "relation": "media"})

	var media []*models.Media
	seen := make(map[string]bool)
	err := paginate(ctx, w, log, "fetched media page",
		func(cursor string) string { return w.cfg.Endpoints.MediaPageURL(account.ID, cursor) },
		instagram.DecodeMediaPage,
		func(mp *instagram.MediaPage) (int, int, bool) {
			added := 0
			for _, m := range mp.Media {
				if seen[m.ID] {
					continue
				}
				seen[m.ID] = true
				media = append(media, m)
				added++
				if limit > 0 && len(media) >= limit {
					return added, len(media), true
				}
			}
			return added, len(media), false
		})
	if err != nil {
		return nil, fmt.Errorf("walk media of %s %w", account.Username, err)
	}
	return media, nil
}

// WalkLikers fetches the users who liked m. A positive limit stops the walk
// once that many likers were collected.
func (w *Walker) WalkLikers(ctx context.Context, m *models.Media, limit int) (*models.UserSet, error) {
	if m.Shortcode == "" {
		return nil, fmt.Errorf("walk likers of media %s: no shortcode", m.ID)
	}

	log := w.logger.WithFields(map[string]interface{}{"media": m.ID, "relation": "likers"})

	likers := models.NewUserSet()
	err := paginate(ctx, w, log, "fetched likers page",
		func(cursor string) string { return w.cfg.Endpoints.LikersPageURL(m.Shortcode, cursor) },
		instagram.DecodeLikersPage,
		func(lp *instagram.LikersPage) (int, int, bool) {
			added := 0
			for _, u := range lp.Users {
				if likers.Add(u) {
					added++
				}
				if limit > 0 && likers.Len() >= limit {
					return added, likers.Len(), true
				}
			}
			return added, likers.Len(), false
		})
	if err != nil {
		return nil, fmt.Errorf("walk likers of media %s %w", m.ID, err)
	}
	return likers, nil
}

// page is a decoded GraphQL edge page.
type page interface {
	Info() instagram.PageInfo
}

// paginate drives one cursor walk: it fetches urlFor(cursor), decodes it
// with soft-failure retries and hands every page to collect, which returns
// the number of new items, the running total, and whether to stop early.
// Errors are prefixed with the failing page number.
func paginate[P page](
	ctx context.Context,
	w *Walker,
	log logger.Logger,
	msg string,
	urlFor func(cursor string) string,
	decode func(body string) (P, error),
	collect func(P) (added, total int, stop bool),
) error {
	seen := make(map[string]bool)
	cursor := ""

	for n := 1; ; n++ {
		if w.cfg.MaxPages > 0 && n > w.cfg.MaxPages {
			return fmt.Errorf("page %d: %w (%d)", n, errs.ErrMaxPagesReached, w.cfg.MaxPages)
		}

		p, err := fetchPage(ctx, w, urlFor(cursor), decode, log.WithField("page", n))
		if err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		info := p.Info()

		added, total, stop := collect(p)
		fields := map[string]interface{}{
			"page":  n,
			"added": added,
			"total": total,
		}
		if info.Count != nil {
			fields["expected"] = *info.Count
		}
		log.InfoWithFields(msg, fields)

		if stop || !info.HasNextPage {
			return nil
		}
		if seen[info.EndCursor] || info.EndCursor == cursor {
			return fmt.Errorf("page %d: %w: %q", n, errs.ErrCursorRepeated, info.EndCursor)
		}
		seen[info.EndCursor] = true
		cursor = info.EndCursor
	}
}

// fetchPage fetches and decodes one page, refetching the same URL while the
// response is a soft failure.
func fetchPage[P page](ctx context.Context, w *Walker, url string, decode func(string) (P, error), log logger.Logger) (P, error) {
	return retry.DoWithResult(func() (P, error) {
		body, err := w.fetcher.Fetch(ctx, url)
		if err != nil {
			var zero P
			return zero, err
		}
		return decode(body)
	}, &retry.Config{
		MaxAttempts: w.cfg.PageMaxRetries,
		Backoff:     &retry.ConstantBackoff{Delay: w.cfg.PageRetryDelay},
		RetryIf:     errs.IsSoftFailure,
		Context:     ctx,
		Logger:      log,
	})
}

// Resolve looks up an account by username.
func (w *Walker) Resolve(ctx context.Context, username string) (models.User, error) {
	username = instagram.SanitizeUsername(username)
	if !instagram.IsValidUsername(username) {
		return models.User{}, fmt.Errorf("%w: invalid username %q", errs.ErrUserDoesNotExist, username)
	}

	log := w.logger.WithField("account", username)
	url := w.cfg.Endpoints.ProfileURL(username)

	user, err := retry.DoWithResult(func() (models.User, error) {
		body, err := w.fetcher.Fetch(ctx, url)
		if err != nil {
			return models.User{}, err
		}
		return instagram.DecodeProfile(body)
	}, &retry.Config{
		MaxAttempts: w.cfg.ProfileMaxRetries,
		Backoff:     &retry.ConstantBackoff{Delay: w.cfg.ProfileRetryDelay},
		RetryIf:     errs.IsSoftFailure,
		Context:     ctx,
		Logger:      log,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("resolve %s: %w", username, err)
	}

	log.DebugWithFields("resolved account", map[string]interface{}{
		"user_id":    user.ID,
		"is_private": user.IsPrivate,
	})
	return user, nil
}
