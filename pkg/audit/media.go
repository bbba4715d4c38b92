package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/reconcile"
	"instaprofiler/pkg/scraper"
	"instaprofiler/pkg/store"
)

// MediaScraper is what a timeline audit needs from the scraping layer.
// *scraper.Scraper implements it.
type MediaScraper interface {
	ResolveUser(ctx context.Context, username string) (models.User, error)
	ScrapeMedia(ctx context.Context, account models.User, opts scraper.MediaOptions) (*models.MediaScrape, error)
}

// ErrNoMediaScraper is returned by AuditMedia when the auditor was built
// without a scraper that can walk timelines.
var ErrNoMediaScraper = errors.New("auditor has no media scraper")

// MediaResult describes one finished timeline audit.
type MediaResult struct {
	Account  models.User
	Status   Status
	State    State
	FailedIn State
	Trace    []State

	ScrapeID string
	ScrapeTS time.Time

	// Media counts scraped posts; NewMedia lists those first seen now.
	Media    int
	NewMedia []*models.Media
	// LikersScraped counts posts whose likers were walked.
	LikersScraped int
	NewLikes      int

	Err error
}

func (r *MediaResult) enter(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// AuditMedia scrapes target's timeline, detects posts and likes not stored
// before and persists the scrape in one transaction. Private accounts the
// viewer does not follow only get their profile refreshed.
func (a *Auditor) AuditMedia(ctx context.Context, target Target, opts scraper.MediaOptions) (*MediaResult, error) {
	res := &MediaResult{}
	res.enter(StateStart)
	log := a.logger.WithFields(map[string]interface{}{"target": target.String(), "scrape": "media"})

	if a.media == nil {
		return a.failMedia(res, log, ErrNoMediaScraper)
	}

	res.enter(StateResolveAccount)
	account, err := a.resolve(ctx, target)
	if err != nil {
		return a.failMedia(res, log, err)
	}
	res.Account = account
	log = a.logger.WithFields(map[string]interface{}{"account": account.Username, "user_id": account.ID, "scrape": "media"})

	if account.IsPrivate && !account.FollowedByViewer {
		res.enter(StatePrivateSkip)
		log.Warn("account is private and not followed by viewer, skipping media")
		res.ScrapeTS = a.now().UTC().Truncate(time.Second)
		err := a.store.InTx(ctx, func(tx *store.Tx) error {
			res.enter(StatePersist)
			if err := tx.UpsertUser(ctx, store.NewUserRecord(account, res.ScrapeTS)); err != nil {
				return err
			}
			res.enter(StateCommit)
			return nil
		})
		if err != nil {
			return a.failMedia(res, log, fmt.Errorf("persist %s: %w", account.Username, err))
		}
		return a.doneMedia(res, log, StatusSkippedPrivate), nil
	}

	res.enter(StateScrape)
	scrape, err := a.media.ScrapeMedia(ctx, account, opts)
	if err != nil {
		return a.failMedia(res, log, err)
	}
	res.ScrapeID = scrape.ScrapeID
	res.ScrapeTS = scrape.ScrapeTS
	res.Media = len(scrape.Media)

	err = a.store.InTx(ctx, func(tx *store.Tx) error {
		res.enter(StateReconcile)
		baseline, err := mediaBaseline(ctx, tx, scrape)
		if err != nil {
			return err
		}
		rec := reconcile.ReconcileMedia(scrape, baseline)
		res.NewMedia = rec.New
		res.LikersScraped = len(rec.NewLikers)
		res.NewLikes = rec.NewLikes()

		res.enter(StatePersist)
		for _, b := range reconcile.PlanMedia(rec).Batches() {
			if _, err := tx.Exec(ctx, b); err != nil {
				return err
			}
		}
		res.enter(StateCommit)
		return nil
	})
	if err != nil {
		return a.failMedia(res, log, fmt.Errorf("persist %s: %w", account.Username, err))
	}

	for _, m := range res.NewMedia {
		log.InfoWithFields("new post", map[string]interface{}{
			"media_id": m.ID,
			"type":     string(m.Type),
			"taken_at": m.TakenAt,
			"likes":    m.LikesAmount,
		})
	}
	return a.doneMedia(res, log, StatusSuccess), nil
}

func mediaBaseline(ctx context.Context, tx *store.Tx, scrape *models.MediaScrape) (*reconcile.MediaBaseline, error) {
	known, err := tx.KnownMedia(ctx, scrape.User.ID)
	if err != nil {
		return nil, err
	}
	baseline := &reconcile.MediaBaseline{Media: known, Likers: make(map[string]map[string]bool)}
	for _, m := range scrape.Media {
		if !m.LikersScraped() || !known[m.ID] {
			continue
		}
		likers, err := tx.KnownLikers(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		baseline.Likers[m.ID] = likers
	}
	return baseline, nil
}

func (a *Auditor) doneMedia(res *MediaResult, log logger.Logger, status Status) *MediaResult {
	res.Status = status
	res.enter(StateDone)
	log.InfoWithFields("media audit finished", map[string]interface{}{
		"status":    string(status),
		"media":     res.Media,
		"new_media": len(res.NewMedia),
		"new_likes": res.NewLikes,
	})
	return res
}

func (a *Auditor) failMedia(res *MediaResult, log logger.Logger, err error) (*MediaResult, error) {
	res.FailedIn = res.State
	res.Status = StatusFailed
	res.Err = err
	res.enter(StateFailed)
	log.WithError(err).ErrorWithFields("media audit failed", map[string]interface{}{
		"state": res.FailedIn.String(),
	})
	return res, err
}

// MediaGroupOptions controls a timeline run over a user group.
type MediaGroupOptions struct {
	Media scraper.MediaOptions
	// Limit caps the number of members processed. 0 means all.
	Limit int
	// OnResult, when set, is called after each member.
	OnResult func(done, total int, res *MediaResult)
}

// MediaGroupReport collects the results of a timeline group run.
type MediaGroupReport struct {
	Group    string
	Results  []*MediaResult
	Started  time.Time
	Finished time.Time
}

// NewMedia returns every post first seen during the run.
func (r *MediaGroupReport) NewMedia() []*models.Media {
	var out []*models.Media
	for _, res := range r.Results {
		out = append(out, res.NewMedia...)
	}
	return out
}

// Failed counts failed members.
func (r *MediaGroupReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			n++
		}
	}
	return n
}

// RunMedia audits the timelines of group's members, those never scraped
// for media first. Continuable failures are recorded and skipped; any
// other error stops the run and is returned with the partial report.
func (g *GroupRunner) RunMedia(ctx context.Context, group string, opts MediaGroupOptions) (*MediaGroupReport, error) {
	report := &MediaGroupReport{Group: group, Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	members, err := g.store.MediaGroupMembers(ctx, group, opts.Limit)
	if err != nil {
		return report, err
	}
	log := g.logger.WithFields(map[string]interface{}{"group": group, "scrape": "media"})
	log.InfoWithFields("found group members", map[string]interface{}{"count": len(members)})

	for i, m := range members {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := g.auditor.AuditMedia(ctx, ByName(m.UserName), opts.Media)
		report.Results = append(report.Results, res)
		if opts.OnResult != nil {
			opts.OnResult(i+1, len(members), res)
		}
		if err != nil {
			if !Continuable(err) {
				return report, err
			}
			log.WithError(err).WarnWithFields("skipping account", map[string]interface{}{"account": m.UserName})
		}
	}

	log.InfoWithFields("group media run finished", map[string]interface{}{
		"new_media": len(report.NewMedia()),
		"failed":    report.Failed(),
	})
	return report, nil
}
