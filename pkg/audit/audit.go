// Package audit drives one account at a time through resolution, scraping,
// reconciliation and persistence, and runs whole user groups on top of that.
//
// An audit moves through
//
//	START → RESOLVE_ACCOUNT → [PRIVATE_SKIP | SCRAPE] → RECONCILE → PERSIST → COMMIT → DONE
//
// and lands in FAILED from any state. Every write for an account happens in
// one transaction, so a failed audit leaves previously committed state
// untouched.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	igerrors "instaprofiler/pkg/errors"
	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/reconcile"
	"instaprofiler/pkg/store"
)

// State is a step of the audit state machine.
type State int

const (
	StateStart State = iota
	StateResolveAccount
	StatePrivateSkip
	StateScrape
	StateReconcile
	StatePersist
	StateCommit
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateStart:          "START",
	StateResolveAccount: "RESOLVE_ACCOUNT",
	StatePrivateSkip:    "PRIVATE_SKIP",
	StateScrape:         "SCRAPE",
	StateReconcile:      "RECONCILE",
	StatePersist:        "PERSIST",
	StateCommit:         "COMMIT",
	StateDone:           "DONE",
	StateFailed:         "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the per-account outcome.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusSkippedPrivate Status = "skipped_private"
	StatusSkippedTooMany Status = "skipped_too_many"
	StatusFailed         Status = "failed"
)

// Target names the account to audit. A target with a User that carries an
// ID is used as given; otherwise Username is resolved from its profile.
type Target struct {
	Username string
	User     *models.User
}

// ByName targets an account by handle.
func ByName(username string) Target {
	return Target{Username: username}
}

// ForUser targets an already resolved account.
func ForUser(u models.User) Target {
	return Target{Username: u.Username, User: &u}
}

func (t Target) String() string {
	if t.User != nil && t.User.Username != "" {
		return t.User.Username
	}
	return t.Username
}

// Options controls one audit.
type Options struct {
	// Sides selects the relations to scrape. The zero value scrapes both.
	Sides models.Sides
	// OnlyMutual persists only mutual edges to the follows aggregate.
	OnlyMutual bool
	// MaxFollowAmount skips a side whose count exceeds it. 0 disables the
	// ceiling.
	MaxFollowAmount int
}

func (o Options) sides() models.Sides {
	if !o.Sides.Any() {
		return models.Sides{Follows: true, Followers: true}
	}
	return o.Sides
}

// Result describes one finished audit.
type Result struct {
	Account models.User
	Status  Status
	// State is the final state, DONE or FAILED. FailedIn is the state that
	// failed.
	State    State
	FailedIn State
	Trace    []State

	Requested  models.Sides
	Scraped    models.Sides
	Downgraded models.Sides

	ScrapeID string
	ScrapeTS time.Time

	NewFollows     int
	Unfollows      int
	NewFollowers   int
	LostFollowers  int
	EdgesWritten   int
	EventsInserted int64

	ArchivePath string
	Err         error
}

func (r *Result) enter(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// Scraper is what the auditor needs from the scraping layer.
type Scraper interface {
	ResolveUser(ctx context.Context, username string) (models.User, error)
	Scrape(ctx context.Context, accounts []models.User, sides models.Sides) (*models.FollowScrape, error)
}

// Archiver stores snapshots after they are committed.
type Archiver interface {
	Save(snap *models.FollowGraphSnapshot, scrapeID string, ts time.Time) (string, error)
}

// Config wires an Auditor.
type Config struct {
	Scraper Scraper
	// MediaScraper walks timelines. When nil, Scraper is used if it
	// implements MediaScraper.
	MediaScraper MediaScraper
	Store        *store.Store
	// Archive is optional.
	Archive Archiver
	// Now stamps audits that skip scraping. Defaults to time.Now.
	Now    func() time.Time
	Logger logger.Logger
}

// Auditor runs audits sequentially over one scraper session and one store.
type Auditor struct {
	scraper Scraper
	media   MediaScraper
	store   *store.Store
	archive Archiver
	now     func() time.Time
	logger  logger.Logger
}

// New creates an Auditor.
func New(cfg Config) *Auditor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	media := cfg.MediaScraper
	if media == nil {
		media, _ = cfg.Scraper.(MediaScraper)
	}
	return &Auditor{
		scraper: cfg.Scraper,
		media:   media,
		store:   cfg.Store,
		archive: cfg.Archive,
		now:     now,
		logger:  logger.OrNop(cfg.Logger).WithField("component", "audit"),
	}
}

// Audit processes one account. The returned Result is never nil; on failure
// it carries the error that is also returned.
func (a *Auditor) Audit(ctx context.Context, target Target, opts Options) (*Result, error) {
	res := &Result{Requested: opts.sides()}
	res.enter(StateStart)

	log := a.logger.WithField("target", target.String())

	res.enter(StateResolveAccount)
	account, err := a.resolve(ctx, target)
	if err != nil {
		return a.fail(res, log, err)
	}
	res.Account = account
	log = a.logger.WithFields(map[string]interface{}{"account": account.Username, "user_id": account.ID})

	if account.IsPrivate && !account.FollowedByViewer {
		res.enter(StatePrivateSkip)
		log.Warn("account is private and not followed by viewer, skipping scrape")
		return a.persistUserOnly(ctx, res, log, StatusSkippedPrivate)
	}

	sides := a.applyCeiling(res, log, opts)
	if !sides.Any() {
		log.Warn("both sides exceed the follow ceiling, skipping scrape")
		return a.persistUserOnly(ctx, res, log, StatusSkippedTooMany)
	}

	res.enter(StateScrape)
	batch, err := a.scraper.Scrape(ctx, []models.User{account}, sides)
	if err != nil {
		return a.fail(res, log, err)
	}
	if len(batch.Snapshots) != 1 {
		return a.fail(res, log, fmt.Errorf("scrape of %s returned %d snapshots", account.Username, len(batch.Snapshots)))
	}
	snap := batch.Snapshots[0]
	res.Scraped = snap.Scraped
	res.ScrapeID = batch.ScrapeID
	res.ScrapeTS = batch.ScrapeTS

	err = a.store.InTx(ctx, func(tx *store.Tx) error {
		res.enter(StateReconcile)
		previous, err := tx.CurrentFollows(ctx, account)
		if err != nil {
			return err
		}
		rec := reconcile.Reconcile(snap, previous, batch.ScrapeID, batch.ScrapeTS, reconcile.Options{OnlyMutual: opts.OnlyMutual})
		res.NewFollows = rec.Follows.New.Len()
		res.Unfollows = rec.Follows.Unfollowed.Len()
		res.NewFollowers = rec.Followers.New.Len()
		res.LostFollowers = rec.Followers.Unfollowed.Len()
		res.EdgesWritten = len(rec.Edges)

		res.enter(StatePersist)
		plan := reconcile.Plan(rec)
		for _, b := range plan.Batches() {
			n, err := tx.Exec(ctx, b)
			if err != nil {
				return err
			}
			if b.Table == store.TableFollowEvents {
				res.EventsInserted = n
			}
		}
		res.enter(StateCommit)
		return nil
	})
	if err != nil {
		return a.fail(res, log, fmt.Errorf("persist %s: %w", account.Username, err))
	}

	a.archiveSnapshot(res, log, snap)
	return a.done(res, log, StatusSuccess), nil
}

func (a *Auditor) resolve(ctx context.Context, target Target) (models.User, error) {
	if target.User != nil && target.User.ID != "" {
		return *target.User, nil
	}
	name := target.Username
	if name == "" && target.User != nil {
		name = target.User.Username
	}
	if name == "" {
		return models.User{}, fmt.Errorf("empty target: %w", igerrors.ErrUserDoesNotExist)
	}
	u, err := a.scraper.ResolveUser(ctx, name)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// applyCeiling downgrades sides whose count exceeds the ceiling.
func (a *Auditor) applyCeiling(res *Result, log logger.Logger, opts Options) models.Sides {
	sides := res.Requested
	ceiling := opts.MaxFollowAmount
	if ceiling <= 0 {
		return sides
	}
	acc := res.Account
	if sides.Followers && acc.FollowedByAmount != nil && *acc.FollowedByAmount > ceiling {
		log.WarnWithFields("account is followed by too many users, skipping followers", map[string]interface{}{
			"followed_by": *acc.FollowedByAmount,
			"max":         ceiling,
		})
		sides.Followers = false
		res.Downgraded.Followers = true
	}
	if sides.Follows && acc.FollowsAmount != nil && *acc.FollowsAmount > ceiling {
		log.WarnWithFields("account follows too many users, skipping follows", map[string]interface{}{
			"follows": *acc.FollowsAmount,
			"max":     ceiling,
		})
		sides.Follows = false
		res.Downgraded.Follows = true
	}
	return sides
}

func (a *Auditor) persistUserOnly(ctx context.Context, res *Result, log logger.Logger, status Status) (*Result, error) {
	res.ScrapeTS = a.now().UTC().Truncate(time.Second)
	plan := reconcile.UserOnlyPlan(res.Account, res.ScrapeTS)

	err := a.store.InTx(ctx, func(tx *store.Tx) error {
		res.enter(StatePersist)
		for _, b := range plan.Batches() {
			if _, err := tx.Exec(ctx, b); err != nil {
				return err
			}
		}
		res.enter(StateCommit)
		return nil
	})
	if err != nil {
		return a.fail(res, log, fmt.Errorf("persist %s: %w", res.Account.Username, err))
	}
	return a.done(res, log, status), nil
}

func (a *Auditor) archiveSnapshot(res *Result, log logger.Logger, snap *models.FollowGraphSnapshot) {
	if a.archive == nil {
		return
	}
	path, err := a.archive.Save(snap, res.ScrapeID, res.ScrapeTS)
	if err != nil {
		log.WithError(err).Warn("failed to archive snapshot")
		return
	}
	res.ArchivePath = path
}

func (a *Auditor) done(res *Result, log logger.Logger, status Status) *Result {
	res.Status = status
	res.enter(StateDone)
	log.InfoWithFields("audit finished", map[string]interface{}{
		"status":         string(status),
		"new_follows":    res.NewFollows,
		"unfollows":      res.Unfollows,
		"new_followers":  res.NewFollowers,
		"lost_followers": res.LostFollowers,
	})
	return res
}

func (a *Auditor) fail(res *Result, log logger.Logger, err error) (*Result, error) {
	res.FailedIn = res.State
	res.Status = StatusFailed
	res.Err = err
	res.enter(StateFailed)
	log.WithError(err).ErrorWithFields("audit failed", map[string]interface{}{
		"state": res.FailedIn.String(),
	})
	return res, err
}

// Continuable reports whether a group run may move on to the next account
// after err.
func Continuable(err error) bool {
	return errors.Is(err, igerrors.ErrUserDoesNotExist) || errors.Is(err, igerrors.ErrMaxRetriesReached)
}
