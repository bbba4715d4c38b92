package audit

import (
	"context"
	"fmt"
	"time"

	"instaprofiler/pkg/checkpoint"
	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/store"
)

// GroupOptions controls a group run.
type GroupOptions struct {
	Audit Options
	// Limit caps the number of members processed. 0 means all.
	Limit int
	// Resume skips members a previous interrupted run already finished.
	Resume bool
	// OnResult, when set, is called after each audited member with the
	// number of members handled so far and the total.
	OnResult func(done, total int, res *Result)
}

// GroupReport collects the results of a group run in processing order.
type GroupReport struct {
	Group    string
	Results  []*Result
	Skipped  int
	Started  time.Time
	Finished time.Time
}

// Failed reports whether any account failed.
func (r *GroupReport) Failed() bool {
	return r.Count(StatusFailed) > 0
}

// Count returns how many results have status s.
func (r *GroupReport) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// CheckpointStore persists group progress. *checkpoint.Manager implements it.
type CheckpointStore interface {
	LoadOrCreate(group string) (*checkpoint.Checkpoint, error)
	Create(group string) (*checkpoint.Checkpoint, error)
	RecordDone(cp *checkpoint.Checkpoint, userID, status string) error
	RecordFailure(cp *checkpoint.Checkpoint, userID string, cause error) error
	Delete() error
}

// GroupRunner audits every member of a user group sequentially.
type GroupRunner struct {
	auditor     *Auditor
	store       *store.Store
	checkpoints CheckpointStore
	logger      logger.Logger
}

// NewGroupRunner creates a runner. checkpoints may be nil.
func NewGroupRunner(auditor *Auditor, st *store.Store, checkpoints CheckpointStore, log logger.Logger) *GroupRunner {
	return &GroupRunner{
		auditor:     auditor,
		store:       st,
		checkpoints: checkpoints,
		logger:      logger.OrNop(log).WithField("component", "group"),
	}
}

// Run audits the members of group, least recently scraped first. Accounts
// that do not exist or exhaust their retry budget are recorded as failed and
// the run moves on; any other error stops the run and is returned with the
// partial report.
func (g *GroupRunner) Run(ctx context.Context, group string, opts GroupOptions) (*GroupReport, error) {
	report := &GroupReport{Group: group, Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	members, err := g.store.GroupMembers(ctx, group, store.GroupQuery{
		MaxFollowAmount: opts.Audit.MaxFollowAmount,
		Limit:           opts.Limit,
	})
	if err != nil {
		return report, err
	}
	log := g.logger.WithField("group", group)
	log.InfoWithFields("found group members", map[string]interface{}{"count": len(members)})

	var cp *checkpoint.Checkpoint
	if g.checkpoints != nil {
		if opts.Resume {
			cp, err = g.checkpoints.LoadOrCreate(group)
		} else {
			cp, err = g.checkpoints.Create(group)
		}
		if err != nil {
			return report, fmt.Errorf("checkpoint for %s: %w", group, err)
		}
	}

	for i, m := range members {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if cp != nil && cp.IsDone(m.UserID) {
			report.Skipped++
			continue
		}

		log.InfoWithFields("handling user", map[string]interface{}{"account": m.UserName})
		res, err := g.auditor.Audit(ctx, ByName(m.UserName), opts.Audit)
		report.Results = append(report.Results, res)
		if opts.OnResult != nil {
			opts.OnResult(i+1, len(members), res)
		}

		if err != nil {
			if !Continuable(err) {
				return report, err
			}
			log.WithError(err).WarnWithFields("skipping account", map[string]interface{}{"account": m.UserName})
			if cp != nil {
				if err := g.checkpoints.RecordFailure(cp, m.UserID, err); err != nil {
					return report, err
				}
			}
			continue
		}
		if cp != nil {
			if err := g.checkpoints.RecordDone(cp, m.UserID, string(res.Status)); err != nil {
				return report, err
			}
		}
	}

	if cp != nil {
		if err := g.checkpoints.Delete(); err != nil {
			return report, err
		}
	}

	log.InfoWithFields("group run finished", map[string]interface{}{
		"success": report.Count(StatusSuccess),
		"failed":  report.Count(StatusFailed),
		"skipped": report.Skipped,
	})
	return report, nil
}
