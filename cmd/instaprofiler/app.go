package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"instaprofiler/pkg/audit"
	"instaprofiler/pkg/auth"
	"instaprofiler/pkg/checkpoint"
	"instaprofiler/pkg/config"
	"instaprofiler/pkg/instagram"
	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/models"
	"instaprofiler/pkg/ratelimit"
	"instaprofiler/pkg/retry"
	"instaprofiler/pkg/scraper"
	"instaprofiler/pkg/storage"
	"instaprofiler/pkg/store"
)

// transportAttempts bounds network-level retries of a single request. Soft
// failures are retried by the page walker with its own budget.
const transportAttempts = 3

// scrapeFlags are the flags shared by commands that audit accounts.
type scrapeFlags struct {
	onlyMutual      bool
	follows         bool
	followers       bool
	maxFollowAmount int
	maxPages        int
}

func (f *scrapeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.onlyMutual, "only-mutual", false, "only write edges where both directions hold")
	fs.BoolVar(&f.follows, "follows", true, "scrape the accounts each account follows")
	fs.BoolVar(&f.followers, "followers", true, "scrape the followers of each account")
	fs.IntVar(&f.maxFollowAmount, "max-follow-amount", 0, "skip a side whose count exceeds this (0 disables)")
	fs.IntVar(&f.maxPages, "max-pages", 0, "fail an account whose list needs more pages than this (0 disables)")
}

// values returns the flags the user set, keyed as config.MergeCommandLineFlags
// expects.
func (f *scrapeFlags) values(cmd *cobra.Command) map[string]interface{} {
	fs := cmd.Flags()
	out := make(map[string]interface{})
	if fs.Changed("only-mutual") {
		out["only-mutual"] = f.onlyMutual
	}
	if fs.Changed("follows") {
		out["follows"] = f.follows
	}
	if fs.Changed("followers") {
		out["followers"] = f.followers
	}
	if fs.Changed("max-follow-amount") {
		out["max-follow-amount"] = f.maxFollowAmount
	}
	if fs.Changed("max-pages") {
		out["max-pages"] = f.maxPages
	}
	return out
}

func globalFlagValues() map[string]interface{} {
	flags := map[string]interface{}{}
	for key, v := range map[string]string{
		"session-id":   sessionID,
		"csrf-token":   csrfToken,
		"db-driver":    dbDriver,
		"db":           dbDSN,
		"snapshot-dir": snapshotDir,
		"log-level":    logLevel,
	} {
		if v != "" {
			flags[key] = v
		}
	}
	return flags
}

// loadConfig loads the configuration with global flags and extra on top.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlagValues()
	for k, v := range extra {
		flags[k] = v
	}
	return config.Load(configFile, flags)
}

// app holds the components one command invocation shares.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   *store.Store
	scraper *scraper.Scraper
	auditor *audit.Auditor
}

// openApp loads configuration, the logger and the store. withScraper also
// resolves the Instagram session and builds the scraper and auditor.
func openApp(ctx context.Context, extra map[string]interface{}, withScraper bool) (*app, error) {
	cfg, err := loadConfig(extra)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, err
	}
	log = log.WithField("version", version)

	a := &app{cfg: cfg, log: log}

	if withScraper {
		if err := resolveSession(cfg, log); err != nil {
			return nil, err
		}
		sc, err := newScraper(cfg, log)
		if err != nil {
			return nil, err
		}
		a.scraper = sc
	}

	a.store, err = store.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := a.store.Migrate(ctx); err != nil {
		a.store.Close()
		return nil, err
	}

	if withScraper {
		auditCfg := audit.Config{Scraper: a.scraper, Store: a.store, Logger: log}
		if cfg.Output.SnapshotDir != "" {
			archive, err := storage.NewManager(cfg.Output.SnapshotDir)
			if err != nil {
				a.store.Close()
				return nil, err
			}
			auditCfg.Archive = archive
		}
		a.auditor = audit.New(auditCfg)
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close database")
		}
	}
}

func (a *app) auditOptions() audit.Options {
	return audit.Options{
		Sides:           models.Sides{Follows: a.cfg.Scrape.Follows, Followers: a.cfg.Scrape.Followers},
		OnlyMutual:      a.cfg.Scrape.OnlyMutual,
		MaxFollowAmount: a.cfg.Scrape.MaxFollowAmount,
	}
}

func (a *app) checkpoints(group string) (*checkpoint.Manager, error) {
	return checkpoint.NewManager(group, a.log)
}

// resolveSession fills cfg with a stored session when flags, environment and
// config file did not provide one.
func resolveSession(cfg *config.Config, log logger.Logger) error {
	if cfg.RequireSession() == nil {
		return nil
	}
	manager, err := auth.NewManager(log)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.ApplySession(cfg, accountName); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return fmt.Errorf("no Instagram session found, run 'instaprofiler auth login' or set %s and %s",
				auth.EnvSessionID, auth.EnvCSRFToken)
		}
		return err
	}
	return cfg.RequireSession()
}

func newScraper(cfg *config.Config, log logger.Logger) (*scraper.Scraper, error) {
	limiter, err := ratelimit.New(cfg.RateLimit.Strategy, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	if err != nil {
		return nil, err
	}
	client, err := instagram.NewClient(instagram.ClientConfig{
		BaseURL:     cfg.Instagram.BaseURL,
		SessionID:   cfg.Instagram.SessionID,
		CSRFToken:   cfg.Instagram.CSRFToken,
		UserAgent:   cfg.Instagram.UserAgent,
		Timeout:     cfg.Scrape.RequestTimeout,
		MaxAttempts: transportAttempts,
		Backoff:     retry.DefaultExponentialBackoff(),
		Limiter:     limiter,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	return scraper.New(client, scraper.OptionsFromConfig(cfg, log)), nil
}
