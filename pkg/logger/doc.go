// Package logger provides the structured logging interface used across
// instaprofiler.
//
// It wraps zerolog. A Logger is built once from config.LoggingConfig in main
// and handed to every component constructor; there is no package-level
// logger. Components that receive a nil Logger fall back to NewNopLogger.
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("account", "alice").Info("scrape started")
//	log.InfoWithFields("page fetched", map[string]interface{}{
//	    "relation": "followers",
//	    "count":    300,
//	})
//
// Tests use NewTestLogger to capture messages and assert on them.
package logger
