// Package retry provides bounded retries with pluggable backoff.
//
// The HTTP fetcher retries network and server errors with ExponentialBackoff.
// The follow-page walker retries soft failures (throttled or not-yet-ready
// pages) with ConstantBackoff and a large attempt budget:
//
//	err := retry.Do(func() error {
//		page, err = fetchPage(ctx, url)
//		return err
//	}, &retry.Config{
//		MaxAttempts: 120,
//		Backoff:     &retry.ConstantBackoff{Delay: time.Minute},
//		RetryIf:     errors.IsSoftFailure,
//		Context:     ctx,
//		Logger:      log,
//	})
//
// When the budget runs out the returned error wraps errors.ErrMaxRetriesReached.
package retry
