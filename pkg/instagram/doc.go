// Package instagram talks to Instagram's web endpoints.
//
// It has three parts:
//
//   - Client fetches a URL as text with the session cookies, pacing every
//     request through a ratelimit.Limiter and retrying transport failures.
//   - Endpoints builds profile and follow-graph GraphQL URLs.
//   - DecodeFollowPage and DecodeProfile turn response bodies into
//     models.User values using gjson paths, telling throttled responses
//     (retryable) apart from malformed ones (fatal).
//
// Example:
//
//	client, err := instagram.NewClient(instagram.ClientConfig{
//	    SessionID: cfg.Instagram.SessionID,
//	    CSRFToken: cfg.Instagram.CSRFToken,
//	    Limiter:   limiter,
//	    Logger:    log,
//	})
//	body, err := client.Fetch(ctx, endpoints.FollowPageURL(models.Followers, "123", ""))
//	page, err := instagram.DecodeFollowPage(body, models.Followers)
package instagram
