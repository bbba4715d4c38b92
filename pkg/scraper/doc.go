// Package scraper walks Instagram follow graphs.
//
// A Walker pages through one relation (follows or followers) of one account
// until the API reports no further page, merging users into an ordered set.
// Throttled or not-yet-ready pages are refetched with a fixed delay up to a
// retry budget; malformed pages, repeated cursors and the optional page cap
// end the walk with an error.
//
// A Scraper runs walkers for a batch of accounts and stamps every resulting
// snapshot with one scrape id and one scrape timestamp:
//
//	s := scraper.New(client, scraper.OptionsFromConfig(cfg, log))
//	batch, err := s.Scrape(ctx, []models.User{account}, models.Sides{Follows: true, Followers: true})
//
// Sides that were not requested come back as empty sets, and the snapshot's
// Scraped field records which sides were actually walked.
package scraper
