package scraper

import "context"

// Fetcher returns the text content served at a URL. The production
// implementation is *instagram.Client; tests script responses per URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
