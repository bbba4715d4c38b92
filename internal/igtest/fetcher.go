package igtest

import (
	"context"
	"fmt"
	"sync"
)

// Response is one scripted fetch outcome.
type Response struct {
	Body string
	Err  error
}

// Body scripts a successful fetch.
func Body(body string) Response { return Response{Body: body} }

// Fail scripts a failed fetch.
func Fail(err error) Response { return Response{Err: err} }

// ScriptedFetcher answers fetches from per-URL queues. Each call pops the
// next response; the last one repeats. Unscripted URLs fail.
type ScriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]Response
	calls   map[string]int
	order   []string
}

// NewScriptedFetcher creates an empty fetcher.
func NewScriptedFetcher() *ScriptedFetcher {
	return &ScriptedFetcher{
		scripts: make(map[string][]Response),
		calls:   make(map[string]int),
	}
}

// On appends responses to url's queue.
func (f *ScriptedFetcher) On(url string, responses ...Response) *ScriptedFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[url] = append(f.scripts[url], responses...)
	return f
}

// Fetch implements scraper.Fetcher.
func (f *ScriptedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[url]++
	f.order = append(f.order, url)

	queue := f.scripts[url]
	if len(queue) == 0 {
		return "", fmt.Errorf("igtest: unexpected fetch of %s", url)
	}
	r := queue[0]
	if len(queue) > 1 {
		f.scripts[url] = queue[1:]
	}
	return r.Body, r.Err
}

// Calls reports how many times url was fetched.
func (f *ScriptedFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// TotalCalls reports the number of fetches of any URL.
func (f *ScriptedFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
