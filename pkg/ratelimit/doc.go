// Package ratelimit paces requests to Instagram.
//
// Two strategies are available through New:
//
//   - token_bucket (default): golang.org/x/time/rate limiter refilled
//     continuously, allowing short bursts.
//   - sliding_window: at most N requests in any one-minute window.
//
// The fetcher calls Wait(ctx) before every request, so a cancelled context
// interrupts a long pacing wait.
package ratelimit
