// Package renderer drives a real browser against a factsheet page and exposes
// the narrow capability surface the extraction pipeline needs: navigate, wait
// for the page to become ready, hand back the rendered HTML.
//
// The interface exists so the retry and classification logic in package scrape
// can be exercised with a deterministic fake instead of Chrome.
package renderer

import (
	"context"
	"errors"
	"time"
)

// ErrNavigate marks a navigation failure: DNS error, refused connection,
// unreachable address. Callers treat it the same as a slow page.
var ErrNavigate = errors.New("renderer: navigate failed")

// ErrWaitTimeout marks a page that did not present the ready marker within
// the configured render timeout.
var ErrWaitTimeout = errors.New("renderer: wait timeout")

// Renderer is one browser session. Navigate may be called repeatedly; each
// call replaces the current page content.
type Renderer interface {
	// Navigate loads the given URL. Fails with ErrNavigate when the address
	// cannot be reached.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the page's ready marker is present, or fails
	// with ErrWaitTimeout after the given timeout.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)

	// Close releases the session. Safe to call once per session.
	Close() error
}

// Factory acquires a renderer session. The orchestrator calls it once per run
// and releases the session on every exit path.
type Factory func(ctx context.Context) (Renderer, error)
