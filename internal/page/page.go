// Package page abstracts the rendered-page capability the extraction engine
// runs against. The engine only ever needs to navigate, query elements, read
// visible text, click, scroll and wait; nothing richer leaks in, so the same
// pipeline drives a headless browser tab or a static HTML snapshot.
package page

import (
	"context"
	"errors"
	"time"
)

// ErrNotInteractive is returned by click/scroll on a static snapshot.
var ErrNotInteractive = errors.New("page is a static snapshot and cannot be interacted with")

// Element is a handle to a single DOM element.
type Element interface {
	// Text returns the element's visible text, trimmed.
	Text(ctx context.Context) (string, error)

	// Click clicks the element.
	Click(ctx context.Context) error

	// ScrollIntoView scrolls the element into the viewport.
	ScrollIntoView(ctx context.Context) error

	// QueryAll returns descendant elements matching the CSS selector.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Page is a live rendered page handle.
type Page interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// URL returns the current page URL.
	URL() string

	// QueryAll returns every element matching the CSS selector. A selector
	// matching nothing returns an empty slice, not an error.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// WaitVisible blocks until the selector is visible or the timeout expires.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Close releases the page. Safe to call more than once.
	Close() error
}
