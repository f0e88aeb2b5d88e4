// Package browser implements the BrowserDriver capability (C1): an
// abstraction over page/browser operations (navigate, query, click, fill,
// wait, attribute read, scroll, download hook) that the execution engine
// and the generation downloader drive without knowing whether the backing
// implementation is a live chromedp session or a static HTML fixture.
package browser

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Attribute name accepted by Driver.Attribute for "text content" reads, per
// spec §4.4's CHECK_ELEMENT semantics (attribute ∈ {text|value|<html-attr>}).
const AttrText = "text"

// Driver is the BrowserDriver capability. Every operation accepts a
// context.Context as its suspension/cancellation point (spec §5: "all I/O
// ... is a yield point").
type Driver interface {
	// Navigate loads url, waiting for the page to reach a settled state.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Click locates the first element matching selector and clicks it.
	Click(ctx context.Context, selector string, timeout time.Duration) error

	// Fill locates the first element matching selector and sets its value.
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error

	// WaitForElement blocks (polling, driver-internal) until selector
	// matches at least one element, or timeout elapses.
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error

	// Attribute reads the named attribute ("text" for text content, "value"
	// for form value, else a literal HTML attribute) of the first element
	// matching selector. found is false if no element matched.
	Attribute(ctx context.Context, selector, attribute string, timeout time.Duration) (value string, found bool, err error)

	// Exists reports whether selector currently matches any element,
	// without waiting — used by CHECK_ELEMENT's exists check.
	Exists(ctx context.Context, selector string) (bool, error)

	// Scroll scrolls the page (or a specific scrollable container when
	// selector is non-empty) by (dx, dy) CSS pixels.
	Scroll(ctx context.Context, selector string, dx, dy int) error

	// Evaluate runs a JS expression and returns its JSON-decoded result.
	// Used sparingly, for operations the rest of the interface can't
	// express (e.g. toggling a setting via a site-specific script).
	Evaluate(ctx context.Context, script string) (any, error)

	// Snapshot parses the current page's rendered HTML into a goquery
	// document for read-only landmark extraction (GalleryNavigator,
	// BoundaryScanner). It never mutates the live page.
	Snapshot(ctx context.Context) (*goquery.Document, error)

	// WatchDownloads returns a channel that receives the absolute path of
	// each new file appearing under dir with one of the given extensions,
	// until ctx is canceled. Used by GenerationDownloader's adaptive
	// "wait for file to appear" polling.
	WatchDownloads(ctx context.Context, dir string, extensions []string) (<-chan string, error)

	// Close releases all browser resources. Safe to call once per driver.
	Close() error
}

// Options configures driver construction. Headless/UserAgent/WindowWidth/
// WindowHeight/Args mirror the AutomationConfig.browser fields in spec §6.
type Options struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	Args         []string
	ChromePath   string
}
