package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTMLDriver is a static, offline BrowserDriver backed by goquery over
// in-memory HTML fixtures. It gives every control-flow, extraction, and
// boundary test a deterministic driver without a live browser — there is
// no teacher equivalent of this file (the teacher has no tests of its
// own), so its shape is grounded on goquery's documented Selection API and
// on this repo's own Driver interface.
type HTMLDriver struct {
	mu       sync.Mutex
	doc      *goquery.Document
	pages    map[string]string
	values   map[string]string
	clicks   []string
	onClick  map[string]func(d *HTMLDriver)
	scrollFn func(dx, dy int, d *HTMLDriver)
}

// NewHTMLDriver returns an HTMLDriver with no loaded page.
func NewHTMLDriver() *HTMLDriver {
	return &HTMLDriver{
		pages:   map[string]string{},
		values:  map[string]string{},
		onClick: map[string]func(d *HTMLDriver){},
	}
}

// SetPage registers the HTML fixture served for a given URL by Navigate.
func (d *HTMLDriver) SetPage(url, html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[url] = html
}

// LoadHTML loads html as the current page directly, bypassing Navigate —
// convenient for tests that only exercise extraction logic.
func (d *HTMLDriver) LoadHTML(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.doc = doc
	d.mu.Unlock()
	return nil
}

// OnClick registers a callback invoked when Click matches selector,
// letting a test simulate a click's side effect (e.g. opening a submenu,
// activating a thumbnail) by swapping in new HTML via LoadHTML.
func (d *HTMLDriver) OnClick(selector string, fn func(d *HTMLDriver)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick[selector] = fn
}

// OnScroll registers a callback invoked on every Scroll call, letting a
// test simulate an infinite-scroll gallery revealing more containers.
func (d *HTMLDriver) OnScroll(fn func(dx, dy int, d *HTMLDriver)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollFn = fn
}

// Clicks returns the selectors clicked so far, in order — useful for
// asserting control-flow/navigation behavior in tests.
func (d *HTMLDriver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.clicks))
	copy(out, d.clicks)
	return out
}

// FilledValue returns the last value Fill recorded for selector.
func (d *HTMLDriver) FilledValue(selector string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[selector]
	return v, ok
}

func (d *HTMLDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	d.mu.Lock()
	html, ok := d.pages[url]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("no fixture registered for url %q", url)
	}
	return d.LoadHTML(html)
}

func (d *HTMLDriver) selection(selector string) (*goquery.Selection, error) {
	d.mu.Lock()
	doc := d.doc
	d.mu.Unlock()
	if doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}

	cssBase, pred := translateSelector(selector)
	sel := doc.Find(cssBase)
	if pred == nil {
		return sel, nil
	}

	var match *goquery.Selection
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == pred.text {
			match = s
			return false
		}
		return true
	})
	if match == nil {
		return doc.Find("nonexistent-placeholder-that-matches-nothing"), nil
	}
	return match, nil
}

func (d *HTMLDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	sel, err := d.selection(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("click: no element matching %q", selector)
	}

	d.mu.Lock()
	d.clicks = append(d.clicks, selector)
	handler := d.onClick[selector]
	d.mu.Unlock()

	if handler != nil {
		handler(d)
	}
	return nil
}

func (d *HTMLDriver) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	sel, err := d.selection(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("fill: no element matching %q", selector)
	}
	d.mu.Lock()
	d.values[selector] = value
	d.mu.Unlock()
	return nil
}

func (d *HTMLDriver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	sel, err := d.selection(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("wait_for_element: %q did not appear within %s", selector, timeout)
	}
	return nil
}

func (d *HTMLDriver) Attribute(ctx context.Context, selector, attribute string, timeout time.Duration) (string, bool, error) {
	sel, err := d.selection(selector)
	if err != nil {
		return "", false, err
	}
	if sel.Length() == 0 {
		return "", false, nil
	}

	switch attribute {
	case AttrText, "":
		return strings.TrimSpace(sel.First().Text()), true, nil
	case "value":
		v, ok := sel.First().Attr("value")
		if !ok {
			v, ok = d.FilledValue(selector)
		}
		return v, ok, nil
	default:
		v, ok := sel.First().Attr(attribute)
		return v, ok, nil
	}
}

func (d *HTMLDriver) Exists(ctx context.Context, selector string) (bool, error) {
	sel, err := d.selection(selector)
	if err != nil {
		return false, nil
	}
	return sel.Length() > 0, nil
}

func (d *HTMLDriver) Scroll(ctx context.Context, selector string, dx, dy int) error {
	d.mu.Lock()
	fn := d.scrollFn
	d.mu.Unlock()
	if fn != nil {
		fn(dx, dy, d)
	}
	return nil
}

func (d *HTMLDriver) Evaluate(ctx context.Context, script string) (any, error) {
	return nil, fmt.Errorf("html_driver: Evaluate is not supported by the static fixture driver")
}

func (d *HTMLDriver) Snapshot(ctx context.Context) (*goquery.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return d.doc, nil
}

// WatchDownloads polls dir the same way ChromeDriver does — tests populate
// dir directly (e.g. via os.WriteFile) to simulate a completed download.
func (d *HTMLDriver) WatchDownloads(ctx context.Context, dir string, extensions []string) (<-chan string, error) {
	out := make(chan string, 8)
	seen := map[string]bool{}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range entries {
		seen[e.Name()] = true
	}

	go func() {
		defer close(out)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				entries, err := os.ReadDir(dir)
				if err != nil {
					continue
				}
				for _, e := range entries {
					if seen[e.Name()] || e.IsDir() {
						continue
					}
					seen[e.Name()] = true
					if hasExtension(e.Name(), extensions) {
						select {
						case out <- filepath.Join(dir, e.Name()):
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return out, nil
}

func (d *HTMLDriver) Close() error { return nil }
