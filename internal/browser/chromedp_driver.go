package browser

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/flowloom/flowloom/internal/logging"
)

// ChromeDriver is the live BrowserDriver implementation, adapted from the
// headless-then-non-headless retry, environment preflight, and
// chrome-path-discovery logic the teacher's browser.go uses for scraping
// jobs, generalized here to the workflow engine's action set.
type ChromeDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserCancel context.CancelFunc
	logger      *logging.Logger
}

// NewChromeDriver launches a browser, trying the display mode opts.Headless
// asks for first and falling back to the opposite mode if that attempt fails
// to respond to a trivial navigator.userAgent evaluation — the same fallback AttemptBrowserCreation
// performed in the teacher's scraper.
func NewChromeDriver(ctx context.Context, opts Options, logger *logging.Logger) (*ChromeDriver, error) {
	d := &ChromeDriver{logger: logger}

	firstHeadless := opts.Headless
	if err := d.attempt(ctx, opts, firstHeadless); err == nil {
		return d, nil
	} else if logger != nil {
		logger.Warn("browser launch failed, retrying in the opposite display mode", map[string]any{"error": err.Error(), "headless": firstHeadless})
	}
	d.teardownPartial()

	if err := d.attempt(ctx, opts, !firstHeadless); err != nil {
		return nil, fmt.Errorf("browser launch failed in both display modes: %w", err)
	}
	return d, nil
}

func (d *ChromeDriver) teardownPartial() {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.browserCtx, d.browserCancel, d.allocCtx, d.allocCancel = nil, nil, nil, nil
}

func (d *ChromeDriver) attempt(ctx context.Context, opts Options, headless bool) error {
	chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if opts.ChromePath != "" {
		chromeOpts = append(chromeOpts, chromedp.ExecPath(opts.ChromePath))
	} else if path := FindChromePath(); path != "" {
		chromeOpts = append(chromeOpts, chromedp.ExecPath(path))
	}

	width, height := opts.WindowWidth, opts.WindowHeight
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	chromeOpts = append(chromeOpts, chromedp.WindowSize(width, height))

	if opts.UserAgent != "" {
		chromeOpts = append(chromeOpts, chromedp.UserAgent(opts.UserAgent))
	}
	for _, arg := range opts.Args {
		chromeOpts = append(chromeOpts, chromedp.Flag(arg, true))
	}

	if headless {
		chromeOpts = append(chromeOpts,
			chromedp.Headless,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
	} else {
		chromeOpts = append(chromeOpts, chromedp.Flag("window-position", "0,0"))
	}

	debugOutput := &bytes.Buffer{}
	chromeOpts = append(chromeOpts, chromedp.CombinedOutput(debugOutput))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromeOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Printf),
		chromedp.WithErrorf(log.Printf),
	)

	var userAgent string
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(`navigator.userAgent`, &userAgent)); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser init test failed: %w (debug: %s)", err, debugOutput.String())
	}

	d.allocCtx, d.allocCancel = allocCtx, allocCancel
	d.browserCtx, d.browserCancel = browserCtx, browserCancel
	return nil
}

// FindChromePath searches common per-OS install locations, falling back to
// exec.LookPath, exactly as the teacher's FindChromePath does.
func FindChromePath() string {
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, name := range []string{"chrome", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// opContext derives a timeout-bound context from the browser's own context
// (the one chromedp.NewContext produced), the way FetchWithChromedp in the
// teacher's browser.go creates a fresh per-navigation timeout context
// rather than reusing the caller's context verbatim — chromedp operations
// must run against a descendant of the browser-target context, not an
// unrelated caller context. The caller's ctx is still raced against via a
// goroutine watchdog so external cancellation (engine stop) still takes
// effect promptly.
func (d *ChromeDriver) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opCtx, cancel := context.WithTimeout(d.browserCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := d.opContext(ctx, timeout)
	defer cancel()

	var readyState string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(c context.Context) error {
			return chromedp.Evaluate(`document.readyState`, &readyState).Do(c)
		}),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if readyState != "complete" {
		_ = chromedp.Run(navCtx, chromedp.Sleep(1*time.Second))
	}
	return nil
}

func (d *ChromeDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	cssSel, pred := translateSelector(selector)
	opCtx, cancel := d.opContext(ctx, timeout)
	defer cancel()

	if pred != nil {
		node, err := d.findByPredicate(opCtx, cssSel, pred)
		if err != nil {
			return err
		}
		return chromedp.Run(opCtx, chromedp.MouseClickNode(node))
	}
	return chromedp.Run(opCtx, chromedp.Click(cssSel, chromedp.ByQuery))
}

func (d *ChromeDriver) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	cssSel, _ := translateSelector(selector)
	opCtx, cancel := d.opContext(ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, chromedp.SetValue(cssSel, value, chromedp.ByQuery))
}

func (d *ChromeDriver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	cssSel, _ := translateSelector(selector)
	opCtx, cancel := d.opContext(ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, chromedp.WaitVisible(cssSel, chromedp.ByQuery))
}

func (d *ChromeDriver) Attribute(ctx context.Context, selector, attribute string, timeout time.Duration) (string, bool, error) {
	cssSel, _ := translateSelector(selector)
	opCtx, cancel := d.opContext(ctx, timeout)
	defer cancel()

	var value string
	var ok bool
	var err error
	switch attribute {
	case AttrText, "":
		err = chromedp.Run(opCtx, chromedp.Text(cssSel, &value, chromedp.ByQuery, chromedp.AtLeast(0)))
		ok = err == nil
	case "value":
		err = chromedp.Run(opCtx, chromedp.Value(cssSel, &value, chromedp.ByQuery))
		ok = err == nil
	default:
		err = chromedp.Run(opCtx, chromedp.AttributeValue(cssSel, attribute, &value, &ok, chromedp.ByQuery))
	}
	if err != nil {
		return "", false, fmt.Errorf("read attribute %q of %q: %w", attribute, selector, err)
	}
	return value, ok, nil
}

func (d *ChromeDriver) Exists(ctx context.Context, selector string) (bool, error) {
	cssSel, _ := translateSelector(selector)
	opCtx, cancel := d.opContext(ctx, 5*time.Second)
	defer cancel()
	var count int
	err := chromedp.Run(opCtx,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, cssSel), &count),
	)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *ChromeDriver) Scroll(ctx context.Context, selector string, dx, dy int) error {
	opCtx, cancel := d.opContext(ctx, 5*time.Second)
	defer cancel()
	var script string
	if selector == "" {
		script = fmt.Sprintf(`window.scrollBy(%d, %d)`, dx, dy)
	} else {
		cssSel, _ := translateSelector(selector)
		script = fmt.Sprintf(`document.querySelector(%q) && document.querySelector(%q).scrollBy(%d, %d)`, cssSel, cssSel, dx, dy)
	}
	return chromedp.Run(opCtx, chromedp.Evaluate(script, nil))
}

func (d *ChromeDriver) Evaluate(ctx context.Context, script string) (any, error) {
	opCtx, cancel := d.opContext(ctx, 10*time.Second)
	defer cancel()
	var result any
	err := chromedp.Run(opCtx, chromedp.Evaluate(script, &result))
	return result, err
}

func (d *ChromeDriver) Snapshot(ctx context.Context) (*goquery.Document, error) {
	opCtx, cancel := d.opContext(ctx, 10*time.Second)
	defer cancel()
	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, fmt.Errorf("snapshot outer HTML: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (d *ChromeDriver) WatchDownloads(ctx context.Context, dir string, extensions []string) (<-chan string, error) {
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
		ticker := time.NewTicker(150 * time.Millisecond)
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

func hasExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (d *ChromeDriver) Close() error {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}

// findByPredicate resolves a text-predicate selector (e.g.
// span:has-text('Image to video')) to a concrete cdp.Node by evaluating a
// small JS scan, since chromedp has no native :has-text query.
func (d *ChromeDriver) findByPredicate(ctx context.Context, cssBase string, pred *textPredicate) (*cdp.Node, error) {
	script := fmt.Sprintf(`(() => {
		const nodes = Array.from(document.querySelectorAll(%q));
		return nodes.findIndex(n => (n.textContent || '').trim() === %q);
	})()`, cssBase, pred.text)

	var idx int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &idx)); err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("no element matching text predicate %q", pred.text)
	}

	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(cssBase, &nodes, chromedp.ByQueryAll)); err != nil {
		return nil, err
	}
	if idx >= len(nodes) {
		return nil, fmt.Errorf("text predicate index out of range")
	}
	return nodes[idx], nil
}
