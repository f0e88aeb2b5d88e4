package gallery

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/logging"
)

// DuplicateChecker is the subset of *download.DownloadLog the scanner
// needs; declared here (not imported from internal/download) so gallery has
// no dependency on the download package's persistence concerns.
type DuplicateChecker interface {
	IsDuplicate(creationTime, prompt string) bool
}

// scan-as-you-scroll tuning constants (spec §4.7).
const (
	maxScrollStalls      = 5
	scrollWaitCeiling    = 1500 * time.Millisecond
	viewportHeight       = 800
	scrollStepMultiplier = 2
)

// BoundaryResult is what FindBoundary/SeekTo report.
type BoundaryResult struct {
	Found       bool
	ContainerID string
	Metadata    Metadata
}

// BoundaryScanner implements the incremental scan-as-you-scroll search used
// both to find the resume boundary after a SKIP duplicate (FindBoundary)
// and to seek a specific start_from creation_time (SeekTo) — spec §4.7 (C8).
type BoundaryScanner struct {
	Driver    browser.Driver
	Navigator *GalleryNavigator
	Selectors Selectors
	Logger    *logging.Logger

	// ScrollWaitCeiling overrides scrollWaitCeiling; zero means use the
	// spec default. Tests shrink this to keep scroll-stall exhaustion fast.
	ScrollWaitCeiling time.Duration
}

// NewBoundaryScanner wires a scanner against driver, reusing nav's
// extraction cascade and sel's container landmark.
func NewBoundaryScanner(driver browser.Driver, nav *GalleryNavigator, sel Selectors, logger *logging.Logger) *BoundaryScanner {
	return &BoundaryScanner{Driver: driver, Navigator: nav, Selectors: sel.withDefaults(), Logger: logger}
}

// FindBoundary scrolls forward, scanning each newly revealed container
// exactly once, until it finds one whose metadata is NOT in dup (the
// resume boundary after a SKIP duplicate), or gives up after
// maxScrollStalls consecutive scrolls reveal nothing new.
func (b *BoundaryScanner) FindBoundary(ctx context.Context, dup DuplicateChecker) (BoundaryResult, error) {
	scanned := map[string]bool{}
	stalls := 0

	for stalls < maxScrollStalls {
		if err := ctx.Err(); err != nil {
			return BoundaryResult{}, err
		}

		doc, err := b.Driver.Snapshot(ctx)
		if err != nil {
			return BoundaryResult{}, err
		}

		fresh := b.freshContainers(doc, scanned)
		if len(fresh) == 0 {
			stalls++
			b.scrollAndWait(ctx)
			continue
		}
		stalls = 0

		for _, c := range fresh {
			id := containerID(c)
			md, ok := b.Navigator.ExtractFromContainer(c)
			if ok && !dup.IsDuplicate(md.CreationTime, md.Prompt) {
				return BoundaryResult{Found: true, ContainerID: id, Metadata: md}, nil
			}
			scanned[id] = true
		}
		b.scrollAndWait(ctx)
	}

	if b.Logger != nil {
		b.Logger.Warn("boundary scan exhausted scroll stalls without finding a non-duplicate container", nil)
	}
	return BoundaryResult{Found: false}, nil
}

// SeekTo scrolls forward the same way, looking for a container whose
// creation_time equals target, and clicks it on match. Per this project's
// binding resolution of the start_from semantics: it NEVER falls back to
// the thumbnail gallery. A not-found result is a graceful stop, not an
// error — the caller logs and ends the harvest.
func (b *BoundaryScanner) SeekTo(ctx context.Context, target string) (BoundaryResult, error) {
	scanned := map[string]bool{}
	stalls := 0

	for stalls < maxScrollStalls {
		if err := ctx.Err(); err != nil {
			return BoundaryResult{}, err
		}

		doc, err := b.Driver.Snapshot(ctx)
		if err != nil {
			return BoundaryResult{}, err
		}

		fresh := b.freshContainers(doc, scanned)
		if len(fresh) == 0 {
			stalls++
			b.scrollAndWait(ctx)
			continue
		}
		stalls = 0

		for _, c := range fresh {
			id := containerID(c)
			md, ok := b.Navigator.ExtractFromContainer(c)
			if ok && md.CreationTime == target {
				sel, hasSel := containerClickSelector(c)
				if hasSel {
					if err := b.Driver.Click(ctx, sel, 2*time.Second); err != nil {
						return BoundaryResult{}, err
					}
				}
				return BoundaryResult{Found: true, ContainerID: id, Metadata: md}, nil
			}
			scanned[id] = true
		}
		b.scrollAndWait(ctx)
	}

	if b.Logger != nil {
		b.Logger.Warn("start_from seek exhausted scroll stalls without a match; stopping harvest gracefully", map[string]any{"target": target})
	}
	return BoundaryResult{Found: false}, nil
}

func (b *BoundaryScanner) freshContainers(doc *goquery.Document, scanned map[string]bool) []*goquery.Selection {
	var fresh []*goquery.Selection
	doc.Find(b.Selectors.ContainerSelector).Each(func(_ int, s *goquery.Selection) {
		if !scanned[containerID(s)] {
			fresh = append(fresh, s)
		}
	})
	return fresh
}

// scrollAndWait advances the scroll position by roughly two viewport
// heights and waits up to scrollWaitCeiling for new content to settle,
// honoring ctx cancellation.
func (b *BoundaryScanner) scrollAndWait(ctx context.Context) {
	_ = b.Driver.Scroll(ctx, "", 0, viewportHeight*scrollStepMultiplier)

	ceiling := scrollWaitCeiling
	if b.ScrollWaitCeiling > 0 {
		ceiling = b.ScrollWaitCeiling
	}
	timer := time.NewTimer(ceiling)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// containerClickSelector builds a selector for clicking a matched container
// directly, preferring id then the generation-id data attribute used by
// containerID before falling back to elementSelector's generic attributes.
func containerClickSelector(c *goquery.Selection) (string, bool) {
	if id, ok := c.Attr("id"); ok && id != "" {
		return "#" + id, true
	}
	if v, ok := c.Attr("data-generation-id"); ok && v != "" {
		return fmt.Sprintf("[data-generation-id=%q]", v), true
	}
	return elementSelector(c)
}

// containerID returns a stable per-element identity for the scanned-set,
// preferring the DOM id, falling back to a generation-specific data
// attribute.
func containerID(c *goquery.Selection) string {
	if id, ok := c.Attr("id"); ok && id != "" {
		return id
	}
	if id, ok := c.Attr("data-generation-id"); ok && id != "" {
		return id
	}
	if html, err := goquery.OuterHtml(c); err == nil {
		return html
	}
	return ""
}
