package gallery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// GalleryNavigator implements the landmark-based extraction cascades of
// spec §4.6 (C7): locating the download button for the active generation,
// scoring candidate containers for the visible one, and extracting its
// creation_time and prompt.
type GalleryNavigator struct {
	sel Selectors
}

// New returns a GalleryNavigator with sel's zero fields filled from
// DefaultSelectors.
func New(sel Selectors) *GalleryNavigator {
	return &GalleryNavigator{sel: sel.withDefaults()}
}

// FindDownloadButton runs the three-strategy discovery cascade (spec §4.6)
// and returns a selector usable with Driver.Click, or found=false if none
// of the three strategies resolved an element.
func (n *GalleryNavigator) FindDownloadButton(doc *goquery.Document) (selector string, found bool) {
	if sel, ok := n.findByImageToVideoLandmark(doc); ok {
		return sel, true
	}
	if sel, ok := n.findByIconID(doc); ok {
		return sel, true
	}
	if sel, ok := n.findByDataAttr(doc); ok {
		return sel, true
	}
	return "", false
}

// findByImageToVideoLandmark is strategy 1: locate the "Image to video"
// label, ascend to its row's container, take the container's second
// sibling panel, and the third span inside it.
func (n *GalleryNavigator) findByImageToVideoLandmark(doc *goquery.Document) (string, bool) {
	anchor := findByExactText(doc.Find("span"), n.sel.ImageToVideoLabel)
	if anchor == nil {
		return "", false
	}
	row := anchor.Parent()
	group := row.Parent()
	panels := group.Children()
	if panels.Length() < 2 {
		return "", false
	}
	panel := panels.Eq(1)
	spans := panel.Find("span")
	if spans.Length() < 3 {
		return "", false
	}
	return elementSelector(spans.Eq(2))
}

// findByIconID is strategy 2: a button containing the known download icon.
func (n *GalleryNavigator) findByIconID(doc *goquery.Document) (string, bool) {
	icon := doc.Find("#" + n.sel.DownloadIconID).First()
	if icon.Length() == 0 {
		return "", false
	}
	btn := icon.Closest("button")
	if btn.Length() == 0 {
		btn = icon
	}
	return elementSelector(btn)
}

// findByDataAttr is strategy 3: an element carrying the known download data
// attribute.
func (n *GalleryNavigator) findByDataAttr(doc *goquery.Document) (string, bool) {
	el := doc.Find("[" + n.sel.DownloadDataAttr + "]").First()
	if el.Length() == 0 {
		return "", false
	}
	return elementSelector(el)
}

// DownloadMenuItemSelector returns the selector for the watermark-free
// download menu entry that appears after FindDownloadButton's target is
// clicked, using the browser package's `:has-text(...)` text-predicate
// convention since the item is identified by its label, not a stable id.
func (n *GalleryNavigator) DownloadMenuItemSelector() string {
	return fmt.Sprintf("*:has-text(%q)", n.sel.DownloadMenuItem)
}

// ExtractMetadata scores every container matching the configured
// ContainerSelector (visibility, position, size, active-state weights —
// spec §4.6) and extracts {creation_time, prompt} from the highest-scoring
// one.
func (n *GalleryNavigator) ExtractMetadata(doc *goquery.Document) (Metadata, bool) {
	containers := doc.Find(n.sel.ContainerSelector)
	if containers.Length() == 0 {
		return Metadata{}, false
	}

	var best *goquery.Selection
	bestScore := -1.0
	containers.Each(func(_ int, c *goquery.Selection) {
		s := scoreContainer(c)
		if s > bestScore {
			bestScore = s
			best = c
		}
	})
	if best == nil {
		return Metadata{}, false
	}
	return n.ExtractFromContainer(best)
}

// ExtractFromContainer extracts {creation_time, prompt} from a single
// container, without scoring — used by BoundaryScanner, which already
// knows which container it's looking at.
func (n *GalleryNavigator) ExtractFromContainer(c *goquery.Selection) (Metadata, bool) {
	creationTime, ok := n.extractCreationTime(c)
	if !ok {
		return Metadata{}, false
	}
	prompt, ok := n.extractPrompt(c)
	if !ok {
		return Metadata{}, false
	}
	return Metadata{CreationTime: creationTime, Prompt: prompt}, true
}

func (n *GalleryNavigator) extractCreationTime(c *goquery.Selection) (string, bool) {
	label := findByExactText(c.Find("span"), n.sel.CreationTimeLabel)
	if label != nil {
		if v := strings.TrimSpace(label.Next().Text()); v != "" {
			return v, true
		}
	}
	if v, ok := c.Attr("data-creation-time"); ok && v != "" {
		return v, true
	}
	return "", false
}

// metadataLikePattern matches strings that look like they belong to the
// metadata row rather than to the prompt itself: dates, resolutions.
var metadataLikePattern = regexp.MustCompile(`(?i)^\d{1,2} \w{3} \d{4}|^\d+\s*[x×]\s*\d+$|^(public|private)$`)

const minPromptLength = 8

// extractPrompt runs the three-strategy cascade (spec §4.6); it does not
// stop at the first strategy to produce a string — it keeps going unless
// that string passes the sanity filter.
func (n *GalleryNavigator) extractPrompt(c *goquery.Selection) (string, bool) {
	if p, ok := n.promptViaCreationTimeAnchor(c); ok && isSanePrompt(p) {
		return p, true
	}
	if p, ok := n.promptViaEllipsisPattern(c); ok && isSanePrompt(p) {
		return p, true
	}
	if p, ok := n.promptViaLengthRanking(c); ok && isSanePrompt(p) {
		return p, true
	}
	return "", false
}

// promptViaCreationTimeAnchor: strategy 1. Anchor on the "Creation Time"
// label, ascend to the shared metadata container, move to its sibling
// prompt container, take the first span[aria-describedby] inside it.
func (n *GalleryNavigator) promptViaCreationTimeAnchor(c *goquery.Selection) (string, bool) {
	label := findByExactText(c.Find("span"), n.sel.CreationTimeLabel)
	if label == nil {
		return "", false
	}
	metaContainer := label.Parent().Parent()
	promptContainer := metaContainer.Next()
	if promptContainer.Length() == 0 {
		return "", false
	}
	span := promptContainer.Find("span[aria-describedby]").First()
	if span.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(span.Text()), true
}

// promptViaEllipsisPattern: strategy 2. Elements whose raw HTML ends a
// trailing span with "..." and that also contain an aria-describedby
// descendant — the truncated-prompt-with-tooltip idiom. The tag-stripped
// text is recovered with golang.org/x/net/html rather than goquery's Text(),
// since the truncation marker lives outside any single tag boundary.
func (n *GalleryNavigator) promptViaEllipsisPattern(c *goquery.Selection) (string, bool) {
	var found string
	var ok bool
	c.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, err := goquery.OuterHtml(s)
		if err != nil {
			return true
		}
		if !strings.Contains(raw, "</span>...") {
			return true
		}
		if s.Find("span[aria-describedby]").Length() == 0 {
			return true
		}
		found = stripTags(raw)
		ok = found != ""
		return !ok
	})
	return found, ok
}

// promptViaLengthRanking: strategy 3. Among every span[aria-describedby] in
// the container, drop metadata-looking or too-short text, keep the longest
// remaining candidate.
func (n *GalleryNavigator) promptViaLengthRanking(c *goquery.Selection) (string, bool) {
	var best string
	c.Find("span[aria-describedby]").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if !isSanePrompt(t) {
			return
		}
		if len(t) > len(best) {
			best = t
		}
	})
	return best, best != ""
}

func isSanePrompt(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < minPromptLength {
		return false
	}
	if metadataLikePattern.MatchString(s) {
		return false
	}
	return true
}

// stripTags removes HTML tags from a fragment, returning the concatenated
// text content, via golang.org/x/net/html tokenization.
func stripTags(fragment string) string {
	z := xhtml.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return strings.TrimSpace(strings.ReplaceAll(b.String(), "...", ""))
		case xhtml.TextToken:
			b.Write(z.Text())
		}
	}
}

// scoreContainer implements spec §4.6's weighted visibility/position/
// size/active-state scoring used to pick the active thumbnail among
// several matching containers.
func scoreContainer(c *goquery.Selection) float64 {
	var score float64
	if isVisible(c) {
		score += 0.5
	}
	if hasPositionHint(c) {
		score += 0.3
	}
	if hasSizeHint(c) {
		score += 0.1
	}
	if isActiveIndicator(c) {
		score += 1.0
	}
	return score
}

func isVisible(c *goquery.Selection) bool {
	visible := true
	c.Parents().AddSelection(c).Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
			visible = false
		}
		if _, hidden := s.Attr("hidden"); hidden {
			visible = false
		}
	})
	return visible
}

func hasPositionHint(c *goquery.Selection) bool {
	style, _ := c.Attr("style")
	return strings.Contains(style, "position") || strings.Contains(style, "left") || strings.Contains(style, "top")
}

func hasSizeHint(c *goquery.Selection) bool {
	style, _ := c.Attr("style")
	return strings.Contains(style, "width") || strings.Contains(style, "height")
}

func isActiveIndicator(c *goquery.Selection) bool {
	class, _ := c.Attr("class")
	for _, cls := range strings.Fields(class) {
		if cls == "active" || cls == "selected" {
			return true
		}
	}
	if v, ok := c.Attr("aria-selected"); ok {
		if b, err := strconv.ParseBool(v); err == nil && b {
			return true
		}
	}
	return false
}

// findByExactText returns the first element in sel whose trimmed text
// content (including its descendants' text) equals want, or nil.
func findByExactText(sel *goquery.Selection, want string) *goquery.Selection {
	var match *goquery.Selection
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == want {
			match = s
			return false
		}
		return true
	})
	return match
}

// elementSelector builds a CSS selector for s preferring a stable
// identifying attribute (id, then data-download, data-testid or data-id)
// over positional selectors, which break across re-renders. The attribute
// list is fixed: a custom Selectors.DownloadDataAttr is not consulted here.
func elementSelector(s *goquery.Selection) (string, bool) {
	if s == nil || s.Length() == 0 {
		return "", false
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id, true
	}
	for _, attr := range []string{"data-download", "data-testid", "data-id"} {
		if v, ok := s.Attr(attr); ok && v != "" {
			return fmt.Sprintf("[%s=%q]", attr, v), true
		}
	}
	return "", false
}
