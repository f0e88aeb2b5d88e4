package browser

import (
	"regexp"
	"strings"
)

// textPredicate is the parsed form of a `:has-text('...')` pseudo-selector
// segment, spec §6's "text-predicate form" (`span:has-text('X')`).
type textPredicate struct {
	text string
}

var hasTextPattern = regexp.MustCompile(`:has-text\(\s*['"](.*)['"]\s*\)`)

// translateSelector splits a selector into its plain CSS base and, if
// present, a trailing :has-text('...') predicate. `span:has-text('Image to
// video')` becomes (`span`, &textPredicate{"Image to video"}).
// Attribute-form selectors (`[data-x='y']`) and plain CSS pass through
// unchanged with a nil predicate.
func translateSelector(selector string) (cssBase string, pred *textPredicate) {
	m := hasTextPattern.FindStringSubmatch(selector)
	if m == nil {
		return selector, nil
	}
	base := strings.TrimSpace(hasTextPattern.ReplaceAllString(selector, ""))
	if base == "" {
		base = "*"
	}
	return base, &textPredicate{text: m[1]}
}
