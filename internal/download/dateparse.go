package download

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalLayout is the DownloadLog's canonical datetime format (spec §6):
// English month abbreviation, 24h clock.
const CanonicalLayout = "02 Jan 2006 15:04:05"

// acceptedLayouts are the input formats ParseDateTime accepts,
// tried in order (spec §4.5).
var acceptedLayouts = []string{
	CanonicalLayout,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02 Jan 2006",
}

// ParseDateTime parses s against every accepted layout, returning the first
// match. Date-only variants parse to midnight.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime format: %q", s)
}

// FormatCanonical renders t in the log's canonical layout.
func FormatCanonical(t time.Time) string {
	return t.Format(CanonicalLayout)
}
