// Package download implements the DownloadLog (C6): a chronologically
// sorted, plain-text record of harvested media with a duplicate-key index
// backed by a side-car sqlite cache.
package download

import "time"

// PlaceholderID marks a log entry written by a live run, awaiting an
// external renumbering pass (spec §3).
const PlaceholderID = "#999999999"

// Entry is one DownloadLogEntry (spec §3).
type Entry struct {
	FileID            string
	CreationTime      string // canonical "DD MMM YYYY HH:MM:SS"
	Prompt            string
	DownloadTimestamp time.Time
	FilePath          string

	parsed time.Time // cached parse of CreationTime, set by Insert/Load
}
