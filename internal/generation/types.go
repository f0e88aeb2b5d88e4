// Package generation implements GenerationDownloader (C9): the main
// infinite-scroll harvest loop that walks a generation gallery thumbnail by
// thumbnail, extracts metadata via internal/gallery, skips or stops on a
// duplicate per the configured policy, and logs each new download to
// internal/download.
package generation

import (
	"github.com/flowloom/flowloom/internal/gallery"
	"github.com/flowloom/flowloom/internal/mime"
)

// DuplicateMode is how the harvest loop reacts to a duplicate (spec §4.8).
type DuplicateMode string

const (
	// ModeFinish stops the harvest the moment a duplicate is seen.
	ModeFinish DuplicateMode = "FINISH"
	// ModeSkip looks past the duplicate run for the next fresh container
	// via BoundaryScanner, instead of stopping outright.
	ModeSkip DuplicateMode = "SKIP"
)

// Params configures one harvest run (spec §6's START_GENERATION_DOWNLOADS
// value, minus the workflow-action wrapping).
type Params struct {
	MaxDownloads    int
	DownloadsFolder string
	DuplicateMode   DuplicateMode
	StartFrom       string // canonical datetime, optional
	Selectors       gallery.Selectors
	LogPath         string
	IndexPath       string

	// NextThumbnailSelector is clicked to advance the active thumbnail.
	// Defaults to ".thumbnail-next" when empty.
	NextThumbnailSelector string

	// ExpectedExtensions are the file extensions waitForDownload treats as
	// "the file has appeared" (spec §4.8). Defaults to the image+video
	// media extensions when empty.
	ExpectedExtensions []string
}

func (p Params) withDefaults() Params {
	if p.NextThumbnailSelector == "" {
		p.NextThumbnailSelector = ".thumbnail-next"
	}
	if p.DuplicateMode == "" {
		p.DuplicateMode = ModeSkip
	}
	if len(p.ExpectedExtensions) == 0 {
		p.ExpectedExtensions = mime.MediaExtensions("image", "video")
	}
	return p
}

// Status reports harvest progress (spec's CHECK_GENERATION_STATUS).
type Status struct {
	Running    bool
	Downloaded int
	LastError  string
}
