package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/download"
	"github.com/flowloom/flowloom/internal/gallery"
	"github.com/flowloom/flowloom/internal/logging"
)

// Adaptive timeout ceilings (spec §4.8): each operation polls up to its
// ceiling and is retried at most once before the harvest gives up on that
// thumbnail.
const (
	downloadVisibleCeiling     = 3 * time.Second
	verificationCeiling        = 4 * time.Second
	thumbnailActivationCeiling = 1500 * time.Millisecond
	metadataExtractionCeiling  = 1 * time.Second
	maxOperationRetries        = 1
	pollInterval               = 50 * time.Millisecond
)

// ErrStopRequested is returned by Run when Stop was called mid-harvest.
var ErrStopRequested = errors.New("generation: stop requested")

// Downloader drives the infinite-scroll harvest loop against a browser.Driver
// (spec §4.8, C9).
type Downloader struct {
	Driver browser.Driver
	Nav    *gallery.GalleryNavigator
	Scan   *gallery.BoundaryScanner
	Logger *logging.Logger
}

// New wires a Downloader against driver, with Nav/Scan built from sel.
func New(driver browser.Driver, sel gallery.Selectors, logger *logging.Logger) *Downloader {
	nav := gallery.New(sel)
	return &Downloader{
		Driver: driver,
		Nav:    nav,
		Scan:   gallery.NewBoundaryScanner(driver, nav, sel, logger),
		Logger: logger,
	}
}

// ProgressFunc is invoked after every completed or skipped thumbnail so a
// caller (Adapter) can answer CHECK_GENERATION_STATUS without polling Run.
type ProgressFunc func(downloaded int, lastErr error)

// Run executes the harvest loop until MaxDownloads is reached, the gallery
// is exhausted, or ctx is canceled (spec §4.8's pseudocode).
func (d *Downloader) Run(ctx context.Context, p Params, progress ProgressFunc) (int, error) {
	p = p.withDefaults()

	log, err := download.Load(p.LogPath, p.IndexPath, d.Logger)
	if err != nil {
		return 0, fmt.Errorf("generation: load download log: %w", err)
	}
	defer log.Close()

	if p.StartFrom != "" {
		result, err := d.Scan.SeekTo(ctx, p.StartFrom)
		if err != nil {
			return 0, fmt.Errorf("generation: seek start_from: %w", err)
		}
		if !result.Found {
			if d.Logger != nil {
				d.Logger.Warn("start_from not found; ending harvest gracefully", map[string]any{"start_from": p.StartFrom})
			}
			return 0, nil
		}
	}

	downloaded := 0
	for downloaded < p.MaxDownloads {
		if err := ctx.Err(); err != nil {
			return downloaded, ErrStopRequested
		}

		if err := d.navigateToNextThumbnail(ctx, p); err != nil {
			if d.Logger != nil {
				d.Logger.Warn("gallery exhausted: no further thumbnail to activate", map[string]any{"downloaded": downloaded})
			}
			break
		}

		md, ok := d.extractMetadata(ctx)
		if !ok {
			if d.Logger != nil {
				d.Logger.Warn("could not extract metadata from active thumbnail; stopping", nil)
			}
			break
		}

		if log.IsDuplicate(md.CreationTime, md.Prompt) {
			cont, err := d.handleDuplicate(ctx, p, log)
			if err != nil {
				return downloaded, err
			}
			if !cont {
				break
			}
			continue
		}

		if err := d.downloadActive(ctx, p); err != nil {
			if d.Logger != nil {
				d.Logger.Warn("download failed for active thumbnail; stopping", map[string]any{"error": err.Error()})
			}
			if progress != nil {
				progress(downloaded, err)
			}
			break
		}

		if err := log.Insert(download.Entry{
			FileID:       download.PlaceholderID,
			CreationTime: md.CreationTime,
			Prompt:       md.Prompt,
		}); err != nil {
			return downloaded, fmt.Errorf("generation: log insert: %w", err)
		}

		downloaded++
		if progress != nil {
			progress(downloaded, nil)
		}
	}

	return downloaded, nil
}

// handleDuplicate applies the configured DuplicateMode. It returns
// cont=true when the caller should keep harvesting from a newly found
// boundary container.
func (d *Downloader) handleDuplicate(ctx context.Context, p Params, log *download.DownloadLog) (cont bool, err error) {
	if p.DuplicateMode == ModeFinish {
		return false, nil
	}

	result, err := d.Scan.FindBoundary(ctx, log)
	if err != nil {
		return false, fmt.Errorf("generation: find boundary: %w", err)
	}
	if !result.Found {
		return false, nil
	}

	sel, ok := elementSelectorForContainerID(result.ContainerID)
	if ok {
		_ = d.Driver.Click(ctx, sel, thumbnailActivationCeiling)
	}
	return true, nil
}

func elementSelectorForContainerID(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	return fmt.Sprintf("[data-generation-id=%q]", id), true
}

// navigateToNextThumbnail advances the active thumbnail, retrying once
// within thumbnailActivationCeiling.
func (d *Downloader) navigateToNextThumbnail(ctx context.Context, p Params) error {
	return retryOperation(maxOperationRetries, func() error {
		return d.Driver.Click(ctx, p.NextThumbnailSelector, thumbnailActivationCeiling)
	})
}

// extractMetadata polls Snapshot+ExtractMetadata up to metadataExtractionCeiling.
func (d *Downloader) extractMetadata(ctx context.Context) (gallery.Metadata, bool) {
	var md gallery.Metadata
	found := pollUntil(ctx, metadataExtractionCeiling, func() bool {
		doc, err := d.Driver.Snapshot(ctx)
		if err != nil {
			return false
		}
		m, ok := d.Nav.ExtractMetadata(doc)
		if !ok {
			return false
		}
		md = m
		return true
	})
	return md, found
}

// downloadActive opens the download menu for the active thumbnail and
// clicks "Download without Watermark", then waits for the file to land in
// DownloadsFolder.
func (d *Downloader) downloadActive(ctx context.Context, p Params) error {
	err := retryOperation(maxOperationRetries, func() error {
		doc, err := d.Driver.Snapshot(ctx)
		if err != nil {
			return err
		}
		sel, ok := d.Nav.FindDownloadButton(doc)
		if !ok {
			return fmt.Errorf("download button not found")
		}
		return d.Driver.Click(ctx, sel, downloadVisibleCeiling)
	})
	if err != nil {
		return err
	}

	menuItem := d.Nav.DownloadMenuItemSelector()
	if err := retryOperation(maxOperationRetries, func() error {
		return d.Driver.Click(ctx, menuItem, downloadVisibleCeiling)
	}); err != nil {
		return err
	}

	return d.waitForDownload(ctx, p)
}

func (d *Downloader) waitForDownload(ctx context.Context, p Params) error {
	waitCtx, cancel := context.WithTimeout(ctx, verificationCeiling)
	defer cancel()

	ch, err := d.Driver.WatchDownloads(waitCtx, p.DownloadsFolder, p.ExpectedExtensions)
	if err != nil {
		return fmt.Errorf("watch downloads: %w", err)
	}

	select {
	case path, ok := <-ch:
		if !ok || path == "" {
			return fmt.Errorf("download did not complete within %s", verificationCeiling)
		}
		return nil
	case <-waitCtx.Done():
		return fmt.Errorf("download did not complete within %s", verificationCeiling)
	}
}

// retryOperation runs fn, retrying up to maxRetries additional times on
// error.
func retryOperation(maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

// pollUntil calls fn repeatedly until it returns true or ceiling elapses.
func pollUntil(ctx context.Context, ceiling time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(ceiling)
	for {
		if fn() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}
