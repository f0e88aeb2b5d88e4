// Command downloader runs the generation-download engine (C6-C9) standalone
// against a single gallery page, without authoring a full AutomationConfig.
// Useful for harvesting a gallery directly, or for exercising the boundary
// scanner and duplicate log in isolation. Adapted from the teacher's
// cmd/Crepes/main.go flag-parsing and signal-driven shutdown idiom.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/gallery"
	"github.com/flowloom/flowloom/internal/generation"
	"github.com/flowloom/flowloom/internal/logging"
)

func main() {
	startURL := flag.String("url", "", "gallery URL to open before harvesting (required)")
	downloadsFolder := flag.String("downloads-folder", "./storage/downloads", "folder to watch for completed downloads")
	logPath := flag.String("log", "./storage/download_log.txt", "path to the download log")
	indexPath := flag.String("index", "./storage/download_index.db", "path to the sqlite duplicate-key index (empty disables it)")
	maxDownloads := flag.Int("max", 50, "maximum number of new downloads to harvest")
	duplicateMode := flag.String("on-duplicate", "SKIP", "behavior on hitting an already-downloaded item: SKIP or FINISH")
	startFrom := flag.String("start-from", "", "canonical creation_time to seek to before harvesting, skipping everything newer")
	headless := flag.Bool("headless", true, "run the browser headless")
	logDir := flag.String("log-dir", "./storage/logs", "directory for structured run logs")
	flag.Parse()

	if *startURL == "" {
		fmt.Fprintln(os.Stderr, "usage: downloader -url <gallery-url> [-max N] [-on-duplicate SKIP|FINISH] [-start-from <creation_time>]")
		os.Exit(2)
	}

	logger, err := logging.New(*logDir, "INFO", true)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := browser.NewChromeDriver(ctx, browser.Options{Headless: *headless}, logger)
	if err != nil {
		log.Fatalf("launch browser: %v", err)
	}
	defer driver.Close()

	if err := driver.Navigate(ctx, *startURL, 0); err != nil {
		log.Fatalf("navigate to %s: %v", *startURL, err)
	}

	sel := gallery.DefaultSelectors()
	dl := generation.New(driver, sel, logger)

	params := generation.Params{
		MaxDownloads:    *maxDownloads,
		DownloadsFolder: *downloadsFolder,
		DuplicateMode:   generation.DuplicateMode(*duplicateMode),
		StartFrom:       *startFrom,
		Selectors:       sel,
		LogPath:         *logPath,
		IndexPath:       *indexPath,
	}

	downloaded, err := dl.Run(ctx, params, func(downloaded int, lastErr error) {
		if lastErr != nil {
			logger.Warn("harvest progress", map[string]any{"downloaded": downloaded, "error": lastErr.Error()})
			return
		}
		logger.Info("harvest progress", map[string]any{"downloaded": downloaded})
	})
	if err != nil {
		log.Fatalf("harvest failed after %d downloads: %v", downloaded, err)
	}

	fmt.Printf("harvested %d new item(s)\n", downloaded)
}
