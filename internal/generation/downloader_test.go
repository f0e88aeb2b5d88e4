package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/gallery"
)

func page(creationTime, prompt string) string {
	return fmt.Sprintf(`
		<div data-generation-id="g-%s" class="active">
			<span>Creation Time</span><span>%s</span>
			<span aria-describedby="p1">%s</span>
		</div>
		<button class="thumbnail-next">next</button>
		<div data-download="true" id="dlbtn"></div>
		<button id="watermark-btn">Download without Watermark</button>
	`, creationTime, creationTime, prompt)
}

func TestDownloaderHarvestsUntilMaxDownloads(t *testing.T) {
	dir := t.TempDir()
	downloadsDir := filepath.Join(dir, "downloads")
	if err := os.MkdirAll(downloadsDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	driver := browser.NewHTMLDriver()
	counter := 0
	times := []string{
		"01 Sep 2025 10:00:00",
		"01 Sep 2025 11:00:00",
		"01 Sep 2025 12:00:00",
	}
	// The loop clicks .thumbnail-next BEFORE extracting metadata each pass
	// (spec §4.8), so the initially loaded page is a placeholder "nothing
	// active yet" state and every click activates the next real thumbnail.
	if err := driver.LoadHTML(page("00 placeholder", "placeholder")); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	driver.OnClick(".thumbnail-next", func(d *browser.HTMLDriver) {
		if counter < len(times) {
			d.LoadHTML(page(times[counter], fmt.Sprintf("a fresh generation prompt number %d", counter+1)))
			counter++
		}
	})
	driver.OnClick(`*:has-text("Download without Watermark")`, func(d *browser.HTMLDriver) {
		n := counter
		go func() {
			time.Sleep(15 * time.Millisecond)
			os.WriteFile(filepath.Join(downloadsDir, fmt.Sprintf("file-%d.png", n)), []byte("x"), 0644)
		}()
	})

	dl := New(driver, gallery.Selectors{}, nil)
	params := Params{
		MaxDownloads:    3,
		DownloadsFolder: downloadsDir,
		DuplicateMode:   ModeFinish,
		LogPath:         filepath.Join(dir, "log.txt"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	downloaded, err := dl.Run(ctx, params, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if downloaded != 3 {
		t.Fatalf("downloaded = %d, want 3", downloaded)
	}
}

func TestDownloaderStopsOnDuplicateInFinishMode(t *testing.T) {
	dir := t.TempDir()
	downloadsDir := filepath.Join(dir, "downloads")
	os.MkdirAll(downloadsDir, 0755)

	driver := browser.NewHTMLDriver()
	if err := driver.LoadHTML(page("01 Sep 2025 10:00:00", "the only generation available here")); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}
	// .thumbnail-next stays present but the page content never changes, so
	// the second pass re-extracts the same metadata it just logged.
	driver.OnClick(`*:has-text("Download without Watermark")`, func(d *browser.HTMLDriver) {
		go func() {
			time.Sleep(15 * time.Millisecond)
			os.WriteFile(filepath.Join(downloadsDir, "file-0.png"), []byte("x"), 0644)
		}()
	})

	dl := New(driver, gallery.Selectors{}, nil)
	params := Params{
		MaxDownloads:    10,
		DownloadsFolder: downloadsDir,
		DuplicateMode:   ModeFinish,
		LogPath:         filepath.Join(dir, "log.txt"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	downloaded, err := dl.Run(ctx, params, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if downloaded != 1 {
		t.Fatalf("downloaded = %d, want 1 (should stop at the first repeated duplicate)", downloaded)
	}
}

func TestDownloaderStopsWhenNoNextThumbnail(t *testing.T) {
	dir := t.TempDir()
	driver := browser.NewHTMLDriver()
	if err := driver.LoadHTML(`<div>nothing to harvest here</div>`); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	dl := New(driver, gallery.Selectors{}, nil)
	params := Params{
		MaxDownloads: 5,
		LogPath:      filepath.Join(dir, "log.txt"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	downloaded, err := dl.Run(ctx, params, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if downloaded != 0 {
		t.Fatalf("downloaded = %d, want 0", downloaded)
	}
}
