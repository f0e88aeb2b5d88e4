package generation

import (
	"context"
	"testing"
	"time"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/workflow"
)

func TestAdapterStartStopStatus(t *testing.T) {
	dir := t.TempDir()
	driver := browser.NewHTMLDriver()
	if err := driver.LoadHTML(`<div>no thumbnail strip here</div>`); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	a := NewAdapter(driver, nil)
	err := a.Start(context.Background(), workflow.GenerationParams{
		MaxDownloads:    5,
		DownloadsFolder: dir,
		DuplicateMode:   "FINISH",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Status().Running && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	st := a.Status()
	if st.Running {
		t.Fatal("expected the harvest to finish quickly with no thumbnail strip present")
	}
	if st.Downloaded != 0 {
		t.Fatalf("Downloaded = %d, want 0", st.Downloaded)
	}
}

func TestAdapterStopCancelsRun(t *testing.T) {
	dir := t.TempDir()
	driver := browser.NewHTMLDriver()
	if err := driver.LoadHTML(`
		<div data-generation-id="g1" class="active">
			<span>Creation Time</span><span>01 Sep 2025 10:00:00</span>
			<span aria-describedby="p1">a never-ending generation prompt</span>
		</div>
		<button class="thumbnail-next">next</button>
		<div data-download="true" id="dlbtn"></div>
		<button id="watermark-btn">Download without Watermark</button>
	`); err != nil {
		t.Fatalf("LoadHTML: %v", err)
	}

	a := NewAdapter(driver, nil)
	err := a.Start(context.Background(), workflow.GenerationParams{
		MaxDownloads:    1_000_000,
		DownloadsFolder: dir,
		DuplicateMode:   "SKIP",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Status().Running && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.Status().Running {
		t.Fatal("expected Stop to end the harvest")
	}
}
