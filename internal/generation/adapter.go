package generation

import (
	"context"
	"sync"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/gallery"
	"github.com/flowloom/flowloom/internal/logging"
	"github.com/flowloom/flowloom/internal/workflow"
)

// Adapter implements workflow.GenerationController over a Downloader,
// letting the execution engine drive START/STOP_GENERATION_DOWNLOADS and
// CHECK_GENERATION_STATUS without importing this package's full
// dependency surface (spec §4.8/§6).
type Adapter struct {
	driver browser.Driver
	logger *logging.Logger

	mu      sync.Mutex
	status  Status
	cancel  context.CancelFunc
	running bool
}

// NewAdapter wires an Adapter against driver.
func NewAdapter(driver browser.Driver, logger *logging.Logger) *Adapter {
	return &Adapter{driver: driver, logger: logger}
}

// Start launches the harvest loop in a goroutine and returns immediately;
// Status reflects progress, Stop cancels it.
func (a *Adapter) Start(ctx context.Context, wp workflow.GenerationParams) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true
	a.status = Status{Running: true}
	a.mu.Unlock()

	sel := selectorsFromMap(wp.Selectors)
	dl := New(a.driver, sel, a.logger)
	params := Params{
		MaxDownloads:    wp.MaxDownloads,
		DownloadsFolder: wp.DownloadsFolder,
		DuplicateMode:   DuplicateMode(wp.DuplicateMode),
		StartFrom:       wp.StartFrom,
		Selectors:       sel,
		LogPath:         downloadLogPath(wp),
		IndexPath:       downloadIndexPath(wp),
	}

	go func() {
		_, err := dl.Run(runCtx, params, a.progress)
		a.mu.Lock()
		a.running = false
		if err != nil {
			a.status.LastError = err.Error()
		}
		a.status.Running = false
		a.mu.Unlock()
	}()

	return nil
}

func (a *Adapter) progress(downloaded int, lastErr error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Downloaded = downloaded
	if lastErr != nil {
		a.status.LastError = lastErr.Error()
	}
}

// Stop cancels the in-flight harvest, if any.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	a.running = false
	a.status.Running = false
	return nil
}

// Status reports current harvest progress.
func (a *Adapter) Status() workflow.GenerationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return workflow.GenerationStatus{
		Running:    a.status.Running,
		Downloaded: a.status.Downloaded,
		LastError:  a.status.LastError,
	}
}

func selectorsFromMap(m map[string]string) gallery.Selectors {
	sel := gallery.Selectors{}
	if m == nil {
		return sel.WithDefaults()
	}
	sel.ImageToVideoLabel = m["image_to_video_label"]
	sel.CreationTimeLabel = m["creation_time_label"]
	sel.DownloadIconID = m["download_icon_id"]
	sel.DownloadDataAttr = m["download_data_attr"]
	sel.ContainerSelector = m["container_selector"]
	sel.DownloadMenuItem = m["download_menu_item"]
	return sel.WithDefaults()
}

func downloadLogPath(wp workflow.GenerationParams) string {
	if wp.DownloadsFolder == "" {
		return "download_log.txt"
	}
	return wp.DownloadsFolder + "/download_log.txt"
}

func downloadIndexPath(wp workflow.GenerationParams) string {
	if wp.DownloadsFolder == "" {
		return ""
	}
	return wp.DownloadsFolder + "/download_log.sqlite3"
}
