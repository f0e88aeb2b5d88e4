package controlapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowloom/flowloom/internal/controller"
	"github.com/flowloom/flowloom/internal/download"
	"github.com/flowloom/flowloom/internal/workflow"
)

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

func TestHandleStatusReportsControllerState(t *testing.T) {
	ctl := controller.New("", nil)
	ctl.Start(5)
	srv := New(ctl, nil)

	rec := doRequest(t, srv, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data := env["data"].(map[string]any)
	if data["state"] != string(controller.StateRunning) {
		t.Fatalf("state = %v, want RUNNING", data["state"])
	}
	if data["totalActions"].(float64) != 5 {
		t.Fatalf("totalActions = %v, want 5", data["totalActions"])
	}
}

func TestHandleStatusIncludesGenerationStatusWhenWired(t *testing.T) {
	ctl := controller.New("", nil)
	ctl.Start(0)
	srv := New(ctl, nil)
	srv.GenerationStatus = func() workflow.GenerationStatus {
		return workflow.GenerationStatus{Running: true, Downloaded: 3}
	}

	rec := doRequest(t, srv, http.MethodGet, "/status", "")
	env := decodeEnvelope(t, rec)
	data := env["data"].(map[string]any)
	dl := data["download"].(map[string]any)
	if dl["Downloaded"].(float64) != 3 {
		t.Fatalf("Downloaded = %v, want 3", dl["Downloaded"])
	}
}

func TestHandlePauseResumeTransitionsController(t *testing.T) {
	ctl := controller.New("", nil)
	ctl.Start(1)
	srv := New(ctl, nil)

	doRequest(t, srv, http.MethodPost, "/pause", "")
	if ctl.State() != controller.StatePaused {
		t.Fatalf("state after /pause = %v, want PAUSED", ctl.State())
	}

	doRequest(t, srv, http.MethodPost, "/resume", "")
	if ctl.State() != controller.StateRunning {
		t.Fatalf("state after /resume = %v, want RUNNING", ctl.State())
	}
}

func TestHandleStopSetsStopFlag(t *testing.T) {
	ctl := controller.New("", nil)
	ctl.Start(1)
	srv := New(ctl, nil)

	rec := doRequest(t, srv, http.MethodPost, "/stop", `{"emergency":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ctl.CheckShouldStop() {
		t.Fatal("expected stop to be requested")
	}
	if !ctl.IsEmergency() {
		t.Fatal("expected emergency flag to be set")
	}
}

func TestHandleStopWithoutBodyIsGraceful(t *testing.T) {
	ctl := controller.New("", nil)
	ctl.Start(1)
	srv := New(ctl, nil)

	rec := doRequest(t, srv, http.MethodPost, "/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !ctl.CheckShouldStop() {
		t.Fatal("expected stop to be requested even with no body")
	}
	if ctl.IsEmergency() {
		t.Fatal("expected a bodyless stop to not be an emergency stop")
	}
}

func TestHandleDownloadsLogWithoutLogWired(t *testing.T) {
	ctl := controller.New("", nil)
	srv := New(ctl, nil)

	rec := doRequest(t, srv, http.MethodGet, "/downloads/log", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no log is wired", rec.Code)
	}
}

func TestHandleDownloadsLogReturnsEntries(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.txt")
	dlog, err := download.Load(logPath, "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := dlog.Insert(download.Entry{
		FileID: "#1", CreationTime: "01 Jan 2026 00:00:00", Prompt: "a cat", FilePath: "/tmp/a.png",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	ctl := controller.New("", nil)
	srv := New(ctl, nil)
	srv.Log = dlog

	rec := doRequest(t, srv, http.MethodGet, "/downloads/log", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data := env["data"].(map[string]any)
	if data["count"].(float64) != 1 {
		t.Fatalf("count = %v, want 1", data["count"])
	}
}

func TestHandleListCheckpointsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctl := controller.New(dir, nil)
	srv := New(ctl, nil)

	rec := doRequest(t, srv, http.MethodGet, "/checkpoints", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data := env["data"].(map[string]any)
	if data["checkpoints"] != nil {
		t.Fatalf("checkpoints = %v, want none for a fresh checkpoint dir", data["checkpoints"])
	}
}

func TestHandleHealthzReturnsPreflightReport(t *testing.T) {
	ctl := controller.New("", nil)
	srv := New(ctl, nil)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data := env["data"].(map[string]any)
	if _, ok := data["generatedAt"]; !ok {
		t.Fatal("expected a generatedAt field in the preflight report")
	}
}
