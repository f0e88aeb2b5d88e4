package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/flowloom/flowloom/internal/config"
	"github.com/flowloom/flowloom/internal/controller"
)

// fakeDriver is a minimal browser.Driver test double: attribute reads are
// driven by a map of canned values plus a click counter, with no real DOM.
type fakeDriver struct {
	attrs   map[string]string
	clicks  atomic.Int64
	counter string // attribute name that tracks clicks.Load()
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{attrs: map[string]string{}}
}

func (f *fakeDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error { return nil }
func (f *fakeDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	f.clicks.Add(1)
	if f.counter != "" {
		f.attrs[f.counter] = fmt.Sprintf("%d", f.clicks.Load())
	}
	return nil
}
func (f *fakeDriver) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) Attribute(ctx context.Context, selector, attribute string, timeout time.Duration) (string, bool, error) {
	v, ok := f.attrs[selector]
	return v, ok, nil
}
func (f *fakeDriver) Exists(ctx context.Context, selector string) (bool, error) {
	_, ok := f.attrs[selector]
	return ok, nil
}
func (f *fakeDriver) Scroll(ctx context.Context, selector string, dx, dy int) error { return nil }
func (f *fakeDriver) Evaluate(ctx context.Context, script string) (any, error)     { return nil, nil }
func (f *fakeDriver) Snapshot(ctx context.Context) (*goquery.Document, error)      { return nil, nil }
func (f *fakeDriver) WatchDownloads(ctx context.Context, dir string, extensions []string) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (f *fakeDriver) Close() error { return nil }

func newTestEngine(t *testing.T, driver *fakeDriver) *Engine {
	t.Helper()
	cfg := config.GetDefaultConfig()
	ctl := controller.New("", nil)
	rt := &Runtime{Driver: driver, Config: cfg}
	return NewEngine(NewDefaultRegistry(), ctl, rt)
}

func logMessages(ec *ExecutionContext) []string {
	var out []string
	for _, r := range ec.Results {
		if s, ok := r.Data.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// TestEngineIfElifElse mirrors the IF/ELIF/ELSE branch-selection scenario:
// the checked element's text is "2", so the IF's equals-1 check fails, the
// ELIF's equals-2 check passes, and only the ELIF branch logs.
func TestEngineIfElifElse(t *testing.T) {
	driver := newFakeDriver()
	driver.attrs["#flag"] = "2"
	e := newTestEngine(t, driver)

	cfg := &AutomationConfig{
		Name:     "if-elif-else",
		StartURL: "https://example.test",
		Actions: []Action{
			{Kind: KindCheckElement, Value: map[string]any{"selector": "#flag", "check": "equals", "value": "1"}},
			{Kind: KindIfBegin, Value: map[string]any{"condition": "check_passed"}},
			{Kind: KindLogMessage, Value: "a"},
			{Kind: KindElif, Value: map[string]any{"condition": "value_equals", "value": "2"}},
			{Kind: KindLogMessage, Value: "b"},
			{Kind: KindElse},
			{Kind: KindLogMessage, Value: "c"},
			{Kind: KindIfEnd},
		},
	}

	ec := NewExecutionContext("job-1", nil)
	result, err := e.Run(context.Background(), cfg, ec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}

	got := logMessages(ec)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected exactly [\"b\"], got %v", got)
	}
}

// TestEngineWhileBreak drives a WHILE loop whose body clicks a counter and
// breaks once CHECK_ELEMENT observes it exceeding 2 — exercising loop
// termination (property #3) and BREAK's jump-past-WHILE_END behavior.
func TestEngineWhileBreak(t *testing.T) {
	driver := newFakeDriver()
	driver.counter = "#count"
	driver.attrs["#count"] = "0"
	e := newTestEngine(t, driver)

	cfg := &AutomationConfig{
		Name:     "while-break",
		StartURL: "https://example.test",
		Actions: []Action{
			{Kind: KindWhileBegin, Value: map[string]any{"condition": "always_true"}},
			{Kind: KindClickButton, Selector: "#increment"},
			{Kind: KindCheckElement, Value: map[string]any{"selector": "#count", "check": "greater", "value": "2"}},
			{Kind: KindIfBegin, Value: map[string]any{"condition": "check_passed"}},
			{Kind: KindBreak},
			{Kind: KindIfEnd},
			{Kind: KindWhileEnd},
		},
	}

	ec := NewExecutionContext("job-2", nil)
	result, err := e.Run(context.Background(), cfg, ec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}
	if driver.clicks.Load() != 3 {
		t.Fatalf("expected exactly 3 clicks before BREAK, got %d", driver.clicks.Load())
	}
}

// TestEngineStopAutomation confirms STOP_AUTOMATION halts the run and is
// reported as a failed, stopped result (spec §4.4).
func TestEngineStopAutomation(t *testing.T) {
	driver := newFakeDriver()
	e := newTestEngine(t, driver)

	cfg := &AutomationConfig{
		Name:     "stop",
		StartURL: "https://example.test",
		Actions: []Action{
			{Kind: KindLogMessage, Value: "before"},
			{Kind: KindStopAutomation},
			{Kind: KindLogMessage, Value: "after"},
		},
	}

	ec := NewExecutionContext("job-3", nil)
	result, err := e.Run(context.Background(), cfg, ec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure after STOP_AUTOMATION")
	}
	if !result.Stopped {
		t.Fatal("expected Stopped=true")
	}
	got := logMessages(ec)
	if len(got) != 1 || got[0] != "before" {
		t.Fatalf("expected only [\"before\"] to have logged, got %v", got)
	}
}
