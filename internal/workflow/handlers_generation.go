package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/flowloom/flowloom/internal/logging"
)

func stringMapField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func intMapField(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return def
	}
}

func selectorMapField(m map[string]any) map[string]string {
	out := map[string]string{}
	raw, ok := m["selectors"].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// --- START_GENERATION_DOWNLOADS ---

type startGenerationDownloadsHandler struct{ baseHandler }

func (startGenerationDownloadsHandler) Kind() ActionKind         { return KindStartGenerationDownloads }
func (startGenerationDownloadsHandler) RequiredFields() []string { return []string{"max_downloads", "downloads_folder"} }
func (h startGenerationDownloadsHandler) ValidateFields(a *Action) error {
	return requireFields(a, h.RequiredFields())
}

func (h startGenerationDownloadsHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	if rt.Generation == nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrValidation, "no generation downloader wired into this runtime")
	}
	m, _ := a.ValueMap()
	params := GenerationParams{
		MaxDownloads:    intMapField(m, "max_downloads", 0),
		DownloadsFolder: ec.Variables.Substitute(stringMapField(m, "downloads_folder")).Text,
		DuplicateMode:   stringMapField(m, "duplicate_mode"),
		StartFrom:       ec.Variables.Substitute(stringMapField(m, "start_from")).Text,
		Selectors:       selectorMapField(m),
	}
	if params.DuplicateMode == "" {
		params.DuplicateMode = "SKIP"
	}

	start := time.Now()
	if err := rt.Generation.Start(ctx, params); err != nil {
		return ActionResult{}, logging.WrapAutomationError(logging.ErrNetwork, err)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- STOP_GENERATION_DOWNLOADS ---

type stopGenerationDownloadsHandler struct{ baseHandler }

func (stopGenerationDownloadsHandler) Kind() ActionKind         { return KindStopGenerationDownloads }
func (stopGenerationDownloadsHandler) RequiredFields() []string { return nil }
func (stopGenerationDownloadsHandler) ValidateFields(a *Action) error { return nil }

func (h stopGenerationDownloadsHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	if rt.Generation == nil {
		return ActionResult{Success: true}, nil
	}
	if err := rt.Generation.Stop(ctx); err != nil {
		return ActionResult{}, logging.WrapAutomationError(logging.ErrNetwork, err)
	}
	return ActionResult{Success: true}, nil
}

// --- CHECK_GENERATION_STATUS ---

type checkGenerationStatusHandler struct{ baseHandler }

func (checkGenerationStatusHandler) Kind() ActionKind         { return KindCheckGenerationStatus }
func (checkGenerationStatusHandler) RequiredFields() []string { return nil }
func (checkGenerationStatusHandler) ValidateFields(a *Action) error { return nil }

func (h checkGenerationStatusHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	if rt.Generation == nil {
		ec.LastCheck = CheckResult{Success: false}
		return ActionResult{Success: true, Data: GenerationStatus{}}, nil
	}
	status := rt.Generation.Status()
	ec.LastCheck = CheckResult{Success: status.Running, Actual: status.Downloaded}
	return ActionResult{Success: true, Data: status}, nil
}
