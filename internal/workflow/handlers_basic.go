package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/flowloom/flowloom/internal/logging"
)

// stringField reads a string field from an action's Value map, applying
// variable substitution via ec.Variables (spec §4.3: "handlers must read
// substituted values from ctx, not raw action.value").
func stringField(ec *ExecutionContext, m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s := fmt.Sprintf("%v", v)
	return ec.Variables.Substitute(s).Text
}

func substituteSelector(ec *ExecutionContext, a *Action) string {
	return ec.Variables.Substitute(a.Selector).Text
}

// --- INPUT_TEXT ---

type inputTextHandler struct{ baseHandler }

func (inputTextHandler) Kind() ActionKind        { return KindInputText }
func (inputTextHandler) RequiredFields() []string { return []string{"text"} }
func (h inputTextHandler) ValidateFields(a *Action) error { return requireFields(a, h.RequiredFields()) }

func (h inputTextHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	m, _ := a.ValueMap()
	text := stringField(ec, m, "text")
	sel := substituteSelector(ec, a)

	start := time.Now()
	if err := rt.Driver.Fill(ctx, sel, text, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- CLICK_BUTTON ---

type clickButtonHandler struct{ baseHandler }

func (clickButtonHandler) Kind() ActionKind         { return KindClickButton }
func (clickButtonHandler) RequiredFields() []string { return nil }
func (clickButtonHandler) ValidateFields(a *Action) error { return nil }

// RetryPolicy: CLICK_BUTTON retries 1 extra time after 100ms, per spec §4.4.
func (clickButtonHandler) RetryPolicy() (int, time.Duration) { return 2, 100 * time.Millisecond }

func (h clickButtonHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	sel := substituteSelector(ec, a)
	start := time.Now()
	if err := rt.Driver.Click(ctx, sel, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- UPLOAD_FILE ---

type uploadFileHandler struct{ baseHandler }

func (uploadFileHandler) Kind() ActionKind         { return KindUploadFile }
func (uploadFileHandler) RequiredFields() []string { return []string{"file_path"} }
func (h uploadFileHandler) ValidateFields(a *Action) error { return requireFields(a, h.RequiredFields()) }

func (h uploadFileHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	m, _ := a.ValueMap()
	path := stringField(ec, m, "file_path")
	sel := substituteSelector(ec, a)
	start := time.Now()
	if err := rt.Driver.Fill(ctx, sel, path, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- TOGGLE_SETTING ---

type toggleSettingHandler struct{ baseHandler }

func (toggleSettingHandler) Kind() ActionKind         { return KindToggleSetting }
func (toggleSettingHandler) RequiredFields() []string { return nil }
func (toggleSettingHandler) ValidateFields(a *Action) error { return nil }

func (h toggleSettingHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	sel := substituteSelector(ec, a)
	start := time.Now()
	if err := rt.Driver.Click(ctx, sel, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- WAIT ---

type waitHandler struct{ baseHandler }

func (waitHandler) Kind() ActionKind         { return KindWait }
func (waitHandler) RequiredFields() []string { return nil }
func (waitHandler) ValidateFields(a *Action) error {
	if _, ok := a.Value.(float64); ok {
		return nil
	}
	if _, ok := a.Value.(int); ok {
		return nil
	}
	return fmt.Errorf("WAIT requires a numeric value (milliseconds)")
}

func (h waitHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	ms := toMillis(a.Value)
	start := time.Now()
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
		return ActionResult{}, logging.NewAutomationError(logging.ErrAutomationStopped, "wait interrupted")
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

func toMillis(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	default:
		return 0
	}
}

// --- WAIT_FOR_ELEMENT ---

type waitForElementHandler struct{ baseHandler }

func (waitForElementHandler) Kind() ActionKind         { return KindWaitElement }
func (waitForElementHandler) RequiredFields() []string { return nil }
func (waitForElementHandler) ValidateFields(a *Action) error { return nil }

func (h waitForElementHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	sel := substituteSelector(ec, a)
	start := time.Now()
	if err := rt.Driver.WaitForElement(ctx, sel, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrTimeout, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- REFRESH_PAGE ---

type refreshPageHandler struct{ baseHandler }

func (refreshPageHandler) Kind() ActionKind         { return KindRefreshPage }
func (refreshPageHandler) RequiredFields() []string { return nil }
func (refreshPageHandler) ValidateFields(a *Action) error { return nil }

func (h refreshPageHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	start := time.Now()
	if _, err := rt.Driver.Evaluate(ctx, `location.reload()`); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrNavigation, err.Error())
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- EXPAND_DIALOG ---

type expandDialogHandler struct{ baseHandler }

func (expandDialogHandler) Kind() ActionKind         { return KindExpandDialog }
func (expandDialogHandler) RequiredFields() []string { return nil }
func (expandDialogHandler) ValidateFields(a *Action) error { return nil }

func (h expandDialogHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	sel := substituteSelector(ec, a)
	start := time.Now()
	if err := rt.Driver.Click(ctx, sel, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- SWITCH_PANEL ---

type switchPanelHandler struct{ baseHandler }

func (switchPanelHandler) Kind() ActionKind         { return KindSwitchPanel }
func (switchPanelHandler) RequiredFields() []string { return nil }
func (switchPanelHandler) ValidateFields(a *Action) error { return nil }

func (h switchPanelHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	sel := substituteSelector(ec, a)
	start := time.Now()
	if err := rt.Driver.Click(ctx, sel, a.Timeout(rt.Config.DefaultTimeout())); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true, ExecutionTime: time.Since(start)}, nil
}

// --- LOG_MESSAGE ---

type logMessageHandler struct{ baseHandler }

func (logMessageHandler) Kind() ActionKind         { return KindLogMessage }
func (logMessageHandler) RequiredFields() []string { return nil }
func (logMessageHandler) ValidateFields(a *Action) error { return nil }

func (h logMessageHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	var message string
	if m, ok := a.ValueMap(); ok {
		message = stringField(ec, m, "message")
	} else if s, ok := a.Value.(string); ok {
		message = ec.Variables.Substitute(s).Text
	}
	if rt.Logger != nil {
		rt.Logger.Info(message, map[string]any{"job_id": ec.JobID})
	}
	return ActionResult{Success: true, Data: message}, nil
}

// --- LOGIN ---

type loginHandler struct{ baseHandler }

func (loginHandler) Kind() ActionKind         { return KindLogin }
func (loginHandler) RequiredFields() []string { return []string{"username_selector", "password_selector", "submit_selector"} }
func (h loginHandler) ValidateFields(a *Action) error { return requireFields(a, h.RequiredFields()) }

func (h loginHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	m, _ := a.ValueMap()
	timeout := a.Timeout(rt.Config.DefaultTimeout())

	username := resolveCredentialOrLiteral(ec, rt, stringField(ec, m, "username"))
	password := resolveCredentialOrLiteral(ec, rt, stringField(ec, m, "password"))

	if err := rt.Driver.Fill(ctx, stringField(ec, m, "username_selector"), username, timeout); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error())
	}
	if err := rt.Driver.Fill(ctx, stringField(ec, m, "password_selector"), password, timeout); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error())
	}
	if err := rt.Driver.Click(ctx, stringField(ec, m, "submit_selector"), timeout); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error())
	}
	return ActionResult{Success: true}, nil
}

// resolveCredentialOrLiteral resolves a ${credential_id.field} reference via
// rt.Credentials if present and rt.Credentials is non-nil; otherwise returns
// the (already variable-substituted) literal unchanged.
func resolveCredentialOrLiteral(ec *ExecutionContext, rt *Runtime, value string) string {
	if rt.Credentials == nil {
		return value
	}
	// Credential refs are left untouched by Store.Substitute, so they still
	// look like ${id.field} at this point.
	if len(value) > 3 && value[0:2] == "${" && value[len(value)-1] == '}' {
		inner := value[2 : len(value)-1]
		dot := -1
		for i := len(inner) - 1; i >= 0; i-- {
			if inner[i] == '.' {
				dot = i
				break
			}
		}
		if dot > 0 {
			id, field := inner[:dot], inner[dot+1:]
			if resolved, ok := rt.Credentials.Resolve(id, field); ok {
				return resolved
			}
		}
	}
	return value
}

// --- DOWNLOAD_FILE ---

type downloadFileHandler struct{ baseHandler }

func (downloadFileHandler) Kind() ActionKind         { return KindDownloadFile }
func (downloadFileHandler) RequiredFields() []string { return nil }
func (downloadFileHandler) ValidateFields(a *Action) error { return nil }

func (h downloadFileHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	sel := substituteSelector(ec, a)
	timeout := a.Timeout(rt.Config.DefaultTimeout())
	if err := rt.Driver.Click(ctx, sel, timeout); err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrDownloadFailed, err.Error()).WithSelector(sel)
	}
	return ActionResult{Success: true}, nil
}
