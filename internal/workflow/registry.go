package workflow

import (
	"context"
	"fmt"
	"time"
)

// Handler implements one action kind (C4). The contract mirrors the
// teacher's scraper Task interface (GetInputSchema/ValidateConfig/Execute
// in internal/scraper/tasks.go), generalized from a map[string]string
// schema to a concrete RequiredFields list validated against Action.Value.
type Handler interface {
	Kind() ActionKind

	// RequiredFields lists the keys that must be present (and non-nil) in
	// the action's Value map for this kind. Actions whose Value is not a
	// map (e.g. WAIT's plain numeric value) return nil.
	RequiredFields() []string

	// ValidateFields checks the action's Value against RequiredFields,
	// rejecting the load at validate time per spec §4.3/§7.
	ValidateFields(a *Action) error

	// Execute runs the action. Implementations must read already-
	// substituted values from rt/ec, never raw a.Value, per spec §4.3.
	Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error)

	// RetryPolicy returns the kind-default retry count and inter-attempt
	// delay (spec §4.4: "kind-default retries, e.g. CLICK_BUTTON retries 1
	// extra time after 100ms"). maxAttempts=1 means no retry.
	RetryPolicy() (maxAttempts int, delay time.Duration)
}

// baseHandler supplies the common no-retry default; handlers embed it and
// override RetryPolicy where spec §4.4 calls for a kind-specific policy.
type baseHandler struct{}

func (baseHandler) RetryPolicy() (int, time.Duration) { return 1, 0 }

// Registry maps an ActionKind to its Handler (spec §9: "action-kind tag
// plus a registry mapping kind -> handler function/object").
type Registry struct {
	handlers map[ActionKind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[ActionKind]Handler{}}
}

// Register adds a handler, keyed by its own Kind().
func (r *Registry) Register(h Handler) {
	r.handlers[h.Kind()] = h
}

// Get returns the handler for kind, if registered.
func (r *Registry) Get(kind ActionKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// NewDefaultRegistry returns a Registry with every non-control-flow action
// kind from spec §4.4 registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, h := range []Handler{
		&inputTextHandler{}, &clickButtonHandler{}, &uploadFileHandler{},
		&toggleSettingHandler{}, &waitHandler{}, &waitForElementHandler{},
		&refreshPageHandler{}, &expandDialogHandler{}, &switchPanelHandler{},
		&checkElementHandler{}, &checkQueueHandler{},
		&setVariableHandler{}, &incrementVariableHandler{},
		&logMessageHandler{}, &loginHandler{}, &downloadFileHandler{},
		&startGenerationDownloadsHandler{}, &stopGenerationDownloadsHandler{}, &checkGenerationStatusHandler{},
	} {
		r.Register(h)
	}
	return r
}

// requireFields is a shared ValidateFields helper: every name in required
// must be a present, non-nil key of a.Value's map form.
func requireFields(a *Action, required []string) error {
	if len(required) == 0 {
		return nil
	}
	m, ok := a.ValueMap()
	if !ok {
		return fmt.Errorf("value must be an object with fields %v", required)
	}
	for _, name := range required {
		if v, ok := m[name]; !ok || v == nil {
			return fmt.Errorf("missing required field %q", name)
		}
	}
	return nil
}

// DefaultContinueOnError resolves the per-kind default, per SPEC_FULL.md's
// binding resolution of spec §9's open question: IF_BEGIN, WHILE_BEGIN,
// STOP_AUTOMATION and SET_VARIABLE default to false (a broken control signal
// halts the run); every other kind, CONDITIONAL_WAIT included, defaults to
// true.
func DefaultContinueOnError(kind ActionKind) bool {
	switch kind {
	case KindIfBegin, KindWhileBegin, KindStopAutomation, KindSetVariable:
		return false
	default:
		return true
	}
}

// EffectiveContinueOnError resolves an action's continue_on_error: its own
// override if set, else the kind's default.
func EffectiveContinueOnError(a *Action) bool {
	if a.ContinueOnError != nil {
		return *a.ContinueOnError
	}
	return DefaultContinueOnError(a.Kind)
}
