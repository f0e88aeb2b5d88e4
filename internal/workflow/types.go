// Package workflow implements the data model, ActionRegistry (C4), and
// ExecutionEngine (C5) that interpret a workflow's action list against a
// browser.Driver.
package workflow

import (
	"time"

	"github.com/flowloom/flowloom/internal/logging"
	"github.com/flowloom/flowloom/internal/variables"
)

// ActionKind is the tag every Action carries — spec §9's "action-kind tag
// plus a registry" in place of a handler inheritance hierarchy.
type ActionKind string

const (
	// Ordinary (registry-dispatched) actions.
	KindInputText    ActionKind = "INPUT_TEXT"
	KindClickButton  ActionKind = "CLICK_BUTTON"
	KindUploadFile   ActionKind = "UPLOAD_FILE"
	KindToggleSetting ActionKind = "TOGGLE_SETTING"
	KindWait         ActionKind = "WAIT"
	KindWaitElement  ActionKind = "WAIT_FOR_ELEMENT"
	KindRefreshPage  ActionKind = "REFRESH_PAGE"
	KindExpandDialog ActionKind = "EXPAND_DIALOG"
	KindSwitchPanel  ActionKind = "SWITCH_PANEL"
	KindCheckElement ActionKind = "CHECK_ELEMENT"
	KindCheckQueue   ActionKind = "CHECK_QUEUE"
	KindSetVariable  ActionKind = "SET_VARIABLE"
	KindIncrementVar ActionKind = "INCREMENT_VARIABLE"
	KindLogMessage   ActionKind = "LOG_MESSAGE"
	KindLogin        ActionKind = "LOGIN"
	KindDownloadFile ActionKind = "DOWNLOAD_FILE"

	KindStartGenerationDownloads ActionKind = "START_GENERATION_DOWNLOADS"
	KindStopGenerationDownloads  ActionKind = "STOP_GENERATION_DOWNLOADS"
	KindCheckGenerationStatus    ActionKind = "CHECK_GENERATION_STATUS"

	// Control-flow kinds, interpreted directly by the engine's main loop
	// rather than through the registry (spec §9: "represent as
	// engine-internal sentinel outcomes ... do not leak to handlers").
	KindIfBegin         ActionKind = "IF_BEGIN"
	KindElif            ActionKind = "ELIF"
	KindElse            ActionKind = "ELSE"
	KindIfEnd           ActionKind = "IF_END"
	KindWhileBegin      ActionKind = "WHILE_BEGIN"
	KindWhileEnd        ActionKind = "WHILE_END"
	KindBreak           ActionKind = "BREAK"
	KindContinue        ActionKind = "CONTINUE"
	KindStopAutomation  ActionKind = "STOP_AUTOMATION"
	KindSkipIf          ActionKind = "SKIP_IF"
	KindConditionalWait ActionKind = "CONDITIONAL_WAIT"
)

// controlFlowKinds is consulted by the engine to route an action to the
// block-structure interpreter instead of the ActionRegistry.
var controlFlowKinds = map[ActionKind]bool{
	KindIfBegin: true, KindElif: true, KindElse: true, KindIfEnd: true,
	KindWhileBegin: true, KindWhileEnd: true, KindBreak: true, KindContinue: true,
	KindStopAutomation: true, KindSkipIf: true, KindConditionalWait: true,
}

// IsControlFlow reports whether kind is interpreted by the engine directly.
func IsControlFlow(kind ActionKind) bool { return controlFlowKinds[kind] }

// Action is one immutable unit of work in a workflow (spec §3).
type Action struct {
	Kind            ActionKind `json:"type" yaml:"type" validate:"required"`
	Selector        string     `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value           any        `json:"value,omitempty" yaml:"value,omitempty"`
	TimeoutMS       int        `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
	ContinueOnError *bool      `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

// Timeout resolves the action's effective timeout: its own override, else
// the engine default (spec §5: "action override, else config default, else
// 30s").
func (a *Action) Timeout(engineDefault time.Duration) time.Duration {
	if a.TimeoutMS > 0 {
		return time.Duration(a.TimeoutMS) * time.Millisecond
	}
	return engineDefault
}

// ValueMap returns a.Value as a map, when it is one — most action kinds'
// Value is a nested mapping of named fields (spec §6).
func (a *Action) ValueMap() (map[string]any, bool) {
	m, ok := a.Value.(map[string]any)
	return m, ok
}

// Viewport is the AutomationConfig.browser.viewport field.
type Viewport struct {
	Width  int `json:"width,omitempty" yaml:"width,omitempty"`
	Height int `json:"height,omitempty" yaml:"height,omitempty"`
}

// BrowserOpts is the AutomationConfig.browser field (spec §6).
type BrowserOpts struct {
	Type     string    `json:"type,omitempty" yaml:"type,omitempty"`
	Viewport *Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	Args     []string  `json:"args,omitempty" yaml:"args,omitempty"`
}

// AutomationConfig is a full workflow definition (spec §3, §6).
type AutomationConfig struct {
	Name            string         `json:"name" yaml:"name" validate:"required"`
	StartURL        string         `json:"url" yaml:"url" validate:"required"`
	Headless        bool           `json:"headless" yaml:"headless"`
	KeepBrowserOpen bool           `json:"keep_browser_open,omitempty" yaml:"keep_browser_open,omitempty"`
	Browser         BrowserOpts    `json:"browser,omitempty" yaml:"browser,omitempty"`
	Variables       map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	Actions         []Action       `json:"actions" yaml:"actions" validate:"required,min=1,dive"`
}

// BlockKind distinguishes the two structured-block types.
type BlockKind string

const (
	BlockIF    BlockKind = "IF"
	BlockWHILE BlockKind = "WHILE"
)

// BlockFrame is a live structured-block activation record (spec §3).
type BlockFrame struct {
	Kind        BlockKind
	BeginIndex  int
	EndIndex    int
	TakenBranch bool
	LoopGuard   int
}

// CheckResult is the outcome of the most recent CHECK_ELEMENT-family action,
// consulted by IF/WHILE/SKIP_IF conditions (spec §3).
type CheckResult struct {
	Success  bool
	Actual   any
	Expected any
}

// AutomationError is re-exported from logging so call sites in this package
// read naturally as workflow.AutomationError, matching the spec §7
// vocabulary, while the concrete type lives in logging to avoid an import
// cycle (logging.Logger.LogAutomationError needs it too).
type AutomationError = logging.AutomationError

// ActionResult is what a handler (or the control-flow interpreter) returns
// for a single action.
type ActionResult struct {
	Success       bool
	Data          any
	Err           *AutomationError
	ExecutionTime time.Duration
}

// ExecutionContext is the mutable per-run state the engine thread through
// the whole interpretation (spec §3).
type ExecutionContext struct {
	IP              int
	Variables       *variables.Store
	LastCheck       CheckResult
	BlockStack      []BlockFrame
	StopRequested   bool
	Emergency       bool
	ShouldIncrement bool
	ErrorLog        []*AutomationError
	Results         []ActionResult
	JobID           string
}

// NewExecutionContext creates a fresh context over an existing variable
// store (typically pre-populated from AutomationConfig.Variables).
func NewExecutionContext(jobID string, store *variables.Store) *ExecutionContext {
	return &ExecutionContext{
		Variables:       store,
		ShouldIncrement: true,
		JobID:           jobID,
	}
}

// PushBlock pushes a new block frame.
func (ec *ExecutionContext) PushBlock(f BlockFrame) {
	ec.BlockStack = append(ec.BlockStack, f)
}

// TopBlock returns the innermost frame, or nil if the stack is empty.
func (ec *ExecutionContext) TopBlock() *BlockFrame {
	if len(ec.BlockStack) == 0 {
		return nil
	}
	return &ec.BlockStack[len(ec.BlockStack)-1]
}

// PopBlock removes the innermost frame.
func (ec *ExecutionContext) PopBlock() {
	if len(ec.BlockStack) == 0 {
		return
	}
	ec.BlockStack = ec.BlockStack[:len(ec.BlockStack)-1]
}

// InnermostWhile returns the index (into BlockStack) of the nearest WHILE
// frame, or -1 if none is open — used by BREAK/CONTINUE.
func (ec *ExecutionContext) InnermostWhile() int {
	for i := len(ec.BlockStack) - 1; i >= 0; i-- {
		if ec.BlockStack[i].Kind == BlockWHILE {
			return i
		}
	}
	return -1
}
