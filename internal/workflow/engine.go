package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/controller"
	"github.com/flowloom/flowloom/internal/logging"
	"github.com/flowloom/flowloom/internal/variables"
)

// Engine is the ExecutionEngine (C5): the cooperative interpreter loop that
// drives an AutomationConfig's action list against a Runtime, consulting a
// Controller at every suspension point (spec §5).
type Engine struct {
	Registry   *Registry
	Controller *controller.Controller
	Runtime    *Runtime
}

// NewEngine wires a Registry, Controller, and Runtime into an Engine. Pass
// NewDefaultRegistry() unless the caller needs a reduced or test-specific
// handler set.
func NewEngine(registry *Registry, ctl *controller.Controller, rt *Runtime) *Engine {
	return &Engine{Registry: registry, Controller: ctl, Runtime: rt}
}

// RunResult summarizes one completed (or stopped) run.
type RunResult struct {
	Success         bool
	ActionsExecuted int
	Errors          []*AutomationError
	Stopped         bool
	Emergency       bool
}

// maxLoopGuard bounds a single WHILE body's consecutive re-entries as a
// last-resort backstop against a condition that can never go false and never
// hits BREAK — the scheduler's own watchdog is the primary defense (spec
// §4.9), this just prevents an single-workflow hang from spinning forever
// inside one process.
const maxLoopGuard = 1_000_000

// Run validates cfg, navigates to its start_url, and interprets its action
// list to completion, to STOP_AUTOMATION, or to a controller-requested stop.
func (e *Engine) Run(ctx context.Context, cfg *AutomationConfig, ec *ExecutionContext) (*RunResult, error) {
	blocks, err := ValidateConfig(cfg, e.Registry)
	if err != nil {
		return nil, fmt.Errorf("validate automation config: %w", err)
	}

	if ec.Variables == nil {
		ec.Variables = variables.NewWithValues(cfg.Variables)
	}

	e.Controller.Start(len(cfg.Actions))

	timeout := e.Runtime.Config.DefaultTimeout()
	if err := e.Runtime.Driver.Navigate(ctx, cfg.StartURL, timeout); err != nil {
		return nil, fmt.Errorf("navigate to start_url: %w", err)
	}

	result := &RunResult{Success: true}

	for ec.IP < len(cfg.Actions) {
		if e.Controller.CheckShouldStop() {
			result.Stopped = true
			result.Emergency = e.Controller.IsEmergency()
			result.Success = false
			break
		}
		if err := e.Controller.AwaitResume(ctx); err != nil {
			result.Stopped = true
			result.Success = false
			break
		}

		action := &cfg.Actions[ec.IP]

		if IsControlFlow(action.Kind) {
			stop, stopErr := e.stepControlFlow(ctx, cfg, blocks, action, ec)
			if stopErr != nil {
				result.Errors = append(result.Errors, stopErr)
				result.Success = false
			}
			if stop {
				result.Stopped = true
				break
			}
			continue
		}

		actResult, actErr := e.dispatch(ctx, action, ec)
		ec.Results = append(ec.Results, actResult)
		result.ActionsExecuted++

		if actErr != nil {
			ae := normalizeError(actErr, ec.JobID, ec.IP)
			ec.ErrorLog = append(ec.ErrorLog, ae)
			result.Errors = append(result.Errors, ae)
			if e.Runtime.Logger != nil {
				e.Runtime.Logger.LogAutomationError(ae, e.Runtime.Config.StoreErrorDetails)
			}
			if !EffectiveContinueOnError(action) {
				result.Success = false
				break
			}
		}

		ec.IP++
	}

	e.Controller.MarkStopped()
	return result, nil
}

// dispatch looks up and runs the registered Handler for action, applying its
// RetryPolicy on failure (spec §4.4: "kind-default retries").
func (e *Engine) dispatch(ctx context.Context, action *Action, ec *ExecutionContext) (ActionResult, error) {
	h, ok := e.Registry.Get(action.Kind)
	if !ok {
		return ActionResult{}, logging.NewAutomationError(logging.ErrValidation, fmt.Sprintf("no handler registered for %s", action.Kind))
	}

	maxAttempts, delay := h.RetryPolicy()
	var lastErr error
	var lastResult ActionResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if e.Controller.CheckShouldStop() {
			return ActionResult{}, logging.NewAutomationError(logging.ErrAutomationStopped, "stop requested mid-retry")
		}
		lastResult, lastErr = h.Execute(ctx, action, ec, e.Runtime)
		if lastErr == nil {
			return lastResult, nil
		}
		if attempt < maxAttempts && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ActionResult{}, ctx.Err()
			}
		}
	}
	return lastResult, lastErr
}

// normalizeError classifies a handler's returned error into an
// *AutomationError tagged with job/action context, per spec §7.
func normalizeError(err error, jobID string, actionIndex int) *AutomationError {
	var ae *AutomationError
	if existing, ok := err.(*AutomationError); ok {
		ae = existing
	} else {
		ae = logging.WrapAutomationError(logging.ErrScript, err)
	}
	return ae.WithJob(jobID).WithAction(actionIndex)
}

// stepControlFlow interprets one control-flow action, mutating ec.IP and the
// block stack directly (spec §9: "IP manipulation after handler return").
// Returns stop=true when STOP_AUTOMATION is hit.
func (e *Engine) stepControlFlow(ctx context.Context, cfg *AutomationConfig, blocks *BlockIndex, action *Action, ec *ExecutionContext) (stop bool, err *AutomationError) {
	ip := ec.IP

	switch action.Kind {
	case KindIfBegin:
		if evaluateCondition(action, ec) {
			ec.PushBlock(BlockFrame{Kind: BlockIF, BeginIndex: ip, EndIndex: blocks.IfEnd[ip], TakenBranch: true})
			ec.IP++
		} else {
			ec.PushBlock(BlockFrame{Kind: BlockIF, BeginIndex: ip, EndIndex: blocks.IfEnd[ip], TakenBranch: false})
			ec.IP = blocks.NextBranch[ip]
		}

	case KindElif:
		top := ec.TopBlock()
		if top == nil {
			return false, logging.NewAutomationError(logging.ErrValidation, "ELIF outside open IF").WithAction(ip)
		}
		if top.TakenBranch {
			ec.IP = top.EndIndex
		} else if evaluateCondition(action, ec) {
			top.TakenBranch = true
			ec.IP++
		} else {
			ec.IP = blocks.NextBranch[ip]
		}

	case KindElse:
		top := ec.TopBlock()
		if top == nil {
			return false, logging.NewAutomationError(logging.ErrValidation, "ELSE outside open IF").WithAction(ip)
		}
		if top.TakenBranch {
			ec.IP = top.EndIndex
		} else {
			top.TakenBranch = true
			ec.IP++
		}

	case KindIfEnd:
		ec.PopBlock()
		ec.IP++

	case KindWhileBegin:
		if evaluateCondition(action, ec) {
			ec.PushBlock(BlockFrame{Kind: BlockWHILE, BeginIndex: ip, EndIndex: blocks.WhileEnd[ip]})
			ec.IP++
		} else {
			ec.IP = blocks.WhileEnd[ip] + 1
		}

	case KindWhileEnd:
		beginIdx, ok := blocks.WhileBegin[ip]
		if !ok {
			return false, logging.NewAutomationError(logging.ErrValidation, "WHILE_END without matching WHILE_BEGIN").WithAction(ip)
		}
		top := ec.TopBlock()
		if top == nil || top.Kind != BlockWHILE {
			return false, logging.NewAutomationError(logging.ErrValidation, "WHILE_END with no open WHILE frame").WithAction(ip)
		}
		top.LoopGuard++
		if top.LoopGuard > maxLoopGuard {
			ec.PopBlock()
			return false, logging.NewAutomationError(logging.ErrAutomationStopped, "WHILE loop exceeded safety bound").WithAction(ip)
		}
		if evaluateCondition(&cfg.Actions[beginIdx], ec) {
			ec.IP = beginIdx + 1
		} else {
			ec.PopBlock()
			ec.IP++
		}

	case KindBreak:
		idx := ec.InnermostWhile()
		if idx < 0 {
			return false, logging.NewAutomationError(logging.ErrValidation, "BREAK outside open WHILE").WithAction(ip)
		}
		frame := ec.BlockStack[idx]
		ec.BlockStack = ec.BlockStack[:idx]
		ec.IP = frame.EndIndex + 1

	case KindContinue:
		idx := ec.InnermostWhile()
		if idx < 0 {
			return false, logging.NewAutomationError(logging.ErrValidation, "CONTINUE outside open WHILE").WithAction(ip)
		}
		frame := ec.BlockStack[idx]
		ec.BlockStack = ec.BlockStack[:idx+1]
		ec.IP = frame.EndIndex

	case KindStopAutomation:
		ec.StopRequested = true
		ec.IP = len(cfg.Actions)
		return true, logging.NewAutomationError(logging.ErrAutomationStopped, "STOP_AUTOMATION reached").WithAction(ip)

	case KindSkipIf:
		if evaluateCondition(action, ec) {
			ec.IP += 2
		} else {
			ec.IP++
		}

	case KindConditionalWait:
		if werr := e.runConditionalWait(ctx, action, ec); werr != nil {
			if !EffectiveContinueOnError(action) {
				return false, werr.WithAction(ip)
			}
		}
		ec.IP++

	default:
		return false, logging.NewAutomationError(logging.ErrValidation, fmt.Sprintf("unrecognized control-flow kind %s", action.Kind)).WithAction(ip)
	}

	return false, nil
}

// conditionalWaitSpec is CONDITIONAL_WAIT's value shape (spec §4.4): an
// inner element check plus exponential-backoff parameters.
type conditionalWaitSpec struct {
	Selector      string
	Check         string
	Value         any
	Attribute     string
	InitialWaitMS int
	Multiplier    float64
	MaxWaitMS     int
	MaxAttempts   int
}

func parseConditionalWait(a *Action) conditionalWaitSpec {
	spec := conditionalWaitSpec{
		Attribute:     browser.AttrText,
		InitialWaitMS: 500,
		Multiplier:    2.0,
		MaxWaitMS:     30_000,
		MaxAttempts:   5,
	}
	m, ok := a.ValueMap()
	if !ok {
		return spec
	}
	if v, ok := m["selector"]; ok {
		spec.Selector = fmt.Sprintf("%v", v)
	}
	if v, ok := m["check"]; ok {
		spec.Check = fmt.Sprintf("%v", v)
	}
	spec.Value = m["value"]
	if v, ok := m["attribute"]; ok {
		spec.Attribute = fmt.Sprintf("%v", v)
	}
	spec.InitialWaitMS = intMapField(m, "initial_wait", spec.InitialWaitMS)
	if v, ok := m["multiplier"].(float64); ok {
		spec.Multiplier = v
	}
	spec.MaxWaitMS = intMapField(m, "max_wait", spec.MaxWaitMS)
	spec.MaxAttempts = intMapField(m, "max_attempts", spec.MaxAttempts)
	return spec
}

// runConditionalWait polls an element check with exponential backoff until
// it passes or max_attempts is exhausted (spec §4.4).
func (e *Engine) runConditionalWait(ctx context.Context, a *Action, ec *ExecutionContext) *AutomationError {
	spec := parseConditionalWait(a)
	sel := ec.Variables.Substitute(spec.Selector).Text
	wait := time.Duration(spec.InitialWaitMS) * time.Millisecond
	maxWait := time.Duration(spec.MaxWaitMS) * time.Millisecond

	for attempt := 1; attempt <= spec.MaxAttempts; attempt++ {
		actual, found, err := e.Runtime.Driver.Attribute(ctx, sel, spec.Attribute, e.Runtime.Config.DefaultTimeout())
		if err == nil && found && evaluateCheck(spec.Check, actual, spec.Value) {
			ec.LastCheck = CheckResult{Success: true, Actual: actual, Expected: spec.Value}
			return nil
		}
		ec.LastCheck = CheckResult{Success: false, Actual: actual, Expected: spec.Value}

		if attempt == spec.MaxAttempts {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return logging.NewAutomationError(logging.ErrAutomationStopped, "conditional wait interrupted")
		}
		wait = time.Duration(float64(wait) * spec.Multiplier)
		if wait > maxWait {
			wait = maxWait
		}
	}

	return logging.NewAutomationError(logging.ErrTimeout, fmt.Sprintf("conditional wait on %q exhausted %d attempts", sel, spec.MaxAttempts)).WithSelector(sel)
}
