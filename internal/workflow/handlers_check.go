package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flowloom/flowloom/internal/browser"
	"github.com/flowloom/flowloom/internal/logging"
)

// checkFieldNames are the keys CHECK_ELEMENT's Value map must carry (spec §6);
// "value" and "attribute" are optional.
var checkFieldNames = []string{"selector", "check"}

// --- CHECK_ELEMENT ---

type checkElementHandler struct{ baseHandler }

func (checkElementHandler) Kind() ActionKind         { return KindCheckElement }
func (checkElementHandler) RequiredFields() []string { return checkFieldNames }
func (h checkElementHandler) ValidateFields(a *Action) error {
	m, ok := a.ValueMap()
	if !ok {
		return fmt.Errorf("CHECK_ELEMENT requires an object value with %v", checkFieldNames)
	}
	if err := requireFields(a, checkFieldNames); err != nil {
		return err
	}
	check := fmt.Sprintf("%v", m["check"])
	if !validCheckKinds[check] {
		return fmt.Errorf("unknown check kind %q", check)
	}
	return nil
}

var validCheckKinds = map[string]bool{
	"equals": true, "not_equals": true, "less": true, "greater": true,
	"contains": true, "not_contains": true, "not_zero": true, "exists": true,
}

// Execute runs a CHECK_ELEMENT action: locate element, read its attribute,
// compare against the configured check, and write ctx.LastCheck (spec §4.4).
// A missing element yields success=false, never an error — callers compose
// it with IF/WHILE like any other comparison outcome.
func (h checkElementHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	m, _ := a.ValueMap()
	selector := ec.Variables.Substitute(fmt.Sprintf("%v", m["selector"])).Text
	check := fmt.Sprintf("%v", m["check"])
	attr := browser.AttrText
	if v, ok := m["attribute"]; ok {
		attr = fmt.Sprintf("%v", v)
	}
	var expected any
	if v, ok := m["value"]; ok {
		expected = ec.Variables.Substitute(fmt.Sprintf("%v", v)).Text
	}

	start := time.Now()

	if check == "exists" {
		found, err := rt.Driver.Exists(ctx, selector)
		if err != nil {
			return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(selector)
		}
		ec.LastCheck = CheckResult{Success: found, Actual: found, Expected: true}
		return ActionResult{Success: true, Data: ec.LastCheck, ExecutionTime: time.Since(start)}, nil
	}

	actual, found, err := rt.Driver.Attribute(ctx, selector, attr, a.Timeout(rt.Config.DefaultTimeout()))
	if err != nil {
		return ActionResult{}, logging.NewAutomationError(logging.ErrElementNotFound, err.Error()).WithSelector(selector)
	}
	if !found {
		ec.LastCheck = CheckResult{Success: false, Actual: nil, Expected: expected}
		return ActionResult{Success: true, Data: ec.LastCheck, ExecutionTime: time.Since(start)}, nil
	}

	ok := evaluateCheck(check, actual, expected)
	ec.LastCheck = CheckResult{Success: ok, Actual: actual, Expected: expected}
	return ActionResult{Success: true, Data: ec.LastCheck, ExecutionTime: time.Since(start)}, nil
}

func evaluateCheck(check string, actual string, expected any) bool {
	expStr := fmt.Sprintf("%v", expected)
	switch check {
	case "equals":
		return actual == expStr
	case "not_equals":
		return actual != expStr
	case "contains":
		return strings.Contains(actual, expStr)
	case "not_contains":
		return !strings.Contains(actual, expStr)
	case "not_zero":
		n, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		return err == nil && n != 0
	case "less", "greater":
		actualN, err1 := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		expN, err2 := strconv.ParseFloat(strings.TrimSpace(expStr), 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if check == "less" {
			return actualN < expN
		}
		return actualN > expN
	default:
		return false
	}
}

// --- CHECK_QUEUE ---

// checkQueueHandler is a thin wrapper over CHECK_ELEMENT (spec §9's binding
// resolution of Open Question 3): it delegates straight to the same
// evaluation with attribute="text" and a check restricted to the numeric
// subset {less, greater, equals, not_zero}.
type checkQueueHandler struct {
	baseHandler
	inner checkElementHandler
}

func (checkQueueHandler) Kind() ActionKind         { return KindCheckQueue }
func (checkQueueHandler) RequiredFields() []string { return checkFieldNames }

var validQueueChecks = map[string]bool{"less": true, "greater": true, "equals": true, "not_zero": true}

func (h checkQueueHandler) ValidateFields(a *Action) error {
	m, ok := a.ValueMap()
	if !ok {
		return fmt.Errorf("CHECK_QUEUE requires an object value with %v", checkFieldNames)
	}
	if err := requireFields(a, checkFieldNames); err != nil {
		return err
	}
	check := fmt.Sprintf("%v", m["check"])
	if !validQueueChecks[check] {
		return fmt.Errorf("CHECK_QUEUE check must be one of less|greater|equals|not_zero, got %q", check)
	}
	return nil
}

func (h checkQueueHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	m, _ := a.ValueMap()
	forced := Action{
		Kind:      KindCheckElement,
		Selector:  a.Selector,
		TimeoutMS: a.TimeoutMS,
		Value: map[string]any{
			"selector":  m["selector"],
			"check":     m["check"],
			"value":     m["value"],
			"attribute": browser.AttrText,
		},
	}
	return h.inner.Execute(ctx, &forced, ec, rt)
}
