package workflow

import "fmt"

// evaluateCondition implements the five condition kinds IF_BEGIN, ELIF,
// WHILE_BEGIN/END, SKIP_IF, and CONDITIONAL_WAIT all share (spec §4.4):
// check_passed, check_failed, value_equals, value_not_equals, always_true.
// value_equals/value_not_equals compare ctx.LastCheck.Actual against a
// literal carried in the action's value, after variable substitution of
// that literal.
func evaluateCondition(a *Action, ec *ExecutionContext) bool {
	kind, value := conditionSpec(a)
	switch kind {
	case "always_true", "":
		return true
	case "check_passed":
		return ec.LastCheck.Success
	case "check_failed":
		return !ec.LastCheck.Success
	case "value_equals":
		return fmt.Sprintf("%v", ec.LastCheck.Actual) == ec.Variables.Substitute(fmt.Sprintf("%v", value)).Text
	case "value_not_equals":
		return fmt.Sprintf("%v", ec.LastCheck.Actual) != ec.Variables.Substitute(fmt.Sprintf("%v", value)).Text
	default:
		return false
	}
}

// conditionSpec extracts {condition[, value]} from a control-flow action's
// Value field (spec §3: "value: kind-dependent ... For WHILE/IF conditions:
// { condition }").
func conditionSpec(a *Action) (kind string, value any) {
	m, ok := a.ValueMap()
	if !ok {
		if s, ok := a.Value.(string); ok {
			return s, nil
		}
		return "always_true", nil
	}
	kind = fmt.Sprintf("%v", m["condition"])
	return kind, m["value"]
}
