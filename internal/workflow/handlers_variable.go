package workflow

import (
	"context"
	"fmt"
	"time"
)

// --- SET_VARIABLE ---

type setVariableHandler struct{ baseHandler }

func (setVariableHandler) Kind() ActionKind         { return KindSetVariable }
func (setVariableHandler) RequiredFields() []string { return []string{"name", "value"} }
func (h setVariableHandler) ValidateFields(a *Action) error { return requireFields(a, h.RequiredFields()) }

func (h setVariableHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	m, _ := a.ValueMap()
	name := fmt.Sprintf("%v", m["name"])
	value := m["value"]
	if s, ok := value.(string); ok {
		value = ec.Variables.Substitute(s).Text
	}
	ec.Variables.Set(name, value)
	return ActionResult{Success: true, Data: value, ExecutionTime: 0}, nil
}

// --- INCREMENT_VARIABLE ---

type incrementVariableHandler struct{ baseHandler }

func (incrementVariableHandler) Kind() ActionKind         { return KindIncrementVar }
func (incrementVariableHandler) RequiredFields() []string { return []string{"name"} }
func (h incrementVariableHandler) ValidateFields(a *Action) error { return requireFields(a, h.RequiredFields()) }

func (h incrementVariableHandler) Execute(ctx context.Context, a *Action, ec *ExecutionContext, rt *Runtime) (ActionResult, error) {
	start := time.Now()
	m, _ := a.ValueMap()
	name := fmt.Sprintf("%v", m["name"])
	delta := 1.0
	if v, ok := m["increment"]; ok {
		switch t := v.(type) {
		case float64:
			delta = t
		case int:
			delta = float64(t)
		}
	}
	result, err := ec.Variables.Increment(name, delta)
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Success: true, Data: result, ExecutionTime: time.Since(start)}, nil
}
