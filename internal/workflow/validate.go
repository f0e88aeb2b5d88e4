package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateConfig runs go-playground/validator's struct-tag validation over
// an AutomationConfig (required fields per spec §6), then validates block
// balance and per-action required fields. It is the load-time "Validation"
// failure class of spec §7 ("Fatal at load time").
func ValidateConfig(cfg *AutomationConfig, registry *Registry) (*BlockIndex, error) {
	if err := structValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	blocks, err := ValidateBlocks(cfg.Actions)
	if err != nil {
		return nil, err
	}

	for i := range cfg.Actions {
		a := &cfg.Actions[i]
		if IsControlFlow(a.Kind) {
			continue
		}
		h, ok := registry.Get(a.Kind)
		if !ok {
			return nil, fmt.Errorf("action %d: unknown action kind %q", i, a.Kind)
		}
		if err := h.ValidateFields(a); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i, a.Kind, err)
		}
	}

	return blocks, nil
}

// BlockIndex resolves the flat action list's block structure into index
// maps, per spec §9 ("cyclic block references ... resolved by matching
// BEGIN/END pairs at validation time into an index map").
type BlockIndex struct {
	// NextBranch maps an IF_BEGIN/ELIF/ELSE index to the index of the next
	// branch marker (ELIF/ELSE/IF_END) at the same nesting depth.
	NextBranch map[int]int
	// IfEnd maps an IF_BEGIN index to its IF_END index.
	IfEnd map[int]int
	// WhileEnd maps a WHILE_BEGIN index to its WHILE_END index.
	WhileEnd map[int]int
	// WhileBegin maps a WHILE_END index back to its WHILE_BEGIN index.
	WhileBegin map[int]int
}

type blockFrame struct {
	kind     BlockKind
	begin    int
	branches []int
}

// ValidateBlocks checks spec §3's block-balance invariant (every IF_BEGIN
// has IF_END, every WHILE_BEGIN has WHILE_END; ELIF/ELSE only within an
// open IF; BREAK/CONTINUE only within an open WHILE) and returns the
// resolved jump-target index (testable property #1).
func ValidateBlocks(actions []Action) (*BlockIndex, error) {
	idx := &BlockIndex{
		NextBranch: map[int]int{},
		IfEnd:      map[int]int{},
		WhileEnd:   map[int]int{},
		WhileBegin: map[int]int{},
	}

	var stack []blockFrame

	for i, a := range actions {
		switch a.Kind {
		case KindIfBegin:
			stack = append(stack, blockFrame{kind: BlockIF, begin: i, branches: []int{i}})

		case KindElif, KindElse:
			if len(stack) == 0 || stack[len(stack)-1].kind != BlockIF {
				return nil, fmt.Errorf("action %d: %s outside an open IF block", i, a.Kind)
			}
			top := &stack[len(stack)-1]
			top.branches = append(top.branches, i)

		case KindIfEnd:
			if len(stack) == 0 || stack[len(stack)-1].kind != BlockIF {
				return nil, fmt.Errorf("action %d: IF_END without matching IF_BEGIN", i)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			branches := append(top.branches, i)
			for k := 0; k < len(branches)-1; k++ {
				idx.NextBranch[branches[k]] = branches[k+1]
			}
			idx.IfEnd[top.begin] = i

		case KindWhileBegin:
			stack = append(stack, blockFrame{kind: BlockWHILE, begin: i})

		case KindWhileEnd:
			if len(stack) == 0 || stack[len(stack)-1].kind != BlockWHILE {
				return nil, fmt.Errorf("action %d: WHILE_END without matching WHILE_BEGIN", i)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			idx.WhileEnd[top.begin] = i
			idx.WhileBegin[i] = top.begin

		case KindBreak, KindContinue:
			if !hasOpenWhile(stack) {
				return nil, fmt.Errorf("action %d: %s outside an open WHILE block", i, a.Kind)
			}
		}
	}

	if len(stack) != 0 {
		unclosed := stack[len(stack)-1]
		return nil, fmt.Errorf("unclosed %s block opened at action %d", unclosed.kind, unclosed.begin)
	}

	return idx, nil
}

func hasOpenWhile(stack []blockFrame) bool {
	for _, f := range stack {
		if f.kind == BlockWHILE {
			return true
		}
	}
	return false
}
