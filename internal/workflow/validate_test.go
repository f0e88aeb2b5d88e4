package workflow

import "testing"

func TestValidateBlocksBalanced(t *testing.T) {
	actions := []Action{
		{Kind: KindIfBegin},
		{Kind: KindElif},
		{Kind: KindElse},
		{Kind: KindIfEnd},
		{Kind: KindWhileBegin},
		{Kind: KindBreak},
		{Kind: KindContinue},
		{Kind: KindWhileEnd},
	}
	idx, err := ValidateBlocks(actions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.IfEnd[0] != 3 {
		t.Fatalf("expected IF_END at 3, got %d", idx.IfEnd[0])
	}
	if idx.NextBranch[0] != 1 || idx.NextBranch[1] != 2 || idx.NextBranch[2] != 3 {
		t.Fatalf("unexpected branch chain: %+v", idx.NextBranch)
	}
	if idx.WhileEnd[4] != 7 || idx.WhileBegin[7] != 4 {
		t.Fatalf("unexpected while index: %+v / %+v", idx.WhileEnd, idx.WhileBegin)
	}
}

func TestValidateBlocksUnclosedIf(t *testing.T) {
	actions := []Action{{Kind: KindIfBegin}}
	if _, err := ValidateBlocks(actions); err == nil {
		t.Fatal("expected error for unclosed IF_BEGIN")
	}
}

func TestValidateBlocksBreakOutsideWhile(t *testing.T) {
	actions := []Action{{Kind: KindBreak}}
	if _, err := ValidateBlocks(actions); err == nil {
		t.Fatal("expected error for BREAK outside WHILE")
	}
}

func TestValidateBlocksElifOutsideIf(t *testing.T) {
	actions := []Action{{Kind: KindElif}}
	if _, err := ValidateBlocks(actions); err == nil {
		t.Fatal("expected error for ELIF outside IF")
	}
}

func TestValidateBlocksMismatchedEnd(t *testing.T) {
	actions := []Action{{Kind: KindWhileBegin}, {Kind: KindIfEnd}}
	if _, err := ValidateBlocks(actions); err == nil {
		t.Fatal("expected error for IF_END closing a WHILE block")
	}
}

func TestValidateConfigRejectsUnknownHandler(t *testing.T) {
	cfg := &AutomationConfig{
		Name:     "n",
		StartURL: "https://example.test",
		Actions:  []Action{{Kind: ActionKind("NOT_A_REAL_KIND")}},
	}
	if _, err := ValidateConfig(cfg, NewDefaultRegistry()); err == nil {
		t.Fatal("expected error for unregistered action kind")
	}
}

func TestValidateConfigRejectsMissingRequiredField(t *testing.T) {
	cfg := &AutomationConfig{
		Name:     "n",
		StartURL: "https://example.test",
		Actions:  []Action{{Kind: KindInputText, Value: map[string]any{}}},
	}
	if _, err := ValidateConfig(cfg, NewDefaultRegistry()); err == nil {
		t.Fatal("expected error for INPUT_TEXT missing text field")
	}
}
