package variables

import "testing"

func TestSubstitute(t *testing.T) {
	s := NewWithValues(map[string]any{"user": "ada", "n": float64(7)})

	res := s.Substitute("hello ${user}, number ${n}")
	if res.Text != "hello ada, number 7" {
		t.Fatalf("got %q", res.Text)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("expected no missing names, got %v", res.Missing)
	}

	res = s.Substitute("x=${nope}")
	if res.Text != "x=${nope}" {
		t.Fatalf("got %q", res.Text)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "nope" {
		t.Fatalf("expected missing=[nope], got %v", res.Missing)
	}
}

func TestSubstituteDefault(t *testing.T) {
	s := New()
	res := s.Substitute("${greeting || hi}")
	if res.Text != "hi" {
		t.Fatalf("got %q", res.Text)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("default form should not report missing, got %v", res.Missing)
	}
}

func TestSubstituteIdempotent(t *testing.T) {
	s := NewWithValues(map[string]any{"a": "1"})
	once := s.Substitute("${a}-${b}").Text
	twice := s.Substitute(once).Text
	if once != twice {
		t.Fatalf("substitution not idempotent: %q vs %q", once, twice)
	}
}

func TestSubstituteCredentialRefUntouched(t *testing.T) {
	s := New()
	res := s.Substitute("${mycred.username}")
	if res.Text != "${mycred.username}" {
		t.Fatalf("credential ref should be left untouched, got %q", res.Text)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("credential ref should not be reported missing, got %v", res.Missing)
	}
}

func TestIncrement(t *testing.T) {
	s := New()
	v, err := s.Increment("i", 1)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	v, err = s.Increment("i", 2)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Fatalf("expected 3, got %v", v)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := NewWithValues(map[string]any{"a": "1"})
	snap := s.Snapshot()
	snap["a"] = "mutated"
	if v, _ := s.Get("a"); v != "1" {
		t.Fatalf("snapshot should be a copy, store mutated to %v", v)
	}

	s2 := New()
	s2.Restore(map[string]any{"b": "2"})
	if v, ok := s2.Get("b"); !ok || v != "2" {
		t.Fatalf("restore failed, got %v, %v", v, ok)
	}
}
