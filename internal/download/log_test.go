package download

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInsertChronologicalOrder(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(filepath.Join(dir, "log.txt"), "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Close()

	entries := []Entry{
		{FileID: "A", CreationTime: "03 Sep 2025 12:00:00", Prompt: "a"},
		{FileID: "B", CreationTime: "03 Sep 2025 18:00:00", Prompt: "b"},
		{FileID: "C", CreationTime: "03 Sep 2025 06:00:00", Prompt: "c"},
	}
	for _, e := range entries {
		if err := l.Insert(e); err != nil {
			t.Fatalf("Insert(%s): %v", e.FileID, err)
		}
	}

	got := l.IterAll()
	ids := []string{got[0].FileID, got[1].FileID, got[2].FileID}
	want := []string{"B", "A", "C"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IterAll order = %v, want %v", ids, want)
		}
	}
}

func TestIsDuplicateKeyStability(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(filepath.Join(dir, "log.txt"), "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Close()

	longPrompt := make([]byte, 200)
	for i := range longPrompt {
		longPrompt[i] = 'x'
	}
	if err := l.Insert(Entry{FileID: "A", CreationTime: "03 Sep 2025 12:00:00", Prompt: string(longPrompt)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	suffixVariant := string(longPrompt) + "this tail differs but is past index 100"
	if !l.IsDuplicate("03 Sep 2025 12:00:00", suffixVariant) {
		t.Fatal("expected duplicate match to depend only on the first 100 prompt characters")
	}
	if l.IsDuplicate("03 Sep 2025 12:00:00", "totally different prompt") {
		t.Fatal("expected no duplicate match for a differing prefix")
	}
}

func TestLoadDropsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	content := "A\n03 Sep 2025 12:00:00\nprompt a\n" + separatorLine + "\n" +
		"B\nnot-a-date\nprompt b\n" + separatorLine + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l, err := Load(path, "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Close()

	if l.Count() != 1 {
		t.Fatalf("expected exactly 1 surviving entry, got %d", l.Count())
	}
}

func TestPersistedAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	l, err := Load(path, "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Insert(Entry{FileID: PlaceholderID, CreationTime: "01 Jan 2026 00:00:00", Prompt: "hello"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	l.Close()

	reloaded, err := Load(path, "", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer reloaded.Close()
	if reloaded.Count() != 1 {
		t.Fatalf("expected 1 entry after reload, got %d", reloaded.Count())
	}
	if !reloaded.IsDuplicate("01 Jan 2026 00:00:00", "hello") {
		t.Fatal("expected reload to rebuild the duplicate index from disk")
	}
}
