package ruleset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSet(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirProviderGetParsesAndNumbers(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, "safety.yaml", `
name: safety
guidelines:
  - title: Fire exits
    text: The plan must mark at least two fire exits.
  - title: Smoke detectors
    text: Every room must list a smoke detector.
    category: prevention
`)

	p := NewDirProvider(dir, nil)
	set, err := p.Get("safety")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(set.Guidelines) != 2 {
		t.Fatalf("expected 2 guidelines, got %d", len(set.Guidelines))
	}
	if set.Guidelines[0].Number != 1 || set.Guidelines[1].Number != 2 {
		t.Errorf("expected positional numbering, got %d and %d",
			set.Guidelines[0].Number, set.Guidelines[1].Number)
	}
	if set.Guidelines[1].Category != "prevention" {
		t.Errorf("category not parsed: %+v", set.Guidelines[1])
	}
}

func TestDirProviderGetUnknownReturnsErrNotFound(t *testing.T) {
	p := NewDirProvider(t.TempDir(), nil)
	_, err := p.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirProviderRejectsPathTraversal(t *testing.T) {
	p := NewDirProvider(t.TempDir(), nil)
	for _, name := range []string{"../etc/passwd", "a/b", ""} {
		if _, err := p.Get(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestDirProviderRejectsEmptySet(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, "empty.yaml", "name: empty\nguidelines: []\n")

	p := NewDirProvider(dir, nil)
	if _, err := p.Get("empty"); err == nil {
		t.Fatal("expected validation error for empty set")
	}
}

func TestDirProviderList(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, dir, "b.yaml", "guidelines: [{title: t, text: x}]")
	writeSet(t, dir, "a.yml", "guidelines: [{title: t, text: x}]")
	writeSet(t, dir, "notes.txt", "ignored")

	p := NewDirProvider(dir, nil)
	names, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestGuidelineKeyFallsBackToNumber(t *testing.T) {
	g := Guideline{Number: 7}
	if g.Key() != "guideline-7" {
		t.Fatalf("unexpected key %q", g.Key())
	}
	g.Title = "Escape routes"
	if g.Key() != "Escape routes" {
		t.Fatalf("unexpected key %q", g.Key())
	}
}
