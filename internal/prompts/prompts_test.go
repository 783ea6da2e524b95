package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComposeSubstitutesVariables(t *testing.T) {
	templates := Templates{
		System: "Review the document.",
		Before: "Requirement {{number}}: {{title}}\n",
		After:  "\nAnswer in JSON.",
	}

	got := templates.Compose(4, "Fire exits", "The plan must mark fire exits.")
	for _, want := range []string{
		"Review the document.",
		"Requirement 4: Fire exits",
		"The plan must mark fire exits.",
		"Answer in JSON.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("composed prompt missing %q:\n%s", want, got)
		}
	}
}

func TestLoadFileOverridesPartially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	body := "system: Custom system prompt.\naffirmative_token: yes\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	templates, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if templates.System != "Custom system prompt." {
		t.Errorf("system not overridden: %q", templates.System)
	}
	if templates.AffirmativeToken != "yes" {
		t.Errorf("affirmative token not overridden: %q", templates.AffirmativeToken)
	}
	if templates.NegativeToken != Default().NegativeToken {
		t.Errorf("untouched fields must keep defaults, got %q", templates.NegativeToken)
	}
}

func TestLoadFileEmptyPathReturnsDefaults(t *testing.T) {
	templates, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if templates.AffirmativeToken == "" || templates.NegativeToken == "" {
		t.Fatal("defaults must carry fallback tokens")
	}
}
