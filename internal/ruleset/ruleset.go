// Package ruleset loads and resolves guideline rule sets.
//
// A rule set is an ordered list of guidelines. Order is canonical: report
// ordering and per-guideline progress keys both follow the position of each
// guideline in its set.
package ruleset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a rule set identifier does not resolve.
var ErrNotFound = errors.New("rule set not found")

// Guideline is a single compliance requirement a document is checked against.
type Guideline struct {
	Number   int    `yaml:"number" json:"number"`
	Title    string `yaml:"title" json:"title"`
	Text     string `yaml:"text" json:"text"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	Severity string `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// Key returns the stable identifier used for progress tracking and report
// entries: the guideline title when present, otherwise its number.
func (g Guideline) Key() string {
	if strings.TrimSpace(g.Title) != "" {
		return g.Title
	}
	return fmt.Sprintf("guideline-%d", g.Number)
}

// Set is a named, ordered collection of guidelines.
type Set struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Guidelines  []Guideline `yaml:"guidelines" json:"guidelines"`
}

// Validate rejects sets that cannot be evaluated.
func (s *Set) Validate() error {
	if len(s.Guidelines) == 0 {
		return fmt.Errorf("rule set %q has no guidelines", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Guidelines))
	for i, g := range s.Guidelines {
		if strings.TrimSpace(g.Text) == "" {
			return fmt.Errorf("rule set %q: guideline %d has empty text", s.Name, i+1)
		}
		key := g.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("rule set %q: duplicate guideline key %q", s.Name, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Provider resolves rule set identifiers.
type Provider interface {
	// Get returns the set for the given identifier, or ErrNotFound.
	Get(name string) (*Set, error)
	// List returns the identifiers of all available sets, sorted.
	List() ([]string, error)
}
