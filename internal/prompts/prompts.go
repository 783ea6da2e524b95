// Package prompts composes the instruction text sent to the evaluator for
// each guideline and carries the token vocabulary the verdict parser falls
// back on when a response is not machine readable.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Templates holds the prompt fragments surrounding a guideline. The composed
// prompt is System + Before + guideline text + After with {{placeholders}}
// substituted.
type Templates struct {
	// System frames the evaluator's role and the required answer format.
	System string `yaml:"system"`
	// Before precedes the guideline text.
	Before string `yaml:"before"`
	// After follows the guideline text.
	After string `yaml:"after"`
	// AffirmativeToken and NegativeToken are the words the parser searches
	// for when a response carries no parseable JSON. The affirmative token
	// wins when both appear.
	AffirmativeToken string `yaml:"affirmative_token"`
	NegativeToken    string `yaml:"negative_token"`
}

// Default returns the built-in templates. The token defaults match the
// Hebrew answer vocabulary the stock prompts request.
func Default() Templates {
	return Templates{
		System: "You are a compliance reviewer. Judge whether the attached document " +
			"satisfies the requirement below. Answer with a single JSON object of the form " +
			`{"result": 1, "explanation": "..."} where result is 1 when the requirement ` +
			"is met and 0 when it is not. Write the explanation in the language of the requirement.",
		Before:           "Requirement {{number}}: {{title}}\n",
		After:            "\nBase your judgement only on the attached document.",
		AffirmativeToken: "כן",
		NegativeToken:    "לא",
	}
}

// LoadFile reads templates from a YAML file, filling omitted fields from the
// defaults. An empty path returns the defaults unchanged.
func LoadFile(path string) (Templates, error) {
	templates := Default()
	if path == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read prompt templates %s: %w", path, err)
	}

	var overrides Templates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Templates{}, fmt.Errorf("parse prompt templates %s: %w", path, err)
	}

	if overrides.System != "" {
		templates.System = overrides.System
	}
	if overrides.Before != "" {
		templates.Before = overrides.Before
	}
	if overrides.After != "" {
		templates.After = overrides.After
	}
	if overrides.AffirmativeToken != "" {
		templates.AffirmativeToken = overrides.AffirmativeToken
	}
	if overrides.NegativeToken != "" {
		templates.NegativeToken = overrides.NegativeToken
	}
	return templates, nil
}

// Compose builds the full prompt for one guideline.
func (t Templates) Compose(number int, title, text string) string {
	vars := map[string]string{
		"number": fmt.Sprintf("%d", number),
		"title":  title,
	}

	var b strings.Builder
	if t.System != "" {
		b.WriteString(substitute(t.System, vars))
		b.WriteString("\n\n")
	}
	b.WriteString(substitute(t.Before, vars))
	b.WriteString(text)
	b.WriteString(substitute(t.After, vars))
	return b.String()
}

func substitute(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
