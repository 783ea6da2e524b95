package jobs

import (
	"fmt"
	"strings"
	"time"

	"guardrail/internal/ruleset"
	"guardrail/internal/verdict"
)

// summaryExplanationLimit caps how much of each explanation the summary text
// quotes. Full explanations stay available in the report entries.
const summaryExplanationLimit = 200

// BuildReport aggregates per-guideline results into the final report. Input
// results must already be in rule-set order; the report is fully determined
// by them, so two runs with the same verdicts produce identical reports.
func BuildReport(jobID string, set *ruleset.Set, results []GuidelineResult) *Report {
	report := &Report{
		JobID:       jobID,
		RuleSet:     set.Name,
		GeneratedAt: time.Now(),
		Total:       len(results),
		Entries:     make([]ReportEntry, 0, len(results)),
	}

	categories := categoriesByNumber(set)

	for _, res := range results {
		switch res.Verdict.Compliance {
		case verdict.Compliant:
			report.Compliant++
		case verdict.NonCompliant:
			report.NonCompliant++
		case verdict.Error:
			report.Errors++
		default:
			report.Unknown++
		}

		entry := ReportEntry{
			Number:      res.Number,
			Title:       res.Title,
			Compliance:  res.Verdict.Compliance,
			Explanation: res.Verdict.Explanation,
			Category:    res.Verdict.Category,
			Severity:    res.Verdict.Severity,
			Attempts:    res.Attempts,
		}
		// The rule set's own metadata wins over whatever the evaluator
		// volunteered.
		if meta, ok := categories[res.Number]; ok {
			if meta.Category != "" {
				entry.Category = meta.Category
			}
			if meta.Severity != "" {
				entry.Severity = meta.Severity
			}
		}
		report.Entries = append(report.Entries, entry)
	}

	report.Summary = renderSummary(report)
	return report
}

func categoriesByNumber(set *ruleset.Set) map[int]ruleset.Guideline {
	out := make(map[int]ruleset.Guideline, len(set.Guidelines))
	for _, g := range set.Guidelines {
		out[g.Number] = g
	}
	return out
}

// renderSummary produces the human-readable digest: one header line with the
// counts, then one line per guideline in rule-set order.
func renderSummary(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rule set %q: %d guidelines, %d compliant, %d non-compliant, %d unknown, %d errors.\n",
		report.RuleSet, report.Total, report.Compliant, report.NonCompliant, report.Unknown, report.Errors)
	for _, entry := range report.Entries {
		fmt.Fprintf(&b, "%d. %s: %s - %s\n",
			entry.Number, entry.Title, entry.Compliance,
			truncate(entry.Explanation, summaryExplanationLimit))
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate shortens s to at most limit runes, appending an ellipsis marker.
// Counting runes keeps multi-byte scripts from being cut mid-character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
