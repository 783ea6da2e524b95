package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guardrail/internal/jobs"
	"guardrail/internal/verdict"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var checkRuleSet string

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Evaluate documents against a rule set and print the report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(configPath, "check")
		if err != nil {
			return err
		}

		uploads := make([]jobs.Upload, 0, len(args))
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()
			uploads = append(uploads, jobs.Upload{Name: filepath.Base(path), Reader: f})
		}

		job, err := application.runner.Submit(checkRuleSet, uploads)
		if err != nil {
			return err
		}
		fmt.Printf("Evaluating %d document(s) against rule set %q...\n", len(uploads), checkRuleSet)

		if err := application.runner.RunJob(cmd.Context(), job.ID); err != nil {
			return err
		}

		final, err := application.store.Get(job.ID)
		if err != nil {
			return err
		}
		if final.Report == nil {
			return fmt.Errorf("job %s finished without a report: %s", job.ID, final.Message)
		}
		printReport(final.Report)
		if final.Report.NonCompliant > 0 || final.Report.Errors > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkRuleSet, "ruleset", "r", "", "rule set to evaluate against")
	_ = checkCmd.MarkFlagRequired("ruleset")
}

func printReport(report *jobs.Report) {
	fmt.Printf("\n%s\n", bold(fmt.Sprintf("Rule set %q: %d guidelines", report.RuleSet, report.Total)))
	fmt.Printf("  %s  %s  %s  %s\n\n",
		green(fmt.Sprintf("%d compliant", report.Compliant)),
		red(fmt.Sprintf("%d non-compliant", report.NonCompliant)),
		yellow(fmt.Sprintf("%d unknown", report.Unknown)),
		red(fmt.Sprintf("%d errors", report.Errors)))

	for _, entry := range report.Entries {
		marker := yellow("?")
		switch entry.Compliance {
		case verdict.Compliant:
			marker = green("+")
		case verdict.NonCompliant:
			marker = red("-")
		case verdict.Error:
			marker = red("!")
		}
		fmt.Printf("%s %d. %s: %s\n", marker, entry.Number, entry.Title, entry.Compliance)
		if entry.Explanation != "" {
			fmt.Printf("    %s\n", entry.Explanation)
		}
	}
}
