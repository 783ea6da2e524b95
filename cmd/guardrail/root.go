package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "guardrail",
	Short:        "Guideline compliance evaluation engine",
	Long:         "Guardrail evaluates documents against guideline rule sets using an external evaluation backend.\nRun `guardrail serve` for the HTTP API or `guardrail check` for a one-shot evaluation.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
