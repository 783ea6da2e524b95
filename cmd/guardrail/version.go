package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the guardrail version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guardrail %s\n", version)
	},
}
