// Command guardrail runs the guideline compliance engine: an HTTP service
// that evaluates uploaded documents against rule sets, plus a one-shot CLI
// mode for local checks.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
