package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "querydeck",
	Short: "Natural-language data query assistant",
	Long: `Querydeck turns natural-language questions into executable data queries.

A prompt is classified by a rule-based router, escalated to an LLM-assisted
planner when the router is unsure, and the resulting step plan is executed
against a SQLite data source — locally, or through a remote graph runtime
with redacted trace upload when one is configured.

Core capabilities:
- Classifies prompts into analyze / summarize / sql intents
- Plans multi-step agent chains, with deterministic fallbacks
- Generates and runs SQL against SQLite
- Summarizes result frames with an LLM when available
- Exports plans as node/edge graphs for remote execution`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}
