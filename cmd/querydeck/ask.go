package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/querydeck/querydeck/internal/assistant"
	"github.com/querydeck/querydeck/internal/config"
)

var (
	askMode  string
	askDB    string
	askGraph bool
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Answer a natural-language question against the data source",
	Long: `Ask routes a natural-language prompt through intent detection and
planning, then executes the resulting step chain.

Intent detection is rule-based and fast. When the router is unsure, an
LLM-assisted planner produces the step chain instead; without LLM
credentials the planner falls back to deterministic plans.

Use --mode to declare the intent up front (analyze, summarize, sql) and
skip classification. Use --graph to run through the graph adapter, which
materializes the plan as a node/edge graph, records redacted traces, and
uploads them when a tracing endpoint is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askMode, "mode", "", "Declared intent: analyze, summarize, or sql (skips classification)")
	askCmd.Flags().StringVar(&askDB, "db", "", "SQLite database path (defaults to configured database)")
	askCmd.Flags().BoolVar(&askGraph, "graph", false, "Execute through the graph adapter with trace capture")
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, llmClient, cleanup, err := buildAssistant(cfg, askDB, askGraph)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := a.Run(ctx, assistant.Request{Prompt: prompt, Mode: askMode})
	if err != nil {
		return err
	}

	printDecision(result.Decision, result.Metadata)
	fmt.Println()

	if result.Local != nil {
		printLocalResult(result)
	}
	if result.Graph != nil {
		printGraphResult(result)
	}
	if llmClient != nil {
		printTokenUsage(llmClient)
	}
	return nil
}

func printLocalResult(result *assistant.RunResult) {
	bold := color.New(color.Bold)

	if result.Local.SummaryText != "" {
		bold.Println("Summary:")
		fmt.Println(result.Local.SummaryText)
	}

	if len(result.Local.Summary) > 0 {
		fmt.Println()
		bold.Println("Rows:")
		for _, row := range result.Local.Summary {
			fmt.Printf("  %v\n", row)
		}
	}

	for name, out := range result.Local.Results {
		if msg, ok := out["error"].(string); ok {
			fmt.Printf("%s %s: %s\n", color.YellowString("step error"), name, msg)
		}
	}
}

func printGraphResult(result *assistant.RunResult) {
	bold := color.New(color.Bold)

	if result.Graph.Execution != nil {
		bold.Printf("Execution: ")
		fmt.Println(result.Graph.Execution.Status)
		for id, node := range result.Graph.Execution.Results {
			marker := color.GreenString("✓")
			if node.Status != "success" {
				marker = color.RedString("✗")
			}
			fmt.Printf("  %s %s\n", marker, id)
		}
	}
	if result.Graph.RemoteResult != nil {
		bold.Println("Remote result:")
		fmt.Printf("  %v\n", result.Graph.RemoteResult)
	}
	fmt.Printf("%d trace(s) recorded\n", len(result.Graph.NodeTraces))
}
