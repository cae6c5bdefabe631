package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/querydeck/querydeck/internal/assistant"
	"github.com/querydeck/querydeck/internal/config"
	"github.com/querydeck/querydeck/internal/graphx"
)

var (
	planMode string
	planYAML bool
)

var planCmd = &cobra.Command{
	Use:   "plan <prompt>",
	Short: "Show the step plan for a prompt without executing it",
	Long: `Plan routes a prompt through intent detection and planning, then
prints the resulting decision instead of executing it.

With --yaml the plan is also rendered as a node/edge graph in YAML, the
same materialization the graph adapter exports for remote execution.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planMode, "mode", "", "Declared intent: analyze, summarize, or sql (skips classification)")
	planCmd.Flags().BoolVar(&planYAML, "yaml", false, "Also print the plan as a node/edge graph in YAML")
}

func runPlan(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var opts []assistant.Option
	if client := buildLLMClient(cfg); client != nil {
		opts = append(opts, assistant.WithLLM(client))
	}
	a := assistant.New(opts...)

	decision, meta, err := a.Plan(context.Background(), assistant.Request{Prompt: prompt, Mode: planMode})
	if err != nil {
		return err
	}

	printDecision(decision, meta)

	if planYAML {
		graph := graphx.BuildGraph(decision)
		out, err := graphx.MarshalYAML(graph)
		if err != nil {
			return fmt.Errorf("rendering graph: %w", err)
		}
		fmt.Println()
		color.New(color.Bold).Println("Graph:")
		fmt.Print(out)
	}
	return nil
}
