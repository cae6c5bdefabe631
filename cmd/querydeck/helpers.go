package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"

	"github.com/querydeck/querydeck/internal/adapter"
	"github.com/querydeck/querydeck/internal/assistant"
	"github.com/querydeck/querydeck/internal/config"
	"github.com/querydeck/querydeck/internal/datasource"
	"github.com/querydeck/querydeck/internal/llm"
	"github.com/querydeck/querydeck/internal/logx"
	"github.com/querydeck/querydeck/pkg/models"
)

// buildAssistant assembles the pipeline from configuration and flags.
// The LLM client is returned alongside so callers can report its token
// usage; the returned cleanup closes the data source and log file.
func buildAssistant(cfg *config.Config, dbPath string, useGraph bool) (*assistant.Assistant, llm.Client, func(), error) {
	logger, err := logx.New(cfg.Defaults.DebugLog)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening debug log: %w", err)
	}

	if dbPath == "" {
		dbPath = cfg.Defaults.Database
	}
	source, err := datasource.OpenSQLite(dbPath)
	if err != nil {
		logger.Close()
		return nil, nil, nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	opts := []assistant.Option{
		assistant.WithSource(source),
		assistant.WithLogger(logger),
	}

	client := buildLLMClient(cfg)
	if client != nil {
		opts = append(opts, assistant.WithLLM(client))
	}

	if useGraph {
		var adapterOpts []adapter.Option
		if cfg.Runtime.Endpoint != "" {
			runClient := &adapter.HTTPRunClient{
				Endpoint: cfg.Runtime.Endpoint,
				APIKey:   cfg.Runtime.APIKey,
			}
			adapterOpts = append(adapterOpts, adapter.WithRunClient(runClient))
		}
		if cfg.Tracing.Endpoint != "" {
			uploader := &adapter.HTTPTraceUploader{
				Endpoint: cfg.Tracing.Endpoint,
				APIKey:   cfg.Tracing.APIKey,
			}
			adapterOpts = append(adapterOpts, adapter.WithUploader(uploader, cfg.Tracing.Project))
		}
		opts = append(opts, assistant.WithGraphAdapter(adapterOpts...))
	}

	cleanup := func() {
		source.Close()
		logger.Close()
	}
	return assistant.New(opts...), client, cleanup, nil
}

// printTokenUsage reports accumulated LLM token usage, when the client
// tracks it and at least one call was made.
func printTokenUsage(client llm.Client) {
	tracked, ok := client.(interface{ Tracker() *llm.TokenTracker })
	if !ok || tracked.Tracker() == nil {
		return
	}
	tracker := tracked.Tracker()
	calls := tracker.Calls()
	if calls == 0 {
		return
	}
	in, out := tracker.Total()
	fmt.Printf("\nLLM usage: %d call(s), %d input / %d output tokens\n", calls, in, out)
}

// buildLLMClient returns a Claude client when credentials are configured,
// nil otherwise. A nil client degrades steps to deterministic fallbacks.
func buildLLMClient(cfg *config.Config) llm.Client {
	if cfg.Anthropic.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" && !cfg.Anthropic.UseAWSBedrock {
		return nil
	}
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.YellowString("warning:"), err)
		return nil
	}
	return client
}

// printDecision renders a decision's intent and step chain.
func printDecision(decision *models.Decision, meta assistant.Metadata) {
	bold := color.New(color.Bold)
	bold.Printf("Intent: ")
	fmt.Printf("%s (router confidence %.2f", decision.Intent, meta.RouterConfidence)
	if meta.Planned {
		fmt.Printf(", planner-refined")
	}
	fmt.Println(")")

	bold.Println("Steps:")
	for i, step := range decision.Agents {
		fmt.Printf("  %d. %s", i+1, color.CyanString(string(step.Kind)))
		if len(step.Params) > 0 {
			fmt.Printf(" %v", step.Params)
		}
		fmt.Println()
	}
	if decision.Reason != "" {
		fmt.Printf("Reason: %s\n", decision.Reason)
	}
}
