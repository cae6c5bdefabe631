// Package llm provides the text-completion client used by the planner and
// the orchestrator's generation/summarization steps.
package llm

import (
	"context"
	"fmt"
)

// Options tunes a single completion request.
type Options struct {
	// MaxTokens caps the completion length. Zero uses the client default.
	MaxTokens int
	// Temperature adjusts sampling. Nil uses the client default.
	Temperature *float64
}

// Client turns a text prompt into a text completion. Implementations are
// treated as best-effort collaborators: callers degrade to a fallback tier
// on any error, and no client is strictly required anywhere in the core.
type Client interface {
	Generate(ctx context.Context, prompt string, opts *Options) (string, error)
}

// MockClient returns canned or scripted completions for tests.
type MockClient struct {
	// Response is returned verbatim when GenerateFunc is nil.
	Response string
	// Err is returned when non-nil and GenerateFunc is nil.
	Err error
	// GenerateFunc, when set, handles the call entirely.
	GenerateFunc func(ctx context.Context, prompt string, opts *Options) (string, error)

	// Prompts records every prompt seen, for assertions.
	Prompts []string
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, prompt string, opts *Options) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return fmt.Sprintf("[mock] generated response for prompt: %.200s", prompt), nil
}

var _ Client = (*MockClient)(nil)
