package orchestrator

import (
	"context"

	"github.com/querydeck/querydeck/internal/logx"
	"github.com/querydeck/querydeck/pkg/models"
)

// unknownAgentError is the recorded output for a step whose kind has no
// registered capability.
const unknownAgentError = "unknown agent"

// StepFunc is one registered capability. Implementations return their
// output mapping; a non-nil error is recorded as a structured per-step
// error value and execution continues.
type StepFunc func(ctx context.Context, step models.Step, state *RunState) (map[string]any, error)

// Result is the top-level outcome of executing one decision.
type Result struct {
	// Decision echoes the executed decision, for audit.
	Decision *models.Decision `json:"decision"`
	// Results maps step name to the step's output.
	Results map[string]map[string]any `json:"results"`
	// Summary is a best-effort preview of the first few result rows.
	Summary []map[string]any `json:"summary"`
	// SummaryText mirrors the Summarizer's summary when it ran.
	SummaryText string `json:"summary_text,omitempty"`
}

// Orchestrator executes decisions in declared order against a run state.
// A registry keyed by step kind supplies each capability; every entry is
// independently replaceable.
type Orchestrator struct {
	registry map[models.StepKind]StepFunc
	logger   *logx.DebugLogger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the debug logger.
func WithLogger(l *logx.DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithCapability replaces the registered implementation for a step kind.
func WithCapability(kind models.StepKind, fn StepFunc) Option {
	return func(o *Orchestrator) { o.registry[kind] = fn }
}

// New creates an Orchestrator with the built-in capability set.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: map[models.StepKind]StepFunc{
			models.StepPlanner:       runPlannerStep,
			models.StepSQLGenerator:  runSQLGenerator,
			models.StepValidator:     runValidator,
			models.StepSQLRunner:     runSQLRunner,
			models.StepAnalysisAgent: runAnalysisAgent,
			models.StepSummarizer:    runSummarizer,
		},
		logger: &logx.DebugLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the decision's steps in order. Unknown step kinds produce a
// recorded error for that step and execution continues; Execute itself
// never fails for a normal run. The decision is never mutated.
func (o *Orchestrator) Execute(ctx context.Context, decision *models.Decision, rc *RunContext) *Result {
	state := NewRunState(rc)
	results := make(map[string]map[string]any, len(decision.Agents))

	for _, step := range decision.Agents {
		out := o.RunStep(ctx, step, state)
		results[string(step.Kind)] = out
		state.ApplyOutput(out)
	}

	result := &Result{
		Decision: decision,
		Results:  results,
		Summary:  previewHead(state.RowsPreview, 5),
	}
	if summ, ok := results[string(models.StepSummarizer)]; ok {
		if text, ok := summ["summary"].(string); ok {
			result.SummaryText = text
		}
	}
	return result
}

// RunStep executes a single step against the given state and returns its
// output. Errors from the capability are folded into the output mapping;
// the state is not mutated here (callers apply the merge rule).
func (o *Orchestrator) RunStep(ctx context.Context, step models.Step, state *RunState) map[string]any {
	impl, ok := o.registry[step.Kind]
	if !ok {
		o.logger.Log("[orchestrator] step %q has no registered capability", step.Kind)
		return map[string]any{"error": unknownAgentError}
	}

	out, err := impl(ctx, step, state)
	if err != nil {
		o.logger.Log("[orchestrator] step %q failed: %v", step.Kind, err)
		return map[string]any{"error": err.Error()}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Registered reports whether a capability exists for the given kind.
func (o *Orchestrator) Registered(kind models.StepKind) bool {
	_, ok := o.registry[kind]
	return ok
}

// Capability returns the registered implementation for a step kind. The
// graph adapter uses this to build per-node callables whose errors are
// surfaced rather than folded into the output mapping.
func (o *Orchestrator) Capability(kind models.StepKind) (StepFunc, bool) {
	fn, ok := o.registry[kind]
	return fn, ok
}

func previewHead(rows []map[string]any, n int) []map[string]any {
	if len(rows) < n {
		n = len(rows)
	}
	return rows[:n]
}
