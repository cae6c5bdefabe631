// Package assistant wires the router, planner, and execution paths behind a
// single Run call.
package assistant

import (
	"context"
	"fmt"

	"github.com/querydeck/querydeck/internal/adapter"
	"github.com/querydeck/querydeck/internal/datasource"
	"github.com/querydeck/querydeck/internal/llm"
	"github.com/querydeck/querydeck/internal/logx"
	"github.com/querydeck/querydeck/internal/orchestrator"
	"github.com/querydeck/querydeck/internal/planner"
	"github.com/querydeck/querydeck/internal/router"
	"github.com/querydeck/querydeck/pkg/models"
)

// escalationThreshold is the router confidence below which the planner is
// consulted for a concrete decision.
const escalationThreshold = 0.7

// frameTableName is the well-known table name explicit data frames are
// registered under, so generated SQL has a stable target.
const frameTableName = "full_df"

// Request is one natural-language run request.
type Request struct {
	// Prompt is the natural-language question.
	Prompt string
	// Mode optionally declares the intent up front, bypassing classification.
	Mode string
	// Data is an explicit data frame. When set it takes precedence over any
	// previously registered data and is exposed to SQL under frameTableName.
	Data *models.Frame
	// RowsPreview seeds the run with an existing preview, e.g. from a prior run.
	RowsPreview []map[string]any
}

// Metadata is advisory information attached to a run result.
type Metadata struct {
	// RouterConfidence is the router's classification confidence for the
	// prompt, recorded even when the planner produced the final decision.
	RouterConfidence float64 `json:"router_confidence"`
	// Planned is true when the decision came from the planner rather than
	// directly from the router.
	Planned bool `json:"planned"`
	// ExecutionPath names how the decision ran: "graph" or "local".
	ExecutionPath string `json:"execution_path"`
}

// RunResult is the structured outcome of one Run call.
type RunResult struct {
	Decision *models.Decision `json:"decision"`
	// Local holds the execution payload when the local orchestrator ran.
	Local *orchestrator.Result `json:"execution,omitempty"`
	// Graph holds the execution payload when the graph adapter ran.
	Graph    *adapter.Result `json:"graph_execution,omitempty"`
	Metadata Metadata        `json:"metadata"`
}

// Assistant composes the routing/planning/execution pipeline. The zero
// value is not usable; construct with New.
type Assistant struct {
	source  datasource.Handle
	llm     llm.Client
	router  *router.Router
	planner *planner.Planner
	orch    *orchestrator.Orchestrator
	graph   *adapter.Adapter
	logger  *logx.DebugLogger

	useGraph  bool
	graphOpts []adapter.Option
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithSource sets the data-source handle SQL steps run against.
func WithSource(h datasource.Handle) Option {
	return func(a *Assistant) { a.source = h }
}

// WithLLM sets the language-model client used by planning and generation.
func WithLLM(c llm.Client) Option {
	return func(a *Assistant) { a.llm = c }
}

// WithGraphAdapter routes execution through a graph adapter built over the
// assistant's own orchestrator, configured with the given adapter options.
func WithGraphAdapter(opts ...adapter.Option) Option {
	return func(a *Assistant) {
		a.useGraph = true
		a.graphOpts = opts
	}
}

// WithLogger sets the debug logger shared across the pipeline.
func WithLogger(l *logx.DebugLogger) Option {
	return func(a *Assistant) { a.logger = l }
}

// New creates an Assistant. Both the data source and the LLM are optional;
// steps degrade to deterministic placeholders without them.
func New(opts ...Option) *Assistant {
	a := &Assistant{
		router: router.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.orch = orchestrator.New(orchestrator.WithLogger(a.logger))
	a.planner = planner.New(a.llm, a.logger)
	if a.useGraph {
		opts := append([]adapter.Option{adapter.WithLogger(a.logger)}, a.graphOpts...)
		a.graph = adapter.New(a.orch, opts...)
	}
	return a
}

// Plan routes a prompt and, when the router is unsure, escalates to the
// planner. It returns the decision without executing it.
func (a *Assistant) Plan(ctx context.Context, req Request) (*models.Decision, Metadata, error) {
	if req.Prompt == "" {
		return nil, Metadata{}, fmt.Errorf("assistant: empty prompt")
	}
	rc := &orchestrator.RunContext{
		Source:      a.source,
		Prompt:      req.Prompt,
		LLM:         a.llm,
		Frame:       req.Data,
		RowsPreview: req.RowsPreview,
	}
	decision, meta := a.plan(ctx, req, rc)
	return decision, meta, nil
}

func (a *Assistant) plan(ctx context.Context, req Request, rc *orchestrator.RunContext) (*models.Decision, Metadata) {
	detection := a.router.DetectIntent(req.Prompt, req.Mode)

	decision := detection.Decision()
	planned := false
	if detection.Confidence < escalationThreshold || len(detection.Agents) == 0 {
		decision = a.planner.PlanForIntent(ctx, detection.Intent, req.Prompt, rc)
		planned = true
	}

	return decision, Metadata{
		RouterConfidence: detection.Confidence,
		Planned:          planned,
	}
}

// Run sends a prompt through the routing/planning/execution pipeline and
// returns a structured result. It never errors on classification or
// planning; an error indicates the request itself was unusable.
func (a *Assistant) Run(ctx context.Context, req Request) (*RunResult, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("assistant: empty prompt")
	}

	rc := &orchestrator.RunContext{
		Source:      a.source,
		Prompt:      req.Prompt,
		LLM:         a.llm,
		RowsPreview: req.RowsPreview,
	}

	// Explicit data wins over anything already in the context. Register it
	// on the handle so generated SQL can target it; registration failures
	// are logged and ignored, the frame is still available in-memory.
	if req.Data != nil {
		rc.Frame = req.Data
		if a.source != nil {
			if err := a.source.RegisterFrame(ctx, frameTableName, req.Data); err != nil {
				a.logger.Log("frame registration failed: %v", err)
			} else {
				rc.TableName = frameTableName
			}
		}
	}

	decision, meta := a.plan(ctx, req, rc)

	result := &RunResult{
		Decision: decision,
		Metadata: meta,
	}

	if a.graph != nil {
		result.Metadata.ExecutionPath = "graph"
		exec, err := a.graph.RunDecisionGraph(ctx, decision, rc)
		if err != nil {
			return nil, fmt.Errorf("graph execution: %w", err)
		}
		result.Graph = exec
		return result, nil
	}

	result.Metadata.ExecutionPath = "local"
	result.Local = a.orch.Execute(ctx, decision, rc)
	return result, nil
}
