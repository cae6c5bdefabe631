// Package adapter provides one execution entrypoint for decisions that
// behaves identically in shape whether a remote graph runtime is
// available or not, and always captures structured, secret-redacted
// traces of what ran.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/querydeck/querydeck/internal/graphx"
	"github.com/querydeck/querydeck/internal/logx"
	"github.com/querydeck/querydeck/internal/orchestrator"
	"github.com/querydeck/querydeck/pkg/models"
)

// NodeFunc executes one materialized node against the run's shared state.
type NodeFunc func(ctx context.Context) (map[string]any, error)

// RuntimeNode pairs a serializable node with its bound callable.
type RuntimeNode struct {
	ID   string
	Name string
	Meta map[string]any
	Call NodeFunc
}

// RunClient is an SDK-style remote execution client: it accepts a
// dependency-aware run payload and executes it elsewhere.
type RunClient interface {
	CreateRun(ctx context.Context, payload *graphx.RunPayload) (any, error)
}

// GraphRuntime is a programmatic remote graph runtime: nodes and edges
// are wired in, then the assembled graph is run. One instance serves one
// run; the adapter requests a fresh instance per execution.
type GraphRuntime interface {
	AddNode(id string, fn NodeFunc)
	AddEdge(from, to string)
	Run(ctx context.Context) (any, error)
}

// NodeResult is the recorded outcome of one node on the local path.
type NodeResult struct {
	Status models.TraceStatus `json:"status"`
	Output map[string]any     `json:"output"`
}

// Execution is the local path's execution payload.
type Execution struct {
	Status  string                `json:"status"`
	Results map[string]NodeResult `json:"results"`
}

// Result is the outcome of RunDecisionGraph, shaped the same regardless
// of which execution path produced it.
type Result struct {
	// RemoteResult is the raw result from a remote path, when one ran.
	RemoteResult any `json:"remote_result,omitempty"`
	// Execution is populated by the local fallback path.
	Execution *Execution `json:"execution,omitempty"`
	// NodeTraces holds one redacted trace per executed node. Empty for
	// the SDK path, which executes nothing locally.
	NodeTraces []models.Trace `json:"node_traces,omitempty"`
}

// Adapter materializes decisions into runnable graphs and executes them
// through an ordered list of strategies: remote SDK client, programmatic
// runtime, then local per-node execution. Local execution is always
// available, so one of the strategies always produces a result.
//
// All remote collaborators are injected at construction; absent is the
// default, fully supported configuration.
type Adapter struct {
	orch *orchestrator.Orchestrator

	// RunClient, when set, is tried first with a run payload.
	RunClient RunClient
	// NewRuntime, when set, supplies a fresh programmatic runtime per run.
	NewRuntime func() GraphRuntime
	// Uploader, when set, receives redacted graph+traces after each run,
	// best-effort.
	Uploader TraceUploader
	// Project labels uploaded runs.
	Project string

	logger *logx.DebugLogger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRunClient sets the SDK-style remote client.
func WithRunClient(c RunClient) Option {
	return func(a *Adapter) { a.RunClient = c }
}

// WithRuntime sets the programmatic runtime factory.
func WithRuntime(factory func() GraphRuntime) Option {
	return func(a *Adapter) { a.NewRuntime = factory }
}

// WithUploader sets the best-effort trace uploader.
func WithUploader(u TraceUploader, project string) Option {
	return func(a *Adapter) {
		a.Uploader = u
		a.Project = project
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *logx.DebugLogger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates an Adapter over the given orchestrator.
func New(orch *orchestrator.Orchestrator, opts ...Option) *Adapter {
	a := &Adapter{
		orch:    orch,
		Project: "querydeck",
		logger:  &logx.DebugLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Materialized is the result of projecting a decision for execution: the
// serializable graph plus per-node callables bound to a shared run state.
type Materialized struct {
	Graph *models.Graph
	Nodes []RuntimeNode
	State *orchestrator.RunState
}

// BuildRuntimeGraph materializes a decision. Each node's callable runs
// that single step in isolation through the orchestrator's registry and
// applies the run-state merge rule, so remote runtimes stay decoupled
// from the orchestrator's own loop.
func (a *Adapter) BuildRuntimeGraph(decision *models.Decision, rc *orchestrator.RunContext) *Materialized {
	state := orchestrator.NewRunState(rc)
	graph := graphx.BuildGraph(decision)

	nodes := make([]RuntimeNode, 0, len(decision.Agents))
	for i, step := range decision.Agents {
		step := step
		nodes = append(nodes, RuntimeNode{
			ID:   graphx.NodeID(i, step),
			Name: string(step.Kind),
			Meta: step.Params,
			Call: func(ctx context.Context) (map[string]any, error) {
				impl, ok := a.orch.Capability(step.Kind)
				if !ok {
					return nil, errors.New("unknown agent")
				}
				out, err := impl(ctx, step, state)
				if err != nil {
					return nil, err
				}
				state.ApplyOutput(out)
				return out, nil
			},
		})
	}

	return &Materialized{Graph: graph, Nodes: nodes, State: state}
}

// DecisionToGraph returns the serializable graph projection of a decision.
func (a *Adapter) DecisionToGraph(decision *models.Decision) *models.Graph {
	return graphx.BuildGraph(decision)
}

// RunDecisionGraph executes a decision, trying each configured strategy
// in order and stopping at the first success. Only exhaustion of every
// strategy returns an error, which cannot happen in practice since local
// execution never fails.
func (a *Adapter) RunDecisionGraph(ctx context.Context, decision *models.Decision, rc *orchestrator.RunContext) (*Result, error) {
	type strategy struct {
		name string
		run  func(context.Context, *models.Decision, *Materialized) (*Result, error)
	}

	var strategies []strategy
	if a.RunClient != nil {
		strategies = append(strategies, strategy{"sdk", a.runViaClient})
	}
	if a.NewRuntime != nil {
		strategies = append(strategies, strategy{"runtime", a.runViaRuntime})
	}
	strategies = append(strategies, strategy{"local", a.runLocal})

	var lastErr error
	for _, s := range strategies {
		// Each attempt gets its own materialization: a failed remote
		// attempt may have run some nodes, and its mutated state must
		// not seed the next strategy.
		mat := a.BuildRuntimeGraph(decision, rc)
		result, err := s.run(ctx, decision, mat)
		if err != nil {
			a.logger.Log("[adapter] %s strategy failed: %v; trying next", s.name, err)
			lastErr = err
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("all execution strategies failed: %w", lastErr)
}

// runViaClient submits a dependency-aware run payload to the SDK client.
func (a *Adapter) runViaClient(ctx context.Context, decision *models.Decision, _ *Materialized) (*Result, error) {
	payload := graphx.BuildRunPayload(decision)
	created, err := a.RunClient.CreateRun(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("remote run creation: %w", err)
	}
	return &Result{RemoteResult: created}, nil
}

// runViaRuntime wires traced callables into a fresh programmatic runtime
// and runs the assembled graph. A node callable that fails is recorded as
// a failed trace and re-raised into the runtime so its own error
// semantics apply.
func (a *Adapter) runViaRuntime(ctx context.Context, decision *models.Decision, mat *Materialized) (*Result, error) {
	runtime := a.NewRuntime()
	var traces []models.Trace

	for _, node := range mat.Nodes {
		node := node
		runtime.AddNode(node.ID, func(ctx context.Context) (map[string]any, error) {
			out, trace, err := a.traceCall(ctx, node, mat.State)
			traces = append(traces, trace)
			if err != nil {
				return nil, err
			}
			return out, nil
		})
	}
	for _, edge := range mat.Graph.Edges {
		runtime.AddEdge(edge.From, edge.To)
	}

	runResult, err := runtime.Run(ctx)
	if err != nil {
		// Traces captured so far still accompany the failure upload.
		a.uploadBestEffort(ctx, mat.Graph, traces)
		return nil, fmt.Errorf("graph runtime: %w", err)
	}

	a.uploadBestEffort(ctx, mat.Graph, traces)
	return &Result{RemoteResult: runResult, NodeTraces: traces}, nil
}

// runLocal executes nodes one at a time with per-node tracing, stopping
// at the first node that errors. This is deliberately stricter than the
// orchestrator's own continue-past-unknown policy.
func (a *Adapter) runLocal(ctx context.Context, _ *models.Decision, mat *Materialized) (*Result, error) {
	a.logger.Log("[adapter] running decision locally with per-node tracing")

	traces := make([]models.Trace, 0, len(mat.Nodes))
	results := make(map[string]NodeResult, len(mat.Nodes))

	for _, node := range mat.Nodes {
		out, trace, err := a.traceCall(ctx, node, mat.State)
		traces = append(traces, trace)
		results[node.ID] = NodeResult{Status: trace.Status, Output: out}
		if err != nil {
			break
		}
	}

	a.uploadBestEffort(ctx, mat.Graph, traces)

	return &Result{
		Execution:  &Execution{Status: "completed", Results: results},
		NodeTraces: traces,
	}, nil
}

// traceCall runs one node and records a redacted trace of its input,
// output, status, and timing.
func (a *Adapter) traceCall(ctx context.Context, node RuntimeNode, state *orchestrator.RunState) (map[string]any, models.Trace, error) {
	started := time.Now()
	input := map[string]any{
		"state":  state.Snapshot(),
		"params": node.Meta,
	}

	out, err := node.Call(ctx)
	status := models.TraceSuccess
	if err != nil {
		status = models.TraceError
		out = map[string]any{"error": err.Error()}
	}
	ended := time.Now()

	trace := models.Trace{
		ID:        node.ID,
		Name:      node.Name,
		Meta:      RedactMap(node.Meta),
		Input:     RedactMap(input),
		Output:    RedactMap(out),
		Status:    status,
		StartedAt: started,
		EndedAt:   ended,
		Duration:  ended.Sub(started),
	}
	return out, trace, err
}

// uploadBestEffort ships redacted graph+traces to the configured uploader.
// Failures are logged and never propagate into the execution path.
func (a *Adapter) uploadBestEffort(ctx context.Context, graph *models.Graph, traces []models.Trace) {
	if a.Uploader == nil {
		return
	}
	if _, err := a.Uploader.Upload(ctx, graph, traces, a.Project); err != nil {
		a.logger.Log("[adapter] trace upload failed (non-fatal): %v", err)
	}
}

// GraphToExecutionResult normalizes a remote runtime's result shape into
// the execution payload callers expect.
func GraphToExecutionResult(remote map[string]any) map[string]any {
	results := remote["nodes"]
	if results == nil {
		results = remote["results"]
	}
	if results == nil {
		results = map[string]any{}
	}
	metrics := remote["metrics"]
	if metrics == nil {
		metrics = map[string]any{}
	}
	return map[string]any{
		"execution": map[string]any{
			"status":  remote["status"],
			"results": results,
			"metrics": metrics,
		},
		"trace_id": remote["trace_id"],
	}
}
