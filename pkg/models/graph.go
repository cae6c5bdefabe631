package models

import "time"

// Node is one step of a decision projected into a serializable graph.
type Node struct {
	// ID is a stable identifier derived from position and kind.
	ID string `json:"id" yaml:"id"`
	// Name is the step's capability name.
	Name string `json:"name" yaml:"name"`
	// Meta carries the step's params.
	Meta map[string]any `json:"meta,omitempty" yaml:"params,omitempty"`
}

// Edge connects two nodes in execution order.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Graph is a derived, serializable view of a Decision for export or remote
// execution. It is purely a projection, never a source of truth.
type Graph struct {
	Nodes    []Node         `json:"nodes" yaml:"nodes"`
	Edges    []Edge         `json:"edges" yaml:"edges"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TraceStatus is the outcome of one traced step execution.
type TraceStatus string

const (
	// TraceSuccess indicates the step returned normally.
	TraceSuccess TraceStatus = "success"
	// TraceError indicates the step failed.
	TraceError TraceStatus = "error"
)

// Trace is a redacted record of one step's execution during adapter-mediated
// runs. Traces are append-only within one run and never persisted locally.
type Trace struct {
	// ID is the node id of the traced step.
	ID string `json:"id"`
	// Name is the step's capability name.
	Name string `json:"name"`
	// Meta carries the step's params, redacted.
	Meta map[string]any `json:"meta,omitempty"`
	// Input is a redacted snapshot of the state and params the step saw.
	Input map[string]any `json:"input"`
	// Output is a redacted snapshot of what the step produced.
	Output map[string]any `json:"output"`
	// Status records whether the step succeeded.
	Status TraceStatus `json:"status"`
	// StartedAt and EndedAt bound the step's execution.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	// Duration is EndedAt minus StartedAt.
	Duration time.Duration `json:"duration"`
}
