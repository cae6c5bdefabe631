// Package models contains the shared data types passed between the router,
// planner, orchestrator, and graph adapter.
package models

import (
	"encoding/json"
	"fmt"
)

// StepKind identifies which registered capability performs a step's work.
type StepKind string

const (
	// StepPlanner marks that planning occurred; executes as a no-op.
	StepPlanner StepKind = "Planner"
	// StepSQLGenerator drafts a SQL query for the current prompt.
	StepSQLGenerator StepKind = "SQLGenerator"
	// StepValidator checks a generated query before execution.
	StepValidator StepKind = "Validator"
	// StepSQLRunner executes the current SQL against the data source.
	StepSQLRunner StepKind = "SQLRunner"
	// StepAnalysisAgent computes descriptive statistics over the current frame.
	StepAnalysisAgent StepKind = "AnalysisAgent"
	// StepSummarizer produces a human-readable summary of the run so far.
	StepSummarizer StepKind = "Summarizer"
)

// Valid returns true if the kind is a known capability.
func (k StepKind) Valid() bool {
	switch k {
	case StepPlanner, StepSQLGenerator, StepValidator, StepSQLRunner, StepAnalysisAgent, StepSummarizer:
		return true
	default:
		return false
	}
}

// AllStepKinds lists every registered capability, in no particular order.
// Used by the planner to constrain LLM-produced plans.
var AllStepKinds = []StepKind{
	StepPlanner,
	StepSQLGenerator,
	StepValidator,
	StepSQLRunner,
	StepAnalysisAgent,
	StepSummarizer,
}

// Step is one unit of planned work inside a Decision.
type Step struct {
	// Kind names the capability that performs the work.
	Kind StepKind `json:"name"`
	// Params holds JSON-safe arguments for the capability.
	Params map[string]any `json:"params,omitempty"`
	// ID is an optional stable identifier for dependency wiring.
	ID string `json:"id,omitempty"`
	// DependsOn lists IDs of steps that must run before this one.
	// When empty, steps are implicitly chained linearly.
	DependsOn []string `json:"depends_on,omitempty"`
	// Outputs declares the named outputs this step produces.
	// Defaults to ["result"] when empty.
	Outputs []string `json:"outputs,omitempty"`
}

// UnmarshalJSON accepts either a bare name string ("Summarizer") or the
// full object form. Router-produced decisions historically used bare names.
func (s *Step) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = Step{Kind: StepKind(name), Params: map[string]any{}}
		return nil
	}

	type stepAlias Step
	var a stepAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Step(a)
	if s.Params == nil {
		s.Params = map[string]any{}
	}
	return nil
}

// CostEstimate is advisory metadata attached by the planner. It is never
// consumed for control flow.
type CostEstimate struct {
	LLMTokens    int   `json:"llm_tokens"`
	ScanBytesEst int64 `json:"scan_bytes_est"`
}

// Decision is the contract object produced by routing/planning and consumed
// by execution. It is immutable once handed to an orchestrator; execution
// mutates only derived run state.
type Decision struct {
	// Intent is a short label categorizing the request. Open vocabulary.
	Intent string `json:"intent"`
	// Agents is the ordered sequence of steps to execute.
	Agents []Step `json:"agents"`
	// Hints carries auxiliary execution hints; semantics belong to consumers.
	Hints map[string]any `json:"hints,omitempty"`
	// Reason explains why this plan was chosen. Advisory only.
	Reason string `json:"reason,omitempty"`
	// CostEstimate is an advisory token/byte estimate. Never authoritative.
	CostEstimate *CostEstimate `json:"cost_estimate,omitempty"`
}

// Validate checks that every step names a known capability and that all
// params are JSON-safe values. Decisions built by the planner always pass;
// this guards decisions assembled by callers directly.
func (d *Decision) Validate() error {
	for i, step := range d.Agents {
		if !step.Kind.Valid() {
			return fmt.Errorf("step %d: unknown agent %q", i, step.Kind)
		}
		for key, val := range step.Params {
			if !JSONSafe(val) {
				return fmt.Errorf("step %d (%s): param %q is not a JSON-safe value", i, step.Kind, key)
			}
		}
	}
	return nil
}

// JSONSafe reports whether v is a primitive, list, mapping, or nil —
// the only value shapes allowed in step params.
func JSONSafe(v any) bool {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	case []any:
		for _, item := range val {
			if !JSONSafe(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range val {
			if !JSONSafe(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
