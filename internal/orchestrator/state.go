// Package orchestrator executes decisions step-by-step against a mutable
// run state, threading SQL text, row previews, frames, and plan narrative
// between steps.
package orchestrator

import (
	"github.com/querydeck/querydeck/internal/datasource"
	"github.com/querydeck/querydeck/internal/llm"
	"github.com/querydeck/querydeck/pkg/models"
)

// Recognized output keys. A step output containing one of these overwrites
// the corresponding run-state field; this is the only channel by which
// steps communicate.
const (
	KeySQL         = "sql"
	KeyRowsPreview = "rows_preview"
	KeyFullFrame   = "full_df"
	KeyPlan        = "plan"
)

// RunContext is the caller-supplied seed for one execution: the external
// collaborators and any pre-supplied data. It is read-only during a run.
type RunContext struct {
	// Source executes SQL. May be nil; steps degrade to placeholders.
	Source datasource.Handle
	// Prompt is the original natural-language request.
	Prompt string
	// LLM generates completions. May be nil; steps degrade deterministically.
	LLM llm.Client
	// Frame is a pre-supplied data frame, if the caller already has data.
	Frame *models.Frame
	// RowsPreview is a pre-supplied row preview, if any.
	RowsPreview []map[string]any
	// TableName is the name the caller registered its frame under, if any.
	TableName string
}

// RunState is the mutable scratch space threaded through steps within one
// run. It is created fresh per execution, exclusively owned by that
// execution, and discarded at the end.
type RunState struct {
	Source      datasource.Handle
	Prompt      string
	LLM         llm.Client
	Frame       *models.Frame
	LastSQL     string
	RowsPreview []map[string]any
	PlanText    string
	TableName   string
}

// NewRunState seeds a fresh state from the caller's context.
func NewRunState(rc *RunContext) *RunState {
	if rc == nil {
		rc = &RunContext{}
	}
	return &RunState{
		Source:      rc.Source,
		Prompt:      rc.Prompt,
		LLM:         rc.LLM,
		Frame:       rc.Frame,
		RowsPreview: rc.RowsPreview,
		TableName:   rc.TableName,
	}
}

// ApplyOutput merges a step's output into the state, overwriting the
// recognized slots only. Unrecognized keys are ignored.
func (s *RunState) ApplyOutput(out map[string]any) {
	if out == nil {
		return
	}
	if v, ok := out[KeySQL]; ok {
		if sql, ok := v.(string); ok {
			s.LastSQL = sql
		}
	}
	if v, ok := out[KeyRowsPreview]; ok {
		if rows, ok := v.([]map[string]any); ok {
			s.RowsPreview = rows
		}
	}
	if v, ok := out[KeyFullFrame]; ok {
		if frame, ok := v.(*models.Frame); ok {
			s.Frame = frame
		}
	}
	if v, ok := out[KeyPlan]; ok {
		if plan, ok := v.(string); ok {
			s.PlanText = plan
		}
	}
}

// Snapshot returns a JSON-friendly view of the state for trace capture.
// The frame is reduced to its shape to keep traces bounded.
func (s *RunState) Snapshot() map[string]any {
	snap := map[string]any{
		"prompt":   s.Prompt,
		"last_sql": s.LastSQL,
		"plan":     s.PlanText,
	}
	if s.Frame != nil {
		snap["frame_shape"] = []int{s.Frame.NumRows(), s.Frame.NumCols()}
	}
	if len(s.RowsPreview) > 0 {
		snap["rows_preview_count"] = len(s.RowsPreview)
	}
	return snap
}
