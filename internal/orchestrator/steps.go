package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/querydeck/querydeck/internal/llm"
	"github.com/querydeck/querydeck/pkg/models"
)

// Defaults for the generation and preview steps.
const (
	defaultRowLimit    = 10
	previewRowLimit    = 20
	sampleRowLimit     = 5
	fallbackTableName  = "sample_table"
	sqlGenMaxTokens    = 512
	summarizeMaxTokens = 300
)

// NoDataGuidance is the summarizer's output when there is nothing to
// summarize at all. Pinned by tests.
const NoDataGuidance = "No data available to summarize. Provide a data frame to Run, or execute a SQL-producing plan so results can be summarized."

// runPlannerStep is a no-op marker recording that planning occurred. It
// does not re-invoke the planner component.
func runPlannerStep(ctx context.Context, step models.Step, state *RunState) (map[string]any, error) {
	return map[string]any{KeyPlan: "planner-produced-plan"}, nil
}

// runSQLGenerator drafts a query for the prompt. With an LLM it asks for a
// bounded query and appends a limit clause if the completion omits one;
// without one it falls back to selecting everything from a discovered or
// placeholder table.
func runSQLGenerator(ctx context.Context, step models.Step, state *RunState) (map[string]any, error) {
	limit := intParam(step.Params, "max_rows", defaultRowLimit)

	if state.LLM != nil {
		prompt := fmt.Sprintf(
			"You are an assistant that generates safe SQL for a SQLite database.\n"+
				"User request: %s\n"+
				"Produce a single SQL query that answers the request. Limit rows to %d.\n",
			state.Prompt, limit)

		text, err := state.LLM.Generate(ctx, prompt, &llm.Options{MaxTokens: sqlGenMaxTokens})
		if err == nil {
			sql := strings.TrimSpace(text)
			if !strings.Contains(strings.ToLower(sql), "limit") {
				sql = strings.TrimSuffix(sql, ";") + fmt.Sprintf(" LIMIT %d", limit)
			}
			return map[string]any{KeySQL: sql}, nil
		}
		// LLM failure degrades to the canned query below.
	}

	table := state.TableName
	if table == "" && state.Source != nil {
		if names, err := state.Source.Tables(ctx); err == nil && len(names) > 0 {
			table = names[0]
		}
	}
	if table == "" {
		table = fallbackTableName
	}

	sql := fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, limit)
	return map[string]any{KeySQL: sql}, nil
}

// runValidator is a pass-through seam for future real validation.
func runValidator(ctx context.Context, step models.Step, state *RunState) (map[string]any, error) {
	return map[string]any{"valid": true, "issues": []any{}}, nil
}

// runSQLRunner executes the current SQL against the data source, capturing
// a bounded preview plus the full frame. Query failures are returned as a
// structured error value, never raised. With no handle or SQL it returns a
// fixed illustrative row so downstream steps have something to work with.
func runSQLRunner(ctx context.Context, step models.Step, state *RunState) (map[string]any, error) {
	if state.Source != nil && state.LastSQL != "" {
		frame, err := state.Source.Query(ctx, state.LastSQL)
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		return map[string]any{
			KeyRowsPreview: frame.Head(previewRowLimit),
			KeyFullFrame:   frame,
		}, nil
	}

	// Fake preview keeps the rest of the chain exercised in dry runs.
	rows := []map[string]any{{"col1": 1, "col2": "example"}}
	return map[string]any{KeyRowsPreview: rows}, nil
}

// runAnalysisAgent computes descriptive statistics over the current frame,
// reporting the absence of data explicitly rather than staying silent.
func runAnalysisAgent(ctx context.Context, step models.Step, state *RunState) (map[string]any, error) {
	artifacts := map[string]any{}
	metrics := map[string]any{}

	if state.Frame != nil {
		artifacts["describe"] = describeFrame(state.Frame)
		metrics["n_rows"] = state.Frame.NumRows()
	} else {
		artifacts["note"] = "no dataframe provided to AnalysisAgent"
	}

	return map[string]any{
		"analysis_code": nil,
		"artifacts":     artifacts,
		"metrics":       metrics,
	}, nil
}

// runSummarizer produces prose about the run. Preference order: LLM over
// the full frame, deterministic text over the full frame, LLM over the
// preview/plan/SQL, explicit no-data guidance, deterministic fallback.
// LLM failures at any tier degrade silently to the next; summarization
// never fails outright.
func runSummarizer(ctx context.Context, step models.Step, state *RunState) (map[string]any, error) {
	plan := state.PlanText
	if plan == "" {
		plan = "(no plan)"
	}
	lastSQL := state.LastSQL
	if lastSQL == "" {
		lastSQL = "(no sql)"
	}

	if state.Frame != nil {
		nRows, nCols := state.Frame.NumRows(), state.Frame.NumCols()
		cols := state.Frame.Columns
		sample := state.Frame.Head(sampleRowLimit)

		if state.LLM != nil {
			prompt := fmt.Sprintf(
				"You are an assistant that summarizes a tabular data frame.\n"+
					"Plan: %s\n"+
					"Frame shape: %d rows x %d cols\n"+
					"Columns: %v\n"+
					"Sample rows: %v\n"+
					"Produce a concise human-readable summary (3-5 sentences).",
				plan, nRows, nCols, cols, sample)
			if text, err := state.LLM.Generate(ctx, prompt, &llm.Options{MaxTokens: summarizeMaxTokens}); err == nil {
				return map[string]any{"summary": text, "llm_used": true}, nil
			}
		}

		summary := fmt.Sprintf("DataFrame with %d rows and %d columns. Columns: %v. Sample rows: %v",
			nRows, nCols, cols, sample)
		return map[string]any{"summary": summary, "llm_used": false}, nil
	}

	rows := state.RowsPreview
	if state.LLM != nil {
		sample := rows
		if len(sample) > sampleRowLimit {
			sample = sample[:sampleRowLimit]
		}
		prompt := fmt.Sprintf(
			"You are an assistant that summarizes analysis findings.\n"+
				"Plan: %s\n"+
				"SQL: %s\n"+
				"Sample rows: %v\n"+
				"Produce a concise human-readable summary (3-5 sentences).",
			plan, lastSQL, sample)
		if text, err := state.LLM.Generate(ctx, prompt, &llm.Options{MaxTokens: summarizeMaxTokens}); err == nil {
			return map[string]any{"summary": text, "llm_used": true}, nil
		}
	}

	if len(rows) == 0 {
		return map[string]any{"summary": NoDataGuidance, "llm_used": false}, nil
	}

	summary := fmt.Sprintf("Plan: %s\nSQL: %s\nRows preview count: %d", plan, lastSQL, len(rows))
	return map[string]any{"summary": summary, "llm_used": false}, nil
}

// describeFrame computes count/mean/min/max per numeric column.
func describeFrame(frame *models.Frame) map[string]any {
	desc := make(map[string]any, len(frame.Columns))
	for _, col := range frame.Columns {
		var (
			count int
			sum   float64
			min   float64
			max   float64
		)
		for _, record := range frame.Records {
			v, ok := asFloat(record[col])
			if !ok {
				continue
			}
			if count == 0 || v < min {
				min = v
			}
			if count == 0 || v > max {
				max = v
			}
			sum += v
			count++
		}
		if count == 0 {
			continue
		}
		desc[col] = map[string]any{
			"count": count,
			"mean":  sum / float64(count),
			"min":   min,
			"max":   max,
		}
	}
	return desc
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// intParam reads an integer param tolerating JSON's float64 decoding.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
