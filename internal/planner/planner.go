// Package planner refines routing decisions into concrete, validated
// Decisions. It never fails: any LLM or validation problem falls back to a
// deterministic default plan for the requested intent.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/querydeck/querydeck/internal/llm"
	"github.com/querydeck/querydeck/internal/logx"
	"github.com/querydeck/querydeck/internal/orchestrator"
	"github.com/querydeck/querydeck/internal/router"
	"github.com/querydeck/querydeck/pkg/models"
)

const planMaxTokens = 768

// Planner turns an intent plus context into an executable Decision.
type Planner struct {
	llm    llm.Client
	logger *logx.DebugLogger
}

// New creates a Planner. The client may be nil; planning then uses the
// deterministic per-intent defaults only.
func New(client llm.Client, logger *logx.DebugLogger) *Planner {
	if logger == nil {
		logger = &logx.DebugLogger{}
	}
	return &Planner{llm: client, logger: logger}
}

// PlanForIntent returns a valid Decision for the intent. Priority order:
// a data-bearing context short-circuits to a Summarizer-only plan; with no
// LLM the deterministic default plan for the intent is used; otherwise the
// LLM is asked for a constrained JSON plan, falling back to the default on
// any parse or validation failure.
func (p *Planner) PlanForIntent(ctx context.Context, intent, prompt string, rc *orchestrator.RunContext) *models.Decision {
	// Never re-derive SQL when data is already in hand.
	if rc != nil && (rc.Frame != nil || len(rc.RowsPreview) > 0) {
		return &models.Decision{
			Intent: intent,
			Agents: []models.Step{
				{Kind: models.StepSummarizer, Params: map[string]any{}},
			},
			Hints:        map[string]any{"use_existing_df": true},
			Reason:       "context contains data; prefer summarizer",
			CostEstimate: &models.CostEstimate{LLMTokens: 20, ScanBytesEst: 0},
		}
	}

	if p.llm == nil {
		return p.defaultPlan(intent)
	}

	decision, err := p.planWithLLM(ctx, intent, prompt)
	if err != nil {
		p.logger.Log("[planner] LLM plan failed (%v); using deterministic plan for %q", err, intent)
		return p.defaultPlan(intent)
	}
	return decision
}

// planWithLLM asks the client for a JSON plan and validates it against the
// capability allow-list.
func (p *Planner) planWithLLM(ctx context.Context, intent, prompt string) (*models.Decision, error) {
	names := make([]string, len(models.AllStepKinds))
	for i, k := range models.AllStepKinds {
		names[i] = string(k)
	}

	request := fmt.Sprintf(
		"You are a query-planning assistant. Produce ONLY a JSON object, no prose.\n"+
			"Schema: {\"intent\": string, \"agents\": [{\"name\": string, \"params\": object}]}\n"+
			"Each agent name must be one of: %s.\n"+
			"Intent hint: %s\n"+
			"User request: %s\n",
		strings.Join(names, ", "), intent, prompt)

	text, err := p.llm.Generate(ctx, request, &llm.Options{MaxTokens: planMaxTokens})
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var decision models.Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if decision.Agents == nil {
		return nil, fmt.Errorf("plan has no agents field")
	}

	for i := range decision.Agents {
		step := &decision.Agents[i]
		if !step.Kind.Valid() {
			return nil, fmt.Errorf("plan step %d: agent %q not in allow-list", i, step.Kind)
		}
		step.Params = filterParams(step.Params)
	}

	if decision.Intent == "" {
		decision.Intent = intent
	}
	if decision.Hints == nil {
		decision.Hints = map[string]any{}
	}
	decision.Reason = "llm-generated plan"
	return &decision, nil
}

// defaultPlan is the deterministic mapping from intent to step chain.
// Cost estimates are advisory only.
func (p *Planner) defaultPlan(intent string) *models.Decision {
	decision := &models.Decision{
		Intent:       intent,
		Hints:        map[string]any{},
		Reason:       "planner default mapping",
		CostEstimate: &models.CostEstimate{LLMTokens: 100, ScanBytesEst: 0},
	}

	switch intent {
	case router.IntentAnalyze:
		decision.Agents = []models.Step{
			{Kind: models.StepPlanner, Params: map[string]any{}},
			{Kind: models.StepSQLGenerator, Params: map[string]any{"sample_only": true}},
			{Kind: models.StepValidator, Params: map[string]any{"sample_mode": true}},
			{Kind: models.StepSQLRunner, Params: map[string]any{"max_rows": 1000}},
			{Kind: models.StepAnalysisAgent, Params: map[string]any{"analysis_mode": "regression"}},
			{Kind: models.StepSummarizer, Params: map[string]any{"model": "default"}},
		}
		decision.Hints = map[string]any{"confirm_full_run": true}
	case router.IntentSQL:
		decision.Agents = []models.Step{
			{Kind: models.StepPlanner, Params: map[string]any{}},
			{Kind: models.StepSQLGenerator, Params: map[string]any{"sample_only": true}},
			{Kind: models.StepValidator, Params: map[string]any{}},
			{Kind: models.StepSQLRunner, Params: map[string]any{"max_rows": 500}},
			{Kind: models.StepSummarizer, Params: map[string]any{}},
		}
	case router.IntentSummarize:
		decision.Agents = []models.Step{
			{Kind: models.StepPlanner, Params: map[string]any{}},
			{Kind: models.StepSummarizer, Params: map[string]any{}},
		}
	default:
		// Unknown intents get a safe planner + summarizer pair.
		decision.Agents = []models.Step{
			{Kind: models.StepPlanner, Params: map[string]any{}},
			{Kind: models.StepSummarizer, Params: map[string]any{}},
		}
	}
	return decision
}

// ExtractJSON pulls the first JSON object out of an LLM completion,
// tolerating surrounding code fences and leading prose.
func ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.Index(cleaned, "{")
	if start == -1 {
		preview := cleaned
		if len(preview) > 200 {
			preview = preview[:200] + "... (truncated)"
		}
		return "", fmt.Errorf("no JSON object found in response (got %d chars): %q", len(text), preview)
	}
	end := strings.LastIndex(cleaned, "}")
	if end <= start {
		return "", fmt.Errorf("unterminated JSON object in response")
	}
	return cleaned[start : end+1], nil
}

// filterParams drops values that are not JSON-safe, keeping the rest of
// the plan usable rather than failing it wholesale.
func filterParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if models.JSONSafe(v) {
			out[k] = v
		}
	}
	return out
}
