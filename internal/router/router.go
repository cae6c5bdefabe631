// Package router provides fast, rule-based intent detection for incoming
// prompts. It is the first stage of the pipeline; ambiguous prompts are
// escalated to the planner rather than guessed at.
package router

import (
	"regexp"
	"strings"

	"github.com/querydeck/querydeck/pkg/models"
)

// Well-known intents produced by classification. The intent vocabulary is
// open; these are the ones the router itself emits.
const (
	IntentAnalyze   = "analyze"
	IntentSummarize = "summarize"
	IntentSQL       = "sql"
	IntentUnknown   = "unknown"
)

// Word-boundary patterns, checked in order; first match wins. Boundary
// matching matters: "summary" contains "sum" and must never fire the SQL
// aggregation rule.
var (
	analyzePattern   = regexp.MustCompile(`\b(analy(?:ze|se|sis|tics)?|regress(?:ion|ions)?|correlat(?:e|es|ed|ion|ions)?|drivers?|model|predict)\b`)
	summarizePattern = regexp.MustCompile(`\b(summary|summari[sz]e|describe|overview|insights?)\b`)
	sqlPattern       = regexp.MustCompile(`\b(count|how many|top|sum|avg|group by|order by|select|min|max)\b`)
)

// Detection is the router's verdict for one prompt.
type Detection struct {
	// Intent is the detected category.
	Intent string
	// Confidence is how certain the classification is (0.0-1.0).
	// Below the escalation threshold the planner should be consulted.
	Confidence float64
	// Agents is the suggested step chain. Empty when the router wants the
	// planner to decide.
	Agents []models.Step
	// Hints carries execution hints for downstream consumers.
	Hints map[string]any
}

// Router classifies prompts into coarse intents. It is stateless and a
// pure function of its inputs.
type Router struct{}

// New creates a Router.
func New() *Router {
	return &Router{}
}

// DetectIntent classifies a prompt. A non-empty userMode overrides
// classification entirely: the caller has told us the intent, so return it
// with high confidence and let the planner fill in the steps.
func (r *Router) DetectIntent(prompt, userMode string) Detection {
	if userMode != "" {
		return Detection{
			Intent:     userMode,
			Confidence: 0.95,
			Agents:     []models.Step{},
			Hints:      map[string]any{},
		}
	}

	text := strings.ToLower(prompt)

	if analyzePattern.MatchString(text) {
		return Detection{
			Intent:     IntentAnalyze,
			Confidence: 0.92,
			Agents: chain(
				models.StepPlanner,
				models.StepSQLGenerator,
				models.StepValidator,
				models.StepSQLRunner,
				models.StepAnalysisAgent,
				models.StepSummarizer,
			),
			Hints: map[string]any{"sample_only": true},
		}
	}

	// Summarization checked before SQL aggregation: summarization prompts
	// often run directly against an in-memory frame.
	if summarizePattern.MatchString(text) {
		return Detection{
			Intent:     IntentSummarize,
			Confidence: 0.93,
			Agents:     chain(models.StepPlanner, models.StepSummarizer),
			Hints:      map[string]any{"use_existing_df": true},
		}
	}

	if sqlPattern.MatchString(text) {
		return Detection{
			Intent:     IntentSQL,
			Confidence: 0.9,
			Agents: chain(
				models.StepPlanner,
				models.StepSQLGenerator,
				models.StepValidator,
				models.StepSQLRunner,
				models.StepSummarizer,
			),
			Hints: map[string]any{"sample_only": true},
		}
	}

	// Low confidence with no steps signals the caller to escalate.
	return Detection{
		Intent:     IntentUnknown,
		Confidence: 0.5,
		Agents:     []models.Step{},
		Hints:      map[string]any{},
	}
}

// Decision converts a detection into an executable Decision.
func (d Detection) Decision() *models.Decision {
	return &models.Decision{
		Intent: d.Intent,
		Agents: d.Agents,
		Hints:  d.Hints,
		Reason: "rule-based routing",
	}
}

func chain(kinds ...models.StepKind) []models.Step {
	steps := make([]models.Step, len(kinds))
	for i, k := range kinds {
		steps[i] = models.Step{Kind: k, Params: map[string]any{}}
	}
	return steps
}
