package graphx

import (
	"reflect"
	"strings"
	"testing"

	"github.com/querydeck/querydeck/pkg/models"
)

func sqlDecision() *models.Decision {
	return &models.Decision{
		Intent: "sql",
		Agents: []models.Step{
			{Kind: models.StepPlanner, Params: map[string]any{}},
			{Kind: models.StepSQLGenerator, Params: map[string]any{"max_rows": 10}},
			{Kind: models.StepSummarizer, Params: map[string]any{}},
		},
	}
}

func TestBuildGraphShape(t *testing.T) {
	g := BuildGraph(sqlDecision())

	if len(g.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(g.Nodes))
	}
	if g.Nodes[0].ID != "node_0_Planner" || g.Nodes[1].ID != "node_1_SQLGenerator" {
		t.Errorf("node ids = %v", []string{g.Nodes[0].ID, g.Nodes[1].ID, g.Nodes[2].ID})
	}
	if len(g.Edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(g.Edges))
	}
	if g.Edges[0].From != "node_0_Planner" || g.Edges[0].To != "node_1_SQLGenerator" {
		t.Errorf("edge 0 = %+v", g.Edges[0])
	}

	meta := g.Metadata["decision"].(map[string]any)
	if meta["intent"] != "sql" {
		t.Errorf("metadata intent = %v", meta["intent"])
	}
}

// Materializing the same decision twice must yield identical graphs.
func TestBuildGraphIdempotent(t *testing.T) {
	d := sqlDecision()
	a := BuildGraph(d)
	b := BuildGraph(d)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("graphs differ across materializations:\n%+v\n%+v", a, b)
	}
}

func TestBuildRunPayloadLinearChaining(t *testing.T) {
	p := BuildRunPayload(sqlDecision())

	if len(p.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(p.Items))
	}
	if len(p.Items[0].DependsOn) != 0 {
		t.Errorf("first item should have no deps, got %v", p.Items[0].DependsOn)
	}
	for i := 1; i < 3; i++ {
		want := p.Items[i-1].ID
		if len(p.Items[i].DependsOn) != 1 || p.Items[i].DependsOn[0] != want {
			t.Errorf("item %d depends_on = %v, want [%s]", i, p.Items[i].DependsOn, want)
		}
		if len(p.Items[i].Inputs) != 1 || p.Items[i].Inputs[0] != (InputRef{From: want, Output: "result"}) {
			t.Errorf("item %d inputs = %v", i, p.Items[i].Inputs)
		}
	}
}

func TestBuildRunPayloadExplicitDependencies(t *testing.T) {
	d := &models.Decision{
		Intent: "analyze",
		Agents: []models.Step{
			{Kind: models.StepSQLGenerator, ID: "gen1", Outputs: []string{"query"}},
			{Kind: models.StepSQLRunner, ID: "run1", DependsOn: []string{"gen1"}},
			{Kind: models.StepSummarizer, ID: "sum1", DependsOn: []string{"run1"}},
		},
	}

	p := BuildRunPayload(d)

	if p.Items[1].DependsOn[0] != "gen1" {
		t.Errorf("explicit depends_on not preserved: %v", p.Items[1].DependsOn)
	}
	// Input references the dependency's declared output, not the default.
	if p.Items[1].Inputs[0] != (InputRef{From: "gen1", Output: "query"}) {
		t.Errorf("item run1 inputs = %v, want declared output 'query'", p.Items[1].Inputs)
	}
	// run1 declared no outputs, so sum1's reference defaults to "result".
	if p.Items[2].Inputs[0] != (InputRef{From: "run1", Output: "result"}) {
		t.Errorf("item sum1 inputs = %v", p.Items[2].Inputs)
	}
}

func TestBuildRunPayloadStableIDs(t *testing.T) {
	d := sqlDecision()
	a := BuildRunPayload(d)
	b := BuildRunPayload(d)
	for i := range a.Items {
		if a.Items[i].ID != b.Items[i].ID {
			t.Errorf("item %d id differs: %s vs %s", i, a.Items[i].ID, b.Items[i].ID)
		}
	}
	if a.Items[0].ID != "node_0" {
		t.Errorf("positional id = %s, want node_0", a.Items[0].ID)
	}
}

func TestBuildRunPayloadDefaultOutputs(t *testing.T) {
	p := BuildRunPayload(sqlDecision())
	for i, item := range p.Items {
		if len(item.Outputs) != 1 || item.Outputs[0] != "result" {
			t.Errorf("item %d outputs = %v, want [result]", i, item.Outputs)
		}
	}
}

func TestMarshalYAML(t *testing.T) {
	g := BuildGraph(sqlDecision())
	out, err := MarshalYAML(g)
	if err != nil {
		t.Fatalf("MarshalYAML: %v", err)
	}
	for _, want := range []string{"graph:", "node_0_Planner", "SQLGenerator", "edges:"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestEmptyDecision(t *testing.T) {
	d := &models.Decision{Intent: "unknown", Agents: []models.Step{}}
	g := BuildGraph(d)
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("empty decision produced nodes/edges: %+v", g)
	}
	p := BuildRunPayload(d)
	if len(p.Items) != 0 {
		t.Errorf("empty decision produced payload items: %+v", p)
	}
}
