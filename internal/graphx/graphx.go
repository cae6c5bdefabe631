// Package graphx projects Decisions into serializable node/edge graphs and
// dependency-aware run payloads for remote execution. Projections only;
// the Decision remains the source of truth.
package graphx

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/querydeck/querydeck/pkg/models"
)

// DefaultOutput is the implicit output name a step declares when it
// declares none.
const DefaultOutput = "result"

// NodeID returns the stable id for the step at position i. Materializing
// the same decision twice yields identical ids.
func NodeID(i int, step models.Step) string {
	return fmt.Sprintf("node_%d_%s", i, step.Kind)
}

// BuildGraph materializes a decision into a node/edge graph: one node per
// step, edges between adjacent steps (linear chain), and a metadata block
// carrying the originating intent.
func BuildGraph(decision *models.Decision) *models.Graph {
	graph := &models.Graph{
		Nodes: make([]models.Node, 0, len(decision.Agents)),
		Metadata: map[string]any{
			"decision": map[string]any{"intent": decision.Intent},
		},
	}

	for i, step := range decision.Agents {
		graph.Nodes = append(graph.Nodes, models.Node{
			ID:   NodeID(i, step),
			Name: string(step.Kind),
			Meta: step.Params,
		})
	}
	for i := 1; i < len(graph.Nodes); i++ {
		graph.Edges = append(graph.Edges, models.Edge{
			From: graph.Nodes[i-1].ID,
			To:   graph.Nodes[i].ID,
		})
	}
	return graph
}

// PayloadItem is one step of a run payload, with resolved dependencies.
type PayloadItem struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	Outputs   []string       `json:"outputs"`
	DependsOn []string       `json:"depends_on"`
	Inputs    []InputRef     `json:"inputs"`
}

// InputRef references one declared output of an upstream item.
type InputRef struct {
	From   string `json:"from"`
	Output string `json:"output"`
}

// RunPayload is the shape submitted to a remote run-creation client.
type RunPayload struct {
	Name  string        `json:"name"`
	Items []PayloadItem `json:"items"`
}

// BuildRunPayload maps a decision onto a dependency-aware run payload.
// Steps without explicit ids get stable positional ids; explicit
// depends_on lists are preserved verbatim, otherwise items are chained
// linearly. Each input references the first declared output of its
// dependency, defaulting to "result".
func BuildRunPayload(decision *models.Decision) *RunPayload {
	payload := &RunPayload{
		Name:  "querydeck_decision",
		Items: make([]PayloadItem, 0, len(decision.Agents)),
	}

	idToOutputs := make(map[string][]string, len(decision.Agents))
	for i, step := range decision.Agents {
		id := step.ID
		if id == "" {
			id = fmt.Sprintf("node_%d", i)
		}
		outputs := step.Outputs
		if len(outputs) == 0 {
			outputs = []string{DefaultOutput}
		}
		idToOutputs[id] = outputs

		item := PayloadItem{
			ID:      id,
			Name:    string(step.Kind),
			Params:  step.Params,
			Outputs: outputs,
			Inputs:  []InputRef{},
		}
		if step.DependsOn != nil {
			item.DependsOn = append([]string{}, step.DependsOn...)
		} else {
			item.DependsOn = []string{}
		}
		payload.Items = append(payload.Items, item)
	}

	// No explicit dependencies anywhere: wire linearly.
	explicit := false
	for _, item := range payload.Items {
		if len(item.DependsOn) > 0 {
			explicit = true
			break
		}
	}
	if !explicit {
		for i := 1; i < len(payload.Items); i++ {
			payload.Items[i].DependsOn = []string{payload.Items[i-1].ID}
		}
	}

	for i := range payload.Items {
		item := &payload.Items[i]
		for _, dep := range item.DependsOn {
			outputs, ok := idToOutputs[dep]
			if !ok || len(outputs) == 0 {
				outputs = []string{DefaultOutput}
			}
			item.Inputs = append(item.Inputs, InputRef{From: dep, Output: outputs[0]})
		}
	}

	return payload
}

// MarshalYAML renders a graph as YAML, for export and inspection.
func MarshalYAML(graph *models.Graph) (string, error) {
	out, err := yaml.Marshal(map[string]any{"graph": graph})
	if err != nil {
		return "", fmt.Errorf("marshal graph yaml: %w", err)
	}
	return string(out), nil
}
