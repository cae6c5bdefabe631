package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/querydeck/querydeck/pkg/models"
)

// ErrUploadUnavailable indicates no trace-upload endpoint or credential
// is configured. Callers invoking Upload directly should test for it with
// errors.Is; the adapter's own best-effort path swallows it.
var ErrUploadUnavailable = errors.New("trace uploader unavailable")

// UploadResult identifies an uploaded run.
type UploadResult struct {
	RunID  string `json:"run_id"`
	RunURL string `json:"run_url"`
}

// TraceUploader ships a redacted graph+trace payload to an external
// tracing endpoint.
type TraceUploader interface {
	Upload(ctx context.Context, graph *models.Graph, traces []models.Trace, project string) (*UploadResult, error)
}

// HTTPTraceUploader posts run payloads to an HTTP tracing endpoint.
type HTTPTraceUploader struct {
	// Endpoint is the base URL of the tracing service.
	Endpoint string
	// APIKey authenticates uploads. Empty means unavailable.
	APIKey string
	// Client is the HTTP client; http.DefaultClient when nil.
	Client *http.Client
}

// Upload sends the redacted graph and traces. Returns
// ErrUploadUnavailable when no endpoint or credential is configured, so
// callers can distinguish "not set up" from a transport failure.
func (u *HTTPTraceUploader) Upload(ctx context.Context, graph *models.Graph, traces []models.Trace, project string) (*UploadResult, error) {
	if u.Endpoint == "" || u.APIKey == "" {
		return nil, fmt.Errorf("missing tracing endpoint or credential: %w", ErrUploadUnavailable)
	}

	name := runName(graph)
	sanitized := sanitizeGraph(graph, traces)

	body := map[string]any{
		"name":     name,
		"project":  project,
		"steps":    sanitized["nodes"],
		"graph":    sanitized,
		"run_type": "chain",
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode upload payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint+"/runs", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.APIKey)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload traces: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload traces: endpoint returned %s", resp.Status)
	}

	var parsed struct {
		RunID  string `json:"run_id"`
		ID     string `json:"id"`
		RunURL string `json:"run_url"`
		URL    string `json:"url"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	// A non-JSON or empty body still counts as success; identifiers are
	// then synthesized below.
	_ = json.Unmarshal(raw, &parsed)

	result := &UploadResult{RunID: parsed.RunID, RunURL: parsed.RunURL}
	if result.RunID == "" {
		result.RunID = parsed.ID
	}
	if result.RunID == "" {
		result.RunID = uuid.New().String()
	}
	if result.RunURL == "" {
		result.RunURL = parsed.URL
	}
	if result.RunURL == "" {
		result.RunURL = fmt.Sprintf("%s/projects/%s/runs/%s", u.Endpoint, project, result.RunID)
	}
	return result, nil
}

// sanitizeGraph builds the redacted, JSON-ready graph representation with
// traces attached.
func sanitizeGraph(graph *models.Graph, traces []models.Trace) map[string]any {
	nodes := make([]any, len(graph.Nodes))
	for i, node := range graph.Nodes {
		nodes[i] = map[string]any{
			"id":   node.ID,
			"name": node.Name,
			"meta": RedactMap(node.Meta),
		}
	}
	edges := make([]any, len(graph.Edges))
	for i, edge := range graph.Edges {
		edges[i] = map[string]any{"from": edge.From, "to": edge.To}
	}

	// Traces are already redacted at capture time; re-redaction here is
	// harmless and guards direct callers passing raw traces.
	sanitizedTraces := make([]any, len(traces))
	for i, tr := range traces {
		sanitizedTraces[i] = map[string]any{
			"id":         tr.ID,
			"name":       tr.Name,
			"meta":       RedactMap(tr.Meta),
			"input":      RedactMap(tr.Input),
			"output":     RedactMap(tr.Output),
			"status":     string(tr.Status),
			"started_at": tr.StartedAt,
			"ended_at":   tr.EndedAt,
			"duration":   tr.Duration.Seconds(),
		}
	}

	return map[string]any{
		"nodes":       nodes,
		"edges":       edges,
		"metadata":    Redact(graph.Metadata),
		"node_traces": sanitizedTraces,
	}
}

// runName derives the uploaded run's name from the graph's originating
// intent, falling back to a fixed label.
func runName(graph *models.Graph) string {
	if meta, ok := graph.Metadata["decision"].(map[string]any); ok {
		if intent, ok := meta["intent"].(string); ok && intent != "" {
			return intent
		}
	}
	return "querydeck_run"
}

var _ TraceUploader = (*HTTPTraceUploader)(nil)
