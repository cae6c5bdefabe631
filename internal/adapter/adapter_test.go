package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/querydeck/querydeck/internal/graphx"
	"github.com/querydeck/querydeck/internal/orchestrator"
	"github.com/querydeck/querydeck/pkg/models"
)

func summarizeDecision() *models.Decision {
	return &models.Decision{
		Intent: "summarize",
		Agents: []models.Step{
			{Kind: models.StepPlanner, Params: map[string]any{}},
			{Kind: models.StepSummarizer, Params: map[string]any{}},
		},
	}
}

// fakeRunClient records the payload it was handed.
type fakeRunClient struct {
	payload *graphx.RunPayload
	result  any
	err     error
}

func (c *fakeRunClient) CreateRun(ctx context.Context, payload *graphx.RunPayload) (any, error) {
	c.payload = payload
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

// fakeRuntime executes nodes in insertion order.
type fakeRuntime struct {
	order []string
	edges [][2]string
	nodes []struct {
		id string
		fn NodeFunc
	}
	runErr error
	// errAfterNodes makes Run execute every node and then fail, like a
	// runtime that crashes partway through a run.
	errAfterNodes error
}

func (r *fakeRuntime) AddNode(id string, fn NodeFunc) {
	r.nodes = append(r.nodes, struct {
		id string
		fn NodeFunc
	}{id, fn})
}

func (r *fakeRuntime) AddEdge(from, to string) {
	r.edges = append(r.edges, [2]string{from, to})
}

func (r *fakeRuntime) Run(ctx context.Context) (any, error) {
	if r.runErr != nil {
		return nil, r.runErr
	}
	outputs := map[string]any{}
	for _, n := range r.nodes {
		r.order = append(r.order, n.id)
		out, err := n.fn(ctx)
		if err != nil {
			return nil, err
		}
		outputs[n.id] = out
	}
	if r.errAfterNodes != nil {
		return nil, r.errAfterNodes
	}
	return outputs, nil
}

// recordingUploader captures what would be shipped externally.
type recordingUploader struct {
	graph   *models.Graph
	traces  []models.Trace
	project string
	calls   int
	err     error
}

func (u *recordingUploader) Upload(ctx context.Context, graph *models.Graph, traces []models.Trace, project string) (*UploadResult, error) {
	u.calls++
	u.graph = graph
	u.traces = traces
	u.project = project
	if u.err != nil {
		return nil, u.err
	}
	return &UploadResult{RunID: "r1", RunURL: "http://x/r1"}, nil
}

func TestBuildRuntimeGraphIdempotent(t *testing.T) {
	a := New(orchestrator.New())
	d := summarizeDecision()

	m1 := a.BuildRuntimeGraph(d, &orchestrator.RunContext{})
	m2 := a.BuildRuntimeGraph(d, &orchestrator.RunContext{})

	if len(m1.Nodes) != len(m2.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(m1.Nodes), len(m2.Nodes))
	}
	for i := range m1.Nodes {
		if m1.Nodes[i].ID != m2.Nodes[i].ID || m1.Nodes[i].Name != m2.Nodes[i].Name {
			t.Errorf("node %d differs: %s/%s vs %s/%s",
				i, m1.Nodes[i].ID, m1.Nodes[i].Name, m2.Nodes[i].ID, m2.Nodes[i].Name)
		}
	}
	if len(m1.Graph.Edges) != len(m2.Graph.Edges) {
		t.Errorf("edge counts differ")
	}
}

func TestRunLocalFallback(t *testing.T) {
	a := New(orchestrator.New())

	res, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("RunDecisionGraph: %v", err)
	}
	if res.Execution == nil || res.Execution.Status != "completed" {
		t.Fatalf("execution = %+v", res.Execution)
	}
	if len(res.Execution.Results) != 2 {
		t.Errorf("got %d node results, want 2", len(res.Execution.Results))
	}
	if len(res.NodeTraces) != 2 {
		t.Errorf("got %d traces, want 2", len(res.NodeTraces))
	}
	for _, tr := range res.NodeTraces {
		if tr.Status != models.TraceSuccess {
			t.Errorf("trace %s status = %s", tr.ID, tr.Status)
		}
		if tr.EndedAt.Before(tr.StartedAt) {
			t.Errorf("trace %s timestamps out of order", tr.ID)
		}
	}
}

// The local path stops at the first erroring step, unlike the
// orchestrator's continue-past-unknown policy.
func TestRunLocalStopsAtFirstError(t *testing.T) {
	a := New(orchestrator.New())
	d := &models.Decision{
		Intent: "sql",
		Agents: []models.Step{
			{Kind: models.StepPlanner},
			{Kind: "Bogus"},
			{Kind: models.StepSummarizer},
		},
	}

	res, err := a.RunDecisionGraph(context.Background(), d, &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("RunDecisionGraph: %v", err)
	}
	if len(res.NodeTraces) != 2 {
		t.Fatalf("got %d traces, want 2 (stop after the failing node)", len(res.NodeTraces))
	}
	if res.NodeTraces[1].Status != models.TraceError {
		t.Errorf("failing node status = %s", res.NodeTraces[1].Status)
	}
	if _, ran := res.Execution.Results["node_2_Summarizer"]; ran {
		t.Error("execution continued past the failing node")
	}
	if res.Execution.Status != "completed" {
		t.Errorf("status = %q, want completed", res.Execution.Status)
	}
}

func TestRunViaClientPreferred(t *testing.T) {
	client := &fakeRunClient{result: map[string]any{"run": "ok"}}
	a := New(orchestrator.New(), WithRunClient(client))

	res, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("RunDecisionGraph: %v", err)
	}
	if res.RemoteResult == nil || res.Execution != nil {
		t.Errorf("expected remote result only, got %+v", res)
	}
	if client.payload == nil || len(client.payload.Items) != 2 {
		t.Errorf("client payload = %+v", client.payload)
	}
	// Payload items chain linearly with default outputs.
	if client.payload.Items[1].Inputs[0].Output != "result" {
		t.Errorf("input ref = %+v", client.payload.Items[1].Inputs)
	}
}

func TestClientFailureFallsThroughToLocal(t *testing.T) {
	client := &fakeRunClient{err: errors.New("remote down")}
	a := New(orchestrator.New(), WithRunClient(client))

	res, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("fallback should succeed: %v", err)
	}
	if res.Execution == nil {
		t.Error("expected local execution result after client failure")
	}
}

func TestRunViaRuntime(t *testing.T) {
	rt := &fakeRuntime{}
	a := New(orchestrator.New(), WithRuntime(func() GraphRuntime { return rt }))

	res, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("RunDecisionGraph: %v", err)
	}
	if res.RemoteResult == nil {
		t.Error("runtime result missing")
	}
	if len(res.NodeTraces) != 2 {
		t.Errorf("got %d traces, want 2", len(res.NodeTraces))
	}
	if len(rt.edges) != 1 {
		t.Errorf("runtime got %d edges, want 1", len(rt.edges))
	}
	if len(rt.order) != 2 || rt.order[0] != "node_0_Planner" {
		t.Errorf("execution order = %v", rt.order)
	}
}

func TestRuntimeFailureFallsThroughToLocal(t *testing.T) {
	a := New(orchestrator.New(), WithRuntime(func() GraphRuntime {
		return &fakeRuntime{runErr: errors.New("runtime crashed")}
	}))

	res, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("fallback should succeed: %v", err)
	}
	if res.Execution == nil || res.Execution.Status != "completed" {
		t.Errorf("local fallback missing: %+v", res)
	}
}

// A runtime that executes some nodes before failing must not leak its
// mutated state into the local fallback: each strategy attempt starts
// from a state seeded fresh from the run context.
func TestRuntimeFailureDoesNotLeakStateToFallback(t *testing.T) {
	calls := 0
	orch := orchestrator.New(orchestrator.WithCapability(models.StepPlanner,
		func(ctx context.Context, step models.Step, state *orchestrator.RunState) (map[string]any, error) {
			calls++
			return map[string]any{"plan": fmt.Sprintf("attempt-%d", calls)}, nil
		}))
	a := New(orch, WithRuntime(func() GraphRuntime {
		return &fakeRuntime{errAfterNodes: errors.New("runtime crashed mid-run")}
	}))

	d := &models.Decision{
		Intent: "sql",
		Agents: []models.Step{{Kind: models.StepPlanner, Params: map[string]any{}}},
	}

	res, err := a.RunDecisionGraph(context.Background(), d, &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("fallback should succeed: %v", err)
	}
	if res.Execution == nil || len(res.NodeTraces) != 1 {
		t.Fatalf("local fallback missing: %+v", res)
	}
	if calls != 2 {
		t.Fatalf("planner capability ran %d times, want 2 (runtime attempt + fallback)", calls)
	}

	state := res.NodeTraces[0].Input["state"].(map[string]any)
	if plan, _ := state["plan"].(string); plan != "" {
		t.Errorf("fallback started with plan %q from the failed runtime attempt, want empty state", plan)
	}
	out := res.Execution.Results["node_0_Planner"].Output
	if out["plan"] != "attempt-2" {
		t.Errorf("fallback output = %v", out)
	}
}

func TestTracesAreRedacted(t *testing.T) {
	a := New(orchestrator.New())
	d := &models.Decision{
		Intent: "summarize",
		Agents: []models.Step{
			{Kind: models.StepSummarizer, Params: map[string]any{"api_key": "sk-verysecret12345"}},
		},
	}

	res, err := a.RunDecisionGraph(context.Background(), d, &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("RunDecisionGraph: %v", err)
	}
	tr := res.NodeTraces[0]
	if tr.Meta["api_key"] != RedactionMarker {
		t.Errorf("trace meta not redacted: %v", tr.Meta)
	}
	params := tr.Input["params"].(map[string]any)
	if params["api_key"] != RedactionMarker {
		t.Errorf("trace input params not redacted: %v", params)
	}
}

func TestUploadBestEffort(t *testing.T) {
	up := &recordingUploader{}
	a := New(orchestrator.New(), WithUploader(up, "proj"))

	if _, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{}); err != nil {
		t.Fatalf("RunDecisionGraph: %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("uploader called %d times, want 1", up.calls)
	}
	if up.project != "proj" || len(up.traces) != 2 {
		t.Errorf("upload payload: project=%q traces=%d", up.project, len(up.traces))
	}
}

func TestUploadFailureDoesNotPropagate(t *testing.T) {
	up := &recordingUploader{err: errors.New("endpoint down")}
	a := New(orchestrator.New(), WithUploader(up, "proj"))

	res, err := a.RunDecisionGraph(context.Background(), summarizeDecision(), &orchestrator.RunContext{})
	if err != nil {
		t.Fatalf("upload failure leaked into execution: %v", err)
	}
	if res.Execution == nil {
		t.Error("execution result missing")
	}
}

func TestHTTPUploaderUnavailableWithoutCredential(t *testing.T) {
	u := &HTTPTraceUploader{Endpoint: "http://localhost:9"}
	_, err := u.Upload(context.Background(), &models.Graph{}, nil, "p")
	if !errors.Is(err, ErrUploadUnavailable) {
		t.Errorf("err = %v, want ErrUploadUnavailable", err)
	}

	u = &HTTPTraceUploader{APIKey: "k"}
	_, err = u.Upload(context.Background(), &models.Graph{}, nil, "p")
	if !errors.Is(err, ErrUploadUnavailable) {
		t.Errorf("err = %v, want ErrUploadUnavailable", err)
	}
}

func TestHTTPUploaderPostsRedactedPayload(t *testing.T) {
	var authHeader string
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := jsonDecode(r, &received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"run_id": "abc", "run_url": "http://viewer/abc"}`))
	}))
	defer srv.Close()

	graph := &models.Graph{
		Nodes:    []models.Node{{ID: "n0", Name: "Summarizer", Meta: map[string]any{"api_key": "x"}}},
		Metadata: map[string]any{"decision": map[string]any{"intent": "summarize"}},
	}
	u := &HTTPTraceUploader{Endpoint: srv.URL, APIKey: "creds"}

	res, err := u.Upload(context.Background(), graph, nil, "proj")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.RunID != "abc" || res.RunURL != "http://viewer/abc" {
		t.Errorf("result = %+v", res)
	}
	if authHeader != "Bearer creds" {
		t.Errorf("auth header = %q", authHeader)
	}

	uploadedGraph := received["graph"].(map[string]any)
	node := uploadedGraph["nodes"].([]any)[0].(map[string]any)
	if node["meta"].(map[string]any)["api_key"] != RedactionMarker {
		t.Errorf("uploaded node meta not redacted: %v", node)
	}
	if received["name"] != "summarize" {
		t.Errorf("run name = %v, want intent", received["name"])
	}
}

func TestHTTPRunClientPostsPayload(t *testing.T) {
	var authHeader string
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := jsonDecode(r, &received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"run_id": "r9", "status": "queued"}`))
	}))
	defer srv.Close()

	c := &HTTPRunClient{Endpoint: srv.URL, APIKey: "creds"}
	payload := graphx.BuildRunPayload(summarizeDecision())

	result, err := c.CreateRun(context.Background(), payload)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if authHeader != "Bearer creds" {
		t.Errorf("auth header = %q", authHeader)
	}
	decoded, ok := result.(map[string]any)
	if !ok || decoded["run_id"] != "r9" {
		t.Errorf("result = %v", result)
	}
	items := received["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("posted %d items, want 2", len(items))
	}
}

func TestHTTPRunClientRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &HTTPRunClient{Endpoint: srv.URL}
	if _, err := c.CreateRun(context.Background(), graphx.BuildRunPayload(summarizeDecision())); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestHTTPRunClientRequiresEndpoint(t *testing.T) {
	c := &HTTPRunClient{}
	if _, err := c.CreateRun(context.Background(), &graphx.RunPayload{}); err == nil {
		t.Fatal("expected error without an endpoint")
	}
}

func jsonDecode(r *http.Request, target *map[string]any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

func TestGraphToExecutionResult(t *testing.T) {
	out := GraphToExecutionResult(map[string]any{
		"status":   "done",
		"nodes":    map[string]any{"n0": 1},
		"trace_id": "t1",
	})
	exec := out["execution"].(map[string]any)
	if exec["status"] != "done" {
		t.Errorf("status = %v", exec["status"])
	}
	if out["trace_id"] != "t1" {
		t.Errorf("trace_id = %v", out["trace_id"])
	}
}
