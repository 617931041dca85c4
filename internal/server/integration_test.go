package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/recorder"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/tools"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia/uiatest"
)

type testServer struct {
	srv  *Server
	base string
	sim  *recorder.SimSource
	eng  *uiatest.Engine
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	eng := uiatest.NewEngine(
		uiatest.N("Window", "Calculator",
			uiatest.N("Edit", "Expression"),
			uiatest.N("Button", "Equals"),
		).WithPID(4242),
	)
	reg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(reg, tools.Deps{Engine: eng}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	sim := recorder.NewSimSource()
	s := New(Config{
		Engine:    eng,
		Registry:  reg,
		StateDir:  t.TempDir(),
		SimSource: sim,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(s.Shutdown)

	return &testServer{srv: s, base: "http://" + ln.Addr().String(), sim: sim, eng: eng}
}

func (ts *testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.base+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.base + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_HealthAndToolList(t *testing.T) {
	ts := startTestServer(t)
	resp, out := ts.get(t, "/health")
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, out)
	}
	_, out = ts.get(t, "/tools")
	if list, ok := out["tools"].([]any); !ok || len(list) < 10 {
		t.Fatalf("tool list: %v", out)
	}
}

func TestServer_CallTool(t *testing.T) {
	ts := startTestServer(t)
	resp, out := ts.post(t, "/tools/click_element", CallToolRequest{Arguments: map[string]any{
		"selector":   "role:Button && name:Equals",
		"timeout_ms": 1000,
	}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("call: %d %v", resp.StatusCode, out)
	}
	result := out["result"].(map[string]any)
	if result["element"] != "Equals" {
		t.Fatalf("result: %v", result)
	}

	resp, _ = ts.post(t, "/tools/click_element", CallToolRequest{Arguments: map[string]any{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("schema violation returned %d", resp.StatusCode)
	}

	resp, _ = ts.post(t, "/tools/no_such_tool", CallToolRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown tool returned %d", resp.StatusCode)
	}
}

func TestServer_WorkflowLifecycle(t *testing.T) {
	ts := startTestServer(t)
	yaml := `
name: api-run
steps:
  - id: s1
    tool_name: validate_element
    arguments:
      selector: "role:Button && name:Equals"
      timeout_ms: 1000
  - id: s2
    tool_name: delay
    arguments:
      delay_ms: 10
`
	resp, out := ts.post(t, "/workflows", SubmitWorkflowRequest{WorkflowYAML: yaml})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit: %d %v", resp.StatusCode, out)
	}
	runID := out["run_id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	var status map[string]any
	for {
		_, status = ts.get(t, "/workflows/"+runID)
		if st, _ := status["state"].(string); st != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never finished: %v", status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status["state"] != "success" {
		t.Fatalf("final state: %v", status)
	}
	result := status["result"].(map[string]any)
	if result["executed_tools"] != float64(2) {
		t.Fatalf("executed: %v", result["executed_tools"])
	}
}

func TestServer_WorkflowValidationRejected(t *testing.T) {
	ts := startTestServer(t)
	resp, out := ts.post(t, "/workflows", SubmitWorkflowRequest{WorkflowYAML: `
name: bad
steps:
  - id: s1
    tool_name: does_not_exist
`})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %v", resp.StatusCode, out)
	}
}

func TestServer_WorkflowEventsSSE(t *testing.T) {
	ts := startTestServer(t)
	yaml := `
name: sse-run
steps:
  - id: s1
    tool_name: delay
    arguments:
      delay_ms: 50
`
	_, out := ts.post(t, "/workflows", SubmitWorkflowRequest{WorkflowYAML: yaml})
	runID := out["run_id"].(string)

	resp, err := http.Get(ts.base + "/workflows/" + runID + "/events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type: %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	var frames []string
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
		if strings.HasPrefix(line, "event: done") {
			break
		}
	}
	// step_started and step_finished for the single step.
	if len(frames) < 2 {
		t.Fatalf("frames: %v", frames)
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	if first["event"] != "step_started" || first["step_id"] != "s1" {
		t.Fatalf("first frame: %v", first)
	}
}

func TestServer_RecorderLifecycle(t *testing.T) {
	ts := startTestServer(t)
	resp, out := ts.post(t, "/recorder/start", RecorderStartRequest{Name: "session"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %v", resp.StatusCode, out)
	}
	if out["session_id"] == "" {
		t.Fatalf("no session id: %v", out)
	}

	// Starting twice conflicts.
	resp, _ = ts.post(t, "/recorder/start", RecorderStartRequest{Name: "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double start: %d", resp.StatusCode)
	}

	ts.sim.EmitClipboard("copy", "hello", 1000)
	time.Sleep(200 * time.Millisecond)

	savePath := t.TempDir() + "/rec.json"
	resp, out = ts.post(t, "/recorder/stop", RecorderStopRequest{SavePath: savePath})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: %d %v", resp.StatusCode, out)
	}
	if out["events"].(float64) < 1 {
		t.Fatalf("no events recorded: %v", out)
	}
	if out["saved_to"] != savePath {
		t.Fatalf("save path: %v", out)
	}

	resp, _ = ts.post(t, "/recorder/stop", RecorderStopRequest{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double stop: %d", resp.StatusCode)
	}
}

func TestServer_CrossOriginPostBlocked(t *testing.T) {
	ts := startTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, ts.base+"/recorder/start", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-origin POST returned %d", resp.StatusCode)
	}
}

func TestStatusForError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
