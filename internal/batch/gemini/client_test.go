package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"BatchRace/internal/batch"
)

func newTestClient(baseURL string) *Client {
	c := New("test-key", "gemini-2.0-flash", 10*time.Millisecond, zap.NewNop().Sugar())
	c.baseURL = baseURL
	return c
}

func TestTransportsOrder(t *testing.T) {
	c := newTestClient(defaultBaseURL)
	trs := c.transports()

	want := []string{"api-key", "adc"}
	if len(trs) != len(want) {
		t.Fatalf("len(transports) = %d, want %d", len(trs), len(want))
	}
	for i, tr := range trs {
		if tr.name != want[i] {
			t.Errorf("transports[%d] = %q, want %q", i, tr.name, want[i])
		}
	}
}

func TestBuildRequests(t *testing.T) {
	calls := []batch.Call{
		{ID: "call-1", Transcript: "first transcript"},
		{ID: "call-2", Transcript: "second transcript"},
	}

	reqs := buildRequests(calls)

	if len(reqs) != len(calls) {
		t.Fatalf("len(reqs) = %d, want %d", len(reqs), len(calls))
	}
	for i, r := range reqs {
		if r.Metadata["key"] != calls[i].ID {
			t.Errorf("req %d: metadata key = %q, want %q", i, r.Metadata["key"], calls[i].ID)
		}
		if len(r.Request.Contents) != 1 || r.Request.Contents[0].Role != "user" {
			t.Errorf("req %d: expected single user content", i)
		}
		if !strings.Contains(r.Request.Contents[0].Parts[0].Text, calls[i].Transcript) {
			t.Errorf("req %d: prompt should contain transcript %q", i, calls[i].Transcript)
		}
		if r.Request.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Errorf("req %d: responseMimeType = %q, want application/json", i, r.Request.GenerationConfig.ResponseMIMEType)
		}
	}
}

func TestCreateJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("x-goog-api-key = %q, want test-key", got)
		}
		var payload batchRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if got := len(payload.Batch.InputConfig.Requests.Requests); got != len(batch.TestCalls) {
			t.Errorf("inlined requests = %d, want %d", got, len(batch.TestCalls))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "batches/test-123"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	handle, err := c.createJob(context.Background(), batch.TestCalls)
	if err != nil {
		t.Fatalf("createJob() error = %v", err)
	}
	if handle.name != "batches/test-123" {
		t.Errorf("handle.name = %q, want batches/test-123", handle.name)
	}
	if handle.tr.name != "api-key" {
		t.Errorf("handle transport = %q, want api-key", handle.tr.name)
	}
}

func TestWaitForCompletion(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		state := "JOB_STATE_RUNNING"
		if n >= 3 {
			state = stateSucceeded
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":     "batches/test-123",
			"metadata": map[string]any{"state": state},
			"done":     n >= 3,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	handle := &jobHandle{name: "batches/test-123", tr: c.transports()[0], hc: c.http}

	op, err := c.waitForCompletion(context.Background(), handle)
	if err != nil {
		t.Fatalf("waitForCompletion() error = %v", err)
	}
	if op.Metadata.State != stateSucceeded {
		t.Errorf("final state = %q, want %q", op.Metadata.State, stateSucceeded)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
}

func TestWaitForCompletion_TerminalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":     "batches/test-123",
			"metadata": map[string]any{"state": stateFailed},
			"done":     true,
			"error":    map[string]any{"code": 13, "message": "model exploded"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	handle := &jobHandle{name: "batches/test-123", tr: c.transports()[0], hc: c.http}

	_, err := c.waitForCompletion(context.Background(), handle)
	if err == nil {
		t.Fatal("waitForCompletion() should fail for terminal failure state")
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("error = %q, should contain vendor message", err)
	}
}

func TestParseResults(t *testing.T) {
	calls := []batch.Call{
		{ID: "call-1", Transcript: "a"},
		{ID: "call-2", Transcript: "b"},
		{ID: "call-3", Transcript: "c"},
		{ID: "call-4", Transcript: "d"},
	}

	inline := func(text string) *generateResponse {
		return &generateResponse{Candidates: []candidate{
			{Content: content{Parts: []part{{Text: text}}}},
		}}
	}

	op := &operation{}
	op.Response.InlinedResponses.InlinedResponses = []inlinedResponse{
		{
			Metadata: map[string]string{"key": "call-1"},
			Response: inline(`{"customer_name":"John Doe","email":"john@example.com","phone":"555-1234"}`),
		},
		{
			Metadata: map[string]string{"key": "call-2"},
			Error:    &rpcStatus{Code: 8, Message: "quota exceeded"},
		},
		{
			Metadata: map[string]string{"key": "call-3"},
			Response: inline(`not json at all`),
		},
		{
			// Без metadata — идентификатор берётся по порядку входного списка.
			Response: inline(`{"customer_name":"Alice Brown","email":"alice@email.com","phone":"555-3456"}`),
		},
	}

	results := parseResults(op, calls, zap.NewNop().Sugar())

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].CallID != "call-1" || results[0].Data.Email != "john@example.com" {
		t.Errorf("results[0] = %+v, want call-1/john@example.com", results[0])
	}
	if results[1].CallID != "call-4" || results[1].Data.CustomerName != "Alice Brown" {
		t.Errorf("results[1] = %+v, want call-4/Alice Brown (order fallback)", results[1])
	}

	known := map[string]bool{"call-1": true, "call-2": true, "call-3": true, "call-4": true}
	for _, r := range results {
		if !known[r.CallID] {
			t.Errorf("result has unknown call ID %q", r.CallID)
		}
	}
}
