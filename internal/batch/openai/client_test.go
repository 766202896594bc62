package openai

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"BatchRace/internal/batch"
)

func TestBuildLines(t *testing.T) {
	calls := []batch.Call{
		{ID: "call-1", Transcript: "first transcript"},
		{ID: "call-2", Transcript: "second transcript"},
	}

	lines := buildLines("gpt-4o-mini", calls)

	if len(lines) != len(calls) {
		t.Fatalf("len(lines) = %d, want %d", len(lines), len(calls))
	}
	for i, l := range lines {
		if l.CustomID != calls[i].ID {
			t.Errorf("line %d: CustomID = %q, want %q", i, l.CustomID, calls[i].ID)
		}
		if l.Method != "POST" {
			t.Errorf("line %d: Method = %q, want POST", i, l.Method)
		}
		if l.URL != "/v1/chat/completions" {
			t.Errorf("line %d: URL = %q, want /v1/chat/completions", i, l.URL)
		}
		if l.Body.Model != "gpt-4o-mini" {
			t.Errorf("line %d: Model = %q, want gpt-4o-mini", i, l.Body.Model)
		}
		if l.Body.ResponseFormat.Type != "json_object" {
			t.Errorf("line %d: ResponseFormat = %q, want json_object", i, l.Body.ResponseFormat.Type)
		}
		if len(l.Body.Messages) != 1 || !strings.Contains(l.Body.Messages[0].Content, calls[i].Transcript) {
			t.Errorf("line %d: prompt should contain transcript %q", i, calls[i].Transcript)
		}
	}
}

func TestEncodeJSONL(t *testing.T) {
	lines := buildLines("gpt-4o-mini", batch.TestCalls)
	payload, err := encodeJSONL(lines)
	if err != nil {
		t.Fatalf("encodeJSONL() error = %v", err)
	}

	got := strings.Count(strings.TrimSpace(string(payload)), "\n") + 1
	if got != len(lines) {
		t.Errorf("JSONL line count = %d, want %d", got, len(lines))
	}
}

func TestParseOutput(t *testing.T) {
	output := strings.Join([]string{
		`{"custom_id":"call-1","response":{"body":{"choices":[{"message":{"content":"{\"customer_name\":\"John Doe\",\"email\":\"john@example.com\",\"phone\":\"555-1234\"}"}}]}}}`,
		`{this line is not valid json`,
		`{"custom_id":"call-3","response":{"body":{"choices":[{"message":{"content":"model returned plain text instead of json"}}]}}}`,
		`{"custom_id":"call-4","response":{"body":{"choices":[]}}}`,
		``,
		`{"custom_id":"call-5","response":{"body":{"choices":[{"message":{"content":"{\"customer_name\":\"Charlie Davis\",\"email\":\"charlie@mail.com\",\"phone\":\"555-7890\"}"}}]}}}`,
	}, "\n")

	results, err := parseOutput(strings.NewReader(output), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("parseOutput() error = %v", err)
	}

	// Кривые строки пропускаются, остальные разбираются без потерь.
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].CallID != "call-1" || results[0].Data.CustomerName != "John Doe" {
		t.Errorf("results[0] = %+v, want call-1/John Doe", results[0])
	}
	if results[1].CallID != "call-5" || results[1].Data.Phone != "555-7890" {
		t.Errorf("results[1] = %+v, want call-5/555-7890", results[1])
	}

	// Все идентификаторы в результатах принадлежат входному списку.
	known := make(map[string]bool)
	for _, call := range batch.TestCalls {
		known[call.ID] = true
	}
	for _, r := range results {
		if !known[r.CallID] {
			t.Errorf("result has unknown call ID %q", r.CallID)
		}
	}
}
