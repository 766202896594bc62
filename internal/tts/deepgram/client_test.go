package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"BatchRace/internal/config"
)

func newTestClient(endpoint string) *Client {
	c := New(config.DeepgramTTSConfig{APIKey: "test-key", Model: "aura-2-arcas-en"}, zap.NewNop().Sugar())
	if endpoint != "" {
		c.endpoint = endpoint
	}
	return c
}

func TestReady(t *testing.T) {
	c := New(config.DeepgramTTSConfig{}, zap.NewNop().Sugar())
	if err := c.Ready(); err == nil {
		t.Error("Ready() should fail with empty API key")
	}
	if err := newTestClient("").Ready(); err != nil {
		t.Errorf("Ready() error = %v, want nil", err)
	}
}

func TestSynthesize(t *testing.T) {
	audio := []byte("fake-mp3-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if got := r.URL.Query().Get("model"); got != "aura-2-arcas-en" {
			t.Errorf("model = %q, want aura-2-arcas-en", got)
		}
		if got := r.URL.Query().Get("encoding"); got != "mp3" {
			t.Errorf("encoding = %q, want mp3", got)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q, want Token test-key", got)
		}
		var payload speakRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Text != "hello there" {
			t.Errorf("text = %q, want hello there", payload.Text)
		}
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(res.Audio) != string(audio) {
		t.Errorf("Audio = %q, want %q", res.Audio, audio)
	}
	if res.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", res.Chunks)
	}
	if res.Format != "mp3" {
		t.Errorf("Format = %q, want mp3", res.Format)
	}
}

func TestSynthesize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"err_msg":"invalid credentials"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("Synthesize() should fail on non-200 response")
	}
	if !strings.Contains(err.Error(), "status=401") {
		t.Errorf("error = %q, should contain status code", err)
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("error = %q, should contain response body", err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	_, err := newTestClient("").Synthesize(context.Background(), "   ")
	if err == nil {
		t.Error("Synthesize() should reject blank text")
	}
}
