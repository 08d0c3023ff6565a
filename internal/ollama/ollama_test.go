// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://ollama:11434/"})
	cfg := c.Config()

	if cfg.BaseURL != "http://ollama:11434" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.ChatModel == "" || cfg.EmbedModel == "" {
		t.Errorf("models not defaulted: %+v", cfg)
	}
}

func TestNewClientWithConfig_DoesNotMutateInput(t *testing.T) {
	in := &ClientConfig{}
	NewClientWithConfig(in)
	if in.BaseURL != "" {
		t.Error("NewClientWithConfig modified its argument")
	}
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestCompleteJSON(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Message: Message{Role: "assistant", Content: `{"agent":"projects-agent"}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, ChatModel: "router-model"})
	out, err := c.CompleteJSON(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if out != `{"agent":"projects-agent"}` {
		t.Errorf("CompleteJSON() = %q", out)
	}
	if got.Format != "json" || got.Stream {
		t.Errorf("request format=%q stream=%v, want json/false", got.Format, got.Stream)
	}
	if got.Model != "router-model" {
		t.Errorf("request model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user prompt" {
		t.Errorf("request messages = %+v", got.Messages)
	}
}

func TestCompleteJSON_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{Done: true})
	}))
	defer srv.Close()

	_, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).CompleteJSON(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error for empty completion")
	}
}

func TestCompleteJSON_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(OllamaError{Error: "out of memory"})
	}))
	defer srv.Close()

	_, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).CompleteJSON(context.Background(), "s", "u")
	if err == nil || err.Error() != "out of memory" {
		t.Errorf("error = %v, want server message", err)
	}
}

func TestCompleteJSON_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).CompleteJSON(context.Background(), "s", "u")
	if !IsModelNotFound(err) {
		t.Errorf("IsModelNotFound(%v) = false", err)
	}
}

func TestCompleteJSON_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClientWithConfig(&ClientConfig{BaseURL: url}).CompleteJSON(context.Background(), "s", "u")
	if !IsNotRunning(err) {
		t.Errorf("IsNotRunning(%v) = false", err)
	}
}

// =============================================================================
// EMBEDDING TESTS
// =============================================================================

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req EmbeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "embed-model" || req.Prompt != "proposta" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float64{0.5, -0.25, 1}})
	}))
	defer srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, EmbedModel: "embed-model"})
	vec, err := c.Embed(context.Background(), "proposta")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	want := []float32{0.5, -0.25, 1}
	if len(vec) != len(want) {
		t.Fatalf("len = %d, want %d", len(vec), len(want))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{})
	}))
	defer srv.Close()

	if _, err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	if err := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL}).CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() = %v", err)
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessages(t *testing.T) {
	if m := NewUserMessage("Hello"); m.Role != "user" || m.Content != "Hello" {
		t.Errorf("NewUserMessage = %+v", m)
	}
	if m := NewSystemMessage("Route"); m.Role != "system" || m.Content != "Route" {
		t.Errorf("NewSystemMessage = %+v", m)
	}
}
