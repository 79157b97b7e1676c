package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/antoniostano/voicecaller/internal/generation"
	"github.com/antoniostano/voicecaller/internal/reliability"
)

type wireRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	PresencePenalty  float64 `json:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
}

func TestOpenAIClientGenerate(t *testing.T) {
	var got wireRequest
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"Claro, con gusto."},"finish_reason":"stop"}]}`))
	}))
	defer ts.Close()

	c := NewOpenAIClient("sk-test", ts.URL, "gpt-test")
	text, err := c.Generate(context.Background(), generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: "sys"},
			{Role: generation.RoleUser, Content: "hola"},
		},
		Temperature:      0.7,
		MaxTokens:        60,
		PresencePenalty:  0.7,
		FrequencyPenalty: 0.8,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Claro, con gusto." {
		t.Fatalf("text = %q", text)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 || got.Messages[1].Role != "user" {
		t.Fatalf("request = %+v", got)
	}
	if got.Temperature != 0.7 || got.MaxTokens != 60 || got.PresencePenalty != 0.7 || got.FrequencyPenalty != 0.8 {
		t.Fatalf("request options = %+v", got)
	}
}

func TestOpenAIClientStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer ts.Close()

	_, err := NewOpenAIClient("k", ts.URL, "").Generate(context.Background(), generation.Request{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Generate() error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || !reliability.IsRetryableHTTPStatus(apiErr.StatusCode) || apiErr.Body != "overloaded" {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestOpenAIClientHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewOpenAIClient("k", ts.URL, "").Generate(ctx, generation.Request{})
	if reliability.Classify(err) != reliability.StatusTimeout {
		t.Fatalf("Generate() error = %v, want timeout", err)
	}
}

func TestOpenAIClientNoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c2","object":"chat.completion","choices":[]}`))
	}))
	defer ts.Close()

	if _, err := NewOpenAIClient("k", ts.URL, "").Generate(context.Background(), generation.Request{}); err == nil {
		t.Fatalf("Generate() error = nil, want error for empty choices")
	}
}
