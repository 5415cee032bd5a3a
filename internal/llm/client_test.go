package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lifestream/lifestream/internal/config"
)

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "claude-cli"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewClientAnthropicRequiresKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	if err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestAnthropicComplete(t *testing.T) {
	var gotBody map[string]any
	var gotKey, gotVersion string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "three insights follow"}},
			"usage":   map[string]int{"input_tokens": 120, "output_tokens": 30},
		})
	}))
	defer ts.Close()

	c := NewAnthropic("key-1", "claude-haiku-4-5-20251001", Options{MaxTokens: 512, Temperature: 0.3})
	c.baseURL = ts.URL

	resp, err := c.Complete(context.Background(), "summarize my week")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "three insights follow" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Provider != "anthropic" || resp.TokensUsed != 150 {
		t.Errorf("Provider/TokensUsed = %q/%d", resp.Provider, resp.TokensUsed)
	}
	if gotKey != "key-1" || gotVersion != "2023-06-01" {
		t.Errorf("headers = %q / %q", gotKey, gotVersion)
	}
	if gotBody["max_tokens"] != float64(512) {
		t.Errorf("max_tokens = %v, want configured 512", gotBody["max_tokens"])
	}
	if gotBody["model"] != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestAnthropicCompleteErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewAnthropic("key-1", "claude-haiku-4-5-20251001", Options{})
	c.baseURL = ts.URL

	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestOllamaComplete(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "you were at home"})
	}))
	defer ts.Close()

	c := NewOllama(ts.URL, "llama3.2", Options{MaxTokens: 256})
	resp, err := c.Complete(context.Background(), "where was I?")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "you were at home" || resp.Provider != "ollama" {
		t.Errorf("resp = %+v", resp)
	}
	if gotPath != "/api/generate" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["stream"] != false {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
	opts, _ := gotBody["options"].(map[string]any)
	if opts["num_predict"] != float64(256) {
		t.Errorf("num_predict = %v, want configured 256", opts["num_predict"])
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.Timeout != 120*time.Second || o.MaxTokens != 2048 || o.Temperature != 0.3 {
		t.Errorf("defaults = %+v", o)
	}

	o = Options{Timeout: time.Second, MaxTokens: 64, Temperature: 0.9}.withDefaults()
	if o.Timeout != time.Second || o.MaxTokens != 64 || o.Temperature != 0.9 {
		t.Errorf("explicit options overridden: %+v", o)
	}
}
