package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Ollama calls a local Ollama instance.
type Ollama struct {
	url    string
	model  string
	opts   Options
	client *http.Client
}

// NewOllama creates an Ollama client.
func NewOllama(url, model string, opts Options) *Ollama {
	opts = opts.withDefaults()
	return &Ollama{
		url:    url,
		model:  model,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Complete sends a prompt to Ollama's generate endpoint.
func (o *Ollama) Complete(ctx context.Context, prompt string) (*Response, error) {
	respBody, err := postJSON(ctx, o.client, o.url+"/api/generate", nil, map[string]any{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": o.opts.Temperature,
			"num_predict": o.opts.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama api: %w", err)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Response{
		Content:  result.Response,
		Provider: "ollama",
	}, nil
}
