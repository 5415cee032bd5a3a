package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const anthropicAPI = "https://api.anthropic.com/v1/messages"

// Anthropic calls the Anthropic Messages API directly.
type Anthropic struct {
	apiKey  string
	model   string
	opts    Options
	baseURL string
	client  *http.Client
}

// NewAnthropic creates an Anthropic API client.
func NewAnthropic(apiKey, model string, opts Options) *Anthropic {
	opts = opts.withDefaults()
	return &Anthropic{
		apiKey:  apiKey,
		model:   model,
		opts:    opts,
		baseURL: anthropicAPI,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

// Complete sends a prompt to the Anthropic API.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (*Response, error) {
	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", "2023-06-01")

	respBody, err := postJSON(ctx, a.client, a.baseURL, header, map[string]any{
		"model":       a.model,
		"max_tokens":  a.opts.MaxTokens,
		"temperature": a.opts.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic api: %w", err)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	text := ""
	if len(result.Content) > 0 {
		text = result.Content[0].Text
	}

	return &Response{
		Content:    text,
		Provider:   "anthropic",
		TokensUsed: result.Usage.InputTokens + result.Usage.OutputTokens,
	}, nil
}
