package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/gastos-must-flow/internal/common"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	anthropicVersion      = "2023-06-01"
)

// anthropicClient implements Client for the Anthropic Messages API.
type anthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	retry       common.RetryOptions
	temperature float64
	maxTokens   int
}

func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}

	return &anthropicClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		retry:       retryOptions(cfg),
		httpClient:  newHTTPClient(cfg.Timeout),
	}, nil
}

type anthropicBlock struct {
	Source *anthropicSource `json:"source,omitempty"`
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a text-only prompt.
func (c *anthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, []anthropicBlock{{Type: "text", Text: prompt}})
}

// CompleteWithImage sends the image as a base64 block followed by the prompt.
func (c *anthropicClient) CompleteWithImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	return c.send(ctx, []anthropicBlock{
		{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: mimeType,
				Data:      base64.StdEncoding.EncodeToString(image),
			},
		},
		{Type: "text", Text: prompt},
	})
}

func (c *anthropicClient) send(ctx context.Context, content []anthropicBlock) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var text string
	err := common.WithRetry(ctx, func() error {
		body, err := postJSON(ctx, c.httpClient, "anthropic", c.baseURL+"/v1/messages", headers, requestBody)
		if err != nil {
			return err
		}

		var response anthropicResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return common.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		for _, block := range response.Content {
			if block.Type == "text" {
				text = block.Text
				return nil
			}
		}
		return common.Permanent(fmt.Errorf("no text content in response"))
	}, c.retry)
	if err != nil {
		return "", err
	}
	return text, nil
}
