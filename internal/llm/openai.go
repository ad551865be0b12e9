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
	defaultOpenAIURL   = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o"
)

// openAIClient implements Client for the OpenAI chat completions API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	retry       common.RetryOptions
	temperature float64
	maxTokens   int
}

func newOpenAIClient(cfg Config) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}

	return &openAIClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		retry:       retryOptions(cfg),
		httpClient:  newHTTPClient(cfg.Timeout),
	}, nil
}

type openAIPart struct {
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends a text-only prompt.
func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, prompt)
}

// CompleteWithImage sends the image inline as a data URL.
func (c *openAIClient) CompleteWithImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return c.send(ctx, []openAIPart{
		{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}},
		{Type: "text", Text: prompt},
	})
}

func (c *openAIClient) send(ctx context.Context, content any) (string, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var text string
	err := common.WithRetry(ctx, func() error {
		body, err := postJSON(ctx, c.httpClient, "OpenAI", c.baseURL+"/v1/chat/completions", headers, requestBody)
		if err != nil {
			return err
		}

		var response openAIResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return common.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		if len(response.Choices) == 0 {
			return common.Permanent(fmt.Errorf("no completion choices returned"))
		}
		text = response.Choices[0].Message.Content
		return nil
	}, c.retry)
	if err != nil {
		return "", err
	}
	return text, nil
}
