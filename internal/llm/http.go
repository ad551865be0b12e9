package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
)

const defaultMaxTokens = 1024

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func retryOptions(cfg Config) common.RetryOptions {
	opts := common.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	return opts
}

// postJSON sends payload and returns the raw response body. Rate limits,
// server errors and transport failures come back retryable; every other
// failure is permanent.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.Permanent(fmt.Errorf("request failed: %w", err))
		}
		return nil, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr := &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(respBody)}
		return nil, &common.RetryableError{Err: errors.Join(common.ErrRateLimit, apiErr), Retryable: true}
	case resp.StatusCode >= http.StatusInternalServerError:
		apiErr := &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(respBody)}
		return nil, &common.RetryableError{Err: apiErr, Retryable: true}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, common.Permanent(&APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	return respBody, nil
}
