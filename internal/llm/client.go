// Package llm provides the client for the external completion service.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/config"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// ErrBlocked is returned when the service refuses a prompt via its content
// filter. Callers treat it as a soft failure.
var ErrBlocked = errors.New("completion blocked by content filter")

// ErrNoAPIKeys is returned when no API keys are configured.
var ErrNoAPIKeys = errors.New("no completion API keys configured")

// Options controls a single completion request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	logger     *observability.Logger
	baseURL    string
	model      string
	apiKeys    []string
	counter    atomic.Uint64
	httpClient *http.Client
}

// message is a chat message in the wire format.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the API request structure.
type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response is the API response structure.
type response struct {
	ID      string   `json:"id"`
	Choices []choice `json:"choices"`
}

// choice is a single completion choice.
type choice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// NewClient creates a completion client from config. Multiple API keys are
// rotated round-robin across requests.
func NewClient(logger *observability.Logger, cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		logger:     logger,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		apiKeys:    cfg.APIKeys,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends a system and user prompt and returns the completion text.
// A content-filter refusal surfaces as ErrBlocked.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	key, err := c.nextKey()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(request{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}

	first := parsed.Choices[0]
	if first.FinishReason == "content_filter" {
		return "", ErrBlocked
	}

	c.logger.Debug().
		Str("model", c.model).
		Dur("latency", time.Since(start)).
		Int("chars", len(first.Message.Content)).
		Msg("Completion received")

	return first.Message.Content, nil
}

// nextKey returns the next API key in round-robin order.
func (c *Client) nextKey() (string, error) {
	if len(c.apiKeys) == 0 {
		return "", ErrNoAPIKeys
	}
	n := c.counter.Add(1) - 1
	return c.apiKeys[n%uint64(len(c.apiKeys))], nil
}
