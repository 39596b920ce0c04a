// Package llm provides the chat-completion client used for structured
// question parsing. Only an OpenAI-compatible completions endpoint is
// required.
package llm

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

// Completer produces one completion for a system+user prompt pair.
// The resolver depends on this interface, not the HTTP client.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Message is one chat turn in the completions request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls an OpenAI-compatible chat-completions API. Parsing runs
// at temperature 0 so the same question yields the same structured query.
type Client struct {
	http      *resty.Client
	model     string
	maxTokens int
}

// Config holds the endpoint settings for the completions API.
type Config struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		http.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: http, model: cfg.Model, maxTokens: cfg.MaxTokens}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body := completionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   c.maxTokens,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var decoded completionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&decoded).
		Post("/chat/completions")
	if err != nil {
		return "", qaerr.Wrap(qaerr.CodeUnavailable, "completion request failed", err)
	}

	switch code := resp.StatusCode(); {
	case code == 401 || code == 403:
		return "", qaerr.New(qaerr.CodeAuth, "completion endpoint rejected credentials")
	case code == 429:
		return "", qaerr.New(qaerr.CodeRateLimited, "completion endpoint rate limited request")
	case code >= 500:
		return "", qaerr.Newf(qaerr.CodeUnavailable, "completion endpoint unavailable (status %d)", code)
	case code < 200 || code >= 300:
		return "", qaerr.Newf(qaerr.CodeUnavailable, "completion endpoint returned status %d", code)
	}

	if decoded.Error != nil {
		return "", qaerr.Newf(qaerr.CodeUnavailable, "completion error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", qaerr.New(qaerr.CodeUnavailable, "completion returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
