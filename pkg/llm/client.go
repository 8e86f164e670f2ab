// Package llm provides HTTP clients for the generative collaborators the
// pipeline depends on: text completion and embedding. Both speak the
// OpenAI-compatible wire format so any conforming endpoint can back them.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lexinelai/lexinel-oss/internal/governance"
	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	defaultEmbedModel = "text-embedding-3-small"
	defaultTimeout    = 30 * time.Second
)

// Config holds client construction options.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	EmbedModel string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client implements domain.Completer and domain.Embedder against an
// OpenAI-compatible endpoint. Calls run under a retry policy and a circuit
// breaker; every failure surfaces as a domain.CollaboratorError.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	retry      *governance.RetryPolicy
	breaker    *governance.CircuitBreaker
	logger     *slog.Logger
}

// NewClient builds a client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:      governance.NewRetryPolicy(governance.DefaultRetryConfig()),
		breaker:    governance.NewCircuitBreaker(governance.DefaultCircuitBreakerConfig()),
		logger:     cfg.Logger,
	}
}

// Complete sends prompt (with an optional grounding context block) to the
// chat completions endpoint and returns the raw text of the first choice.
func (c *Client) Complete(ctx context.Context, prompt, contextBlock string) (string, error) {
	messages := []map[string]string{}
	if contextBlock != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": "Use the following compliance context when answering:\n" + contextBlock,
		})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.0,
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := c.post(ctx, "/chat/completions", payload, &completion); err != nil {
		return "", domain.NewCollaboratorError("llm", err)
	}
	if len(completion.Choices) == 0 {
		return "", domain.NewCollaboratorError("llm", fmt.Errorf("no completion choices returned"))
	}
	return completion.Choices[0].Message.Content, nil
}

// Embed converts text into an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	payload := map[string]any{
		"model": c.embedModel,
		"input": text,
	}

	var response struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}

	if err := c.post(ctx, "/embeddings", payload, &response); err != nil {
		return nil, domain.NewCollaboratorError("embedder", err)
	}
	if len(response.Data) == 0 {
		return nil, domain.NewCollaboratorError("embedder", fmt.Errorf("no embedding returned"))
	}
	return response.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return c.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		_, err := c.retry.ExecuteWithRetry(ctx, func() (int, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
			if err != nil {
				return 0, err
			}
			req.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return 0, err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return resp.StatusCode, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, string(snippet))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, fmt.Errorf("decode response: %w", err)
			}
			return resp.StatusCode, nil
		})
		return err
	})
}

// StripFences removes markdown code fences that models sometimes wrap
// around JSON answers despite instructions not to.
func StripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
