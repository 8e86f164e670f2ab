// Package notify delivers alert events to downstream monitoring systems.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

const defaultTimeout = 3 * time.Second

// Webhook posts alert events as JSON to a SIEM-style HTTP endpoint.
// It implements domain.Notifier.
type Webhook struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// WebhookOption customizes a Webhook.
type WebhookOption func(*Webhook)

// WithAuthToken sets a bearer token sent on every delivery.
func WithAuthToken(token string) WebhookOption {
	return func(w *Webhook) { w.authToken = token }
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.httpClient.Timeout = d }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = logger }
}

// NewWebhook creates a webhook notifier for endpoint.
func NewWebhook(endpoint string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		endpoint:   endpoint,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify posts the event and reports whether it was delivered. A non-2xx
// response or transport failure returns delivered=false with a
// domain.CollaboratorError.
func (w *Webhook) Notify(ctx context.Context, event domain.AlertEvent) (bool, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return false, domain.NewCollaboratorError("siem", fmt.Errorf("encode event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, domain.NewCollaboratorError("siem", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.authToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, domain.NewCollaboratorError("siem", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			w.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, domain.NewCollaboratorError("siem", fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}

	w.logger.Debug("alert delivered", "endpoint", w.endpoint, "agent_id", event.AgentID)
	return true, nil
}
