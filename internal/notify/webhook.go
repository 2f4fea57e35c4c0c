package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier posts notifications as JSON to a URL.
type WebhookNotifier struct {
	httpClient *http.Client
	url        string
}

// WebhookConfig holds configuration for webhook notifications.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration // defaults to 10s
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
	}
}

type webhookPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PostID  int64  `json:"post_id,omitempty"`
	SentAt  string `json:"sent_at"`
}

// Send delivers the notification. Any non-2xx response is an error.
func (w *WebhookNotifier) Send(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(webhookPayload{
		Subject: notification.Subject,
		Body:    notification.Body,
		PostID:  notification.PostID,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send notification: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// New returns a webhook notifier when url is set and a log notifier otherwise.
func New(url string) Notifier {
	if url == "" {
		return NewLogNotifier()
	}
	return NewWebhookNotifier(WebhookConfig{URL: url})
}
