package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.IsType(t, &LogNotifier{}, New(""))
	assert.IsType(t, &WebhookNotifier{}, New("http://localhost/hook"))
}

func TestLogNotifier_Send(t *testing.T) {
	n := NewLogNotifier()

	err := n.Send(context.Background(), Notification{
		Subject: "Test Subject",
		Body:    "Test body",
	})

	// Only logs, should not error
	assert.NoError(t, err)
}

func TestWebhookNotifier_Send(t *testing.T) {
	t.Run("posts json payload", func(t *testing.T) {
		var got webhookPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		n := NewWebhookNotifier(WebhookConfig{URL: server.URL})
		err := n.Send(context.Background(), Notification{
			Subject: "post 7 failed",
			Body:    "rate limited",
			PostID:  7,
		})
		require.NoError(t, err)

		assert.Equal(t, "post 7 failed", got.Subject)
		assert.Equal(t, "rate limited", got.Body)
		assert.Equal(t, int64(7), got.PostID)
		assert.NotEmpty(t, got.SentAt)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer server.Close()

		n := NewWebhookNotifier(WebhookConfig{URL: server.URL})
		err := n.Send(context.Background(), Notification{Subject: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502")
		assert.Contains(t, err.Error(), "nope")
	})
}
