package notify

import (
	"context"
	"log/slog"
)

// Notification represents a notification message.
type Notification struct {
	Subject string
	Body    string
	PostID  int64
}

// Notifier is the interface for sending notifications.
type Notifier interface {
	// Send sends a notification.
	Send(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the structured log. It is the
// fallback when no webhook is configured.
type LogNotifier struct{}

// NewLogNotifier creates a new log notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the notification at warn level.
func (l *LogNotifier) Send(ctx context.Context, notification Notification) error {
	slog.WarnContext(ctx, "notification",
		"subject", notification.Subject,
		"body", notification.Body,
		"post_id", notification.PostID,
	)
	return nil
}
