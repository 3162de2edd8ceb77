package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notifier delivers a message to a user out of band. Delivery is
// fire-and-forget: callers log failures and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// LogNotifier writes notifications to the log. Stands in for a real
// delivery channel (email, push) in development.
type LogNotifier struct {
	Log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, message string) error {
	n.Log.Info("notify", "user_id", userID, "message", message)
	return nil
}
