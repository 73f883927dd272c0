// Package notifier delivers settlement events to users. Delivery is
// best-effort; the outbox worker retries failed sends.
package notifier

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the delivery sink for outbox notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload []byte) error
}

// LogNotifier writes notifications to the application log. Used in
// development and as a fallback when no broker is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, eventType string, payload []byte) error {
	zap.L().Info("notification",
		zap.String("user_id", userID.String()),
		zap.String("event_type", eventType),
		zap.ByteString("payload", payload))
	return nil
}
