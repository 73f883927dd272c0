package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes notifications on a per-user Redis channel so
// connected gateways can push them to clients.
type RedisNotifier struct {
	client        *redis.Client
	channelPrefix string
}

func NewRedisNotifier(client *redis.Client, channelPrefix string) *RedisNotifier {
	if channelPrefix == "" {
		channelPrefix = "notifications"
	}
	return &RedisNotifier{client: client, channelPrefix: channelPrefix}
}

type envelope struct {
	UserID    string          `json:"user_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload []byte) error {
	msg, err := json.Marshal(envelope{
		UserID:    userID.String(),
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}

	channel := fmt.Sprintf("%s:%s", n.channelPrefix, userID)
	if err := n.client.Publish(ctx, channel, msg).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
