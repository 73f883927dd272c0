package service

import (
	"context"
	"fmt"

	"github.com/hanapgigs/escrow-engine/internal/notifier"
	"github.com/hanapgigs/escrow-engine/internal/observability"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"go.uber.org/zap"
)

// NotificationService drains the outbox: settlement transactions enqueue
// rows, this service delivers them through the configured sink.
type NotificationService struct {
	store       QueryStore
	sink        notifier.Notifier
	maxAttempts int32
}

func NewNotificationService(store QueryStore, sink notifier.Notifier, maxAttempts int32) *NotificationService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &NotificationService{
		store:       store,
		sink:        sink,
		maxAttempts: maxAttempts,
	}
}

// DispatchPending claims one batch under FOR UPDATE SKIP LOCKED and delivers
// it. A failed send bumps the attempt counter; the row stays pending until
// the attempt budget runs out.
func (s *NotificationService) DispatchPending(ctx context.Context, batchSize int32) (int, error) {
	delivered := 0
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		batch, err := q.GetPendingNotifications(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("claim notification batch: %w", err)
		}

		for _, n := range batch {
			if err := s.sink.Notify(ctx, n.UserID, n.EventType, n.Payload); err != nil {
				zap.L().Warn("notification delivery failed",
					zap.String("notification_id", n.ID.String()),
					zap.String("event_type", n.EventType),
					zap.Int32("attempts", n.Attempts+1),
					zap.Error(err))
				observability.IncrementNotificationDispatch("failed")
				if _, err := q.MarkNotificationFailed(ctx, repository.MarkNotificationFailedParams{
					ID:          n.ID,
					MaxAttempts: s.maxAttempts,
				}); err != nil {
					return fmt.Errorf("mark notification failed: %w", err)
				}
				continue
			}

			rows, err := q.MarkNotificationSent(ctx, n.ID)
			if err != nil {
				return fmt.Errorf("mark notification sent: %w", err)
			}
			if err := requireExactlyOne(rows, "mark notification sent"); err != nil {
				return err
			}
			observability.IncrementNotificationDispatch("sent")
			delivered++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return delivered, nil
}
