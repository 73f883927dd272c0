package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/models"
)

// CreateNotification enqueues an outbox row. The settlement transaction
// writes these so delivery survives a crash between commit and dispatch.
func (q *Queries) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (id, user_id, event_type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW()) RETURNING created_at, updated_at`
	return q.db.QueryRow(ctx, query,
		n.ID, n.UserID, n.EventType, n.Payload, n.Status).Scan(&n.CreatedAt, &n.UpdatedAt)
}

// GetPendingNotifications claims a batch of undelivered notifications.
// SKIP LOCKED keeps concurrent dispatcher instances from double-sending.
func (q *Queries) GetPendingNotifications(ctx context.Context, limit int32) ([]models.Notification, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, event_type, payload, status, attempts, created_at, updated_at
		 FROM notifications
		 WHERE status = $1
		 ORDER BY created_at
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		domain.NotificationStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventType, &n.Payload, &n.Status, &n.Attempts, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *Queries) MarkNotificationSent(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE notifications SET status = $1, updated_at = NOW() WHERE id = $2`,
		domain.NotificationStatusSent, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type MarkNotificationFailedParams struct {
	ID          uuid.UUID
	MaxAttempts int32
}

// MarkNotificationFailed bumps the attempt counter and parks the row as
// failed once MaxAttempts is reached. Delivery is best-effort; failures
// never propagate back into settlement.
func (q *Queries) MarkNotificationFailed(ctx context.Context, arg MarkNotificationFailedParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE notifications
		 SET attempts = attempts + 1,
		     status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE $3 END,
		     updated_at = NOW()
		 WHERE id = $4`,
		arg.MaxAttempts, domain.NotificationStatusFailed, domain.NotificationStatusPending, arg.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
