package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/carewellhq/notify-engine/internal/model"
	"github.com/carewellhq/notify-engine/internal/repository"
)

const columns = `
		id, recipient_id, recipient_name, recipient_email, recipient_phone,
		user_id, type, channel, subject, message, status,
		scheduled_time, sent_time, error_message, retry_count, created_at, updated_at`

// Repository provides methods to interact with the notifications table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification and returns its generated ID.
func (r *Repository) Create(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
		    recipient_id, recipient_name, recipient_email, recipient_phone,
		    user_id, type, channel, subject, message, status, scheduled_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id;
    `

	err := r.db.QueryRowContext(
		ctx, query,
		n.RecipientID, n.RecipientName, n.RecipientEmail, n.RecipientPhone,
		n.UserID, n.Type, n.Channel, n.Subject, n.Message, n.Status, n.ScheduledTime,
	).Scan(&n.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n.ID, nil
}

// GetByID retrieves a single notification by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT` + columns + `
		FROM notifications
		WHERE id = $1;
    `

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, repository.ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// ListByRecipient retrieves all notifications addressed to a recipient,
// newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	query := `
		SELECT` + columns + `
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC;
    `

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// MarkSent records a successful delivery. The guard against already-sent rows
// keeps a duplicate attempt from moving sent_time.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_time = $2, error_message = '', updated_at = now()
		WHERE id = $3 AND status <> $4;
    `

	res, err := r.db.ExecContext(ctx, query, model.StatusSent, sentAt, id, model.StatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return repository.ErrNotificationNotFound
	}

	return nil
}

// MarkFailed records a failed delivery attempt and increments the retry count.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE notifications
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = now()
		WHERE id = $3 AND status <> $4;
    `

	res, err := r.db.ExecContext(ctx, query, model.StatusFailed, reason, id, model.StatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return repository.ErrNotificationNotFound
	}

	return nil
}

// Cancel transitions a non-terminal notification to cancelled. Cancelling an
// already cancelled notification is a no-op; cancelling a sent one is an error.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status IN ($3, $4, $5);
    `

	res, err := r.db.ExecContext(
		ctx, query, model.StatusCancelled, id,
		model.StatusPending, model.StatusScheduled, model.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows > 0 {
		return nil
	}

	n, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if n.Status == model.StatusSent {
		return repository.ErrAlreadySent
	}

	// Already cancelled: idempotent no-op.
	return nil
}

// ClaimDueScheduled atomically promotes every scheduled notification whose
// time has come to pending and returns the claimed rows. The status filter in
// the UPDATE guarantees a row is handed to exactly one caller.
func (r *Repository) ClaimDueScheduled(ctx context.Context, now time.Time) ([]model.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE status = $2 AND scheduled_time <= $3
		RETURNING` + columns + `;
    `

	rows, err := r.db.QueryContext(ctx, query, model.StatusPending, model.StatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// ClaimRetryable atomically moves every failed notification that still has
// retry budget back to pending and returns the claimed rows.
func (r *Repository) ClaimRetryable(ctx context.Context, maxRetries int) ([]model.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE status = $2 AND retry_count < $3
		RETURNING` + columns + `;
    `

	rows, err := r.db.QueryContext(ctx, query, model.StatusPending, model.StatusFailed, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to claim retryable notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(
		&n.ID, &n.RecipientID, &n.RecipientName, &n.RecipientEmail, &n.RecipientPhone,
		&n.UserID, &n.Type, &n.Channel, &n.Subject, &n.Message, &n.Status,
		&n.ScheduledTime, &n.SentTime, &n.ErrorMessage, &n.RetryCount, &n.CreatedAt, &n.UpdatedAt,
	)

	return n, err
}

func collectNotifications(rows *sql.Rows) ([]model.Notification, error) {
	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
