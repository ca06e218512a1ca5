package notification

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/carewellhq/notify-engine/internal/model"
	"github.com/carewellhq/notify-engine/internal/repository"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

var columnNames = []string{
	"id", "recipient_id", "recipient_name", "recipient_email", "recipient_phone",
	"user_id", "type", "channel", "subject", "message", "status",
	"scheduled_time", "sent_time", "error_message", "retry_count", "created_at", "updated_at",
}

func notificationRow(id uuid.UUID, status model.Status, retryCount int) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, uuid.New(), "Jordan Doe", "jordan@example.com", "+15550100200",
		uuid.New(), string(model.TypeAppointmentReminder), string(model.ChannelEmail),
		"Appointment Reminder", "See you tomorrow.", string(status),
		nil, nil, "", retryCount, now, now,
	}
}

func TestRepository_Create(t *testing.T) {
	repo, mock := setupMockDB(t)

	notificationID := uuid.New()
	n := model.Notification{
		RecipientID:    uuid.New(),
		RecipientName:  "Jordan Doe",
		RecipientEmail: "jordan@example.com",
		RecipientPhone: "+15550100200",
		UserID:         uuid.New(),
		Type:           model.TypeAppointmentConfirmation,
		Channel:        model.ChannelBoth,
		Subject:        "Appointment Confirmed",
		Message:        "Your appointment has been confirmed.",
		Status:         model.StatusPending,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO notifications (
		    recipient_id, recipient_name, recipient_email, recipient_phone,
		    user_id, type, channel, subject, message, status, scheduled_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id;
    `)).
		WithArgs(
			n.RecipientID, n.RecipientName, n.RecipientEmail, n.RecipientPhone,
			n.UserID, n.Type, n.Channel, n.Subject, n.Message, n.Status, nil,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(notificationID))

	id, err := repo.Create(context.Background(), n)
	assert.NoError(t, err)
	assert.Equal(t, notificationID, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	query := `
		SELECT` + columns + `
		FROM notifications
		WHERE id = $1;
    `

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(notificationRow(id, model.StatusScheduled, 0)...))

	n, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, n.ID)
	assert.Equal(t, model.StatusScheduled, n.Status)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkSent(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	sentAt := time.Now()
	query := `
		UPDATE notifications
		SET status = $1, sent_time = $2, error_message = '', updated_at = now()
		WHERE id = $3 AND status <> $4;
    `

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(model.StatusSent, sentAt, id, model.StatusSent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), id, sentAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(model.StatusSent, sentAt, id, model.StatusSent).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkSent(context.Background(), id, sentAt)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkFailed(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	query := `
		UPDATE notifications
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = now()
		WHERE id = $3 AND status <> $4;
    `

	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(model.StatusFailed, "smtp down", id, model.StatusSent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), id, "smtp down")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Cancel(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	cancelQuery := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status IN ($3, $4, $5);
    `
	getQuery := `
		SELECT` + columns + `
		FROM notifications
		WHERE id = $1;
    `

	mock.ExpectExec(regexp.QuoteMeta(cancelQuery)).
		WithArgs(model.StatusCancelled, id, model.StatusPending, model.StatusScheduled, model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Cancel(context.Background(), id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// No rows updated and the notification is sent: cancel is rejected.
	mock.ExpectExec(regexp.QuoteMeta(cancelQuery)).
		WithArgs(model.StatusCancelled, id, model.StatusPending, model.StatusScheduled, model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(notificationRow(id, model.StatusSent, 0)...))

	err = repo.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrAlreadySent)
	assert.NoError(t, mock.ExpectationsWereMet())

	// No rows updated and the notification is already cancelled: no-op.
	mock.ExpectExec(regexp.QuoteMeta(cancelQuery)).
		WithArgs(model.StatusCancelled, id, model.StatusPending, model.StatusScheduled, model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(notificationRow(id, model.StatusCancelled, 0)...))

	err = repo.Cancel(context.Background(), id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Unknown id.
	mock.ExpectExec(regexp.QuoteMeta(cancelQuery)).
		WithArgs(model.StatusCancelled, id, model.StatusPending, model.StatusScheduled, model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	err = repo.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ClaimDueScheduled(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now()
	id := uuid.New()
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE status = $2 AND scheduled_time <= $3
		RETURNING` + columns + `;
    `

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(model.StatusPending, model.StatusScheduled, now).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(notificationRow(id, model.StatusPending, 0)...))

	claimed, err := repo.ClaimDueScheduled(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)
	assert.Equal(t, model.StatusPending, claimed[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ClaimRetryable(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE status = $2 AND retry_count < $3
		RETURNING` + columns + `;
    `

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(model.StatusPending, model.StatusFailed, 3).
		WillReturnRows(sqlmock.NewRows(columnNames).AddRow(notificationRow(id, model.StatusPending, 2)...))

	claimed, err := repo.ClaimRetryable(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 2, claimed[0].RetryCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
