package inmem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carewellhq/notify-engine/internal/model"
	"github.com/carewellhq/notify-engine/internal/repository"
)

func scheduled(at time.Time) model.Notification {
	return model.Notification{
		RecipientID:    uuid.New(),
		RecipientEmail: "patient@example.com",
		Type:           model.TypeAppointmentReminder,
		Channel:        model.ChannelEmail,
		Message:        "reminder",
		Status:         model.StatusScheduled,
		ScheduledTime:  &at,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, scheduled(time.Now().UTC()))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	n, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, n.Status)
	assert.False(t, n.CreatedAt.IsZero())

	_, err = store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
}

func TestStore_MarkSentClearsError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, scheduled(time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(ctx, id, "boom"))

	n, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	assert.Equal(t, "boom", n.ErrorMessage)

	sentAt := time.Now().UTC()
	require.NoError(t, store.MarkSent(ctx, id, sentAt))

	n, err = store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, n.Status)
	assert.Empty(t, n.ErrorMessage)
	require.NotNil(t, n.SentTime)
	assert.WithinDuration(t, sentAt, *n.SentTime, time.Second)
}

func TestStore_Cancel(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, scheduled(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, store.Cancel(ctx, id))
	require.NoError(t, store.Cancel(ctx, id), "second cancel is a no-op")

	n, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, n.Status)

	sentID, err := store.Create(ctx, scheduled(time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, store.MarkSent(ctx, sentID, time.Now().UTC()))
	assert.ErrorIs(t, store.Cancel(ctx, sentID), repository.ErrAlreadySent)

	assert.ErrorIs(t, store.Cancel(ctx, uuid.New()), repository.ErrNotificationNotFound)
}

func TestStore_ClaimDueScheduled(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	dueID, err := store.Create(ctx, scheduled(now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = store.Create(ctx, scheduled(now.Add(time.Hour)))
	require.NoError(t, err)

	claimed, err := store.ClaimDueScheduled(ctx, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, dueID, claimed[0].ID)
	assert.Equal(t, model.StatusPending, claimed[0].Status)

	// Already claimed rows are not handed out again.
	claimed, err = store.ClaimDueScheduled(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestStore_ClaimRetryable(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id, err := store.Create(ctx, scheduled(time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(ctx, id, "boom"))
	require.NoError(t, store.MarkFailed(ctx, id, "boom"))
	require.NoError(t, store.MarkFailed(ctx, id, "boom"))

	// retry_count is now 3: excluded at maxRetries 3, included at 4.
	claimed, err := store.ClaimRetryable(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = store.ClaimRetryable(ctx, 4)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, model.StatusPending, claimed[0].Status)
}

func TestStore_ConcurrentClaims_AreDisjoint(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	const due = 50
	for i := 0; i < due; i++ {
		_, err := store.Create(ctx, scheduled(now.Add(-time.Minute)))
		require.NoError(t, err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
		seen  = make(map[uuid.UUID]int)
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimDueScheduled(ctx, now)
			assert.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()
			total += len(claimed)
			for _, n := range claimed {
				seen[n.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, due, total, "every due notification claimed exactly once")
	for id, count := range seen {
		assert.Equalf(t, 1, count, "notification %s claimed %d times", id, count)
	}
}
