// Package inmem provides an in-memory notification store with the same
// atomic claim semantics as the Postgres repository. It backs the engine and
// scheduler tests.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carewellhq/notify-engine/internal/model"
	"github.com/carewellhq/notify-engine/internal/repository"
)

// Store keeps notifications in a mutex-guarded map.
type Store struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{notifications: make(map[uuid.UUID]*model.Notification)}
}

// Create assigns a fresh ID and stores a copy of the notification.
func (s *Store) Create(_ context.Context, n model.Notification) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = uuid.New()
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	s.notifications[n.ID] = &n

	return n.ID, nil
}

// GetByID returns a copy of the stored notification.
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return model.Notification{}, repository.ErrNotificationNotFound
	}

	return *n, nil
}

// ListByRecipient returns copies of all notifications for a recipient,
// newest first.
func (s *Store) ListByRecipient(_ context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

// MarkSent records a successful delivery.
func (s *Store) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.Status == model.StatusSent {
		return repository.ErrNotificationNotFound
	}

	n.Status = model.StatusSent
	n.SentTime = &sentAt
	n.ErrorMessage = ""
	n.UpdatedAt = time.Now().UTC()

	return nil
}

// MarkFailed records a failed delivery attempt.
func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.Status == model.StatusSent {
		return repository.ErrNotificationNotFound
	}

	n.Status = model.StatusFailed
	n.ErrorMessage = reason
	n.RetryCount++
	n.UpdatedAt = time.Now().UTC()

	return nil
}

// Cancel transitions a non-terminal notification to cancelled. A second
// cancel is a no-op; cancelling a sent notification is an error.
func (s *Store) Cancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return repository.ErrNotificationNotFound
	}

	switch n.Status {
	case model.StatusSent:
		return repository.ErrAlreadySent
	case model.StatusCancelled:
		return nil
	}

	n.Status = model.StatusCancelled
	n.UpdatedAt = time.Now().UTC()

	return nil
}

// ClaimDueScheduled promotes due scheduled notifications to pending under the
// store lock, so concurrent callers receive disjoint sets.
func (s *Store) ClaimDueScheduled(_ context.Context, now time.Time) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []model.Notification
	for _, n := range s.notifications {
		if n.Status == model.StatusScheduled && n.ScheduledTime != nil && !n.ScheduledTime.After(now) {
			n.Status = model.StatusPending
			n.UpdatedAt = time.Now().UTC()
			claimed = append(claimed, *n)
		}
	}

	return claimed, nil
}

// ClaimRetryable moves failed notifications with remaining retry budget back
// to pending under the store lock.
func (s *Store) ClaimRetryable(_ context.Context, maxRetries int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []model.Notification
	for _, n := range s.notifications {
		if n.Status == model.StatusFailed && n.RetryCount < maxRetries {
			n.Status = model.StatusPending
			n.UpdatedAt = time.Now().UTC()
			claimed = append(claimed, *n)
		}
	}

	return claimed, nil
}
