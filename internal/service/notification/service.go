// Package notification contains the dispatch engine: it creates notification
// records, routes delivery attempts by channel, and owns every state
// transition of a notification.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/carewellhq/notify-engine/internal/model"
)

//go:generate mockgen -source=service.go -destination=../../mocks/service/notification/mock.go -package=mocks

// ErrInvalidRequest is returned when a create request lacks the contact field
// its channel needs.
var ErrInvalidRequest = errors.New("invalid notification request")

// DeliveryError wraps a sender failure. It is never returned to the caller of
// Create or Dispatch; it is recorded on the notification itself.
type DeliveryError struct {
	Channel model.Channel
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type notificationStore interface {
	Create(ctx context.Context, n model.Notification) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

// EmailSender delivers a message to an email address.
type EmailSender interface {
	Send(to, subject, body string) error
}

// SmsSender delivers a message to a phone number.
type SmsSender interface {
	Send(to, body string) error
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// CreateInput carries everything needed to create one notification. Subject
// and message arrive as final rendered strings.
type CreateInput struct {
	RecipientID    uuid.UUID
	RecipientName  string
	RecipientEmail string
	RecipientPhone string
	UserID         uuid.UUID
	Type           model.Type
	Channel        model.Channel
	Subject        string
	Message        string
	ScheduledTime  *time.Time
}

// Service is the notification dispatch engine.
type Service struct {
	store notificationStore
	email EmailSender
	sms   SmsSender
	cache cache
}

// NewService creates the engine with its store, channel senders and status cache.
func NewService(store notificationStore, email EmailSender, sms SmsSender, c cache) *Service {
	return &Service{store: store, email: email, sms: sms, cache: c}
}

// Create validates the request, persists a new notification and, unless it is
// scheduled for the future, dispatches it immediately. A delivery failure is
// captured on the returned record, never as an error.
func (s *Service) Create(ctx context.Context, strategy retry.Strategy, in CreateInput) (model.Notification, error) {
	if err := validate(in); err != nil {
		return model.Notification{}, err
	}

	n := model.Notification{
		RecipientID:    in.RecipientID,
		RecipientName:  in.RecipientName,
		RecipientEmail: in.RecipientEmail,
		RecipientPhone: in.RecipientPhone,
		UserID:         in.UserID,
		Type:           in.Type,
		Channel:        in.Channel,
		Subject:        in.Subject,
		Message:        in.Message,
		Status:         model.StatusPending,
	}

	if in.ScheduledTime != nil && in.ScheduledTime.After(time.Now().UTC()) {
		t := *in.ScheduledTime
		n.Status = model.StatusScheduled
		n.ScheduledTime = &t
	}

	id, err := s.store.Create(ctx, n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n.ID = id

	s.cacheStatus(ctx, strategy, id, n.Status)

	if n.Status == model.StatusPending {
		n = s.Dispatch(ctx, strategy, n)
	}

	return n, nil
}

// Dispatch performs one delivery attempt and records the outcome. Each call
// counts as exactly one attempt regardless of channel fan-out.
func (s *Service) Dispatch(ctx context.Context, strategy retry.Strategy, n model.Notification) model.Notification {
	err := s.send(n)
	if err == nil {
		sentAt := time.Now().UTC()
		if serr := s.store.MarkSent(ctx, n.ID, sentAt); serr != nil {
			zlog.Logger.Error().Err(serr).Str("id", n.ID.String()).Msg("failed to persist sent status")
		}

		n.Status = model.StatusSent
		n.SentTime = &sentAt
		n.ErrorMessage = ""
		s.cacheStatus(ctx, strategy, n.ID, n.Status)

		return n
	}

	zlog.Logger.Warn().Err(err).Str("id", n.ID.String()).Str("channel", string(n.Channel)).Msg("delivery attempt failed")

	if serr := s.store.MarkFailed(ctx, n.ID, err.Error()); serr != nil {
		zlog.Logger.Error().Err(serr).Str("id", n.ID.String()).Msg("failed to persist failed status")
	}

	n.Status = model.StatusFailed
	n.ErrorMessage = err.Error()
	n.RetryCount++
	s.cacheStatus(ctx, strategy, n.ID, n.Status)

	return n
}

// Retry re-dispatches a previously failed notification. Bounding the total
// number of attempts is the caller's concern.
func (s *Service) Retry(ctx context.Context, strategy retry.Strategy, n model.Notification) model.Notification {
	return s.Dispatch(ctx, strategy, n)
}

// Cancel transitions a notification to cancelled. Cancelling a sent
// notification fails with repository.ErrAlreadySent; cancelling twice is a
// no-op.
func (s *Service) Cancel(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error {
	if err := s.store.Cancel(ctx, id); err != nil {
		return err
	}

	s.cacheStatus(ctx, strategy, id, model.StatusCancelled)

	return nil
}

// GetByID returns the full notification record.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	return s.store.GetByID(ctx, id)
}

// ListByRecipient returns all notifications addressed to a recipient.
func (s *Service) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error) {
	return s.store.ListByRecipient(ctx, recipientID)
}

// GetStatus returns the current status, served from the cache when possible.
func (s *Service) GetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error) {
	status, err := s.cache.GetWithRetry(ctx, strategy, id.String())
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	if err != nil {
		n, err := s.store.GetByID(ctx, id)
		if err != nil {
			return "", err
		}

		status = string(n.Status)
		s.cacheStatus(ctx, strategy, id, n.Status)
	}

	return model.Status(status), nil
}

// send routes one attempt by channel. For the both channel the attempt
// succeeds only if email and SMS both succeed; the first failure is returned.
func (s *Service) send(n model.Notification) error {
	switch n.Channel {
	case model.ChannelEmail:
		if err := s.email.Send(n.RecipientEmail, n.Subject, n.Message); err != nil {
			return &DeliveryError{Channel: model.ChannelEmail, Err: err}
		}
	case model.ChannelSMS:
		if err := s.sms.Send(n.RecipientPhone, n.Message); err != nil {
			return &DeliveryError{Channel: model.ChannelSMS, Err: err}
		}
	case model.ChannelBoth:
		if err := s.email.Send(n.RecipientEmail, n.Subject, n.Message); err != nil {
			return &DeliveryError{Channel: model.ChannelEmail, Err: err}
		}
		if err := s.sms.Send(n.RecipientPhone, n.Message); err != nil {
			return &DeliveryError{Channel: model.ChannelSMS, Err: err}
		}
	default:
		return &DeliveryError{Channel: n.Channel, Err: fmt.Errorf("unknown channel %q", n.Channel)}
	}

	return nil
}

func (s *Service) cacheStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID, status model.Status) {
	if err := s.cache.SetWithRetry(ctx, strategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}
}

func validate(in CreateInput) error {
	switch in.Channel {
	case model.ChannelEmail:
		if in.RecipientEmail == "" {
			return fmt.Errorf("%w: recipient email required for email channel", ErrInvalidRequest)
		}
	case model.ChannelSMS:
		if in.RecipientPhone == "" {
			return fmt.Errorf("%w: recipient phone required for sms channel", ErrInvalidRequest)
		}
	case model.ChannelBoth:
		if in.RecipientEmail == "" {
			return fmt.Errorf("%w: recipient email required for both channel", ErrInvalidRequest)
		}
		if in.RecipientPhone == "" {
			return fmt.Errorf("%w: recipient phone required for both channel", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidRequest, in.Channel)
	}

	if in.Message == "" {
		return fmt.Errorf("%w: message required", ErrInvalidRequest)
	}

	return nil
}
