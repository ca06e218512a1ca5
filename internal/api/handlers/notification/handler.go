package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/carewellhq/notify-engine/internal/api/dto"
	"github.com/carewellhq/notify-engine/internal/api/respond"
	"github.com/carewellhq/notify-engine/internal/config"
	"github.com/carewellhq/notify-engine/internal/model"
	"github.com/carewellhq/notify-engine/internal/repository"
	notifsvc "github.com/carewellhq/notify-engine/internal/service/notification"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/notification/mock.go -package=mocks

type notifService interface {
	Create(ctx context.Context, strategy retry.Strategy, in notifsvc.CreateInput) (model.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	GetStatus(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.Status, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]model.Notification, error)
	Cancel(ctx context.Context, strategy retry.Strategy, id uuid.UUID) error
}

type Handler struct {
	service   notifService
	validator *validator.Validate
	cfg       *config.Config
}

func NewHandler(
	s notifService,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{service: s, validator: v, cfg: cfg}
}

func (h *Handler) Create(c *ginext.Context) {
	var req dto.CreateRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	in, err := toCreateInput(req)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to convert request")
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	n, err := h.service.Create(c.Request.Context(), h.cfg.Retry, in)
	if err != nil {
		if errors.Is(err, notifsvc.ErrInvalidRequest) {
			zlog.Logger.Warn().Err(err).Msg("invalid notification request")
			respond.Fail(c.Writer, http.StatusBadRequest, err)
			return
		}

		zlog.Logger.Error().Err(err).Str("recipient_id", req.RecipientID).Msg("failed to create notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, n)
}

func (h *Handler) Get(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	n, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("id", id.String()).Err(err).Msg("notification not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, n)
}

func (h *Handler) GetStatus(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), h.cfg.Retry, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("id", id.String()).Err(err).Msg("notification not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, status)
}

func (h *Handler) ListByRecipient(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	notifications, err := h.service.ListByRecipient(c.Request.Context(), id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("recipient_id", id.String()).Msg("failed to list notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, notifications)
}

func (h *Handler) Cancel(c *ginext.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	err := h.service.Cancel(c.Request.Context(), h.cfg.Retry, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotificationNotFound):
			zlog.Logger.Warn().Str("id", id.String()).Err(err).Msg("notification not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
		case errors.Is(err, repository.ErrAlreadySent):
			zlog.Logger.Warn().Str("id", id.String()).Err(err).Msg("cannot cancel sent notification")
			respond.Fail(c.Writer, http.StatusConflict, fmt.Errorf("notification already sent"))
		default:
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cancel notification")
			respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		}
		return
	}

	respond.OK(c.Writer, "notification cancelled")
}

func (h *Handler) parseID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}

	if id == uuid.Nil {
		zlog.Logger.Warn().Msg("missing id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	return id, true
}

func toCreateInput(req dto.CreateRequest) (notifsvc.CreateInput, error) {
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return notifsvc.CreateInput{}, fmt.Errorf("invalid recipient_id")
	}

	in := notifsvc.CreateInput{
		RecipientID:    recipientID,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		Type:           model.Type(req.Type),
		Channel:        model.Channel(req.Channel),
		Subject:        req.Subject,
		Message:        req.Message,
	}

	if req.UserID != "" {
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			return notifsvc.CreateInput{}, fmt.Errorf("invalid user_id")
		}
		in.UserID = userID
	}

	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return notifsvc.CreateInput{}, fmt.Errorf("invalid scheduled_at format, expected RFC 3339")
		}
		in.ScheduledTime = &t
	}

	return in, nil
}
