package events

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/carewellhq/notify-engine/internal/model"
	notifsvc "github.com/carewellhq/notify-engine/internal/service/notification"
)

// Appointment reminders go out one day ahead of the appointment.
const reminderLead = 24 * time.Hour

const timeLayout = "Monday, 2 Jan 2006 at 15:04"

type notificationCreator interface {
	Create(ctx context.Context, strategy retry.Strategy, in notifsvc.CreateInput) (model.Notification, error)
}

// Ingestor translates domain events into notification requests. Every error
// is absorbed and logged so one bad event never blocks the stream.
type Ingestor struct {
	service  notificationCreator
	strategy retry.Strategy
}

// NewIngestor creates an ingestor on top of the notification engine.
func NewIngestor(service notificationCreator, strategy retry.Strategy) *Ingestor {
	return &Ingestor{service: service, strategy: strategy}
}

// HandleAppointment processes one appointment lifecycle event.
func (i *Ingestor) HandleAppointment(ctx context.Context, ev AppointmentEvent) {
	in := notifsvc.CreateInput{
		RecipientID:    ev.Patient.ID,
		RecipientName:  ev.Patient.Name,
		RecipientEmail: ev.Patient.Email,
		RecipientPhone: ev.Patient.Phone,
		UserID:         ev.Patient.ID,
	}

	when := ev.AppointmentTime.Format(timeLayout)

	switch ev.Type {
	case EventCreated:
		in.Type = model.TypeAppointmentConfirmation
		in.Channel = model.ChannelBoth
		in.Subject = "Appointment Confirmed"
		in.Message = fmt.Sprintf("Dear %s, your appointment with Dr. %s on %s has been confirmed.",
			ev.Patient.Name, ev.DoctorName, when)
	case EventReminder:
		in.Type = model.TypeAppointmentReminder
		in.Channel = model.ChannelBoth
		in.Subject = "Appointment Reminder"
		in.Message = fmt.Sprintf("Dear %s, this is a reminder of your appointment with Dr. %s on %s.",
			ev.Patient.Name, ev.DoctorName, when)
		remindAt := ev.AppointmentTime.Add(-reminderLead)
		in.ScheduledTime = &remindAt
	case EventCancelled:
		in.Type = model.TypeAppointmentCancellation
		in.Channel = model.ChannelBoth
		in.Subject = "Appointment Cancelled"
		in.Message = fmt.Sprintf("Dear %s, your appointment with Dr. %s on %s has been cancelled.",
			ev.Patient.Name, ev.DoctorName, when)
	case EventUpdated:
		in.Type = model.TypeAppointmentReminder
		in.Channel = model.ChannelEmail
		in.Subject = "Appointment Updated"
		in.Message = fmt.Sprintf("Dear %s, your appointment with Dr. %s has been rescheduled to %s.",
			ev.Patient.Name, ev.DoctorName, when)
	default:
		zlog.Logger.Warn().Str("type", ev.Type).Msg("unknown appointment event type, skipping")
		return
	}

	i.create(ctx, "appointment", ev.Type, in)
}

// HandlePrescription processes one prescription lifecycle event.
func (i *Ingestor) HandlePrescription(ctx context.Context, ev PrescriptionEvent) {
	in := notifsvc.CreateInput{
		RecipientID:    ev.Patient.ID,
		RecipientName:  ev.Patient.Name,
		RecipientEmail: ev.Patient.Email,
		RecipientPhone: ev.Patient.Phone,
		UserID:         ev.Patient.ID,
	}

	switch ev.Type {
	case EventCreated:
		in.Type = model.TypePrescriptionReminder
		in.Channel = model.ChannelEmail
		in.Subject = "New Prescription"
		in.Message = fmt.Sprintf("Dear %s, your prescription for %s (%s) has been issued. Please take it as directed.",
			ev.Patient.Name, ev.MedicationName, ev.Dosage)
	case EventReady:
		in.Type = model.TypePrescriptionReady
		in.Channel = model.ChannelBoth
		in.Subject = "Prescription Ready"
		in.Message = fmt.Sprintf("Dear %s, your prescription for %s is ready for pickup.",
			ev.Patient.Name, ev.MedicationName)
	case EventReminder:
		in.Type = model.TypePrescriptionReminder
		in.Channel = model.ChannelSMS
		in.Message = fmt.Sprintf("Reminder: take your %s (%s).", ev.MedicationName, ev.Dosage)
	default:
		zlog.Logger.Warn().Str("type", ev.Type).Msg("unknown prescription event type, skipping")
		return
	}

	i.create(ctx, "prescription", ev.Type, in)
}

// HandleTestResult processes one test result event. Every event type on this
// stream produces the same alert.
func (i *Ingestor) HandleTestResult(ctx context.Context, ev TestResultEvent) {
	in := notifsvc.CreateInput{
		RecipientID:    ev.Patient.ID,
		RecipientName:  ev.Patient.Name,
		RecipientEmail: ev.Patient.Email,
		RecipientPhone: ev.Patient.Phone,
		UserID:         ev.Patient.ID,
		Type:           model.TypeTestResultAlert,
		Channel:        model.ChannelBoth,
		Subject:        "Test Results Available",
		Message: fmt.Sprintf("Dear %s, new results for %s are available. Please log in to view them or contact your doctor.",
			ev.Patient.Name, ev.TestName),
	}

	i.create(ctx, "test-result", ev.Type, in)
}

func (i *Ingestor) create(ctx context.Context, stream, eventType string, in notifsvc.CreateInput) {
	n, err := i.service.Create(ctx, i.strategy, in)
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("stream", stream).
			Str("event_type", eventType).
			Str("recipient_id", in.RecipientID.String()).
			Msg("failed to create notification from event")
		return
	}

	zlog.Logger.Info().
		Str("stream", stream).
		Str("event_type", eventType).
		Str("id", n.ID.String()).
		Str("status", string(n.Status)).
		Msg("notification created from event")
}
