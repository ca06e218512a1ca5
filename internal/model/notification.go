package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of a notification.
type Status string

const (
	StatusPending   Status = "pending"   // awaiting an immediate dispatch attempt
	StatusScheduled Status = "scheduled" // waiting for its scheduled time
	StatusSent      Status = "sent"      // delivered, terminal
	StatusFailed    Status = "failed"    // last attempt failed, may be retried
	StatusCancelled Status = "cancelled" // cancelled before delivery, terminal
)

// Channel is the delivery medium of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelBoth  Channel = "both" // email and SMS, all-or-nothing
)

// Type classifies what a notification is about.
type Type string

const (
	TypeAppointmentConfirmation Type = "appointment_confirmation"
	TypeAppointmentReminder     Type = "appointment_reminder"
	TypeAppointmentCancellation Type = "appointment_cancellation"
	TypePrescriptionReminder    Type = "prescription_reminder"
	TypePrescriptionReady       Type = "prescription_ready"
	TypeTestResultAlert         Type = "test_result_alert"
)

// Notification represents one requested communication to a patient.
type Notification struct {
	ID             uuid.UUID  `json:"id"`                       // unique identifier, assigned at creation
	RecipientID    uuid.UUID  `json:"recipient_id"`             // patient the notification is addressed to
	RecipientName  string     `json:"recipient_name"`           // display name used in message bodies
	RecipientEmail string     `json:"recipient_email"`          // required for email/both channels
	RecipientPhone string     `json:"recipient_phone"`          // required for sms/both channels
	UserID         uuid.UUID  `json:"user_id"`                  // owning account, for traceability
	Type           Type       `json:"type"`                     // what the notification is about
	Channel        Channel    `json:"channel"`                  // delivery medium
	Subject        string     `json:"subject"`                  // rendered subject line, used by email
	Message        string     `json:"message"`                  // rendered body text
	Status         Status     `json:"status"`                   // current delivery state
	ScheduledTime  *time.Time `json:"scheduled_time,omitempty"` // when to send; nil means send now
	SentTime       *time.Time `json:"sent_time,omitempty"`      // set on successful delivery
	ErrorMessage   string     `json:"error_message,omitempty"`  // last failure reason
	RetryCount     int        `json:"retry_count"`              // number of failed attempts so far
	CreatedAt      time.Time  `json:"created_at"`               // creation timestamp, immutable
	UpdatedAt      time.Time  `json:"updated_at"`               // last state change timestamp
}

// Terminal reports whether no further transitions can leave the current status.
func (n Notification) Terminal() bool {
	return n.Status == StatusSent || n.Status == StatusCancelled
}
