// Package events defines the domain events consumed from the three streams
// and the ingestor that turns them into notification requests.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type tags carried by the streams.
const (
	EventCreated   = "CREATED"
	EventReminder  = "REMINDER"
	EventCancelled = "CANCELLED"
	EventUpdated   = "UPDATED"
	EventReady     = "READY"
)

// Patient identifies the recipient of an event's notification.
type Patient struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
}

// AppointmentEvent is an appointment lifecycle event.
type AppointmentEvent struct {
	Type            string    `json:"type"` // CREATED, REMINDER, CANCELLED or UPDATED
	Patient         Patient   `json:"patient"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentTime time.Time `json:"appointment_time"`
}

// PrescriptionEvent is a prescription lifecycle event.
type PrescriptionEvent struct {
	Type           string  `json:"type"` // CREATED, READY or REMINDER
	Patient        Patient `json:"patient"`
	MedicationName string  `json:"medication_name"`
	Dosage         string  `json:"dosage"`
}

// TestResultEvent signals that new test results are available.
type TestResultEvent struct {
	Type     string  `json:"type"`
	Patient  Patient `json:"patient"`
	TestName string  `json:"test_name"`
}
