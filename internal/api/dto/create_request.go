package dto

// CreateRequest is the payload for creating a notification. Subject and
// message arrive fully rendered; scheduled_at is optional RFC 3339.
type CreateRequest struct {
	RecipientID    string `json:"recipient_id" validate:"required,uuid"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
	RecipientPhone string `json:"recipient_phone" validate:"omitempty,e164"`
	UserID         string `json:"user_id" validate:"omitempty,uuid"`
	Type           string `json:"type" validate:"required"`
	Channel        string `json:"channel" validate:"required,oneof=email sms both"`
	Subject        string `json:"subject"`
	Message        string `json:"message" validate:"required"`
	ScheduledAt    string `json:"scheduled_at" validate:"omitempty"`
}
