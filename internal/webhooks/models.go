package webhooks

import "time"

// Message types accepted from the chat provider
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeDocument = "document"
)

// MessageLog is the append-only record of every accepted chat message.
// provider_message_id is unique, so redelivered messages never produce a
// second row.
type MessageLog struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProviderMessageID string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"provider_message_id"`
	FromPhone         string    `gorm:"type:varchar(20);index;not null" json:"from_phone"`
	MessageType       string    `gorm:"type:varchar(16);not null" json:"message_type"`
	Body              string    `gorm:"type:text" json:"body,omitempty"`
	MediaID           string    `gorm:"type:varchar(128)" json:"media_id,omitempty"`
	SessionID         string    `gorm:"type:varchar(64);index" json:"session_id"`
	FromOperator      bool      `json:"from_operator"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName sets the table name for MessageLog
func (MessageLog) TableName() string {
	return "message_logs"
}

// chatEnvelope is the provider's webhook envelope. Only the first message
// of the first change is consumed.
type chatEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []chatMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type chatMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"image,omitempty"`
	Document *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"document,omitempty"`
}

// paymentEnvelope is the payment gateway's webhook body
type paymentEnvelope struct {
	GatewayEventID string `json:"gateway_event_id" validate:"required"`
	Status         string `json:"status" validate:"required"`
	Metadata       struct {
		BookingID uint `json:"booking_id" validate:"required"`
	} `json:"metadata"`
}
