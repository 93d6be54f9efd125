package takeover

import "time"

// Takeover statuses
const (
	StatusActive   = "active"
	StatusReleased = "released"
)

// OperatorTakeover pauses automated handling of a chat session while a
// human operator drives the conversation. At most one active takeover
// exists per session.
type OperatorTakeover struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SessionID  string     `gorm:"type:varchar(64);index;not null" json:"session_id"`
	OperatorID uint       `gorm:"index;not null" json:"operator_id"`
	Status     string     `gorm:"type:varchar(12);not null;default:'active'" json:"status"`
	Reason     string     `gorm:"type:varchar(500)" json:"reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName sets the table name for OperatorTakeover
func (OperatorTakeover) TableName() string {
	return "operator_takeovers"
}
