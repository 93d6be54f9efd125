package idempotency

import (
	"time"
)

// Ledger row status machine: started -> completed | failed.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event sources
const (
	SourcePayment   = "payment"
	SourceWhatsApp  = "whatsapp"
	SourceOperator  = "operator"
	SourceCustomer  = "customer"
	SourceInventory = "inventory"
	SourceSystem    = "system"
)

// AuditEvent is the append-only projection used both for traceability and
// as the idempotency ledger. The uniqueness constraint on
// (source, event_type, idempotency_key) is the ledger's correctness root.
type AuditEvent struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Source           string     `gorm:"type:varchar(32);not null;uniqueIndex:uniq_audit_source_type_key,priority:1" json:"source"`
	EventType        string     `gorm:"type:varchar(64);not null;uniqueIndex:uniq_audit_source_type_key,priority:2" json:"event_type"`
	IdempotencyKey   string     `gorm:"type:varchar(255);not null;uniqueIndex:uniq_audit_source_type_key,priority:3" json:"idempotency_key"`
	Status           string     `gorm:"type:varchar(16);not null;default:'started'" json:"status"`
	RequestHash      string     `gorm:"type:varchar(64)" json:"request_hash"`
	ResponseSnapshot string     `gorm:"type:text" json:"response_snapshot,omitempty"`
	ErrorSnapshot    string     `gorm:"type:text" json:"error_snapshot,omitempty"`
	SessionID        string     `gorm:"type:varchar(64);index" json:"session_id,omitempty"`
	OperatorID       *uint      `gorm:"index" json:"operator_id,omitempty"`
	Payload          string     `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// TableName sets the table name for AuditEvent
func (AuditEvent) TableName() string {
	return "audit_events"
}

// IsTerminal reports whether the row has reached completed or failed.
func (a *AuditEvent) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
