package database

import (
	"transitly/internal/bookings"
	"transitly/internal/cancellation"
	"transitly/internal/idempotency"
	"transitly/internal/inventory"
	"transitly/internal/operators"
	"transitly/internal/takeover"
	"transitly/internal/trips"
	"transitly/internal/webhooks"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&operators.Operator{},
		&trips.Route{},
		&trips.Trip{},
		&bookings.Booking{},
		&bookings.TicketAttachment{},
		&cancellation.Cancellation{},
		&inventory.InventoryOverride{},
		&takeover.OperatorTakeover{},
		&webhooks.MessageLog{},
		&idempotency.AuditEvent{},
	)
}
