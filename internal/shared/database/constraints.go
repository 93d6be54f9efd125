package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	// The ledger's correctness root: one row per logical external event.
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_audit_source_type_key
		ON audit_events (source, event_type, idempotency_key);
	`).Error
	if err != nil {
		return err
	}

	// One scheduled instance of a route per date and departure.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_trip_route_date_departure
		ON trips (route_id, journey_date, departure_time);
	`).Error
	if err != nil {
		return err
	}

	// One override row per seat per route per date.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_override_route_date_seat
		ON inventory_overrides (route_id, trip_date, seat_number);
	`).Error
	if err != nil {
		return err
	}

	// Index for the reconciliation sweep over overdue holds.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_status_hold_expires
		ON bookings (status, hold_expires_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
