package inventory

import "time"

// Override statuses
const (
	StatusBlocked   = "blocked"
	StatusUnblocked = "unblocked"
)

// InventoryOverride blocks (or re-opens) a physical seat across every
// departure of a route on a given date. Overrides never touch booking
// rows; an active hold on a newly blocked seat runs to its own outcome.
type InventoryOverride struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RouteID    uint      `gorm:"not null;uniqueIndex:uniq_override_route_date_seat,priority:1" json:"route_id"`
	TripDate   string    `gorm:"type:varchar(10);not null;uniqueIndex:uniq_override_route_date_seat,priority:2" json:"trip_date"` // YYYY-MM-DD
	SeatNumber int       `gorm:"not null;uniqueIndex:uniq_override_route_date_seat,priority:3" json:"seat_number"`
	Status     string    `gorm:"type:varchar(12);not null;default:'blocked'" json:"status"`
	Actor      string    `gorm:"type:varchar(64)" json:"actor,omitempty"`
	Reason     string    `gorm:"type:varchar(500)" json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName sets the table name for InventoryOverride
func (InventoryOverride) TableName() string {
	return "inventory_overrides"
}

// IsBlocked reports whether the override currently blocks its seat.
func (o *InventoryOverride) IsBlocked() bool {
	return o.Status == StatusBlocked
}

// OverrideRequest blocks or unblocks one seat
type OverrideRequest struct {
	RouteID    uint   `json:"route_id" binding:"required"`
	TripDate   string `json:"trip_date" binding:"required"`
	SeatNumber int    `json:"seat_number" binding:"required,min=1"`
	Actor      string `json:"actor,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// AvailabilityResult is the availability read for one trip
type AvailabilityResult struct {
	TripID         uint  `json:"trip_id"`
	SeatQuota      int   `json:"seat_quota"`
	ConfirmedSeats int   `json:"confirmed_seats"`
	HeldSeats      int   `json:"held_seats"`
	BlockedSeats   []int `json:"blocked_seats"`
	Available      int   `json:"available"`
}
