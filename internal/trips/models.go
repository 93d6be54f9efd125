package trips

import (
	"time"
)

// Route is a source/destination/price pair owned by exactly one operator.
// Deleting a route cascades to its trips.
type Route struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OperatorID  uint      `gorm:"index;not null" json:"operator_id"`
	Source      string    `gorm:"type:varchar(120);not null" json:"source"`
	Destination string    `gorm:"type:varchar(120);not null" json:"destination"`
	Price       int64     `gorm:"not null" json:"price"` // minor currency units
	CreatedAt   time.Time `json:"created_at"`

	Trips []Trip `json:"trips,omitempty" gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE;"`
}

// Trip is a scheduled instance of a route. (route_id, journey_date,
// departure_time) is unique; deletion cascades to bookings.
type Trip struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RouteID       uint      `gorm:"index;not null;uniqueIndex:uniq_trip_route_date_departure,priority:1" json:"route_id"`
	JourneyDate   string    `gorm:"type:varchar(10);not null;uniqueIndex:uniq_trip_route_date_departure,priority:2" json:"journey_date"`  // YYYY-MM-DD
	DepartureTime string    `gorm:"type:varchar(5);not null;uniqueIndex:uniq_trip_route_date_departure,priority:3" json:"departure_time"` // HH:MM
	SeatQuota     int       `gorm:"not null;check:seat_quota >= 0" json:"seat_quota"`
	CreatedAt     time.Time `json:"created_at"`

	Route *Route `json:"route,omitempty" gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE;"`
}

// TableName sets the table name for Route
func (Route) TableName() string {
	return "routes"
}

// TableName sets the table name for Trip
func (Trip) TableName() string {
	return "trips"
}
