package webhooks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BookingCommand is a parsed customer booking intent from a chat text
// message.
type BookingCommand struct {
	TripID        uint
	SeatCount     int
	JourneyDate   string
	DepartureTime string
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ParseBookingCommand parses "BOOK <trip_id> <seat_count> [YYYY-MM-DD]
// [HH:MM]". Returns (nil, nil) when the text is not a booking command at
// all, and an error when it is one but malformed.
func ParseBookingCommand(text string) (*BookingCommand, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.EqualFold(fields[0], "book") {
		return nil, nil
	}
	if len(fields) < 3 {
		return nil, fmt.Errorf("usage: BOOK <trip_id> <seat_count> [date] [time]")
	}

	tripID, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("trip id must be numeric")
	}
	seatCount, err := strconv.Atoi(fields[2])
	if err != nil || seatCount < 1 {
		return nil, fmt.Errorf("seat count must be a positive number")
	}

	cmd := &BookingCommand{
		TripID:    uint(tripID),
		SeatCount: seatCount,
	}
	for _, field := range fields[3:] {
		switch {
		case datePattern.MatchString(field):
			cmd.JourneyDate = field
		case timePattern.MatchString(field):
			cmd.DepartureTime = field
		default:
			return nil, fmt.Errorf("unrecognized argument %q", field)
		}
	}
	return cmd, nil
}
