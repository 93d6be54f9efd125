package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookingCommand(t *testing.T) {
	cmd, err := ParseBookingCommand("BOOK 12 2")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, uint(12), cmd.TripID)
	assert.Equal(t, 2, cmd.SeatCount)
	assert.Empty(t, cmd.JourneyDate)
	assert.Empty(t, cmd.DepartureTime)
}

func TestParseBookingCommandWithDateAndTime(t *testing.T) {
	cmd, err := ParseBookingCommand("book 7 1 2026-09-01 08:30")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, uint(7), cmd.TripID)
	assert.Equal(t, 1, cmd.SeatCount)
	assert.Equal(t, "2026-09-01", cmd.JourneyDate)
	assert.Equal(t, "08:30", cmd.DepartureTime)

	// Order of the optional arguments does not matter.
	cmd, err = ParseBookingCommand("Book 7 1 08:30 2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", cmd.JourneyDate)
	assert.Equal(t, "08:30", cmd.DepartureTime)
}

func TestParseBookingCommandIgnoresNonCommands(t *testing.T) {
	for _, text := range []string{"", "   ", "hello", "when is the next bus?", "booking please"} {
		cmd, err := ParseBookingCommand(text)
		assert.NoError(t, err, "text %q", text)
		assert.Nil(t, cmd, "text %q", text)
	}
}

func TestParseBookingCommandRejectsMalformedCommands(t *testing.T) {
	for _, text := range []string{
		"BOOK",
		"BOOK 12",
		"BOOK abc 2",
		"BOOK 12 zero",
		"BOOK 12 0",
		"BOOK 12 -1",
		"BOOK 12 2 tomorrow",
		"BOOK 12 2 2026-09-01 8am",
	} {
		cmd, err := ParseBookingCommand(text)
		assert.Error(t, err, "text %q", text)
		assert.Nil(t, cmd, "text %q", text)
	}
}
