package bookings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatusFoldsLegacyAliases(t *testing.T) {
	assert.Equal(t, StatusHold, NormalizeStatus("pending"))
	assert.Equal(t, StatusHold, NormalizeStatus("payment_pending"))
	assert.Equal(t, StatusCancelled, NormalizeStatus("rejected"))
	assert.Equal(t, StatusConfirmed, NormalizeStatus(StatusConfirmed))
	assert.Equal(t, Status("garbage"), NormalizeStatus("garbage"))
}

func TestTransitionRelation(t *testing.T) {
	allowed := [][2]Status{
		{StatusHold, StatusHold},
		{StatusHold, StatusConfirmed},
		{StatusHold, StatusCancelled},
		{StatusHold, StatusExpired},
		{StatusConfirmed, StatusCancelled},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}

	denied := [][2]Status{
		{StatusConfirmed, StatusHold},
		{StatusConfirmed, StatusExpired},
		{StatusConfirmed, StatusConfirmed},
		{StatusCancelled, StatusHold},
		{StatusCancelled, StatusConfirmed},
		{StatusExpired, StatusConfirmed},
		{StatusExpired, StatusCancelled},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s should be denied", pair[0], pair[1])
	}
}

func TestTransitionRelationNormalizesAliases(t *testing.T) {
	assert.True(t, CanTransition("pending", StatusConfirmed))
	assert.True(t, CanTransition("payment_pending", StatusExpired))
	assert.False(t, CanTransition("rejected", StatusConfirmed))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusExpired))
	assert.True(t, IsTerminal("rejected"))
	assert.False(t, IsTerminal(StatusHold))
	assert.False(t, IsTerminal(StatusConfirmed))
}

func TestAliasesForIncludesLegacySpellings(t *testing.T) {
	holdAliases := aliasesFor(StatusHold)
	assert.ElementsMatch(t, []string{"HOLD", "pending", "payment_pending"}, holdAliases)

	cancelledAliases := aliasesFor(StatusCancelled)
	assert.ElementsMatch(t, []string{"CANCELLED", "rejected"}, cancelledAliases)
}
