package signing

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyHubSignature(t *testing.T) {
	secret := "chat-secret"
	body := []byte(`{"entry":[]}`)

	header := HubSignature(secret, body)
	assert.True(t, strings.HasPrefix(header, "sha256="))
	assert.True(t, VerifyHubSignature(secret, body, header))

	assert.False(t, VerifyHubSignature(secret, []byte(`{"entry":[1]}`), header))
	assert.False(t, VerifyHubSignature("wrong-secret", body, header))
	assert.False(t, VerifyHubSignature(secret, body, ""))
	assert.False(t, VerifyHubSignature("", body, header))
	assert.False(t, VerifyHubSignature(secret, body, strings.TrimPrefix(header, "sha256=")))
}

func TestVerifyTimestampedSignature(t *testing.T) {
	secret := "gateway-secret"
	body := []byte(`{"gateway_event_id":"gw-1"}`)
	tolerance := 5 * time.Minute

	now := strconv.FormatInt(time.Now().Unix(), 10)
	sig := TimestampedSignature(secret, now, body)

	assert.True(t, VerifyTimestampedSignature(secret, now, body, sig, tolerance))
	// Uppercase hex from the gateway still verifies.
	assert.True(t, VerifyTimestampedSignature(secret, now, body, strings.ToUpper(sig), tolerance))

	assert.False(t, VerifyTimestampedSignature(secret, now, []byte(`{}`), sig, tolerance))
	assert.False(t, VerifyTimestampedSignature("wrong-secret", now, body, sig, tolerance))
	assert.False(t, VerifyTimestampedSignature(secret, "not-a-number", body, sig, tolerance))
	assert.False(t, VerifyTimestampedSignature(secret, now, body, "", tolerance))
}

func TestVerifyTimestampedSignatureToleranceWindow(t *testing.T) {
	secret := "gateway-secret"
	body := []byte(`{}`)
	tolerance := 5 * time.Minute

	// A replayed capture from ten minutes ago is rejected even though the
	// signature itself is valid.
	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	staleSig := TimestampedSignature(secret, stale, body)
	assert.False(t, VerifyTimestampedSignature(secret, stale, body, staleSig, tolerance))

	// So is a timestamp too far in the future.
	future := strconv.FormatInt(time.Now().Add(10*time.Minute).Unix(), 10)
	futureSig := TimestampedSignature(secret, future, body)
	assert.False(t, VerifyTimestampedSignature(secret, future, body, futureSig, tolerance))

	// Inside the window on both sides passes.
	recent := strconv.FormatInt(time.Now().Add(-4*time.Minute).Unix(), 10)
	recentSig := TimestampedSignature(secret, recent, body)
	assert.True(t, VerifyTimestampedSignature(secret, recent, body, recentSig, tolerance))

	ahead := strconv.FormatInt(time.Now().Add(4*time.Minute).Unix(), 10)
	aheadSig := TimestampedSignature(secret, ahead, body)
	assert.True(t, VerifyTimestampedSignature(secret, ahead, body, aheadSig, tolerance))
}

func TestVerifyBookingToken(t *testing.T) {
	secret := "app-secret"

	token := BookingToken(secret, 42)
	assert.True(t, VerifyBookingToken(secret, 42, token))
	assert.True(t, VerifyBookingToken(secret, 42, strings.ToUpper(token)))

	// A token for one booking never opens another.
	assert.False(t, VerifyBookingToken(secret, 43, token))
	assert.False(t, VerifyBookingToken("other-secret", 42, token))
	assert.False(t, VerifyBookingToken(secret, 42, ""))
	assert.False(t, VerifyBookingToken("", 42, token))
}
