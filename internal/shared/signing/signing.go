package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HubSignature computes the chat provider's body signature, formatted as
// the provider sends it in X-Hub-Signature-256.
func HubSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHubSignature checks the chat webhook header in constant time.
func VerifyHubSignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	expected := HubSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}

// TimestampedSignature computes the payment gateway's signature over
// "{timestamp}.{body}".
func TimestampedSignature(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTimestampedSignature checks the payment webhook signature and
// rejects timestamps outside the tolerance window in either direction.
func VerifyTimestampedSignature(secret string, timestamp string, body []byte, signature string, tolerance time.Duration) bool {
	if secret == "" || timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	drift := time.Since(time.Unix(ts, 0))
	if drift > tolerance || drift < -tolerance {
		return false
	}

	expected := TimestampedSignature(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// BookingToken derives the customer-facing cancellation token for a
// booking. Possession of the token proves the holder received the
// confirmation message for that booking.
func BookingToken(secret string, bookingID uint) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "booking:%d", bookingID)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBookingToken checks a presented token in constant time.
func VerifyBookingToken(secret string, bookingID uint, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	expected := BookingToken(secret, bookingID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(token)))
}
