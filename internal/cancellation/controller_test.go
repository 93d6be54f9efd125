package cancellation_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"transitly/internal/cancellation"
	"transitly/internal/idempotency"
	"transitly/internal/shared/signing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCancelEngine(f *cancelFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	ctrl := cancellation.NewController(f.svc, f.ledger, f.cfg)
	cancellation.RegisterRoutes(engine.Group(""), ctrl, f.cfg)
	return engine
}

func postCancel(engine *gin.Engine, bookingID uint, idempotencyKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/booking/%d/cancel", bookingID), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCancelEndpointRequiresIdempotencyKey(t *testing.T) {
	f := newCancelFixture(t)
	engine := newCancelEngine(f)

	booking := f.confirmedBooking(t, "+15550001111")

	rec := postCancel(engine, booking.ID, "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENCY_KEY_REQUIRED")

	// The booking is untouched.
	stored, err := f.bookRepo.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsConfirmed())
}

func TestCancelEndpointReplaysStoredResponse(t *testing.T) {
	f := newCancelFixture(t)
	engine := newCancelEngine(f)
	ctx := context.Background()

	booking := f.confirmedBooking(t, "+15550001111")
	token := signing.BookingToken(f.cfg.Secrets.BookingToken, booking.ID)
	body := fmt.Sprintf(`{"booking_token":%q,"reason":"plans changed"}`, token)

	first := postCancel(engine, booking.ID, "cancel-key-1", body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	stored, err := f.bookRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsConfirmed())

	// A retried request with the same key gets the stored response back
	// byte for byte without re-entering the critical section.
	second := postCancel(engine, booking.ID, "cancel-key-1", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	row, err := f.auditRepo.Find(ctx, idempotency.SourceCustomer, "booking_cancel", "cancel-key-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, idempotency.StatusCompleted, row.Status)

	count, err := f.auditRepo.CountByTypeAndKey(ctx, idempotency.SourceCustomer, "booking_cancel", "cancel-key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCancelEndpointRejectsBadToken(t *testing.T) {
	f := newCancelFixture(t)
	engine := newCancelEngine(f)

	booking := f.confirmedBooking(t, "+15550001111")

	rec := postCancel(engine, booking.ID, "cancel-key-2", `{"booking_token":"not-the-token"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := f.bookRepo.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsConfirmed())
}
