package cancellation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/cancellation"
	"transitly/internal/idempotency"
	"transitly/internal/inventory"
	"transitly/internal/notifications"
	"transitly/internal/operators"
	"transitly/internal/seatlock"
	"transitly/internal/shared/apperrors"
	"transitly/internal/shared/config"
	"transitly/internal/trips"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type cancelFixture struct {
	mr        *miniredis.Miniredis
	cfg       *config.Config
	locks     *seatlock.Service
	ledger    *idempotency.Ledger
	auditRepo idempotency.Repository
	bookRepo  bookings.Repository
	bookSvc   bookings.Service
	svc       cancellation.Service
	trip      *trips.Trip
	operator  *operators.Operator
}

func newCancelFixture(t *testing.T) *cancelFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&operators.Operator{}, &trips.Route{}, &trips.Trip{},
		&bookings.Booking{}, &bookings.TicketAttachment{},
		&inventory.InventoryOverride{}, &idempotency.AuditEvent{},
		&cancellation.Cancellation{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Booking.HoldDuration = 10 * time.Minute
	cfg.Booking.IdempotencyStartedTTL = 5 * time.Minute
	cfg.Booking.CancelLockTTL = 20 * time.Second
	cfg.Booking.CommissionRateBPS = 500
	cfg.Secrets.BookingToken = "booking-token-secret"

	locks := seatlock.NewService(client, 0)
	auditRepo := idempotency.NewRepository(db)
	ledger := idempotency.NewLedger(auditRepo, cfg.Booking.IdempotencyStartedTTL)

	producer, err := notifications.NewProducer(cfg)
	require.NoError(t, err)

	tripRepo := trips.NewRepository(db)
	tripSvc := trips.NewService(tripRepo)
	bookRepo := bookings.NewRepository(db)
	inventorySvc := inventory.NewService(inventory.NewRepository(db), tripRepo, bookRepo, locks, client)
	bookSvc := bookings.NewService(bookRepo, tripSvc, inventorySvc, locks, ledger, producer, cfg)
	svc := cancellation.NewService(cancellation.NewRepository(db), bookRepo, bookSvc, locks, tripSvc, ledger, cfg)

	ctx := context.Background()
	operator := &operators.Operator{Phone: "+15550009999", Name: "Test Operator", Approved: true}
	require.NoError(t, operators.NewRepository(db).Create(ctx, operator))

	route := &trips.Route{OperatorID: operator.ID, Source: "Springfield", Destination: "Shelbyville", Price: 2500}
	require.NoError(t, tripRepo.CreateRoute(ctx, route))
	trip := &trips.Trip{RouteID: route.ID, JourneyDate: "2026-09-01", DepartureTime: "08:00", SeatQuota: 5}
	require.NoError(t, tripRepo.CreateTrip(ctx, trip))

	return &cancelFixture{
		mr:        mr,
		cfg:       cfg,
		locks:     locks,
		ledger:    ledger,
		auditRepo: auditRepo,
		bookRepo:  bookRepo,
		bookSvc:   bookSvc,
		svc:       svc,
		trip:      trip,
		operator:  operator,
	}
}

func (f *cancelFixture) confirmedBooking(t *testing.T, phone string) *bookings.Booking {
	t.Helper()
	ctx := context.Background()

	booking, err := f.bookSvc.CreateHold(ctx, &bookings.HoldRequest{
		TripID:        f.trip.ID,
		CustomerPhone: phone,
		SeatCount:     1,
		SessionID:     "wa:" + phone,
	})
	require.NoError(t, err)

	_, err = f.bookSvc.ApplyPayment(ctx, &bookings.PaymentApplyRequest{
		GatewayEventID: fmt.Sprintf("gw-%d", booking.ID),
		Status:         "SUCCESS",
		BookingID:      booking.ID,
	})
	require.NoError(t, err)
	return booking
}

func TestCancelConfirmedBooking(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	booking := f.confirmedBooking(t, "+15550001111")

	result, err := f.svc.Cancel(ctx, &cancellation.CancelRequest{
		BookingID:     booking.ID,
		Actor:         cancellation.ActorCustomer,
		CustomerPhone: "+15550001111",
		Reason:        "plans changed",
		SessionID:     "wa:+15550001111",
	})
	require.NoError(t, err)
	assert.False(t, result.Idempotent)
	assert.Equal(t, bookings.StatusCancelled, bookings.NormalizeStatus(result.Booking.Status))
	require.NotNil(t, result.Cancellation)
	assert.True(t, result.Cancellation.RefundRequested)
	assert.Equal(t, "customer", result.Cancellation.CancelledBy)
	assert.Nil(t, result.Booking.LockKeys)

	stored, err := f.bookRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, stored.Status)
	assert.Equal(t, "plans changed", stored.CancellationReason)

	for _, event := range []string{"BOOKING_CANCELLED", "REFUND_REQUESTED"} {
		count, err := f.auditRepo.CountByTypeAndKey(ctx, idempotency.SourceSystem, event,
			fmt.Sprintf("booking:%d:%s", booking.ID, event))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "expected one %s audit", event)
	}
}

func TestCancelRepeatIsIdempotent(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	booking := f.confirmedBooking(t, "+15550001111")
	req := &cancellation.CancelRequest{
		BookingID:     booking.ID,
		Actor:         cancellation.ActorCustomer,
		CustomerPhone: "+15550001111",
		SessionID:     "wa:+15550001111",
	}

	_, err := f.svc.Cancel(ctx, req)
	require.NoError(t, err)

	result, err := f.svc.Cancel(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	require.NotNil(t, result.Cancellation)
	assert.Equal(t, booking.ID, result.Cancellation.BookingID)

	// The replay did not append a second audit.
	count, err := f.auditRepo.CountByTypeAndKey(ctx, idempotency.SourceSystem, "BOOKING_CANCELLED",
		fmt.Sprintf("booking:%d:BOOKING_CANCELLED", booking.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCancelRejectsActiveHold(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	booking, err := f.bookSvc.CreateHold(ctx, &bookings.HoldRequest{
		TripID:        f.trip.ID,
		CustomerPhone: "+15550001111",
		SeatCount:     1,
		SessionID:     "wa:+15550001111",
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, &cancellation.CancelRequest{
		BookingID:     booking.ID,
		Actor:         cancellation.ActorCustomer,
		CustomerPhone: "+15550001111",
	})
	assert.ErrorIs(t, err, apperrors.ErrBookingNotConfirmed)
}

func TestCancelRejectsForeignCustomer(t *testing.T) {
	f := newCancelFixture(t)

	booking := f.confirmedBooking(t, "+15550001111")

	_, err := f.svc.Cancel(context.Background(), &cancellation.CancelRequest{
		BookingID:     booking.ID,
		Actor:         cancellation.ActorCustomer,
		CustomerPhone: "+15550007777",
	})
	assert.ErrorIs(t, err, apperrors.ErrOwnershipInvalid)
}

func TestCancelAcceptsVerifiedToken(t *testing.T) {
	f := newCancelFixture(t)

	booking := f.confirmedBooking(t, "+15550001111")

	// A verified per-booking token stands in for the phone check.
	result, err := f.svc.Cancel(context.Background(), &cancellation.CancelRequest{
		BookingID:     booking.ID,
		Actor:         cancellation.ActorCustomer,
		TokenVerified: true,
	})
	require.NoError(t, err)
	assert.False(t, result.Idempotent)
}

func TestCancelOperatorMustOwnRoute(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	booking := f.confirmedBooking(t, "+15550001111")

	other := uint(9999)
	_, err := f.svc.Cancel(ctx, &cancellation.CancelRequest{
		BookingID:  booking.ID,
		Actor:      cancellation.ActorOperator,
		OperatorID: &other,
	})
	assert.ErrorIs(t, err, apperrors.ErrOwnershipInvalid)

	result, err := f.svc.Cancel(ctx, &cancellation.CancelRequest{
		BookingID:  booking.ID,
		Actor:      cancellation.ActorOperator,
		OperatorID: &f.operator.ID,
		Reason:     "trip withdrawn",
	})
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, bookings.NormalizeStatus(result.Booking.Status))
}

func TestCancelBlockedByConcurrentCancel(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	booking := f.confirmedBooking(t, "+15550001111")

	// Another request already holds the per-booking cancel lock.
	_, err := f.locks.Acquire(ctx, seatlock.BookingCancelKey(booking.ID), "other-request", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, &cancellation.CancelRequest{
		BookingID:     booking.ID,
		Actor:         cancellation.ActorCustomer,
		CustomerPhone: "+15550001111",
	})
	assert.ErrorIs(t, err, apperrors.ErrBookingLocked)
}

func TestCancelUnknownBooking(t *testing.T) {
	f := newCancelFixture(t)

	_, err := f.svc.Cancel(context.Background(), &cancellation.CancelRequest{
		BookingID: 404,
		Actor:     cancellation.ActorAdmin,
	})
	assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
}
