package reconciliation_test

import (
	"context"
	"testing"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/idempotency"
	"transitly/internal/inventory"
	"transitly/internal/notifications"
	"transitly/internal/reconciliation"
	"transitly/internal/seatlock"
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

type sweepFixture struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	locks    *seatlock.Service
	bookRepo bookings.Repository
	bookSvc  bookings.Service
	svc      reconciliation.Service
	trip     *trips.Trip
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&trips.Route{}, &trips.Trip{},
		&bookings.Booking{}, &bookings.TicketAttachment{},
		&inventory.InventoryOverride{}, &idempotency.AuditEvent{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Booking.HoldDuration = 10 * time.Minute
	cfg.Booking.IdempotencyStartedTTL = 5 * time.Minute
	cfg.Booking.CommissionRateBPS = 500

	locks := seatlock.NewService(client, 0)
	ledger := idempotency.NewLedger(idempotency.NewRepository(db), cfg.Booking.IdempotencyStartedTTL)

	producer, err := notifications.NewProducer(cfg)
	require.NoError(t, err)

	tripRepo := trips.NewRepository(db)
	tripSvc := trips.NewService(tripRepo)
	bookRepo := bookings.NewRepository(db)
	inventorySvc := inventory.NewService(inventory.NewRepository(db), tripRepo, bookRepo, locks, client)
	bookSvc := bookings.NewService(bookRepo, tripSvc, inventorySvc, locks, ledger, producer, cfg)

	ctx := context.Background()
	route := &trips.Route{OperatorID: 1, Source: "A", Destination: "B", Price: 1000}
	require.NoError(t, tripRepo.CreateRoute(ctx, route))
	trip := &trips.Trip{RouteID: route.ID, JourneyDate: "2026-09-01", DepartureTime: "08:00", SeatQuota: 10}
	require.NoError(t, tripRepo.CreateTrip(ctx, trip))

	return &sweepFixture{
		db:       db,
		mr:       mr,
		locks:    locks,
		bookRepo: bookRepo,
		bookSvc:  bookSvc,
		svc:      reconciliation.NewService(bookRepo, bookSvc, locks),
		trip:     trip,
	}
}

func (f *sweepFixture) createHold(t *testing.T, phone string, seatCount int) *bookings.Booking {
	t.Helper()
	booking, err := f.bookSvc.CreateHold(context.Background(), &bookings.HoldRequest{
		TripID:        f.trip.ID,
		CustomerPhone: phone,
		SeatCount:     seatCount,
		SessionID:     "wa:" + phone,
	})
	require.NoError(t, err)
	return booking
}

func (f *sweepFixture) backdate(t *testing.T, bookingID uint) {
	t.Helper()
	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.db.Model(&bookings.Booking{}).
		Where("id = ?", bookingID).
		Update("hold_expires_at", past).Error)
}

func TestExpireOverdueHolds(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	overdue := f.createHold(t, "+15550001111", 2)
	fresh := f.createHold(t, "+15550002222", 1)
	f.backdate(t, overdue.ID)

	lockKey := overdue.LockKeys[0]
	require.True(t, f.mr.Exists(lockKey))

	expired, err := f.svc.ExpireOverdueHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stored, err := f.bookRepo.GetByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusExpired, stored.Status)
	assert.False(t, f.mr.Exists(lockKey))

	untouched, err := f.bookRepo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusHold, untouched.Status)
}

func TestExpireOverdueHoldsToleratesConcurrentConfirm(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	booking := f.createHold(t, "+15550001111", 1)
	f.backdate(t, booking.ID)

	// Payment lands between the sweep's read and its transition.
	_, err := f.bookSvc.ApplyPayment(ctx, &bookings.PaymentApplyRequest{
		GatewayEventID: "gw-1", Status: "SUCCESS", BookingID: booking.ID,
	})
	require.NoError(t, err)

	expired, err := f.svc.ExpireOverdueHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	stored, err := f.bookRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, stored.Status)
}

func TestReconcileExpiresHoldWithAllLocksGone(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	booking := f.createHold(t, "+15550001111", 2)

	// Simulate a lock store flush.
	f.mr.FlushAll()

	reconciled, err := f.svc.ReconcileOrphanedHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)

	stored, err := f.bookRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusExpired, stored.Status)
}

func TestReconcileRespectsHoldWithSurvivingLock(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	booking := f.createHold(t, "+15550001111", 2)

	// One of the two keys survives the outage.
	f.mr.Del(booking.LockKeys[0])

	reconciled, err := f.svc.ReconcileOrphanedHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reconciled)

	stored, err := f.bookRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusHold, stored.Status)
}

func TestReconcileSkipsHoldsWithoutLockKeys(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	booking := f.createHold(t, "+15550001111", 1)
	require.NoError(t, f.db.Model(&bookings.Booking{}).
		Where("id = ?", booking.ID).
		Update("lock_keys", "[]").Error)
	f.mr.FlushAll()

	reconciled, err := f.svc.ReconcileOrphanedHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reconciled)
}

func TestReconcileAbortsWhenStoreUnreachable(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	booking := f.createHold(t, "+15550001111", 1)
	f.mr.Close()

	_, err := f.svc.ReconcileOrphanedHolds(ctx)
	require.Error(t, err)

	stored, err := f.bookRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusHold, stored.Status)
}
