package routes

import (
	"context"
	"net/http"
	"time"

	"transitly/internal/bookings"
	"transitly/internal/cancellation"
	"transitly/internal/idempotency"
	"transitly/internal/inventory"
	"transitly/internal/notifications"
	"transitly/internal/operators"
	"transitly/internal/reconciliation"
	"transitly/internal/seatlock"
	"transitly/internal/shared/config"
	"transitly/internal/shared/database"
	"transitly/internal/shared/middleware"
	"transitly/internal/takeover"
	"transitly/internal/trips"
	"transitly/internal/webhooks"
	"transitly/pkg/logger"
	"transitly/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// App bundles everything main needs beyond the HTTP engine.
type App struct {
	Engine    *gin.Engine
	Jobs      *reconciliation.JobProcessor
	Producer  notifications.Producer
	Locks     *seatlock.Service
	Operators operators.Service
}

// Setup wires repositories, services and controllers and returns the
// assembled application.
func Setup(cfg *config.Config, db *database.DB) (*App, error) {
	gin.SetMode(cfg.GinMode)
	log := logger.GetDefault()

	// Repositories.
	operatorRepo := operators.NewRepository(db.PostgreSQL)
	tripRepo := trips.NewRepository(db.PostgreSQL)
	bookingRepo := bookings.NewRepository(db.PostgreSQL)
	inventoryRepo := inventory.NewRepository(db.PostgreSQL)
	cancellationRepo := cancellation.NewRepository(db.PostgreSQL)
	takeoverRepo := takeover.NewRepository(db.PostgreSQL)
	messageRepo := webhooks.NewRepository(db.PostgreSQL)
	auditRepo := idempotency.NewRepository(db.PostgreSQL)

	// Infrastructure services.
	ledger := idempotency.NewLedger(auditRepo, cfg.Booking.IdempotencyStartedTTL)
	locks := seatlock.NewService(db.Redis, cfg.Redis.CircuitOpen)
	replayGuard := webhooks.NewReplayGuard(db.Redis, cfg.Redis.NonceTTL)

	producer, err := notifications.NewProducer(cfg)
	if err != nil {
		return nil, err
	}

	// Domain services.
	operatorSvc := operators.NewService(operatorRepo)
	tripSvc := trips.NewService(tripRepo)
	inventorySvc := inventory.NewService(inventoryRepo, tripRepo, bookingRepo, locks, db.Redis)
	bookingSvc := bookings.NewService(bookingRepo, tripSvc, inventorySvc, locks, ledger, producer, cfg)
	cancellationSvc := cancellation.NewService(cancellationRepo, bookingRepo, bookingSvc, locks, tripSvc, ledger, cfg)
	takeoverSvc := takeover.NewService(takeoverRepo, ledger)
	reconciliationSvc := reconciliation.NewService(bookingRepo, bookingSvc, locks)

	// Controllers.
	bookingCtrl := bookings.NewController(bookingSvc, cfg)
	tripCtrl := trips.NewController(tripSvc, ledger)
	inventoryCtrl := inventory.NewController(inventorySvc, tripSvc, ledger)
	cancellationCtrl := cancellation.NewController(cancellationSvc, ledger, cfg)
	takeoverCtrl := takeover.NewController(takeoverSvc, ledger)
	chatCtrl := webhooks.NewChatController(messageRepo, operatorSvc, bookingSvc, takeoverSvc, ledger, cfg)
	paymentCtrl := webhooks.NewPaymentController(bookingSvc, ledger, replayGuard, cfg)

	// Engine and global middleware.
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(requestLogging(log))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotency-Key", "x-hub-signature-256", "x-signature", "x-timestamp"},
		ExposeHeaders:    []string{"x-request-id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
		Enabled:         cfg.RateLimit.Enabled,
		WindowDuration:  cfg.RateLimit.WindowDuration,
		DefaultRequests: cfg.RateLimit.DefaultRequests,
		WebhookRequests: cfg.RateLimit.WebhookRequests,
		CancelRequests:  cfg.RateLimit.CancelRequests,
		HealthRequests:  cfg.RateLimit.HealthRequests,
		WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
	})
	engine.Use(ratelimit.Middleware(rateLimiter))

	registerHealth(engine, db)

	root := engine.Group("")
	webhooks.RegisterRoutes(root, chatCtrl, paymentCtrl)
	bookings.RegisterRoutes(root, bookingCtrl, cfg)
	cancellation.RegisterRoutes(root, cancellationCtrl, cfg)
	trips.RegisterRoutes(root, tripCtrl, cfg)
	inventory.RegisterRoutes(root, inventoryCtrl, cfg)
	takeover.RegisterRoutes(root, takeoverCtrl, cfg)

	jobs := reconciliation.NewJobProcessor(reconciliationSvc,
		cfg.Booking.ExpirySweepInterval, cfg.Booking.OrphanSweepInterval)

	return &App{
		Engine:    engine,
		Jobs:      jobs,
		Producer:  producer,
		Locks:     locks,
		Operators: operatorSvc,
	}, nil
}

// registerHealth reports readiness. A dead database fails the check; a
// dead lock store is reported as degraded because read paths survive it.
func registerHealth(engine *gin.Engine, db *database.DB) {
	engine.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{
			"status":   "ok",
			"database": "ok",
			"redis":    "ok",
		}

		if err := db.PingPostgres(ctx); err != nil {
			status["status"] = "unavailable"
			status["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		if err := db.PingRedis(ctx); err != nil {
			status["status"] = "degraded"
			status["redis"] = "down"
		}
		c.JSON(http.StatusOK, status)
	})
}

func requestLogging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.LogHTTPRequest(c, time.Since(start))
	}
}
