package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kasa-backend/internal/admin"
	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/cashflow"
	"kasa-backend/internal/cashsession"
	"kasa-backend/internal/config"
	"kasa-backend/internal/database"
	"kasa-backend/internal/fund"
	"kasa-backend/internal/lock"
	"kasa-backend/internal/logger"
	"kasa-backend/internal/models"
	"kasa-backend/internal/reconcile"
	"kasa-backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	currency, err := cashcount.Lookup(cfg.Currency)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// REDIS_URL yoksa şube kilidi process içinde (tek instance)
	var (
		locker lock.Locker = lock.NewLocal()
		rdb    *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = database.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		locker = lock.NewRedis(rdb, lock.RedisOptions{
			Expiry:     cfg.LockExpiry,
			Tries:      cfg.LockTries,
			RetryDelay: cfg.LockRetryDelay,
		}, log)
		log.Info("şube kilidi redis üzerinden", zap.String("redis", rdb.Options().Addr))
	}

	st := store.NewGorm(db)
	funds := fund.NewAllocator(st, log)
	ledger := cashflow.NewGuarded(cashflow.NewGormReader(db, currency.MinorUnits), cashflow.GuardConfig{
		Timeout:     cfg.AggregateTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, log)
	sessions := cashsession.NewManager(st, funds, ledger,
		reconcile.Policy{MinorThreshold: cfg.VarianceMinorThreshold},
		currency,
		cashsession.WithLocker(locker),
		cashsession.WithLogger(log),
	)
	auditWriter := audit.NewGormWriter(db)
	users := auth.NewGormUsers(db)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Error("beklenmeyen hata", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.Middleware(log))

	// CORS origins virgülle ayrılmış
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,OPTIONS",
	}))

	app.Get("/healthz", healthHandler(db, rdb, ledger))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(users))
	api.Post("/auth/login", auth.LoginHandler(cfg, users))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(users))
	protected.Get("/denominations", cashsession.DenominationsHandler(currency))

	// Kasa oturumları
	protected.Post("/cash-sessions/open", cashsession.OpenSessionHandler(sessions, auditWriter, log))
	protected.Get("/cash-sessions/current", cashsession.CurrentSessionHandler(sessions, log))
	protected.Get("/cash-sessions", cashsession.ListSessionsHandler(sessions, log))
	protected.Get("/cash-sessions/:id", cashsession.GetSessionHandler(sessions, log))
	protected.Get("/cash-sessions/:id/summary", cashsession.SessionSummaryHandler(sessions, log))
	protected.Post("/cash-sessions/:id/close", cashsession.CloseSessionHandler(sessions, auditWriter, log))

	// Kasa fonları
	protected.Get("/fund-pools", fund.ListFundPoolsHandler(funds, currency, log))

	protected.Get("/audit-logs", audit.ListAuditLogsHandler(db))

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	// Şube ve şube admini
	adminRoutes.Post("/branches", admin.CreateBranchHandler(db))
	adminRoutes.Get("/branches", admin.ListBranchesHandler(db))
	adminRoutes.Post("/branches/:id/admin", admin.CreateBranchAdminHandler(db, users))

	// Kasa fonları
	adminRoutes.Post("/fund-pools", fund.CreateFundPoolHandler(funds, currency, auditWriter, log))
	adminRoutes.Put("/fund-pools/:id/status", fund.UpdateFundPoolStatusHandler(funds, currency, auditWriter, log))

	errCh := make(chan error, 1)
	go func() {
		log.Info("Sunucu başlıyor", zap.String("port", cfg.HTTPPort), zap.String("currency", currency.Code))
		errCh <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Sunucu kapanıyor")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func healthHandler(db *gorm.DB, rdb *redis.Client, ledger *cashflow.Guarded) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.Map{"database": "ok", "aggregates": ledger.State().String()}
		healthy := true

		if err := database.Ping(ctx, db); err != nil {
			status["database"] = err.Error()
			healthy = false
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["redis"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		return c.JSON(status)
	}
}
