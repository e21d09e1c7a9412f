package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pdabank/pdabank/internal/account"
	"github.com/pdabank/pdabank/internal/config"
	"github.com/pdabank/pdabank/internal/faucet"
	"github.com/pdabank/pdabank/internal/ledger"
	"github.com/pdabank/pdabank/internal/lock"
	"github.com/pdabank/pdabank/internal/logging"
	"github.com/pdabank/pdabank/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var ledgerBackend ledger.Ledger
	var recordRepo account.Repository
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB, d.Cfg.Rent)
		recordRepo = account.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory(d.Cfg.Rent)
		recordRepo = account.NewMemoryRepository()
	}

	var locker lock.Locker
	if d.Cache != nil {
		locker = lock.NewRedis(d.Cache, d.Cfg.LockTTL, d.Logger)
	} else {
		locker = lock.NewMemory()
	}

	accountSvc := account.NewService(recordRepo, ledgerBackend, locker, account.Options{
		DomainTag:   d.Cfg.DomainTag,
		RecordSpace: d.Cfg.RecordSpace,
	}, d.Logger)
	faucetSvc := faucet.NewService(ledgerBackend, faucet.Options{
		Enabled:   d.Cfg.FaucetEnabled,
		MaxAmount: d.Cfg.FaucetMaxAmount,
	}, d.Logger)

	accountHandler := account.NewHandler(accountSvc, middleware.CallerIdentity)
	faucetHandler := faucet.NewHandler(faucetSvc, ledgerBackend)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAccountQueryRoutes(api, accountHandler)
	RegisterIdentityRoutes(api, faucetHandler)

	// Signed routes carry their middleware per route so unknown paths still 404.
	signed := []fiber.Handler{
		middleware.SignatureAuth(d.Cfg.SignatureMaxSkew),
		middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMin, d.Logger),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		middleware.ReplayGuard(d.Cache, 2*d.Cfg.SignatureMaxSkew, d.Logger),
	}
	RegisterAccountRoutes(api, accountHandler, signed...)
	if faucetSvc.Enabled() {
		RegisterFaucetRoutes(api, faucetHandler, signed...)
	}

	return nil
}
