package bootstrap

import (
	"context"
	"strings"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"tracker_server/adapter/in/http"
	"tracker_server/config"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/logger"
)

func NewAPI(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	return NewApp(deps), cleanup, nil
}

// NewApp builds the fiber application on top of wired dependencies.
func NewApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
		ServerHeader:          "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	if cfg.SentryDSN != "" {
		app.Use(sentryfiber.New(sentryfiber.Options{
			Repanic:         true,
			WaitForDelivery: false,
		}))
	}
	app.Use(middleware.Recover())
	app.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// AllowCredentials requires explicit origins
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	http.NewHealthHandler(healthChecks(deps)).Register(app)

	requireAuth := middleware.SessionAuth(deps.AuthService)

	http.NewAuthHandler(deps.AuthService, http.AuthConfig{
		FrontendURL:  cfg.FrontendURL,
		SecureCookie: cfg.IsProduction(),
	}).Register(app, requireAuth)

	http.NewSyncHandler(deps.SyncService, deps.AuthService, deps.SyncLock, http.SyncConfig{
		LockTTL:                cfg.SyncLockTTL,
		FetchDefaultMaxResults: cfg.SyncFetchDefaultMaxResults,
		MaxResultsLimit:        cfg.SyncMaxResultsLimit,
	}).Register(app, requireAuth, middleware.RateLimit(deps.SyncLimiter, "sync"))

	http.NewReviewHandler(deps.ReviewService).Register(app, requireAuth)
	http.NewJobHandler(deps.JobService).Register(app, requireAuth)

	return app
}

func healthChecks(deps *Dependencies) map[string]http.Pinger {
	checks := map[string]http.Pinger{
		"mongodb":  nil,
		"postgres": nil,
		"redis":    nil,
	}
	if deps.MongoDB != nil {
		checks["mongodb"] = func(ctx context.Context) error { return deps.MongoDB.Ping(ctx, nil) }
	}
	if deps.SQLDB != nil {
		checks["postgres"] = deps.SQLDB.PingContext
	}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}
	return checks
}
