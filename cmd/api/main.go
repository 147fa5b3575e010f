package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/genmitra/public-complaint-ai-system/internal/analysis"
	httptransport "github.com/genmitra/public-complaint-ai-system/internal/api/http"
	"github.com/genmitra/public-complaint-ai-system/internal/api/http/handlers"
	"github.com/genmitra/public-complaint-ai-system/internal/config"
	"github.com/genmitra/public-complaint-ai-system/internal/events"
	"github.com/genmitra/public-complaint-ai-system/internal/observability"
	"github.com/genmitra/public-complaint-ai-system/internal/persistence"
	"github.com/genmitra/public-complaint-ai-system/internal/ratelimit"
	"github.com/genmitra/public-complaint-ai-system/internal/repository"
	"github.com/genmitra/public-complaint-ai-system/internal/service"
	"github.com/genmitra/public-complaint-ai-system/internal/ticketid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	complaintRepo := repository.NewComplaintRepository(pg.PoolHandle())
	analyzer := analysis.NewHTTPProvider(cfg.Analysis.URL, cfg.Analysis.Timeout())

	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		ComplaintRepo: complaintRepo,
		Analyzer:      analyzer,
		IDGenerator:   ticketid.NewGenerator(ticketid.WithPrefix(cfg.Ticket.Prefix)),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	limiter := buildLimiter(cfg, redis, logger)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	complaintsHandler := handlers.NewComplaintsHandler(complaintService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     healthHandler,
		Complaints: complaintsHandler,
		Admission:  httptransport.RateLimitMiddleware(limiter, logger, metrics),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildLimiter(cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) ratelimit.Limiter {
	limiterCfg := ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window(),
	}
	if strings.EqualFold(cfg.RateLimit.Store, "redis") && redis != nil && redis.Client != nil {
		logger.Info("using redis-backed admission control")
		return ratelimit.NewRedisLimiter(redis.Client, limiterCfg)
	}
	return ratelimit.NewMemoryLimiter(limiterCfg)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
