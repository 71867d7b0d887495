package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/pqr-service/internal/api/http"
	"github.com/spec-kit/pqr-service/internal/api/http/handlers"
	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/availability"
	"github.com/spec-kit/pqr-service/internal/calendar"
	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/events"
	"github.com/spec-kit/pqr-service/internal/observability"
	"github.com/spec-kit/pqr-service/internal/persistence"
	"github.com/spec-kit/pqr-service/internal/ratelimit"
	"github.com/spec-kit/pqr-service/internal/report"
	"github.com/spec-kit/pqr-service/internal/repository"
	"github.com/spec-kit/pqr-service/internal/seed"
	"github.com/spec-kit/pqr-service/internal/service"
	"github.com/spec-kit/pqr-service/internal/storage"
	"github.com/spec-kit/pqr-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	followUpRepo := repository.NewFollowUpRepository(pool)
	mediaRepo := repository.NewMediaRepository(pool)
	trainingRepo := repository.NewTrainingRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	if _, err := seed.EnsureSuperAdmin(ctx, userRepo, cfg.Seed, cfg.Auth.BcryptCost, logger); err != nil {
		logger.Fatal("failed to seed superadmin", zap.Error(err))
	}

	files, err := newStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}

	cal := newCalendar(ctx, cfg.Training, logger)
	loc := availability.FixedZone(cfg.Training.UTCOffsetHours)
	reports := report.NewGenerator(loc)

	dispatcher := events.NewInMemoryDispatcher(cfg.Notification.QueueSize)
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()
	notificationWorker := worker.NewNotificationWorker(dispatcher, logger, cfg.Notification.Workers, cfg.Notification.Timeout())
	notificationWorker.Start(ctx)

	authService := service.NewAuthService(cfg.Auth, userRepo)
	userService := service.NewUserService(userRepo, cfg.Auth.BcryptCost, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		FollowUpRepo: followUpRepo,
		MediaRepo:    mediaRepo,
		UserRepo:     userRepo,
		Transactor:   txRunner,
		Storage:      files,
		Reports:      reports,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Config:       cfg.Ticket,
	})
	followUpService := service.NewFollowUpService(service.FollowUpDependencies{
		TicketRepo: ticketRepo,
		Transactor: txRunner,
		Storage:    files,
		Dispatcher: dispatcher,
		Logger:     logger,
		Config:     cfg.Ticket,
	})
	statsService := service.NewStatsService(ticketRepo, reports)
	trainingService := service.NewTrainingService(service.TrainingDependencies{
		TrainingRepo: trainingRepo,
		UserRepo:     userRepo,
		Calendar:     cal,
		BusyCache:    calendar.NewBusyCache(redis.Client, cfg.Training.BusyCacheTTL()),
		Calculator:   availability.NewCalculator(cfg.Training.OpenHour, cfg.Training.CloseHour, loc),
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimitMB * 1024 * 1024,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Tickets:        handlers.NewTicketsHandler(ticketService, followUpService),
		Public:         handlers.NewPublicHandler(ticketService),
		Stats:          handlers.NewStatsHandler(statsService),
		Trainings:      handlers.NewTrainingsHandler(trainingService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), userRepo),
		RateLimiter:    ratelimit.New(redis.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window(), logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notificationWorker.Stop()
}

func newStorage(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Driver == "s3" {
		s3, err := storage.NewS3(cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint, nil)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	local, err := storage.NewLocal(cfg.LocalDir)
	if err != nil {
		return nil, err
	}
	return local, nil
}

// newCalendar falls back to a no-op calendar so bookings still work without Google credentials.
func newCalendar(ctx context.Context, cfg config.TrainingConfig, logger *zap.Logger) calendar.Calendar {
	if cfg.CalendarID == "" || cfg.CredentialsFile == "" {
		logger.Info("external calendar disabled")
		return calendar.Noop{}
	}
	google, err := calendar.NewGoogle(ctx, cfg.CalendarID, cfg.CredentialsFile, cfg.CalendarTimeout)
	if err != nil {
		logger.Error("google calendar unavailable, continuing without it", zap.Error(err))
		return calendar.Noop{}
	}
	return google
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
