package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/quejas/complaint-service/internal/api/http"
	"github.com/quejas/complaint-service/internal/api/http/handlers"
	"github.com/quejas/complaint-service/internal/events"
	"github.com/quejas/complaint-service/internal/observability"
	"github.com/quejas/complaint-service/internal/persistence"
	"github.com/quejas/complaint-service/internal/repository"
	"github.com/quejas/complaint-service/internal/service"
	"github.com/quejas/complaint-service/internal/worker"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("complaint-service: %v", err)
	}
}

func runServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	cfg, logger := env.cfg, env.logger

	if cfg.Database.RunMigrations {
		if err := persistence.RunMigrations(ctx, env.pg.PoolHandle(), logger); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	checks := []handlers.DependencyCheck{{Name: "postgres", Pinger: env.pg}}
	var (
		queue    service.EventQueue
		notifier *worker.NotificationWorker
	)
	if redis != nil {
		notifier = worker.StartNotificationWorker(redis, cfg.Events, metrics, logger)
		queue = notifier
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Pinger: redis, Optional: true})
	}
	service.NewNotificationService(dispatcher, queue, logger).RegisterHandlers()

	authService := newAuthService(env)
	created, err := authService.Bootstrap(ctx)
	if err != nil {
		return err
	}
	logger.Info("admin bootstrap finished",
		zap.String("username", cfg.Auth.AdminUsername),
		zap.Bool("created", created))

	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		ComplaintRepo: repository.NewComplaintRepository(env.pg.PoolHandle()),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})

	app := httptransport.NewServer(cfg.App.Name, httptransport.MiddlewareConfig{
		Logger:           logger,
		Metrics:          metrics,
		RequestTimeout:   cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	}, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Complaints: handlers.NewComplaintsHandler(complaintService, cfg.Complaint.CreateAttempts, logger),
		Auth:       handlers.NewAuthHandler(authService),
		Metrics:    metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return err
	case <-waitForShutdown(logger):
	}

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if notifier != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer drainCancel()
		if err := notifier.Stop(drainCtx); err != nil {
			logger.Warn("event queue not drained", zap.Error(err))
		}
	}
	return nil
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
