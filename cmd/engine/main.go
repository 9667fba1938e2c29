package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jobpulse/notifier/internal/config"
	"github.com/jobpulse/notifier/internal/dispatch"
	"github.com/jobpulse/notifier/internal/engine"
	engineHandler "github.com/jobpulse/notifier/internal/handler/engine"
	"github.com/jobpulse/notifier/internal/handler/health"
	notificationHandler "github.com/jobpulse/notifier/internal/handler/notification"
	"github.com/jobpulse/notifier/internal/middleware"
	"github.com/jobpulse/notifier/internal/push"
	"github.com/jobpulse/notifier/internal/repository/postgres"
	"github.com/jobpulse/notifier/internal/router"
	notificationService "github.com/jobpulse/notifier/internal/service/notification"
	"github.com/jobpulse/notifier/internal/throttle"
	"github.com/jobpulse/notifier/internal/worker"
	"github.com/jobpulse/notifier/pkg/logger"
	"github.com/jobpulse/notifier/pkg/messaging/redis"
	"github.com/jobpulse/notifier/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.New("notifier")

	// Repositories
	base := postgres.NewBaseRepository(db)
	subscriptionRepo := postgres.NewSubscriptionRepository(base)
	jobRepo := postgres.NewJobRepository(base)
	deviceRepo := postgres.NewDeviceRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)
	cycleRunRepo := postgres.NewCycleRunRepository(base)

	// Delivery pipeline
	gateway := push.NewWebPushGateway(push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
		TTL:             cfg.Push.TTL,
	})
	dispatcher := dispatch.NewDispatcher(gateway, deviceRepo, notificationRepo, broker, dispatch.Config{
		MaxRetries:    cfg.Push.MaxRetries,
		SendTimeout:   cfg.Engine.DispatchTimeout,
		RatePerSecond: cfg.Push.RatePerSecond,
		RateBurst:     cfg.Push.RateBurst,
		TokenCacheTTL: cfg.Push.TokenCacheTTL,
	}, log, m)

	governor := throttle.NewGovernor(notificationRepo)

	eng := engine.New(
		subscriptionRepo, jobRepo, notificationRepo, cycleRunRepo,
		governor, dispatcher,
		engine.NewRedisLocker(broker.Client()),
		broker,
		engine.Config{
			Interval:        cfg.Engine.Interval,
			BatchSize:       cfg.Engine.BatchSize,
			Workers:         cfg.Engine.Workers,
			DispatchTimeout: cfg.Engine.DispatchTimeout,
			LockTTL:         cfg.Engine.LockTTL,
		},
		log, m,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := engine.NewScheduler(eng, engine.SchedulerConfig{
		Interval:         cfg.Engine.Interval,
		ActiveHoursStart: cfg.Engine.ActiveHoursStart,
		ActiveHoursEnd:   cfg.Engine.ActiveHoursEnd,
		RunOnStartup:     cfg.Engine.RunOnStartup,
	}, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal(err, "failed to start scheduler")
	}

	retention := worker.NewRetentionWorker(
		notificationRepo, cycleRunRepo,
		cfg.Cleanup.RetentionDays, cfg.Cleanup.Interval, log)
	go retention.Start(ctx)

	// HTTP surface
	notificationSvc := notificationService.NewService(notificationRepo, cycleRunRepo)
	r := router.NewRouter(
		middleware.NewAuthMiddleware(cfg.Auth.JWTSecret),
		health.NewHandler(db),
		engineHandler.NewHandler(eng),
		notificationHandler.NewHandler(notificationSvc),
		router.Config{RateLimit: rate.Limit(100), RateBurst: 200},
		log,
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server shutdown failed")
	}
	log.Info("shutdown complete")
}
