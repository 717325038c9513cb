package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"engagement_tracker/internal/analytics"
	"engagement_tracker/internal/calllog"
	"engagement_tracker/internal/config"
	"engagement_tracker/internal/credential"
	"engagement_tracker/internal/publisher"
	"engagement_tracker/internal/scheduler"
	"engagement_tracker/internal/server"
	"engagement_tracker/internal/service"
	"engagement_tracker/internal/storage/postgres"
	"engagement_tracker/internal/xapi"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// nil when events are disabled; the scheduler skips publishing
	var events scheduler.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	accountStore := postgres.NewAccountStore(db)
	jobStore := postgres.NewJobStore(db)
	postStore := postgres.NewPostStore(db)
	snapshotStore := postgres.NewSnapshotStore(db)
	callLogStore := postgres.NewCallLogStore(db)
	connectionStore := postgres.NewConnectionStore(db)
	txManager := postgres.NewTransactionManager(db)

	client := xapi.New(xapi.Config{
		BaseURL:           cfg.API.BaseURL,
		PageSize:          cfg.API.PageSize,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	}, logger)

	resolver := credential.NewResolver(connectionStore, credential.NewCipher(cfg.Crypto.EncryptionKey))

	executor := service.NewExecutor(
		client,
		resolver,
		calllog.New(callLogStore, nil, logger),
		accountStore,
		snapshotStore,
		postStore,
		jobStore,
		txManager,
		cfg.API.PageSize,
		logger,
	)

	sched := scheduler.NewScheduler(jobStore, executor, events, cfg.Scheduler, logger)

	analyticsService, err := analytics.NewService(postStore, callLogStore, cfg.Analytics, logger)
	if err != nil {
		logger.Error("failed to create analytics service", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg.Server, sched, analyticsService, cfg.Scheduler.MaxJobs, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	triggerDone := make(chan struct{})
	if cfg.Scheduler.CronEnabled {
		trigger := scheduler.NewTrigger(sched, cfg.Scheduler.Cron, cfg.Scheduler.JobTimeout*time.Duration(cfg.Scheduler.MaxJobs), logger)
		go func() {
			defer close(triggerDone)
			if err := trigger.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("trigger error", "error", err)
				cancel()
			}
		}()
	} else {
		close(triggerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	logger.Info("starting engagement tracker",
		"addr", cfg.Server.Addr,
		"cron_enabled", cfg.Scheduler.CronEnabled,
		"max_jobs", cfg.Scheduler.MaxJobs,
	)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server error", "error", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	<-triggerDone
	logger.Info("stopped")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
