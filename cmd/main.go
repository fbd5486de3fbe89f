package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"loyalty-tracker/internal/api"
	"loyalty-tracker/internal/batch"
	"loyalty-tracker/internal/config"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/event"
	"loyalty-tracker/internal/infrastructure/database/postgres"
	"loyalty-tracker/internal/infrastructure/logging"
	"loyalty-tracker/internal/infrastructure/storage/filestore"
	"loyalty-tracker/internal/infrastructure/storage/redisstore"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robfig/cron/v3"
)

const (
	rabbitMQRetryCount   = 5
	defaultSummaryJobTTL = 30 * time.Second
	defaultSummarySpec   = "*/15 * * * *"
)

// @title Loyalty Tracker API
// @version 1.0
// @description Registers shop customers by name and tracks their spend toward a reward goal.
// @BasePath /
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run owns every resource opened at startup, so its deferred closers have
// finished before main decides the exit code.
func run() error {
	cfg, logger := initializeApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, closeStorage, err := initializeStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize customer storage", "driver", cfg.Storage.Driver, "error", err)
		return err
	}
	defer closeStorage()

	rabbitMQConn := setupRabbitMQ(cfg, logger)
	customerService := initializeServices(cfg, rabbitMQConn, storage, logger)

	summaryJob := batch.NewRewardSummaryJob(customerService, logger)
	cronScheduler := startBatchJobs(cfg, logger, summaryJob)
	router := api.SetupRouter(ctx, customerService, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	return handleShutdown(srv, cronScheduler, rabbitMQConn, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	logger.Info("Application starting...", "storage_driver", cfg.Storage.Driver, "goal_dollars", cfg.Loyalty.GoalDollars)

	return cfg, logger
}

// initializeStorage selects the customer.Storage backend named by
// storage.driver. The returned func releases any connection it opened.
func initializeStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (customer.Storage, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.DriverFile:
		logger.Info("Using JSON file storage", "path", cfg.Storage.Path, "strict", cfg.Storage.Strict)
		return filestore.NewOS(cfg.Storage.Path, logger, filestore.WithStrict(cfg.Storage.Strict)), noop, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory storage; customers are lost on restart")
		return filestore.NewMemory(logger, filestore.WithStrict(cfg.Storage.Strict)), noop, nil

	case config.DriverPostgres:
		logger.Info("Initializing database connection pool...")
		dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, noop, err
		}
		storage := postgres.NewCustomerStorage(dbPool, logger)
		if err := storage.EnsureSchema(ctx); err != nil {
			dbPool.Close()
			return nil, noop, err
		}
		return storage, func() {
			logger.Info("Closing database connection pool...")
			dbPool.Close()
		}, nil

	case config.DriverRedis:
		logger.Info("Initializing Redis client...", "addr", cfg.Redis.Addr)
		client, err := redisstore.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, noop, err
		}
		return redisstore.New(client, cfg.Redis.Key, cfg.Storage.Strict, logger), func() {
			logger.Info("Closing Redis client connection...")
			if err := client.Close(); err != nil {
				logger.Error("Failed to close Redis client connection gracefully", "error", err)
			}
		}, nil
	}

	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func initializeServices(cfg *config.Config, rabbitConn *amqp.Connection, storage customer.Storage, logger *slog.Logger) customer.CustomerService {
	logger.Info("Initializing application components...")

	var publisher event.EventPublisher = event.NoopEventPublisher{}
	if rabbitConn != nil {
		rabbitPublisher, err := event.NewRabbitMQEventPublisher(rabbitConn, cfg.Events.ExchangeName, logger)
		if err != nil {
			logger.Error("Failed to create event publisher, events will not be published", slog.Any("error", err))
		} else {
			publisher = rabbitPublisher
		}
	}

	return customer.NewCustomerService(storage, publisher, logger, customer.WithGoalDollars(cfg.Loyalty.GoalDollars))
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) error {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason, serverErr := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	stopCronScheduler(cronScheduler, logger)
	if serverErr == nil {
		shutdownHTTPServer(srv, serverErrors, logger)
	}
	closeRabbitMQConnection(rabbitConn, logger)

	logger.Info("Application shutdown process complete.")
	return serverErr
}

// waitForShutdownTrigger returns a non-nil error only when the server
// stopped on its own with a failure.
func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) (string, error) {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String(), nil
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			return "server error", err
		}
		logger.Info("Server goroutine finished before signal.", "error", err)
		return "server exited", nil
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	switch {
	case rabbitConn == nil:
		logger.Info("RabbitMQ connection was not established, skipping close.")
	case rabbitConn.IsClosed():
		logger.Info("RabbitMQ connection already closed, skipping close.")
	default:
		logger.Info("Closing RabbitMQ connection...")
		if err := rabbitConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
			return
		}
		logger.Info("RabbitMQ connection closed.")
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

// startBatchJobs schedules the reward summary and runs it once immediately so
// the gauges are populated before the first tick.
func startBatchJobs(cfg *config.Config, logger *slog.Logger, summaryJob *batch.RewardSummaryJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.RewardSummarySchedule
	if scheduleSpec == "" {
		scheduleSpec = defaultSummarySpec
		logger.Warn("Reward summary schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.RewardSummaryTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultSummaryJobTTL
	}

	run := cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "RewardSummary")
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if _, runErr := summaryJob.Run(ctx); runErr != nil {
			jobLogger.Error("Reward summary job finished with error", slog.Any("error", runErr))
		}
	})

	jobID, err := c.AddJob(scheduleSpec, run)
	if err != nil {
		logger.Error("Failed to schedule reward summary job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled reward summary job", "schedule", scheduleSpec, "job_id", jobID)
	}

	go run()
	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 1; i <= rabbitMQRetryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					if e != nil {
						logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
					}
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", rabbitMQRetryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", rabbitMQRetryCount, err)
}

// setupRabbitMQ returns nil when events are disabled or the broker is
// unreachable; the service then runs without publishing.
func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	if !cfg.Events.Enabled {
		logger.Info("Event publishing disabled.")
		return nil
	}
	if cfg.Events.URL == "" {
		logger.Error("Event publishing enabled but events.url is not configured")
		return nil
	}

	conn, err := connectRabbitMQ(cfg.Events.URL, logger)
	if err != nil {
		logger.Error("Continuing without event publishing", slog.Any("error", err))
		return nil
	}
	return conn
}
