package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/foodflow/internal/api"
	"github.com/joao-fontenele/foodflow/internal/config"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/menu"
	"github.com/joao-fontenele/foodflow/internal/messaging"
	"github.com/joao-fontenele/foodflow/internal/orders"
	"github.com/joao-fontenele/foodflow/internal/scheduler"
	"github.com/joao-fontenele/foodflow/internal/store"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

const (
	serviceName    = "api"
	serviceVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	st, err := store.New(cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Open(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}

	menuRepo := menu.NewPostgresRepository(st)
	if err := menu.Seed(ctx, menuRepo, logger); err != nil {
		return err
	}

	var rdb redis.Cmdable
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		rdb = client
	}
	catalog := menu.NewCachedCatalog(menuRepo, rdb, cfg.MenuCacheTTL, logger)
	if err := catalog.Invalidate(ctx); err != nil {
		logger.Warn("failed to invalidate menu cache", "error", err)
	}

	counter, err := orders.NewTransitionCounter(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	policy := lifecycle.ForwardOnly
	if cfg.StatusOverride {
		policy = lifecycle.OperatorOverride
	}

	serviceOpts := []orders.Option{
		orders.WithPolicy(policy),
		orders.WithTotalVerification(cfg.VerifyOrderTotal),
		orders.WithTransitionCounter(counter),
	}
	schedulerOpts := []scheduler.Option{
		scheduler.WithInterval(cfg.StatusInterval),
		scheduler.WithTransitionCounter(counter),
	}

	if len(cfg.KafkaBrokers) > 0 {
		created := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCreated)
		defer func() { _ = created.Close() }()
		changed := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderStatusChanged)
		defer func() { _ = changed.Close() }()

		serviceOpts = append(serviceOpts,
			orders.WithCreatedPublisher(created),
			orders.WithStatusPublisher(changed),
		)
		schedulerOpts = append(schedulerOpts, scheduler.WithPublisher(changed))
	}

	orderRepo := orders.NewPostgresRepository(st)
	orderService, err := orders.NewService(orderRepo, logger, serviceOpts...)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(orderRepo, logger, schedulerOpts...)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Logger:  logger,
		DB:      st,
		Orders:  orders.NewHandler(orderService, logger),
		Menu:    menu.NewHandler(catalog, logger),
		Metrics: metricsHandler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	task := sched.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting api service", "port", cfg.Port, "status_policy", policy.String())
	return serve(logger, server, stop, task.Stop)
}

// serve runs server until a signal arrives on stop or the listener fails,
// calls beforeShutdown, then shuts the server down. A listener failure is
// returned.
func serve(logger *slog.Logger, server *http.Server, stop <-chan os.Signal, beforeShutdown func()) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-stop:
		logger.Info("shutting down")
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}

	beforeShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return errors.Join(runErr, err)
	}
	return runErr
}
