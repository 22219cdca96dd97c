package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/foodflow/internal/messaging"
	"github.com/joao-fontenele/foodflow/internal/notifier"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

const consumerGroup = "status-notifier"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := telemetry.NewLogger(os.Stdout, "notifier", slog.LevelInfo)

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "notifier", "0.1.0", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	apiServiceURL := os.Getenv("API_SERVICE_URL")
	if apiServiceURL == "" {
		logger.Error("API_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	smsServiceURL := os.Getenv("SMS_SERVICE_URL")
	if smsServiceURL == "" {
		logger.Error("SMS_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := notifier.NewHandler(
		notifier.NewOrdersClient(apiServiceURL, httpClient, notifier.NewBreaker("api", logger)),
		notifier.NewSMSClient(smsServiceURL, httpClient, notifier.NewBreaker("sms", logger)),
		logger,
	)

	brokers := strings.Split(kafkaBrokers, ",")
	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderStatusChanged, consumerGroup,
		messaging.WithFailureHandler(func(ctx context.Context, msg kafka.Message, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Notifications are best-effort: log and move past the message.
			logger.ErrorContext(ctx, "notification failed", "error", err,
				"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
			return nil
		}),
	)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting status notifier", "brokers", brokers, "group", consumerGroup)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
