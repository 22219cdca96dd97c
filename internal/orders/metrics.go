package orders

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

const meterName = "github.com/joao-fontenele/foodflow/internal/orders"

// TransitionCounter counts status transitions, labelled by from, to and
// source.
type TransitionCounter struct {
	counter metric.Int64Counter
}

func NewTransitionCounter(mp metric.MeterProvider) (*TransitionCounter, error) {
	counter, err := mp.Meter(meterName).Int64Counter("orders.status.transitions",
		metric.WithDescription("Order status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}
	return &TransitionCounter{counter: counter}, nil
}

func (c *TransitionCounter) Record(ctx context.Context, event domain.OrderStatusChangedEvent) {
	c.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(event.PreviousStatus)),
		attribute.String("to", string(event.Status)),
		attribute.String("source", string(event.Source)),
	))
}
