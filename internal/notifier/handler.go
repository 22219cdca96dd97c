// Package notifier texts customers when their order changes status.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var ErrMalformedEvent = errors.New("malformed status changed event")

type OrderFetcher interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type Handler struct {
	orders OrderFetcher
	sms    Sender
	logger *slog.Logger
}

func NewHandler(orders OrderFetcher, sms Sender, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, sms: sms, logger: logger}
}

// Handle processes one order.status_changed payload. Events for orders that
// no longer exist, or that have already moved past the announced status,
// are dropped.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.OrderID == "" || event.Status == "" {
		return fmt.Errorf("%w: missing order id or status", ErrMalformedEvent)
	}

	logger := h.logger.With("order_id", event.OrderID, "status", event.Status, "source", event.Source)

	order, err := h.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			logger.WarnContext(ctx, "order not found, dropping notification")
			return nil
		}
		return fmt.Errorf("fetch order: %w", err)
	}

	if order.Status != event.Status {
		logger.InfoContext(ctx, "stale status event, skipping notification", "current_status", order.Status)
		return nil
	}

	if err := h.sms.Send(ctx, order.DeliveryDetails.Phone, Message(*order)); err != nil {
		return fmt.Errorf("notify customer: %w", err)
	}

	logger.InfoContext(ctx, "customer notified")
	return nil
}

// Message is the text sent for an order's current status.
func Message(order domain.Order) string {
	ref := order.ID
	if len(ref) > 8 {
		ref = ref[:8]
	}

	switch order.Status {
	case domain.OrderStatusReceived:
		return fmt.Sprintf("Hi %s, we received your order %s.", order.DeliveryDetails.Name, ref)
	case domain.OrderStatusPreparing:
		return fmt.Sprintf("Hi %s, the kitchen is preparing your order %s.", order.DeliveryDetails.Name, ref)
	case domain.OrderStatusOutForDelivery:
		return fmt.Sprintf("Hi %s, your order %s is on its way to %s.", order.DeliveryDetails.Name, ref, order.DeliveryDetails.Address)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Hi %s, your order %s has been delivered. Enjoy your meal!", order.DeliveryDetails.Name, ref)
	default:
		return fmt.Sprintf("Hi %s, your order %s is now %s.", order.DeliveryDetails.Name, ref, order.Status)
	}
}
