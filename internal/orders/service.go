package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/validation"
)

// totalTolerance is the largest accepted difference between a submitted
// total and the sum of its items when total verification is on.
const totalTolerance = 0.01

// Publisher sends an event keyed by order id.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type CreateOrderInput struct {
	Items           []domain.OrderItem     `json:"items" validate:"required,min=1,dive"`
	DeliveryDetails domain.DeliveryDetails `json:"deliveryDetails"`
	Total           float64                `json:"total" validate:"gt=0"`
}

type Service struct {
	repo        Repository
	logger      *slog.Logger
	policy      lifecycle.Policy
	verifyTotal bool
	created     Publisher
	changed     Publisher
	transitions *TransitionCounter
	now         func() time.Time
}

type Option func(*Service)

// WithPolicy sets the rule applied to manual status changes.
func WithPolicy(p lifecycle.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithTotalVerification rejects orders whose total does not match the sum
// of price times quantity of their items.
func WithTotalVerification(enabled bool) Option {
	return func(s *Service) {
		s.verifyTotal = enabled
	}
}

func WithCreatedPublisher(p Publisher) Option {
	return func(s *Service) {
		s.created = p
	}
}

func WithStatusPublisher(p Publisher) Option {
	return func(s *Service) {
		s.changed = p
	}
}

func WithTransitionCounter(c *TransitionCounter) Option {
	return func(s *Service) {
		s.transitions = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		repo:   repo,
		logger: logger,
		policy: lifecycle.ForwardOnly,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.transitions == nil {
		c, err := NewTransitionCounter(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("create transition counter: %w", err)
		}
		s.transitions = c
	}

	return s, nil
}

func (s *Service) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	if s.verifyTotal {
		if err := verifyTotal(input); err != nil {
			return nil, err
		}
	}

	order := &domain.Order{
		Items:           input.Items,
		DeliveryDetails: input.DeliveryDetails,
		Status:          lifecycle.Initial(),
		Total:           input.Total,
		// timestamptz keeps microseconds
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.created != nil {
		event := domain.OrderCreatedEvent{
			OrderID:   order.ID,
			Items:     order.Items,
			Total:     order.Total,
			Timestamp: order.CreatedAt,
		}
		if err := s.created.Publish(ctx, order.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	s.logger.InfoContext(ctx, "order created", "order_id", order.ID, "items", len(order.Items), "total", order.Total)
	return order, nil
}

func verifyTotal(input CreateOrderInput) error {
	var sum float64
	for _, item := range input.Items {
		sum += item.Price * float64(item.Quantity)
	}
	if math.Abs(sum-input.Total) > totalTolerance+1e-9 {
		return validation.Fail(validation.FieldError{
			Field:   "total",
			Message: fmt.Sprintf("must equal the sum of the items (%.2f)", sum),
		})
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	for _, status := range filter.Statuses {
		if err := validation.Var("status", string(status), "order_status"); err != nil {
			return nil, err
		}
	}

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// SetStatus applies a manual status change under the service's policy.
// Requesting the current status returns the order unchanged.
func (s *Service) SetStatus(ctx context.Context, id string, requested domain.OrderStatus) (*domain.Order, error) {
	if err := validation.Var("status", string(requested), "required,order_status"); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.policy.Check(current.Status, requested); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	if current.Status == requested {
		return current, nil
	}

	updated, err := s.repo.TransitionStatus(ctx, id, current.Status, requested)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		return nil, fmt.Errorf("update status of order %s: %w", id, err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	event := domain.OrderStatusChangedEvent{
		OrderID:        id,
		PreviousStatus: current.Status,
		Status:         updated.Status,
		Source:         domain.TransitionSourceOperator,
		Timestamp:      s.now().UTC(),
	}
	s.transitions.Record(ctx, event)

	if s.changed != nil {
		if err := s.changed.Publish(ctx, id, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish status changed event", "error", err, "order_id", id)
		}
	}

	s.logger.InfoContext(ctx, "order status updated",
		"order_id", id, "from", current.Status, "to", updated.Status, "policy", s.policy)
	return updated, nil
}
