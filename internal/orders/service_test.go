package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/orders"
	"github.com/joao-fontenele/foodflow/internal/orders/orderstest"
	"github.com/joao-fontenele/foodflow/internal/validation"
)

type publishedEvent struct {
	key   string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, event: event})
	return p.err
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)

func newTestService(t *testing.T, repo orders.Repository, opts ...orders.Option) *orders.Service {
	t.Helper()

	counter, err := orders.NewTransitionCounter(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}

	opts = append([]orders.Option{
		orders.WithTransitionCounter(counter),
		orders.WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	svc, err := orders.NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func validInput() orders.CreateOrderInput {
	return orders.CreateOrderInput{
		Items: []domain.OrderItem{
			{MenuItemID: "1", Name: "Classic Burger", Price: 10.99, Quantity: 2},
		},
		DeliveryDetails: domain.DeliveryDetails{
			Name:    "Jane Doe",
			Address: "456 Real St",
			Phone:   "5551234567",
		},
		Total: 21.98,
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()

	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %v", err)
	}
	fields := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	return fields
}

func TestService_Create(t *testing.T) {
	t.Run("persists a received order and publishes it", func(t *testing.T) {
		repo := orderstest.New()
		pub := &recordingPublisher{}
		svc := newTestService(t, repo, orders.WithCreatedPublisher(pub))

		order, err := svc.Create(context.Background(), validInput())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if order.ID == "" {
			t.Error("expected id to be assigned")
		}
		if order.Status != domain.OrderStatusReceived {
			t.Errorf("expected %q, got %q", domain.OrderStatusReceived, order.Status)
		}
		if !order.CreatedAt.Equal(fixedNow.Truncate(time.Microsecond)) {
			t.Errorf("expected createdAt %s, got %s", fixedNow.Truncate(time.Microsecond), order.CreatedAt)
		}

		stored, err := repo.GetByID(context.Background(), order.ID)
		if err != nil || stored == nil {
			t.Fatalf("expected stored order, got %v, %v", stored, err)
		}

		events := pub.Events()
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		created, ok := events[0].event.(domain.OrderCreatedEvent)
		if !ok {
			t.Fatalf("expected OrderCreatedEvent, got %T", events[0].event)
		}
		if events[0].key != order.ID || created.OrderID != order.ID || created.Total != 21.98 {
			t.Errorf("unexpected event: %+v", created)
		}
	})

	t.Run("publish failure does not fail the order", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}
		svc := newTestService(t, orderstest.New(), orders.WithCreatedPublisher(pub))

		if _, err := svc.Create(context.Background(), validInput()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	tests := []struct {
		name      string
		mutate    func(*orders.CreateOrderInput)
		wantField string
	}{
		{
			name:      "empty items",
			mutate:    func(in *orders.CreateOrderInput) { in.Items = []domain.OrderItem{} },
			wantField: "items",
		},
		{
			name:      "missing items",
			mutate:    func(in *orders.CreateOrderInput) { in.Items = nil },
			wantField: "items",
		},
		{
			name:      "short phone",
			mutate:    func(in *orders.CreateOrderInput) { in.DeliveryDetails.Phone = "555123" },
			wantField: "deliveryDetails.phone",
		},
		{
			name:      "empty address",
			mutate:    func(in *orders.CreateOrderInput) { in.DeliveryDetails.Address = "" },
			wantField: "deliveryDetails.address",
		},
		{
			name:      "zero quantity",
			mutate:    func(in *orders.CreateOrderInput) { in.Items[0].Quantity = 0 },
			wantField: "items[0].quantity",
		},
		{
			name:      "non-positive total",
			mutate:    func(in *orders.CreateOrderInput) { in.Total = 0 },
			wantField: "total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := orderstest.New()
			svc := newTestService(t, repo)

			input := validInput()
			tt.mutate(&input)

			_, err := svc.Create(context.Background(), input)
			fields := fieldErrors(t, err)
			if _, ok := fields[tt.wantField]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, fields)
			}

			all, _ := repo.List(context.Background(), orders.ListFilter{})
			if len(all) != 0 {
				t.Errorf("expected nothing stored, got %d orders", len(all))
			}
		})
	}

	t.Run("total verification", func(t *testing.T) {
		mismatched := validInput()
		mismatched.Total = 5

		svc := newTestService(t, orderstest.New())
		if _, err := svc.Create(context.Background(), mismatched); err != nil {
			t.Fatalf("expected client total to be trusted by default, got %v", err)
		}

		verifying := newTestService(t, orderstest.New(), orders.WithTotalVerification(true))
		_, err := verifying.Create(context.Background(), mismatched)
		if _, ok := fieldErrors(t, err)["total"]; !ok {
			t.Error("expected error on total")
		}

		withinCent := validInput()
		withinCent.Total = 21.99
		if _, err := verifying.Create(context.Background(), withinCent); err != nil {
			t.Fatalf("expected a one cent difference to pass, got %v", err)
		}
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := orderstest.New()
		repo.FailCreate = errors.New("connection refused")
		svc := newTestService(t, repo)

		_, err := svc.Create(context.Background(), validInput())
		if !errors.Is(err, repo.FailCreate) {
			t.Fatalf("expected wrapped repository error, got %v", err)
		}
		var verr *validation.Error
		if errors.As(err, &verr) {
			t.Error("repository failure must not look like a validation error")
		}
	})
}

func TestService_Get(t *testing.T) {
	repo := orderstest.New()
	svc := newTestService(t, repo)

	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID || len(got.Items) != 1 {
		t.Errorf("unexpected order: %+v", got)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, orders.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_List(t *testing.T) {
	repo := orderstest.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	oldest := repo.Put(domain.Order{Status: domain.OrderStatusDelivered, Total: 1, CreatedAt: base})
	middle := repo.Put(domain.Order{Status: domain.OrderStatusPreparing, Total: 1, CreatedAt: base.Add(time.Minute)})
	newest := repo.Put(domain.Order{Status: domain.OrderStatusReceived, Total: 1, CreatedAt: base.Add(2 * time.Minute)})

	svc := newTestService(t, repo)

	t.Run("newest first", func(t *testing.T) {
		list, err := svc.List(context.Background(), orders.ListFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{newest.ID, middle.ID, oldest.ID}
		if len(list) != len(want) {
			t.Fatalf("expected %d orders, got %d", len(want), len(list))
		}
		for i, id := range want {
			if list[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
			}
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		list, err := svc.List(context.Background(), orders.ListFilter{
			Statuses: []domain.OrderStatus{domain.OrderStatusPreparing, domain.OrderStatusDelivered},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 2 || list[0].ID != middle.ID || list[1].ID != oldest.ID {
			t.Errorf("unexpected filtered list: %+v", list)
		}
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		_, err := svc.List(context.Background(), orders.ListFilter{
			Statuses: []domain.OrderStatus{"Bogus"},
		})
		if _, ok := fieldErrors(t, err)["status"]; !ok {
			t.Error("expected error on status")
		}
	})

	t.Run("repository failure", func(t *testing.T) {
		failing := orderstest.New()
		failing.FailList = errors.New("timeout")

		_, err := newTestService(t, failing).List(context.Background(), orders.ListFilter{})
		if !errors.Is(err, failing.FailList) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})
}

func TestService_SetStatus(t *testing.T) {
	seed := func(repo *orderstest.Repository, status domain.OrderStatus) domain.Order {
		return repo.Put(domain.Order{Status: status, Total: 10, CreatedAt: fixedNow})
	}

	t.Run("rejects unknown status", func(t *testing.T) {
		repo := orderstest.New()
		order := seed(repo, domain.OrderStatusReceived)

		_, err := newTestService(t, repo).SetStatus(context.Background(), order.ID, "Bogus")
		if _, ok := fieldErrors(t, err)["status"]; !ok {
			t.Error("expected error on status")
		}
		if repo.Status(order.ID) != domain.OrderStatusReceived {
			t.Error("expected status to be unchanged")
		}
	})

	t.Run("rejects empty status", func(t *testing.T) {
		repo := orderstest.New()
		order := seed(repo, domain.OrderStatusReceived)

		_, err := newTestService(t, repo).SetStatus(context.Background(), order.ID, "")
		if _, ok := fieldErrors(t, err)["status"]; !ok {
			t.Error("expected error on status")
		}
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := newTestService(t, orderstest.New()).SetStatus(context.Background(), "missing", domain.OrderStatusPreparing)
		if !errors.Is(err, orders.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("advances one step and publishes", func(t *testing.T) {
		repo := orderstest.New()
		order := seed(repo, domain.OrderStatusReceived)
		pub := &recordingPublisher{}

		updated, err := newTestService(t, repo, orders.WithStatusPublisher(pub)).
			SetStatus(context.Background(), order.ID, domain.OrderStatusPreparing)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != domain.OrderStatusPreparing {
			t.Errorf("expected Preparing, got %s", updated.Status)
		}

		events := pub.Events()
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		changed := events[0].event.(domain.OrderStatusChangedEvent)
		if changed.PreviousStatus != domain.OrderStatusReceived ||
			changed.Status != domain.OrderStatusPreparing ||
			changed.Source != domain.TransitionSourceOperator {
			t.Errorf("unexpected event: %+v", changed)
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		repo := orderstest.New()
		order := seed(repo, domain.OrderStatusPreparing)
		pub := &recordingPublisher{}

		updated, err := newTestService(t, repo, orders.WithStatusPublisher(pub)).
			SetStatus(context.Background(), order.ID, domain.OrderStatusPreparing)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != domain.OrderStatusPreparing {
			t.Errorf("expected Preparing, got %s", updated.Status)
		}
		if len(pub.Events()) != 0 {
			t.Error("expected no event for a no-op")
		}
	})

	t.Run("forward only rejects skips and regressions", func(t *testing.T) {
		repo := orderstest.New()
		received := seed(repo, domain.OrderStatusReceived)
		delivered := seed(repo, domain.OrderStatusDelivered)
		svc := newTestService(t, repo)

		if _, err := svc.SetStatus(context.Background(), received.ID, domain.OrderStatusDelivered); !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition for a skip, got %v", err)
		}
		if _, err := svc.SetStatus(context.Background(), delivered.ID, domain.OrderStatusReceived); !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition for a regression, got %v", err)
		}
		if repo.Status(received.ID) != domain.OrderStatusReceived || repo.Status(delivered.ID) != domain.OrderStatusDelivered {
			t.Error("expected statuses to be unchanged")
		}
	})

	t.Run("operator override allows any status", func(t *testing.T) {
		repo := orderstest.New()
		order := seed(repo, domain.OrderStatusDelivered)
		svc := newTestService(t, repo, orders.WithPolicy(lifecycle.OperatorOverride))

		updated, err := svc.SetStatus(context.Background(), order.ID, domain.OrderStatusReceived)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status != domain.OrderStatusReceived {
			t.Errorf("expected Order Received, got %s", updated.Status)
		}
	})

	t.Run("lost race surfaces as conflict", func(t *testing.T) {
		repo := orderstest.New()
		order := seed(repo, domain.OrderStatusReceived)
		repo.FailTransition = func(string) error { return orders.ErrStatusConflict }

		_, err := newTestService(t, repo).SetStatus(context.Background(), order.ID, domain.OrderStatusPreparing)
		if !errors.Is(err, orders.ErrStatusConflict) {
			t.Errorf("expected ErrStatusConflict, got %v", err)
		}
	})
}
