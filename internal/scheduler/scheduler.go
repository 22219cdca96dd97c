// Package scheduler advances non-terminal orders one lifecycle step per tick.
//
// A tick lists every order that has not reached the terminal status and
// moves each one to its next status with a compare-and-swap write, so a
// concurrent manual change is never overwritten. Failures are per order:
// an order that could not be advanced stays where it is and is retried on
// the next tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/lifecycle"
	"github.com/joao-fontenele/foodflow/internal/orders"
)

const (
	DefaultInterval    = 15 * time.Second
	DefaultConcurrency = 4
)

var ErrTickInProgress = errors.New("scheduler: tick already in progress")

var tracer = otel.Tracer("github.com/joao-fontenele/foodflow/internal/scheduler")

// OrderStore is the part of orders.Repository the scheduler needs.
type OrderStore interface {
	List(ctx context.Context, filter orders.ListFilter) ([]domain.Order, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

type TickResult struct {
	Advanced int
	// Skipped counts orders another writer moved first.
	Skipped int
	Failed  int
}

type Scheduler struct {
	store       OrderStore
	logger      *slog.Logger
	interval    time.Duration
	tickTimeout time.Duration
	concurrency int
	publisher   orders.Publisher
	transitions *orders.TransitionCounter
	now         func() time.Time

	running atomic.Bool
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithTickTimeout bounds a single tick. It defaults to the interval.
func WithTickTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.tickTimeout = d
	}
}

// WithConcurrency sets how many orders a tick advances in parallel.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

func WithPublisher(p orders.Publisher) Option {
	return func(s *Scheduler) {
		s.publisher = p
	}
}

func WithTransitionCounter(c *orders.TransitionCounter) Option {
	return func(s *Scheduler) {
		s.transitions = c
	}
}

func New(store OrderStore, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		store:       store,
		logger:      logger,
		interval:    DefaultInterval,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", s.interval)
	}
	if s.tickTimeout <= 0 {
		s.tickTimeout = s.interval
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}

	if s.transitions == nil {
		c, err := orders.NewTransitionCounter(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
		s.transitions = c
	}

	return s, nil
}

type outcome int

const (
	advanced outcome = iota
	skipped
	failed
)

// Tick runs one progression pass. It returns ErrTickInProgress without
// doing anything if another tick is still running.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return TickResult{}, ErrTickInProgress
	}
	defer s.running.Store(false)

	ctx, span := tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	pending, err := s.store.List(ctx, orders.ListFilter{Statuses: lifecycle.NonTerminal()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TickResult{}, fmt.Errorf("list pending orders: %w", err)
	}

	var counts [3]atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, order := range pending {
		g.Go(func() error {
			counts[s.advance(ctx, order)].Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := TickResult{
		Advanced: int(counts[advanced].Load()),
		Skipped:  int(counts[skipped].Load()),
		Failed:   int(counts[failed].Load()),
	}

	span.SetAttributes(
		attribute.Int("orders.pending", len(pending)),
		attribute.Int("orders.advanced", result.Advanced),
		attribute.Int("orders.skipped", result.Skipped),
		attribute.Int("orders.failed", result.Failed),
	)
	if result.Failed > 0 {
		span.SetStatus(codes.Error, "some orders could not be advanced")
	}

	s.logger.DebugContext(ctx, "scheduler tick complete",
		"pending", len(pending), "advanced", result.Advanced, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *Scheduler) advance(ctx context.Context, order domain.Order) outcome {
	next, ok := lifecycle.Next(order.Status)
	if !ok {
		return skipped
	}

	updated, err := s.store.TransitionStatus(ctx, order.ID, order.Status, next)
	switch {
	case errors.Is(err, orders.ErrStatusConflict):
		s.logger.DebugContext(ctx, "order status changed concurrently", "order_id", order.ID, "from", order.Status)
		return skipped
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to advance order status",
			"error", err, "order_id", order.ID, "from", order.Status, "to", next)
		return failed
	case updated == nil:
		return skipped
	}

	event := domain.OrderStatusChangedEvent{
		OrderID:        order.ID,
		PreviousStatus: order.Status,
		Status:         next,
		Source:         domain.TransitionSourceScheduler,
		Timestamp:      s.now().UTC(),
	}

	s.logger.InfoContext(ctx, "order status advanced", "order_id", order.ID, "from", order.Status, "to", next)
	s.transitions.Record(ctx, event)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish status changed event", "error", err, "order_id", order.ID)
		}
	}

	return advanced
}

// Task is a running scheduler loop.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels future ticks and waits for the current one to finish.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Start ticks every interval until ctx is cancelled or Stop is called.
// Timer firings that happen while a tick is running are dropped.
func (s *Scheduler) Start(ctx context.Context) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go s.run(ctx, t.done)
	return t
}

func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	s.logger.InfoContext(ctx, "status scheduler started", "interval", s.interval.String(), "concurrency", s.concurrency)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("status scheduler stopped")
			return
		case <-ticker.C:
		}

		if ctx.Err() != nil {
			continue
		}
		s.runTick(ctx)
		// Firings that came in during the tick are dropped and the next
		// tick waits a full interval.
		ticker.Reset(s.interval)
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	// Stop must not abort a tick half way, only the tick timeout can.
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickTimeout)
	defer cancel()

	result, err := s.Tick(tickCtx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.logger.DebugContext(ctx, "previous tick still running, skipping")
	case err != nil:
		s.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
	case result.Failed > 0:
		s.logger.WarnContext(ctx, "scheduler tick had failures", "failed", result.Failed, "advanced", result.Advanced)
	}
}
