package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// NewBreaker returns a circuit breaker that opens when at least 60% of the
// last requests (minimum 3) in a 15s window failed.
func NewBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "circuit", name, "from", from.String(), "to", to.String())
		},
	})
}

func newResty(baseURL string, httpClient *http.Client) *resty.Client {
	return resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
}

// OrdersClient reads orders from the API service.
type OrdersClient struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker
}

func NewOrdersClient(baseURL string, httpClient *http.Client, cb *gobreaker.CircuitBreaker) *OrdersClient {
	return &OrdersClient{http: newResty(baseURL, httpClient), cb: cb}
}

func (c *OrdersClient) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	result, err := c.cb.Execute(func() (any, error) {
		var order domain.Order
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("id", id).
			SetResult(&order).
			Get("/orders/{id}")
		if err != nil {
			return nil, fmt.Errorf("get order %s: %w", id, err)
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			// a missing order is an answer, not a failure of the API
			return (*domain.Order)(nil), nil
		case resp.StatusCode() != http.StatusOK:
			return nil, fmt.Errorf("orders service returned status %d", resp.StatusCode())
		}
		return &order, nil
	})
	if err != nil {
		return nil, breakerError("orders", err)
	}

	order := result.(*domain.Order)
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// SMSClient sends text messages through the SMS gateway.
type SMSClient struct {
	http *resty.Client
	cb   *gobreaker.CircuitBreaker
}

func NewSMSClient(baseURL string, httpClient *http.Client, cb *gobreaker.CircuitBreaker) *SMSClient {
	return &SMSClient{http: newResty(baseURL, httpClient), cb: cb}
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (c *SMSClient) Send(ctx context.Context, to, body string) error {
	_, err := c.cb.Execute(func() (any, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(sendRequest{To: to, Body: body}).
			Post("/send")
		if err != nil {
			return nil, fmt.Errorf("send sms: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("sms service returned status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, nil
	})
	if err != nil {
		return breakerError("sms", err)
	}
	return nil
}

func breakerError(circuit string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s circuit: %w", circuit, err)
	}
	return err
}
