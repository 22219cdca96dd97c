package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/menu"
	"github.com/joao-fontenele/foodflow/internal/orders"
	"github.com/joao-fontenele/foodflow/internal/orders/orderstest"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type staticCatalog struct{}

func (staticCatalog) List(context.Context) ([]domain.MenuItem, error) {
	return menu.DefaultItems(), nil
}

func (staticCatalog) GetByID(context.Context, string) (*domain.MenuItem, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, db Pinger, repo orders.Repository) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	counter, err := orders.NewTransitionCounter(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}
	svc, err := orders.NewService(repo, logger, orders.WithTransitionCounter(counter))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return NewRouter(Deps{
		Logger: logger,
		DB:     db,
		Orders: orders.NewHandler(svc, logger),
		Menu:   menu.NewHandler(staticCatalog{}, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	msg, _ := resp["message"].(string)
	return msg
}

func TestRouter_Health(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		rec := do(newTestRouter(t, fakePinger{}, orderstest.New()), http.MethodGet, "/health", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"status":"ok","database":"up"}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("down", func(t *testing.T) {
		rec := do(newTestRouter(t, fakePinger{err: errors.New("refused")}, orderstest.New()), http.MethodGet, "/health", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", rec.Code)
		}
	})
}

func TestRouter_Errors(t *testing.T) {
	router := newTestRouter(t, fakePinger{}, orderstest.New())

	t.Run("method not allowed", func(t *testing.T) {
		rec := do(router, http.MethodPut, "/orders/abc/status", `{"status":"Preparing"}`)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status 405, got %d", rec.Code)
		}
		if msg := messageOf(t, rec); msg != "Method not allowed" {
			t.Errorf("unexpected message: %s", msg)
		}
	})

	t.Run("delete on orders", func(t *testing.T) {
		rec := do(router, http.MethodDelete, "/orders", "")

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status 405, got %d", rec.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/drivers", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON 404, got %s", rec.Header().Get("Content-Type"))
		}
	})
}

func TestRouter_OrderFlow(t *testing.T) {
	repo := orderstest.New()
	router := newTestRouter(t, fakePinger{}, repo)

	rec := do(router, http.MethodPost, "/orders", `{
		"items": [{"menuItemId": "1", "name": "Fresh Lemonade", "price": 4.99, "quantity": 1}],
		"deliveryDetails": {"name": "Sam", "address": "9 Elm St", "phone": "5550001111"},
		"total": 4.99
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	rec = do(router, http.MethodPatch, "/orders/"+created.ID+"/status", `{"status":"Preparing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/orders/"+created.ID, "")
	var fetched domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if fetched.Status != domain.OrderStatusPreparing {
		t.Errorf("expected Preparing, got %s", fetched.Status)
	}
	if !fetched.CreatedAt.Equal(created.CreatedAt) || fetched.CreatedAt.After(time.Now()) {
		t.Errorf("unexpected createdAt: %s", fetched.CreatedAt)
	}
}

func TestRouter_MenuAndMetrics(t *testing.T) {
	router := newTestRouter(t, fakePinger{}, orderstest.New())

	rec := do(router, http.MethodGet, "/menu", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var items []domain.MenuItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode menu: %v", err)
	}
	if len(items) != 8 {
		t.Errorf("expected 8 items, got %d", len(items))
	}

	rec = do(router, http.MethodGet, "/menu/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	rec = do(router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Errorf("unexpected metrics response: %d %s", rec.Code, rec.Body.String())
	}
}
