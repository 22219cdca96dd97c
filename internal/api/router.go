// Package api assembles the HTTP surface of the API service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/foodflow/internal/httpx"
	"github.com/joao-fontenele/foodflow/internal/menu"
	"github.com/joao-fontenele/foodflow/internal/orders"
	"github.com/joao-fontenele/foodflow/internal/telemetry"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger *slog.Logger
	DB     Pinger
	Orders *orders.Handler
	Menu   *menu.Handler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

const healthTimeout = 2 * time.Second

func NewRouter(d Deps) http.Handler {
	resp := httpx.NewResponder(d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(telemetry.ChiRoute)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.Error(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		resp.Error(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", healthHandler(d.DB, resp, d.Logger))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	d.Menu.Routes(r)
	d.Orders.Routes(r)

	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func healthHandler(db Pinger, resp *httpx.Responder, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(r.Context(), "health check failed", "error", err)
			resp.JSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "error", Database: "down"})
			return
		}
		resp.JSON(w, r, http.StatusOK, healthResponse{Status: "ok", Database: "up"})
	}
}

// requestLogger logs one record per request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			logger.InfoContext(r.Context(), "request handled",
				"method", r.Method,
				"route", route,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
