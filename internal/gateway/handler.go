// Package gateway is the public edge. It forwards /api/* to the API service.
package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/foodflow/internal/httpx"
)

// Prefix is stripped before a request is forwarded upstream.
const Prefix = "/api"

type Handler struct {
	api    *ServiceProxy
	logger *slog.Logger
	resp   *httpx.Responder
}

func NewHandler(api *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		api:    api,
		logger: logger,
		resp:   httpx.NewResponder(logger),
	}
}

func (h *Handler) HandleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, Prefix)
	if path == "" {
		path = "/"
	}

	resp, err := h.api.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to forward request", "error", err, "path", path)
		h.resp.Error(w, r, http.StatusBadGateway, "Service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range []string{"Content-Type", "Allow", "Location"} {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.InfoContext(r.Context(), "request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to copy response body", "error", err)
	}
}
