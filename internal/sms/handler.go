// Package sms is a stand-in SMS gateway. It validates and logs messages
// instead of delivering them.
package sms

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodflow/internal/httpx"
	"github.com/joao-fontenele/foodflow/internal/validation"
)

type Handler struct {
	logger *slog.Logger
	resp   *httpx.Responder
	delay  func() time.Duration
}

type Option func(*Handler)

// WithDelay overrides the simulated carrier latency.
func WithDelay(delay func() time.Duration) Option {
	return func(h *Handler) {
		h.delay = delay
	}
}

func NewHandler(logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger: logger,
		resp:   httpx.NewResponder(logger),
		delay: func() time.Duration {
			return time.Duration(50+rand.IntN(151)) * time.Millisecond
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type sendRequest struct {
	To   string `json:"to" validate:"required,min=10,max=20"`
	Body string `json:"body" validate:"required,max=480"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	err := httpx.DecodeJSON(r, &req)
	if err == nil {
		err = validation.Struct(req)
	}
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			h.resp.ValidationError(w, r, "Validation failed", verr)
			return
		}
		h.resp.Error(w, r, http.StatusBadRequest, "Validation failed")
		return
	}

	select {
	case <-time.After(h.delay()):
	case <-r.Context().Done():
		return
	}

	id := uuid.New().String()
	h.logger.InfoContext(r.Context(), "sms sent", "message_id", id, "to", mask(req.To), "length", len(req.Body))

	h.resp.JSON(w, r, http.StatusOK, sendResponse{ID: id, Status: "sent"})
}

// mask hides all but the last four digits of a phone number.
func mask(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(phone)-4:], phone[len(phone)-4:])
	return string(masked)
}
