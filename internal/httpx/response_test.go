package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/foodflow/internal/validation"
)

func TestResponder(t *testing.T) {
	re := NewResponder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	t.Run("error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		re.Error(rec, req, http.StatusNotFound, "Order not found")

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
		if strings.TrimSpace(rec.Body.String()) != `{"message":"Order not found"}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("validation error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		verr := validation.Fail(validation.FieldError{Field: "status", Message: "is required"})
		re.ValidationError(rec, req, "Invalid status", verr)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Message != "Invalid status" {
			t.Errorf("expected 'Invalid status', got %s", resp.Message)
		}
		if len(resp.Errors) != 1 || resp.Errors[0].Field != "status" {
			t.Errorf("unexpected field errors: %+v", resp.Errors)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "valid", body: `{"status":"Preparing","count":1}`},
		{name: "malformed", body: `{"status":`, wantField: "body"},
		{name: "empty", body: ``, wantField: "body"},
		{name: "wrong type", body: `{"count":"one"}`, wantField: "count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst payload
			err := DecodeJSON(req, &dst)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *validation.Error, got %v", err)
			}
			if verr.Fields[0].Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, verr.Fields[0].Field)
			}
		})
	}
}
