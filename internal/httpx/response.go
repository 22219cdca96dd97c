// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/joao-fontenele/foodflow/internal/validation"
)

// maxBodyBytes bounds request bodies read by DecodeJSON.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

type Responder struct {
	logger *slog.Logger
}

func NewResponder(logger *slog.Logger) *Responder {
	return &Responder{logger: logger}
}

func (re *Responder) JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		re.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func (re *Responder) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	re.JSON(w, r, status, ErrorResponse{Message: message})
}

// ValidationError writes a 400 with the field errors of verr.
func (re *Responder) ValidationError(w http.ResponseWriter, r *http.Request, message string, verr *validation.Error) {
	re.JSON(w, r, http.StatusBadRequest, ErrorResponse{Message: message, Errors: verr.Fields})
}

// DecodeJSON decodes the request body into dst. Malformed bodies are
// reported as a *validation.Error on the "body" field.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return validation.Fail(validation.FieldError{
				Field:   typeErr.Field,
				Message: "must be " + jsonKind(typeErr.Type.Kind()),
			})
		}
		return validation.Fail(validation.FieldError{
			Field:   "body",
			Message: "must be a valid JSON object",
		})
	}
	return nil
}

func jsonKind(k reflect.Kind) string {
	switch k {
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	default:
		return "a number"
	}
}
