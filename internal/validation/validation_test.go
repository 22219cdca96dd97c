package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

type orderPayload struct {
	Items           []domain.OrderItem     `json:"items" validate:"required,min=1,dive"`
	DeliveryDetails domain.DeliveryDetails `json:"deliveryDetails"`
	Total           float64                `json:"total" validate:"gt=0"`
}

func validPayload() orderPayload {
	return orderPayload{
		Items: []domain.OrderItem{
			{MenuItemID: "1", Name: "Burger", Price: 10.99, Quantity: 2},
		},
		DeliveryDetails: domain.DeliveryDetails{
			Name:    "Jane Doe",
			Address: "456 Real Street",
			Phone:   "5551234567",
		},
		Total: 21.98,
	}
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}

	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestStruct(t *testing.T) {
	t.Run("accepts a valid payload", func(t *testing.T) {
		if err := Struct(validPayload()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects empty items", func(t *testing.T) {
		p := validPayload()
		p.Items = []domain.OrderItem{}

		fields := fieldMessages(t, Struct(p))
		if fields["items"] != "must contain at least 1 item(s)" {
			t.Errorf("unexpected items message: %q", fields["items"])
		}
	})

	t.Run("rejects missing items", func(t *testing.T) {
		p := validPayload()
		p.Items = nil

		fields := fieldMessages(t, Struct(p))
		if fields["items"] != "is required" {
			t.Errorf("unexpected items message: %q", fields["items"])
		}
	})

	t.Run("rejects short phone", func(t *testing.T) {
		p := validPayload()
		p.DeliveryDetails.Phone = "123"

		fields := fieldMessages(t, Struct(p))
		if fields["deliveryDetails.phone"] != "must be at least 10 characters" {
			t.Errorf("unexpected phone message: %q", fields["deliveryDetails.phone"])
		}
	})

	t.Run("rejects empty delivery name and reports every field", func(t *testing.T) {
		p := validPayload()
		p.DeliveryDetails.Name = ""
		p.Total = 0

		fields := fieldMessages(t, Struct(p))
		if _, ok := fields["deliveryDetails.name"]; !ok {
			t.Error("expected deliveryDetails.name failure")
		}
		if fields["total"] != "must be greater than 0" {
			t.Errorf("unexpected total message: %q", fields["total"])
		}
	})

	t.Run("reports item index for zero quantity", func(t *testing.T) {
		p := validPayload()
		p.Items = append(p.Items, domain.OrderItem{MenuItemID: "2", Name: "Fries", Price: 4.99, Quantity: 0})

		fields := fieldMessages(t, Struct(p))
		if fields["items[1].quantity"] != "must be at least 1" {
			t.Errorf("unexpected quantity message: %q (all: %v)", fields["items[1].quantity"], fields)
		}
	})

	t.Run("error string lists fields", func(t *testing.T) {
		p := validPayload()
		p.DeliveryDetails.Phone = "1"

		err := Struct(p)
		if !strings.Contains(err.Error(), "deliveryDetails.phone") {
			t.Errorf("expected field name in error string, got %q", err.Error())
		}
	})
}

func TestVar(t *testing.T) {
	t.Run("accepts a known status", func(t *testing.T) {
		if err := Var("status", "Preparing", "required,order_status"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		fields := fieldMessages(t, Var("status", "Bogus", "required,order_status"))
		if !strings.HasPrefix(fields["status"], "must be one of: Order Received") {
			t.Errorf("unexpected status message: %q", fields["status"])
		}
	})

	t.Run("rejects an empty status", func(t *testing.T) {
		fields := fieldMessages(t, Var("status", "", "required,order_status"))
		if fields["status"] != "is required" {
			t.Errorf("unexpected status message: %q", fields["status"])
		}
	})
}
