package domain

import "time"

type OrderStatus string

const (
	OrderStatusReceived       OrderStatus = "Order Received"
	OrderStatusPreparing      OrderStatus = "Preparing"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
)

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem is a line item. Name and Price are snapshots taken when the
// order was placed, independent of later menu changes.
type OrderItem struct {
	MenuItemID string  `json:"menuItemId" validate:"required"`
	Name       string  `json:"name" validate:"required"`
	Price      float64 `json:"price" validate:"gte=0"`
	Quantity   int     `json:"quantity" validate:"min=1"`
}

type DeliveryDetails struct {
	Name    string `json:"name" validate:"min=1"`
	Address string `json:"address" validate:"min=1"`
	Phone   string `json:"phone" validate:"min=10"`
}

type Order struct {
	ID              string          `json:"id"`
	Items           []OrderItem     `json:"items"`
	DeliveryDetails DeliveryDetails `json:"deliveryDetails"`
	Status          OrderStatus     `json:"status"`
	Total           float64         `json:"total"`
	CreatedAt       time.Time       `json:"createdAt"`
}
