package domain

import "time"

type OrderCreatedEvent struct {
	OrderID   string      `json:"order_id"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

// TransitionSource identifies who moved an order to its new status.
type TransitionSource string

const (
	TransitionSourceScheduler TransitionSource = "scheduler"
	TransitionSourceOperator  TransitionSource = "operator"
)

type OrderStatusChangedEvent struct {
	OrderID        string           `json:"order_id"`
	PreviousStatus OrderStatus      `json:"previous_status"`
	Status         OrderStatus      `json:"status"`
	Source         TransitionSource `json:"source"`
	Timestamp      time.Time        `json:"timestamp"`
}
