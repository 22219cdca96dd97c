// Package lifecycle defines the order status state machine.
//
// Orders move through a fixed progression, one step at a time:
//
//	Order Received -> Preparing -> Out for Delivery -> Delivered
//
// Delivered is terminal. There is no cancellation and no way back.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/foodflow/internal/domain"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var progression = []domain.OrderStatus{
	domain.OrderStatusReceived,
	domain.OrderStatusPreparing,
	domain.OrderStatusOutForDelivery,
	domain.OrderStatusDelivered,
}

// Statuses returns every status in progression order.
func Statuses() []domain.OrderStatus {
	out := make([]domain.OrderStatus, len(progression))
	copy(out, progression)
	return out
}

// NonTerminal returns every status an order can still advance from.
func NonTerminal() []domain.OrderStatus {
	return Statuses()[:len(progression)-1]
}

func Initial() domain.OrderStatus {
	return progression[0]
}

func Terminal() domain.OrderStatus {
	return progression[len(progression)-1]
}

func IsValid(s domain.OrderStatus) bool {
	return indexOf(s) >= 0
}

func IsTerminal(s domain.OrderStatus) bool {
	return s == Terminal()
}

// Next returns the status that follows s. It reports false when s is
// terminal or not a known status.
func Next(s domain.OrderStatus) (domain.OrderStatus, bool) {
	i := indexOf(s)
	if i < 0 || i == len(progression)-1 {
		return "", false
	}
	return progression[i+1], true
}

func indexOf(s domain.OrderStatus) int {
	for i, candidate := range progression {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Policy decides which manually requested transitions are allowed.
// The scheduler never consults it; it only ever calls Next.
type Policy int

const (
	// ForwardOnly accepts the current status (a no-op) or its successor.
	ForwardOnly Policy = iota
	// OperatorOverride accepts any known status.
	OperatorOverride
)

func (p Policy) String() string {
	switch p {
	case ForwardOnly:
		return "forward-only"
	case OperatorOverride:
		return "operator-override"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Check reports whether moving from current to requested is allowed.
func (p Policy) Check(current, requested domain.OrderStatus) error {
	if !IsValid(requested) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, requested)
	}

	if p == OperatorOverride || requested == current {
		return nil
	}

	if next, ok := Next(current); ok && next == requested {
		return nil
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, requested)
}
