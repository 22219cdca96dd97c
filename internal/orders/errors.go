package orders

import "errors"

var (
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict means the order's status changed between read and
	// write.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
