package service

import "fmt"

// ValidationError is a recoverable, field-level rejection of external input.
// The caller redisplays the originating form with the message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError rejects a sale whose quantity exceeds the product's
// current stock. Available is carried for display.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}
