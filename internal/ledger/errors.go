package ledger

import (
	"errors"
	"fmt"
	"strings"

	"feedmill-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound  = errors.New("stock item not found")
	ErrInvalidAmount = errors.New("quantity must be greater than zero")
)

// Shortage describes one stock row that could not cover a requested deduction.
type Shortage struct {
	ProductType models.StockProductType `json:"product_type"`
	ProductID   uint                    `json:"product_id"`
	Name        string                  `json:"name"`
	Required    decimal.Decimal         `json:"required"`
	Available   decimal.Decimal         `json:"available"`
	Shortage    decimal.Decimal         `json:"shortage"`
}

// InsufficientStockError carries the specific shortages so callers can report
// which material is short instead of a bare failure.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s: need %s, have %s", s.Name, s.Required, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// ValidationError is a rejected input on the adjustment path; nothing was
// mutated when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
