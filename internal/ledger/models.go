package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jpcadavid/libreria/internal/money"
)

type Status string

const (
	// COMPLETED es el único estado inicial persistido; CANCELLED es terminal.
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var (
	ErrNotFound     = errors.New("sale not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrEmptyCart    = errors.New("cart is empty")
)

// StateError identifica la transición rechazada (p. ej. cancelar dos veces).
type StateError struct {
	SaleID int64
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("sale %d: cannot cancel from status %s", e.SaleID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

type Sale struct {
	ID          int64           `json:"id"`
	Ref         string          `json:"ref"`
	CustomerID  int64           `json:"customer_id"`
	Method      money.Method    `json:"method"`
	Total       decimal.Decimal `json:"total"`
	Discount    decimal.Decimal `json:"discount"`
	Received    decimal.Decimal `json:"received"`
	ChangeDue   decimal.Decimal `json:"change_due"`
	Status      Status          `json:"status"`
	CreatedUnix int64           `json:"created_unix"`
	UpdatedUnix int64           `json:"updated_unix"`
	Lines       []Line          `json:"lines,omitempty"`
}

// Line congela el precio unitario al momento de la venta; cambios
// posteriores del precio del libro no la afectan.
type Line struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	BookID    int64           `json:"book_id"`
	Title     string          `json:"title"`
	Qty       int64           `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type LineRequest struct {
	BookID int64 `json:"book_id"`
	Qty    int64 `json:"qty"`
}

// EditRequest sobreescribe el encabezado completo; nunca toca stock ni líneas.
type EditRequest struct {
	CustomerID int64           `json:"customer_id"`
	Method     money.Method    `json:"method"`
	Total      decimal.Decimal `json:"total"`
	Discount   decimal.Decimal `json:"discount"`
	Received   decimal.Decimal `json:"received"`
	Status     Status          `json:"status"`
}
