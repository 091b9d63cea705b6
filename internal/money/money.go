// Cálculo de montos y cambio. Todo el dinero se maneja con decimales
// de punto fijo: las comparaciones contra el total deben ser exactas.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash  Method = "CASH"
	MethodOther Method = "OTHER"
)

func (m Method) Valid() bool {
	return m == MethodCash || m == MethodOther
}

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientPayment = errors.New("insufficient payment")
)

// PaymentError lleva los montos para que el llamador pueda armar el mensaje.
type PaymentError struct {
	Total    decimal.Decimal
	Received decimal.Decimal
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: received %s, total %s", e.Received, e.Total)
}

func (e *PaymentError) Unwrap() error { return ErrInsufficientPayment }

// Change calcula el cambio a devolver: recibido − total.
func Change(total, received decimal.Decimal) decimal.Decimal {
	return received.Sub(total)
}

// ChangeFor aplica la política por método de pago: si no se registró pago
// recibido el cambio es 0, y nunca se persiste un cambio negativo.
func ChangeFor(method Method, total, received decimal.Decimal) decimal.Decimal {
	if received.IsZero() {
		return decimal.Zero
	}
	c := Change(total, received)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// ValidatePayment revisa método y montos antes de cualquier mutación.
// Para efectivo el pago recibido debe cubrir el total.
func ValidatePayment(method Method, total, received decimal.Decimal) error {
	if method == "" {
		return fmt.Errorf("%w: payment method required", ErrInvalidInput)
	}
	if !method.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}
	if total.IsNegative() || received.IsNegative() {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidInput)
	}
	if method == MethodCash && received.LessThan(total) {
		return &PaymentError{Total: total, Received: received}
	}
	return nil
}
