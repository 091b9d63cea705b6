package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type StockError struct {
	BookID    int64
	Requested int64
	Available int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %d: requested %d, available %d",
		e.BookID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// DBTX permite usar las primitivas de stock con *sql.DB o dentro de la
// transacción de una venta.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AvailableStock falla con ErrNotFound si el libro no existe.
func AvailableStock(ctx context.Context, q DBTX, bookID int64) (int64, error) {
	var stock int64
	err := q.QueryRowContext(ctx, `SELECT stock FROM books WHERE id=?`, bookID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// DecrementStock descuenta qty de forma atómica: la condición stock >= qty
// va en el mismo UPDATE, nunca como lectura previa sin guardia.
func DecrementStock(ctx context.Context, q DBTX, bookID, qty int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE books SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		qty, bookID, qty)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		avail, err := AvailableStock(ctx, q, bookID)
		if err != nil {
			return err
		}
		return &StockError{BookID: bookID, Requested: qty, Available: avail}
	}
	return nil
}

// IncrementStock restaura stock en cancelaciones; confía en el llamador,
// sin tope superior.
func IncrementStock(ctx context.Context, q DBTX, bookID, qty int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE books SET stock = stock + ? WHERE id = ?`, qty, bookID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}
	return nil
}
