// Carrito por cliente: tope por ítem contra el stock del catálogo.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jpcadavid/libreria/internal/catalog"
)

type Item struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"-"`
	BookID    int64           `json:"book_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int64           `json:"qty"`
}

// Subtotal usa el precio vigente del libro: el carrito no congela precios.
func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Qty))
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Items(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.book_id, b.title, b.price, ci.qty
		FROM cart_items ci JOIN books b ON b.id = ci.book_id
		WHERE ci.user_id=? ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var price string
		if err := rows.Scan(&it.ID, &it.UserID, &it.BookID, &it.Title, &price, &it.Qty); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AddItem crea la línea con cantidad 1, o incrementa en 1 si ya existe,
// siempre que no supere el stock del libro. La verificación y la escritura
// van en la misma transacción.
func (r *Repository) AddItem(ctx context.Context, userID, bookID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stock, err := catalog.AvailableStock(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if stock == 0 {
		return &catalog.StockError{BookID: bookID, Requested: 1, Available: 0}
	}

	var qty int64
	err = tx.QueryRowContext(ctx,
		`SELECT qty FROM cart_items WHERE user_id=? AND book_id=?`, userID, bookID).Scan(&qty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_items(user_id,book_id,qty) VALUES(?,?,1)`, userID, bookID)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if qty+1 > stock {
			// la línea existente queda intacta
			return &catalog.StockError{BookID: bookID, Requested: qty + 1, Available: stock}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET qty = qty + 1 WHERE user_id=? AND book_id=?`,
			userID, bookID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetQuantity con qty <= 0 elimina la línea (política de borrado, no error).
func (r *Repository) SetQuantity(ctx context.Context, userID, itemID, qty int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var bookID int64
	err = tx.QueryRowContext(ctx,
		`SELECT book_id FROM cart_items WHERE id=? AND user_id=?`, itemID, userID).Scan(&bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cart item %d: %w", itemID, catalog.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if qty <= 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id=?`, itemID); err != nil {
			return err
		}
		return tx.Commit()
	}

	stock, err := catalog.AvailableStock(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if qty > stock {
		return &catalog.StockError{BookID: bookID, Requested: qty, Available: stock}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE cart_items SET qty=? WHERE id=?`, qty, itemID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) RemoveItem(ctx context.Context, userID, itemID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id=? AND user_id=?`, itemID, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart item %d: %w", itemID, catalog.ErrNotFound)
	}
	return nil
}

func (r *Repository) Total(ctx context.Context, userID int64) (decimal.Decimal, error) {
	items, err := r.Items(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total, nil
}

func (r *Repository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id=?`, userID)
	return err
}

// ClearTx vacía el carrito dentro de la transacción del checkout.
func ClearTx(ctx context.Context, q catalog.DBTX, userID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id=?`, userID)
	return err
}

// ItemsTx lee el carrito dentro de una transacción de venta.
func ItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]Item, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.book_id, b.title, b.price, ci.qty
		FROM cart_items ci JOIN books b ON b.id = ci.book_id
		WHERE ci.user_id=? ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var price string
		if err := rows.Scan(&it.ID, &it.UserID, &it.BookID, &it.Title, &price, &it.Qty); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
