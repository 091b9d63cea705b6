package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jpcadavid/libreria/internal/money"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func insertSaleTx(ctx context.Context, tx *sql.Tx, s *Sale) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sales(ref,customer_id,method,total,discount,received,change_due,status,created_unix,updated_unix)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		s.Ref, s.CustomerID, string(s.Method), s.Total.String(), s.Discount.String(),
		s.Received.String(), s.ChangeDue.String(), string(s.Status),
		s.CreatedUnix, s.UpdatedUnix)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertLineTx(ctx context.Context, tx *sql.Tx, saleID int64, l *Line) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sale_lines(sale_id,book_id,title,qty,unit_price,subtotal)
		VALUES(?,?,?,?,?,?)`,
		saleID, l.BookID, l.Title, l.Qty, l.UnitPrice.String(), l.Subtotal.String())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*Sale, error) {
	var s Sale
	var method, total, discount, received, change, status string
	err := row.Scan(&s.ID, &s.Ref, &s.CustomerID, &method, &total, &discount,
		&received, &change, &status, &s.CreatedUnix, &s.UpdatedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Method = money.Method(method)
	s.Status = Status(status)
	for _, p := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&s.Total, total}, {&s.Discount, discount},
		{&s.Received, received}, {&s.ChangeDue, change},
	} {
		if *p.dst, err = decimal.NewFromString(p.src); err != nil {
			return nil, fmt.Errorf("sale %d: bad amount %q: %w", s.ID, p.src, err)
		}
	}
	return &s, nil
}

const saleColumns = `id,ref,customer_id,method,total,discount,received,change_due,status,created_unix,updated_unix`

func (r *Repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	s.Lines, err = r.lines(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func getSaleTx(ctx context.Context, tx *sql.Tx, id int64) (*Sale, error) {
	return scanSale(tx.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id=?`, id))
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Repository) lines(ctx context.Context, q queryer, saleID int64) ([]Line, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id,sale_id,book_id,title,qty,unit_price,subtotal
		FROM sale_lines WHERE sale_id=? ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		var unit, sub string
		if err := rows.Scan(&l.ID, &l.SaleID, &l.BookID, &l.Title, &l.Qty, &unit, &sub); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if l.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) listSales(ctx context.Context, where string, args ...any) ([]*Sale, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales `+where+` ORDER BY created_unix DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) ListSales(ctx context.Context) ([]*Sale, error) {
	return r.listSales(ctx, ``)
}

func (r *Repository) ListSalesForCustomer(ctx context.Context, customerID int64) ([]*Sale, error) {
	return r.listSales(ctx, `WHERE customer_id=?`, customerID)
}

func (r *Repository) UpdateHeader(ctx context.Context, id int64, req EditRequest, change decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sales SET customer_id=?,method=?,total=?,discount=?,received=?,change_due=?,status=?,updated_unix=?
		WHERE id=?`,
		req.CustomerID, string(req.Method), req.Total.String(), req.Discount.String(),
		req.Received.String(), change.String(), string(req.Status), time.Now().Unix(), id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func markCancelledTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE sales SET status=?, updated_unix=? WHERE id=?`,
		string(StatusCancelled), time.Now().Unix(), id)
	return err
}

// DeleteSale borra encabezado y líneas SIN restaurar stock (override
// administrativo, distinto de cancelar).
func (r *Repository) DeleteSale(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CountSales(ctx context.Context) (int64, error) {
	var c int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sales`).Scan(&c)
	return c, err
}

// TodayStats cuenta ventas del día e ingresos (solo COMPLETED).
func (r *Repository) TodayStats(ctx context.Context) (int64, decimal.Decimal, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()

	rows, err := r.db.QueryContext(ctx,
		`SELECT total, status FROM sales WHERE created_unix >= ?`, midnight)
	if err != nil {
		return 0, decimal.Zero, err
	}
	defer rows.Close()

	var count int64
	revenue := decimal.Zero
	for rows.Next() {
		var total, status string
		if err := rows.Scan(&total, &status); err != nil {
			return 0, decimal.Zero, err
		}
		count++
		if Status(status) == StatusCompleted {
			d, err := decimal.NewFromString(total)
			if err != nil {
				return 0, decimal.Zero, err
			}
			revenue = revenue.Add(d)
		}
	}
	return count, revenue, rows.Err()
}
