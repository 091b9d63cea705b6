// Máquina de estados de ventas: creación, checkout, edición de encabezado,
// cancelación con restauración de stock y borrado administrativo. Toda
// secuencia encabezado+líneas+stock va en una sola transacción.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jpcadavid/libreria/internal/cart"
	"github.com/jpcadavid/libreria/internal/catalog"
	"github.com/jpcadavid/libreria/internal/money"
)

type Events interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

const (
	RKSaleCompleted = "sale.completed"
	RKSaleCancelled = "sale.cancelled"
	RKStockLow      = "stock.low"
)

type SaleEventPayload struct {
	SaleID     int64  `json:"sale_id"`
	Ref        string `json:"ref"`
	CustomerID int64  `json:"customer_id"`
	Total      string `json:"total"`
}

type StockLowPayload struct {
	BookID    int64 `json:"book_id"`
	Remaining int64 `json:"remaining"`
}

type Service struct {
	repo     *Repository
	catalog  *catalog.Repository
	events   Events
	log      zerolog.Logger
	lowStock int64
}

func NewService(repo *Repository, cat *catalog.Repository, events Events, log zerolog.Logger, lowStock int64) *Service {
	return &Service{repo: repo, catalog: cat, events: events, log: log, lowStock: lowStock}
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	// best-effort: nunca aborta la operación que ya se confirmó
	if err := s.events.Publish(ctx, key, body); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("publish failed")
	}
}

// CreateSale registra una venta administrativa. Política estricta: si una
// línea no tiene stock suficiente, toda la venta se revierte.
func (s *Service) CreateSale(ctx context.Context, customerID int64, method money.Method,
	reqs []LineRequest, discount, received decimal.Decimal) (*Sale, error) {

	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", money.ErrInvalidInput)
	}

	tx, err := s.repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sale, lows, err := s.createSaleTx(ctx, tx, customerID, method, reqs, discount, received)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.afterCommit(ctx, sale, lows)
	return sale, nil
}

// Checkout convierte el carrito del cliente en una venta y lo vacía, todo
// en la misma transacción.
func (s *Service) Checkout(ctx context.Context, customerID int64, method money.Method,
	received decimal.Decimal) (*Sale, error) {

	tx, err := s.repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	items, err := cart.ItemsTx(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	reqs := make([]LineRequest, 0, len(items))
	for _, it := range items {
		reqs = append(reqs, LineRequest{BookID: it.BookID, Qty: it.Qty})
	}

	sale, lows, err := s.createSaleTx(ctx, tx, customerID, method, reqs, decimal.Zero, received)
	if err != nil {
		return nil, err
	}
	if err := cart.ClearTx(ctx, tx, customerID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.afterCommit(ctx, sale, lows)
	return sale, nil
}

func (s *Service) createSaleTx(ctx context.Context, tx *sql.Tx, customerID int64,
	method money.Method, reqs []LineRequest, discount, received decimal.Decimal) (*Sale, []StockLowPayload, error) {

	if discount.IsNegative() {
		return nil, nil, fmt.Errorf("%w: discount must not be negative", money.ErrInvalidInput)
	}

	// 1) Congelar precios y armar líneas; toda validación antes de mutar.
	lines := make([]Line, 0, len(reqs))
	sum := decimal.Zero
	for _, req := range reqs {
		if req.Qty <= 0 {
			return nil, nil, fmt.Errorf("%w: quantity must be positive for book %d",
				money.ErrInvalidInput, req.BookID)
		}
		var title, price string
		err := tx.QueryRowContext(ctx,
			`SELECT title, price FROM books WHERE id=?`, req.BookID).Scan(&title, &price)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("book %d: %w", req.BookID, catalog.ErrNotFound)
		}
		if err != nil {
			return nil, nil, err
		}
		unit, err := decimal.NewFromString(price)
		if err != nil {
			return nil, nil, fmt.Errorf("book %d: bad price %q: %w", req.BookID, price, err)
		}
		subtotal := unit.Mul(decimal.NewFromInt(req.Qty))
		sum = sum.Add(subtotal)
		lines = append(lines, Line{
			BookID:    req.BookID,
			Title:     title,
			Qty:       req.Qty,
			UnitPrice: unit,
			Subtotal:  subtotal,
		})
	}

	total := sum.Sub(discount)
	if total.IsNegative() {
		return nil, nil, fmt.Errorf("%w: discount exceeds line total", money.ErrInvalidInput)
	}
	if err := money.ValidatePayment(method, total, received); err != nil {
		return nil, nil, err
	}

	// 2) Encabezado.
	now := time.Now().Unix()
	sale := &Sale{
		Ref:         uuid.NewString(),
		CustomerID:  customerID,
		Method:      method,
		Total:       total,
		Discount:    discount,
		Received:    received,
		ChangeDue:   money.ChangeFor(method, total, received),
		Status:      StatusCompleted,
		CreatedUnix: now,
		UpdatedUnix: now,
	}
	saleID, err := insertSaleTx(ctx, tx, sale)
	if err != nil {
		return nil, nil, err
	}
	sale.ID = saleID

	// 3) Líneas + descuento de stock condicional. Una línea fallida
	//    revierte la venta completa.
	var lows []StockLowPayload
	for i := range lines {
		lines[i].SaleID = saleID
		lineID, err := insertLineTx(ctx, tx, saleID, &lines[i])
		if err != nil {
			return nil, nil, err
		}
		lines[i].ID = lineID
		if err := catalog.DecrementStock(ctx, tx, lines[i].BookID, lines[i].Qty); err != nil {
			return nil, nil, err
		}
		remaining, err := catalog.AvailableStock(ctx, tx, lines[i].BookID)
		if err != nil {
			return nil, nil, err
		}
		if remaining <= s.lowStock {
			lows = append(lows, StockLowPayload{BookID: lines[i].BookID, Remaining: remaining})
		}
	}
	sale.Lines = lines
	return sale, lows, nil
}

func (s *Service) afterCommit(ctx context.Context, sale *Sale, lows []StockLowPayload) {
	for _, l := range sale.Lines {
		s.catalog.InvalidateBook(l.BookID)
	}
	s.log.Info().
		Int64("sale", sale.ID).
		Str("ref", sale.Ref).
		Str("total", sale.Total.String()).
		Int("lines", len(sale.Lines)).
		Msg("sale completed")
	s.publish(ctx, RKSaleCompleted, SaleEventPayload{
		SaleID:     sale.ID,
		Ref:        sale.Ref,
		CustomerID: sale.CustomerID,
		Total:      sale.Total.String(),
	})
	for _, low := range lows {
		s.publish(ctx, RKStockLow, low)
	}
}

// EditSale sobreescribe el encabezado y recalcula el cambio. No toca stock
// ni líneas: para revertir inventario está CancelSale.
func (s *Service) EditSale(ctx context.Context, saleID int64, req EditRequest) (*Sale, error) {
	if req.Method == "" || !req.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", money.ErrInvalidInput, req.Method)
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", money.ErrInvalidInput, req.Status)
	}
	if req.Total.IsNegative() || req.Discount.IsNegative() || req.Received.IsNegative() {
		return nil, fmt.Errorf("%w: amounts must not be negative", money.ErrInvalidInput)
	}
	change := money.ChangeFor(req.Method, req.Total, req.Received)
	if err := s.repo.UpdateHeader(ctx, saleID, req, change); err != nil {
		return nil, err
	}
	return s.repo.GetSale(ctx, saleID)
}

// CancelSale exige estado COMPLETED: la restauración de stock ocurre
// exactamente una vez. Un segundo intento falla con ErrInvalidState.
func (s *Service) CancelSale(ctx context.Context, saleID int64) (*Sale, error) {
	tx, err := s.repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sale, err := getSaleTx(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != StatusCompleted {
		return nil, &StateError{SaleID: saleID, Status: sale.Status}
	}
	lines, err := s.repo.lines(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if err := catalog.IncrementStock(ctx, tx, l.BookID, l.Qty); err != nil {
			return nil, err
		}
	}
	if err := markCancelledTx(ctx, tx, saleID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, l := range lines {
		s.catalog.InvalidateBook(l.BookID)
	}
	sale.Status = StatusCancelled
	sale.Lines = lines
	s.log.Info().Int64("sale", saleID).Msg("sale cancelled, stock restored")
	s.publish(ctx, RKSaleCancelled, SaleEventPayload{
		SaleID:     sale.ID,
		Ref:        sale.Ref,
		CustomerID: sale.CustomerID,
		Total:      sale.Total.String(),
	})
	return sale, nil
}

// DeleteSale es destructivo: elimina venta y líneas sin restaurar stock.
func (s *Service) DeleteSale(ctx context.Context, saleID int64) error {
	if err := s.repo.DeleteSale(ctx, saleID); err != nil {
		return err
	}
	s.log.Warn().Int64("sale", saleID).Msg("sale deleted without stock restore")
	return nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) ([]*Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) ListSalesForCustomer(ctx context.Context, customerID int64) ([]*Sale, error) {
	return s.repo.ListSalesForCustomer(ctx, customerID)
}

func (s *Service) CountSales(ctx context.Context) (int64, error) {
	return s.repo.CountSales(ctx)
}

func (s *Service) TodayStats(ctx context.Context) (int64, decimal.Decimal, error) {
	return s.repo.TodayStats(ctx)
}
