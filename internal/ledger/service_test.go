package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcadavid/libreria/internal/cart"
	"github.com/jpcadavid/libreria/internal/catalog"
	"github.com/jpcadavid/libreria/internal/money"
	"github.com/jpcadavid/libreria/internal/storage"
)

// publicador de prueba que solo registra lo publicado
type recordingEvents struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingEvents) Publish(ctx context.Context, key string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

type fixture struct {
	db      *sql.DB
	catalog *catalog.Repository
	cart    *cart.Repository
	svc     *Service
	events  *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(context.Background(), db))

	cat, err := catalog.NewRepository(db)
	require.NoError(t, err)
	ev := &recordingEvents{}
	svc := NewService(NewRepository(db), cat, ev, zerolog.Nop(), 1)
	return &fixture{
		db:      db,
		catalog: cat,
		cart:    cart.NewRepository(db),
		svc:     svc,
		events:  ev,
	}
}

func (f *fixture) seedCustomer(t *testing.T, email string) int64 {
	t.Helper()
	res, err := f.db.Exec(`
		INSERT INTO users(name,email,password_hash,is_staff,created_unix,updated_unix)
		VALUES('Cliente',?,'x',0,0,0)`, email)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (f *fixture) seedBook(t *testing.T, title, price string, stock int64) int64 {
	t.Helper()
	ctx := context.Background()
	aid, err := f.catalog.CreateAuthor(ctx, &catalog.Author{Name: "Mario", LastName: "Vargas Llosa"})
	require.NoError(t, err)
	pid, err := f.catalog.CreatePublisher(ctx, &catalog.Publisher{Name: "Alfaguara"})
	require.NoError(t, err)
	id, err := f.catalog.CreateBook(ctx, &catalog.Book{
		Title: title, ISBN: "isbn-" + title, AuthorID: aid, PublisherID: pid,
		Price: decimal.RequireFromString(price), Stock: stock,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) stock(t *testing.T, bookID int64) int64 {
	t.Helper()
	s, err := f.catalog.AvailableStock(context.Background(), bookID)
	require.NoError(t, err)
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateSale_TotalsAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "a@x.co")
	book := f.seedBook(t, "Conversación", "10.00", 5)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodCash,
		[]LineRequest{{BookID: book, Qty: 3}}, decimal.Zero, dec("30.00"))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, sale.Status)
	assert.NotEmpty(t, sale.Ref)
	assert.True(t, sale.Total.Equal(dec("30.00")))
	assert.True(t, sale.ChangeDue.IsZero())
	require.Len(t, sale.Lines, 1)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(dec("10.00")))
	assert.True(t, sale.Lines[0].Subtotal.Equal(dec("30.00")))
	assert.Equal(t, int64(2), f.stock(t, book))

	// total == Σ(qty × unit) − descuento
	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, l := range got.Lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Qty)))
	}
	assert.True(t, got.Total.Equal(sum.Sub(got.Discount)))
}

func TestCreateSale_Discount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "b@x.co")
	book := f.seedBook(t, "Descuento", "10.00", 5)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodCash,
		[]LineRequest{{BookID: book, Qty: 2}}, dec("5.00"), dec("15.00"))
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(dec("15.00")))
	assert.True(t, sale.ChangeDue.IsZero())

	// descuento mayor que la suma es inválido
	_, err = f.svc.CreateSale(ctx, customer, money.MethodCash,
		[]LineRequest{{BookID: book, Qty: 1}}, dec("50.00"), dec("0.00"))
	assert.ErrorIs(t, err, money.ErrInvalidInput)
}

func TestCreateSale_InsufficientPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "c@x.co")
	book := f.seedBook(t, "Caro", "10.00", 5)

	_, err := f.svc.CreateSale(ctx, customer, money.MethodCash,
		[]LineRequest{{BookID: book, Qty: 3}}, decimal.Zero, dec("29.99"))
	assert.ErrorIs(t, err, money.ErrInsufficientPayment)

	// se rechaza antes de cualquier mutación
	assert.Equal(t, int64(5), f.stock(t, book))
	sales, err := f.svc.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

// Política estricta: una línea sin stock suficiente revierte la venta completa.
func TestCreateSale_StrictLinePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "d@x.co")
	ok := f.seedBook(t, "ConStock", "10.00", 5)
	scarce := f.seedBook(t, "Escaso", "10.00", 5)

	_, err := f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: ok, Qty: 2}, {BookID: scarce, Qty: 10}},
		decimal.Zero, decimal.Zero)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	// nada quedó aplicado: ni líneas, ni encabezado, ni stock
	assert.Equal(t, int64(5), f.stock(t, ok))
	assert.Equal(t, int64(5), f.stock(t, scarce))
	sales, err := f.svc.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestCreateSale_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "e@x.co")
	book := f.seedBook(t, "Valida", "10.00", 5)

	_, err := f.svc.CreateSale(ctx, customer, money.MethodOther, nil, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, money.ErrInvalidInput)

	_, err = f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 0}}, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, money.ErrInvalidInput)

	_, err = f.svc.CreateSale(ctx, customer, "",
		[]LineRequest{{BookID: book, Qty: 1}}, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, money.ErrInvalidInput)

	_, err = f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: 999, Qty: 1}}, decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

// Crear y cancelar devuelve el stock exactamente al valor previo.
func TestCancelSale_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "f@x.co")
	b1 := f.seedBook(t, "Primero", "10.00", 5)
	b2 := f.seedBook(t, "Segundo", "20.00", 8)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: b1, Qty: 3}, {BookID: b2, Qty: 2}},
		decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.stock(t, b1))
	assert.Equal(t, int64(6), f.stock(t, b2))

	cancelled, err := f.svc.CancelSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(5), f.stock(t, b1))
	assert.Equal(t, int64(8), f.stock(t, b2))
}

// La cancelación no es re-ejecutable: el segundo intento falla y el stock
// no se acredita dos veces.
func TestCancelSale_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "g@x.co")
	book := f.seedBook(t, "Doble", "10.00", 5)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 2}}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	_, err = f.svc.CancelSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, book))

	_, err = f.svc.CancelSale(ctx, sale.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(5), f.stock(t, book))
}

func TestCancelSale_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelSale(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Escenario de la tienda: stock 5, precio 10.00, el cliente agrega 3 al
// carrito y paga en efectivo con 30.00 exactos.
func TestCheckout_ExactCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "h@x.co")
	book := f.seedBook(t, "Escenario", "10.00", 5)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.cart.AddItem(ctx, customer, book))
	}

	sale, err := f.svc.Checkout(ctx, customer, money.MethodCash, dec("30.00"))
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(dec("30.00")))
	assert.True(t, sale.ChangeDue.IsZero())
	assert.Equal(t, int64(2), f.stock(t, book))

	// el carrito queda vacío en la misma transacción
	items, err := f.cart.Items(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	customer := f.seedCustomer(t, "i@x.co")
	_, err := f.svc.Checkout(context.Background(), customer, money.MethodCash, dec("10.00"))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_InsufficientPayment_KeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "j@x.co")
	book := f.seedBook(t, "Guardado", "10.00", 5)

	require.NoError(t, f.cart.AddItem(ctx, customer, book))
	_, err := f.svc.Checkout(ctx, customer, money.MethodCash, dec("5.00"))
	assert.ErrorIs(t, err, money.ErrInsufficientPayment)

	items, err := f.cart.Items(ctx, customer)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(5), f.stock(t, book))
}

// La edición sobreescribe el encabezado y recalcula el cambio; el stock y
// las líneas no se tocan.
func TestEditSale_HeaderOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "k@x.co")
	book := f.seedBook(t, "Editable", "10.00", 5)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodCash,
		[]LineRequest{{BookID: book, Qty: 2}}, decimal.Zero, dec("20.00"))
	require.NoError(t, err)

	edited, err := f.svc.EditSale(ctx, sale.ID, EditRequest{
		CustomerID: customer,
		Method:     money.MethodCash,
		Total:      dec("20.00"),
		Discount:   decimal.Zero,
		Received:   dec("50.00"),
		Status:     StatusCompleted,
	})
	require.NoError(t, err)
	assert.True(t, edited.ChangeDue.Equal(dec("30.00")))
	assert.Equal(t, int64(3), f.stock(t, book))
	require.Len(t, edited.Lines, 1)
	assert.Equal(t, int64(2), edited.Lines[0].Qty)
}

func TestEditSale_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "l@x.co")
	book := f.seedBook(t, "EditVal", "10.00", 5)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 1}}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	_, err = f.svc.EditSale(ctx, sale.ID, EditRequest{Method: "BAD", Status: StatusCompleted})
	assert.ErrorIs(t, err, money.ErrInvalidInput)

	_, err = f.svc.EditSale(ctx, sale.ID, EditRequest{Method: money.MethodOther, Status: "WEIRD"})
	assert.ErrorIs(t, err, money.ErrInvalidInput)

	_, err = f.svc.EditSale(ctx, 999, EditRequest{
		CustomerID: customer, Method: money.MethodOther, Status: StatusCompleted,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

// Borrar es destructivo: elimina venta y líneas sin devolver stock.
func TestDeleteSale_NoStockRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "m@x.co")
	book := f.seedBook(t, "Borrable", "10.00", 5)

	sale, err := f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 2}}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSale(ctx, sale.ID))
	assert.Equal(t, int64(3), f.stock(t, book))

	_, err = f.svc.GetSale(ctx, sale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteSale(ctx, sale.ID), ErrNotFound)
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "n@x.co")
	book := f.seedBook(t, "Eventos", "10.00", 3)

	// deja el stock en 1 (≤ umbral): debe salir sale.completed y stock.low
	sale, err := f.svc.CreateSale(ctx, customer, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 2}}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.Contains(t, f.events.keys, RKSaleCompleted)
	assert.Contains(t, f.events.keys, RKStockLow)

	_, err = f.svc.CancelSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Contains(t, f.events.keys, RKSaleCancelled)
}

func TestListSalesForCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.seedCustomer(t, "o@x.co")
	c2 := f.seedCustomer(t, "p@x.co")
	book := f.seedBook(t, "Historial", "10.00", 10)

	_, err := f.svc.CreateSale(ctx, c1, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 1}}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	_, err = f.svc.CreateSale(ctx, c2, money.MethodOther,
		[]LineRequest{{BookID: book, Qty: 1}}, decimal.Zero, decimal.Zero)
	require.NoError(t, err)

	mine, err := f.svc.ListSalesForCustomer(ctx, c1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c1, mine[0].CustomerID)

	all, err := f.svc.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := f.svc.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	todayCount, revenue, err := f.svc.TodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), todayCount)
	assert.True(t, revenue.Equal(dec("20.00")))
}
