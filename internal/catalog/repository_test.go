package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpcadavid/libreria/internal/storage"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(context.Background(), db))
	return db
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(newTestDB(t))
	require.NoError(t, err)
	return repo
}

func seedBook(t *testing.T, r *Repository, title string, price string, stock int64) int64 {
	t.Helper()
	ctx := context.Background()
	authorID, err := r.CreateAuthor(ctx, &Author{Name: "Jorge", LastName: "Borges"})
	require.NoError(t, err)
	pubID, err := r.CreatePublisher(ctx, &Publisher{Name: "Emecé"})
	require.NoError(t, err)
	id, err := r.CreateBook(ctx, &Book{
		Title:       title,
		ISBN:        "isbn-" + title,
		AuthorID:    authorID,
		PublisherID: pubID,
		Year:        1944,
		Price:       mustDec(t, price),
		Stock:       stock,
	})
	require.NoError(t, err)
	return id
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestGetBook_NotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetBook(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecrementStock(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	id := seedBook(t, r, "Ficciones", "30.00", 5)

	require.NoError(t, r.DecrementStock(ctx, id, 3))
	stock, err := r.AvailableStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)

	// pedir más de lo disponible no muta nada
	err = r.DecrementStock(ctx, id, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var se *StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(2), se.Available)
	assert.Equal(t, int64(3), se.Requested)

	stock, err = r.AvailableStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stock)
}

func TestDecrementStock_NotFound(t *testing.T) {
	r := newTestRepo(t)
	err := r.DecrementStock(context.Background(), 12345, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementStock(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	id := seedBook(t, r, "El Aleph", "25.00", 0)

	require.NoError(t, r.IncrementStock(ctx, id, 4))
	stock, err := r.AvailableStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)
}

// Dos compradores por la última unidad: exactamente uno gana.
func TestDecrementStock_ConcurrentLastUnit(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	id := seedBook(t, r, "Último", "10.00", 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.DecrementStock(ctx, id, 1)
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	stock, err := r.AvailableStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock)
}

func TestListAvailableBooks(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, r, "ConStock", "10.00", 2)
	seedBook(t, r, "SinStock", "10.00", 0)

	books, err := r.ListAvailableBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "ConStock", books[0].Title)

	all, err := r.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateBook_InvalidatesCache(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	id := seedBook(t, r, "Cacheado", "10.00", 2)

	b, err := r.GetBook(ctx, id)
	require.NoError(t, err)

	updated := *b
	updated.Price = mustDec(t, "12.50")
	require.NoError(t, r.UpdateBook(ctx, &updated))

	b2, err := r.GetBook(ctx, id)
	require.NoError(t, err)
	assert.True(t, b2.Price.Equal(mustDec(t, "12.50")))
}

func TestAuthorPublisherCRUD(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	aid, err := r.CreateAuthor(ctx, &Author{Name: "Julio", LastName: "Cortázar", Nationality: "Argentina"})
	require.NoError(t, err)
	require.NoError(t, r.UpdateAuthor(ctx, &Author{ID: aid, Name: "Julio", LastName: "Cortázar", Nationality: "Francia"}))

	authors, err := r.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "Francia", authors[0].Nationality)

	require.NoError(t, r.DeleteAuthor(ctx, aid))
	assert.ErrorIs(t, r.DeleteAuthor(ctx, aid), ErrNotFound)

	_, err = r.CreateAuthor(ctx, &Author{Name: "", LastName: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	pid, err := r.CreatePublisher(ctx, &Publisher{Name: "Anagrama", Country: "España"})
	require.NoError(t, err)
	require.NoError(t, r.DeletePublisher(ctx, pid))
	assert.ErrorIs(t, r.DeletePublisher(ctx, pid), ErrNotFound)
}
