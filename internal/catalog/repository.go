package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid input")

const bookCacheSize = 256

type Repository struct {
	db    *sql.DB
	books *lru.Cache[int64, Book]
}

func NewRepository(db *sql.DB) (*Repository, error) {
	cache, err := lru.New[int64, Book](bookCacheSize)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db, books: cache}, nil
}

// ---- libros ----

func (r *Repository) GetBook(ctx context.Context, id int64) (*Book, error) {
	if b, ok := r.books.Get(id); ok {
		return &b, nil
	}
	var b Book
	var price string
	err := r.db.QueryRowContext(ctx, `
		SELECT id,title,isbn,author_id,publisher_id,year,genre,price,stock,description
		FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Title, &b.ISBN, &b.AuthorID, &b.PublisherID, &b.Year,
			&b.Genre, &price, &b.Stock, &b.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if b.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("book %d: bad price %q: %w", id, price, err)
	}
	r.books.Add(id, b)
	return &b, nil
}

func (r *Repository) listBooks(ctx context.Context, onlyAvailable bool) ([]*Book, error) {
	q := `SELECT id,title,isbn,author_id,publisher_id,year,genre,price,stock,description
	      FROM books`
	if onlyAvailable {
		q += ` WHERE stock > 0`
	}
	q += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Book
	for rows.Next() {
		var b Book
		var price string
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN, &b.AuthorID, &b.PublisherID,
			&b.Year, &b.Genre, &price, &b.Stock, &b.Description); err != nil {
			return nil, err
		}
		if b.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *Repository) ListBooks(ctx context.Context) ([]*Book, error) {
	return r.listBooks(ctx, false)
}

// ListAvailableBooks es la vista pública: solo libros con stock.
func (r *Repository) ListAvailableBooks(ctx context.Context) ([]*Book, error) {
	return r.listBooks(ctx, true)
}

func (r *Repository) CreateBook(ctx context.Context, b *Book) (int64, error) {
	if b.Title == "" || b.ISBN == "" {
		return 0, fmt.Errorf("%w: title and isbn are required", ErrInvalidInput)
	}
	if b.Price.IsNegative() || b.Stock < 0 {
		return 0, fmt.Errorf("%w: price and stock must not be negative", ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO books(title,isbn,author_id,publisher_id,year,genre,price,stock,description)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		b.Title, b.ISBN, b.AuthorID, b.PublisherID, b.Year, b.Genre,
		b.Price.String(), b.Stock, b.Description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) UpdateBook(ctx context.Context, b *Book) error {
	if b.Title == "" || b.ISBN == "" {
		return fmt.Errorf("%w: title and isbn are required", ErrInvalidInput)
	}
	if b.Price.IsNegative() || b.Stock < 0 {
		return fmt.Errorf("%w: price and stock must not be negative", ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE books SET title=?,isbn=?,author_id=?,publisher_id=?,year=?,genre=?,
		                 price=?,stock=?,description=?
		WHERE id=?`,
		b.Title, b.ISBN, b.AuthorID, b.PublisherID, b.Year, b.Genre,
		b.Price.String(), b.Stock, b.Description, b.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("book %d: %w", b.ID, ErrNotFound)
	}
	r.books.Remove(b.ID)
	return nil
}

func (r *Repository) DeleteBook(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	r.books.Remove(id)
	return nil
}

// ---- stock ----

func (r *Repository) AvailableStock(ctx context.Context, bookID int64) (int64, error) {
	return AvailableStock(ctx, r.db, bookID)
}

func (r *Repository) DecrementStock(ctx context.Context, bookID, qty int64) error {
	if err := DecrementStock(ctx, r.db, bookID, qty); err != nil {
		return err
	}
	r.books.Remove(bookID)
	return nil
}

func (r *Repository) IncrementStock(ctx context.Context, bookID, qty int64) error {
	if err := IncrementStock(ctx, r.db, bookID, qty); err != nil {
		return err
	}
	r.books.Remove(bookID)
	return nil
}

// InvalidateBook saca del caché una entrada cuyo stock cambió en una
// transacción ajena (ventas, cancelaciones).
func (r *Repository) InvalidateBook(id int64) {
	r.books.Remove(id)
}

// ---- autores ----

func (r *Repository) ListAuthors(ctx context.Context) ([]*Author, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id,name,last_name,nationality,birth_date,biography,website
		FROM authors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name, &a.LastName, &a.Nationality,
			&a.BirthDate, &a.Biography, &a.Website); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *Repository) CreateAuthor(ctx context.Context, a *Author) (int64, error) {
	if a.Name == "" || a.LastName == "" {
		return 0, fmt.Errorf("%w: name and last_name are required", ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO authors(name,last_name,nationality,birth_date,biography,website)
		VALUES(?,?,?,?,?,?)`,
		a.Name, a.LastName, a.Nationality, a.BirthDate, a.Biography, a.Website)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) UpdateAuthor(ctx context.Context, a *Author) error {
	if a.Name == "" || a.LastName == "" {
		return fmt.Errorf("%w: name and last_name are required", ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE authors SET name=?,last_name=?,nationality=?,birth_date=?,biography=?,website=?
		WHERE id=?`,
		a.Name, a.LastName, a.Nationality, a.BirthDate, a.Biography, a.Website, a.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("author %d: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteAuthor(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM authors WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("author %d: %w", id, ErrNotFound)
	}
	return nil
}

// ---- editoriales ----

func (r *Repository) ListPublishers(ctx context.Context) ([]*Publisher, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id,name,address,phone,email,website,country
		FROM publishers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Publisher
	for rows.Next() {
		var p Publisher
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Phone,
			&p.Email, &p.Website, &p.Country); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *Repository) CreatePublisher(ctx context.Context, p *Publisher) (int64, error) {
	if p.Name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO publishers(name,address,phone,email,website,country)
		VALUES(?,?,?,?,?,?)`,
		p.Name, p.Address, p.Phone, p.Email, p.Website, p.Country)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) UpdatePublisher(ctx context.Context, p *Publisher) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE publishers SET name=?,address=?,phone=?,email=?,website=?,country=?
		WHERE id=?`,
		p.Name, p.Address, p.Phone, p.Email, p.Website, p.Country, p.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("publisher %d: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (r *Repository) DeletePublisher(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM publishers WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("publisher %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Repository) CountBooks(ctx context.Context) (int64, error) {
	var c int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM books`).Scan(&c)
	return c, err
}

// Seed inicial opcional (para pruebas locales).
func (r *Repository) Seed(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO authors(id,name,last_name,nationality) VALUES
		  (1,'Gabriel','García Márquez','Colombia'),
		  (2,'Isabel','Allende','Chile')
		ON CONFLICT(id) DO NOTHING`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO publishers(id,name,country) VALUES
		  (1,'Sudamericana','Argentina'),
		  (2,'Plaza & Janés','España')
		ON CONFLICT(id) DO NOTHING`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO books(id,title,isbn,author_id,publisher_id,year,genre,price,stock) VALUES
		  (1,'Cien años de soledad','9780307474728',1,1,1967,'Novela','65.00',10),
		  (2,'El amor en los tiempos del cólera','9780307389732',1,1,1985,'Novela','55.50',5),
		  (3,'La casa de los espíritus','9788401242144',2,2,1982,'Novela','48.90',0)
		ON CONFLICT(id) DO NOTHING`); err != nil {
		return err
	}
	return tx.Commit()
}
