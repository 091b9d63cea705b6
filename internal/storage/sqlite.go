package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // driver 100% Go
)

// Open abre la base con WAL y busy_timeout para evitar "database is locked".
// Una sola conexión: las transacciones de venta serializan sobre ella.
func Open(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout=5000&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetMaxOpenConns(1)
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS authors(
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  name        TEXT NOT NULL,
  last_name   TEXT NOT NULL,
  nationality TEXT NOT NULL DEFAULT '',
  birth_date  TEXT NOT NULL DEFAULT '',
  biography   TEXT NOT NULL DEFAULT '',
  website     TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS publishers(
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  name    TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  phone   TEXT NOT NULL DEFAULT '',
  email   TEXT NOT NULL DEFAULT '',
  website TEXT NOT NULL DEFAULT '',
  country TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS books(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  title        TEXT NOT NULL,
  isbn         TEXT NOT NULL UNIQUE,
  author_id    INTEGER NOT NULL REFERENCES authors(id),
  publisher_id INTEGER NOT NULL REFERENCES publishers(id),
  year         INTEGER NOT NULL DEFAULT 0,
  genre        TEXT NOT NULL DEFAULT '',
  price        TEXT NOT NULL,
  stock        INTEGER NOT NULL DEFAULT 0 CHECK(stock >= 0),
  description  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS users(
  id            INTEGER PRIMARY KEY AUTOINCREMENT,
  name          TEXT NOT NULL,
  email         TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  is_staff      INTEGER NOT NULL DEFAULT 0,
  created_unix  INTEGER NOT NULL,
  updated_unix  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS customer_profiles(
  user_id      INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  phone        TEXT NOT NULL DEFAULT '',
  address      TEXT NOT NULL DEFAULT '',
  genre_prefs  TEXT NOT NULL DEFAULT '',
  created_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cart_items(
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  qty     INTEGER NOT NULL CHECK(qty > 0),
  UNIQUE(user_id, book_id)
);
CREATE TABLE IF NOT EXISTS sales(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  ref          TEXT NOT NULL UNIQUE,
  customer_id  INTEGER NOT NULL REFERENCES users(id),
  method       TEXT NOT NULL,
  total        TEXT NOT NULL,
  discount     TEXT NOT NULL,
  received     TEXT NOT NULL,
  change_due   TEXT NOT NULL,
  status       TEXT NOT NULL,
  created_unix INTEGER NOT NULL,
  updated_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sale_lines(
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  sale_id    INTEGER NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
  book_id    INTEGER NOT NULL REFERENCES books(id),
  title      TEXT NOT NULL,
  qty        INTEGER NOT NULL CHECK(qty > 0),
  unit_price TEXT NOT NULL,
  subtotal   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS events(
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  title       TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  date        TEXT NOT NULL DEFAULT '',
  location    TEXT NOT NULL DEFAULT '',
  active      INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS blog_posts(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  title        TEXT NOT NULL,
  content      TEXT NOT NULL DEFAULT '',
  author_id    INTEGER NOT NULL REFERENCES users(id),
  active       INTEGER NOT NULL DEFAULT 1,
  created_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_author    ON books(author_id);
CREATE INDEX IF NOT EXISTS idx_books_publisher ON books(publisher_id);
CREATE INDEX IF NOT EXISTS idx_cart_user       ON cart_items(user_id);
CREATE INDEX IF NOT EXISTS idx_sales_customer  ON sales(customer_id);
CREATE INDEX IF NOT EXISTS idx_sales_created   ON sales(created_unix);
CREATE INDEX IF NOT EXISTS idx_lines_sale      ON sale_lines(sale_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}
