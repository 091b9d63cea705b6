// Eventos y blog de la tienda: filas simples, sin lógica.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

type Event struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Active      bool   `json:"active"`
}

type Post struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	AuthorID    int64  `json:"author_id"`
	Active      bool   `json:"active"`
	CreatedUnix int64  `json:"created_unix"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) ListEvents(ctx context.Context, onlyActive bool) ([]*Event, error) {
	q := `SELECT id,title,description,date,location,active FROM events`
	if onlyActive {
		q += ` WHERE active=1`
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Active); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *Repository) CreateEvent(ctx context.Context, e *Event) (int64, error) {
	if e.Title == "" {
		return 0, errors.New("title is required")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events(title,description,date,location,active) VALUES(?,?,?,?,1)`,
		e.Title, e.Description, e.Date, e.Location)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) DeleteEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *Repository) CountEvents(ctx context.Context) (int64, error) {
	var c int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM events`).Scan(&c)
	return c, err
}

func (r *Repository) ListPosts(ctx context.Context, onlyActive bool) ([]*Post, error) {
	q := `SELECT id,title,content,author_id,active,created_unix FROM blog_posts`
	if onlyActive {
		q += ` WHERE active=1`
	}
	q += ` ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.Active, &p.CreatedUnix); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *Repository) CreatePost(ctx context.Context, p *Post) (int64, error) {
	if p.Title == "" {
		return 0, errors.New("title is required")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO blog_posts(title,content,author_id,active,created_unix) VALUES(?,?,?,1,?)`,
		p.Title, p.Content, p.AuthorID, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id=?`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return nil
}
