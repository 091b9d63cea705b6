package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotFound           = errors.New("not found")
)

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsStaff      bool   `json:"is_staff"`
	CreatedUnix  int64  `json:"created_unix"`
	UpdatedUnix  int64  `json:"updated_unix"`
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Role: ClassifyRole(u.IsStaff)}
}

// Profile es propiedad de la cuenta del cliente; se crea perezosamente
// exactamente una vez.
type Profile struct {
	UserID      int64  `json:"user_id"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	GenrePrefs  string `json:"genre_prefs"`
	CreatedUnix int64  `json:"created_unix"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Register(ctx context.Context, name, email, password string, isStaff bool) (int64, error) {
	if name == "" || email == "" || password == "" {
		return 0, errors.New("name, email and password are required")
	}
	if u, _ := r.GetByEmail(ctx, email); u != nil {
		return 0, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users(name,email,password_hash,is_staff,created_unix,updated_unix)
		VALUES(?,?,?,?,?,?)`,
		name, email, string(hash), isStaff, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrEmailTaken
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := r.GetByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id,name,email,password_hash,is_staff,created_unix,updated_unix
		FROM users WHERE id=?`, id))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id,name,email,password_hash,is_staff,created_unix,updated_unix
		FROM users WHERE email=?`, email))
}

func (r *Repository) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsStaff,
		&u.CreatedUnix, &u.UpdatedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetOrCreateProfile crea el perfil vacío la primera vez que se pide.
func (r *Repository) GetOrCreateProfile(ctx context.Context, userID int64) (*Profile, error) {
	if u, err := r.GetByID(ctx, userID); err != nil {
		return nil, err
	} else if u == nil {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customer_profiles(user_id,created_unix) VALUES(?,?)
		ON CONFLICT(user_id) DO NOTHING`, userID, time.Now().Unix()); err != nil {
		return nil, err
	}
	p := &Profile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id,phone,address,genre_prefs,created_unix
		FROM customer_profiles WHERE user_id=?`, userID).
		Scan(&p.UserID, &p.Phone, &p.Address, &p.GenrePrefs, &p.CreatedUnix)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, p *Profile) error {
	if _, err := r.GetOrCreateProfile(ctx, p.UserID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE customer_profiles SET phone=?,address=?,genre_prefs=? WHERE user_id=?`,
		p.Phone, p.Address, p.GenrePrefs, p.UserID)
	return err
}

func (r *Repository) CountCustomers(ctx context.Context) (int64, error) {
	var c int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE is_staff=0`).Scan(&c)
	return c, err
}

// EnsureAdmin crea la cuenta de administrador inicial si no existe.
func (r *Repository) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if u, err := r.GetByEmail(ctx, email); err != nil {
		return err
	} else if u != nil {
		return nil
	}
	_, err := r.Register(ctx, name, email, password, true)
	return err
}
