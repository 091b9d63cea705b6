// Frontera JSON del núcleo. La autenticación de sesión vive fuera: aquí
// llega la identidad ya clasificada (X-User-Id / X-User-Role) y se verifica
// el rol una sola vez por operación.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/jpcadavid/libreria/internal/auth"
	"github.com/jpcadavid/libreria/internal/cart"
	"github.com/jpcadavid/libreria/internal/catalog"
	"github.com/jpcadavid/libreria/internal/content"
	"github.com/jpcadavid/libreria/internal/ledger"
	"github.com/jpcadavid/libreria/internal/money"
)

type Server struct {
	catalog *catalog.Repository
	cart    *cart.Repository
	ledger  *ledger.Service
	auth    *auth.Repository
	content *content.Repository
	log     zerolog.Logger
}

func NewServer(cat *catalog.Repository, crt *cart.Repository, led *ledger.Service,
	aut *auth.Repository, cnt *content.Repository, log zerolog.Logger) *Server {
	return &Server{catalog: cat, cart: crt, ledger: led, auth: aut, content: cnt, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// público
	mux.HandleFunc("GET /books", s.handleListBooks)
	mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	mux.HandleFunc("GET /events", s.handleListEvents)
	mux.HandleFunc("GET /blog", s.handleListPosts)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)

	// cliente
	mux.HandleFunc("GET /cart", s.handleGetCart)
	mux.HandleFunc("POST /cart/add", s.handleCartAdd)
	mux.HandleFunc("POST /cart/update", s.handleCartUpdate)
	mux.HandleFunc("POST /cart/remove", s.handleCartRemove)
	mux.HandleFunc("POST /checkout", s.handleCheckout)
	mux.HandleFunc("GET /my/sales", s.handleMySales)
	mux.HandleFunc("GET /sales/{id}", s.handleGetSale)
	mux.HandleFunc("GET /profile", s.handleGetProfile)
	mux.HandleFunc("POST /profile", s.handleUpdateProfile)

	// administración
	mux.HandleFunc("GET /admin/books", s.handleAdminListBooks)
	mux.HandleFunc("POST /admin/books", s.handleCreateBook)
	mux.HandleFunc("POST /admin/books/update", s.handleUpdateBook)
	mux.HandleFunc("POST /admin/books/delete", s.handleDeleteBook)
	mux.HandleFunc("GET /admin/authors", s.handleListAuthors)
	mux.HandleFunc("POST /admin/authors", s.handleCreateAuthor)
	mux.HandleFunc("POST /admin/authors/update", s.handleUpdateAuthor)
	mux.HandleFunc("POST /admin/authors/delete", s.handleDeleteAuthor)
	mux.HandleFunc("GET /admin/publishers", s.handleListPublishers)
	mux.HandleFunc("POST /admin/publishers", s.handleCreatePublisher)
	mux.HandleFunc("POST /admin/publishers/update", s.handleUpdatePublisher)
	mux.HandleFunc("POST /admin/publishers/delete", s.handleDeletePublisher)
	mux.HandleFunc("POST /admin/events", s.handleCreateEvent)
	mux.HandleFunc("POST /admin/events/delete", s.handleDeleteEvent)
	mux.HandleFunc("POST /admin/blog", s.handleCreatePost)
	mux.HandleFunc("POST /admin/blog/delete", s.handleDeletePost)
	mux.HandleFunc("GET /admin/sales", s.handleAdminListSales)
	mux.HandleFunc("POST /admin/sales", s.handleCreateSale)
	mux.HandleFunc("POST /admin/sales/edit", s.handleEditSale)
	mux.HandleFunc("POST /admin/sales/cancel", s.handleCancelSale)
	mux.HandleFunc("POST /admin/sales/delete", s.handleDeleteSale)
	mux.HandleFunc("GET /admin/stats", s.handleStats)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-User-Id", "X-User-Role"},
	})
	return s.withLog(c.Handler(mux))
}

func (s *Server) withLog(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// identity arma la identidad pre-clasificada que inyecta la capa de sesión.
func identity(r *http.Request) auth.Identity {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	return auth.Identity{UserID: id, Role: auth.Role(r.Header.Get("X-User-Role"))}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, content.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, auth.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, money.ErrInsufficientPayment):
		status = http.StatusPaymentRequired
	case errors.Is(err, money.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, ledger.ErrEmptyCart):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("internal error")
		s.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
