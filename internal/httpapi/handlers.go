package httpapi

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/jpcadavid/libreria/internal/auth"
	"github.com/jpcadavid/libreria/internal/cart"
	"github.com/jpcadavid/libreria/internal/catalog"
	"github.com/jpcadavid/libreria/internal/content"
	"github.com/jpcadavid/libreria/internal/ledger"
	"github.com/jpcadavid/libreria/internal/money"
)

// ---- catálogo público ----

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.catalog.ListAvailableBooks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, "invalid book id")
		return
	}
	b, err := s.catalog.GetBook(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.content.ListEvents(r.Context(), true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.content.ListPosts(r.Context(), true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

// ---- cuentas ----

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	// el registro público siempre crea clientes, nunca staff
	id, err := s.auth.Register(r.Context(), req.Name, req.Email, req.Password, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"user_id": id, "role": auth.RoleCustomer})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	u, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ident := u.Identity()
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": ident.UserID, "role": ident.Role})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.auth.GetOrCreateProfile(r.Context(), ident.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	var p auth.Profile
	if err := decode(r, &p); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	p.UserID = ident.UserID
	if err := s.auth.UpdateProfile(r.Context(), &p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// ---- carrito ----

type cartView struct {
	Items []cart.Item     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (s *Server) cartView(w http.ResponseWriter, r *http.Request, userID int64) {
	items, err := s.cart.Items(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	s.writeJSON(w, http.StatusOK, cartView{Items: items, Total: total})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	s.cartView(w, r, ident.UserID)
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		BookID int64 `json:"book_id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.cart.AddItem(r.Context(), ident.UserID, req.BookID); err != nil {
		s.writeError(w, err)
		return
	}
	s.cartView(w, r, ident.UserID)
}

func (s *Server) handleCartUpdate(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ItemID int64 `json:"item_id"`
		Qty    int64 `json:"qty"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.cart.SetQuantity(r.Context(), ident.UserID, req.ItemID, req.Qty); err != nil {
		s.writeError(w, err)
		return
	}
	s.cartView(w, r, ident.UserID)
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ItemID int64 `json:"item_id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.cart.RemoveItem(r.Context(), ident.UserID, req.ItemID); err != nil {
		s.writeError(w, err)
		return
	}
	s.cartView(w, r, ident.UserID)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Method   money.Method    `json:"method"`
		Received decimal.Decimal `json:"received"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	sale, err := s.ledger.Checkout(r.Context(), ident.UserID, req.Method, req.Received)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sale)
}

// ---- ventas ----

func (s *Server) handleMySales(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireCustomer(ident); err != nil {
		s.writeError(w, err)
		return
	}
	sales, err := s.ledger.ListSalesForCustomer(r.Context(), ident.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, "invalid sale id")
		return
	}
	sale, err := s.ledger.GetSale(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// un cliente solo ve sus propias ventas
	if !ident.IsAdmin() && sale.CustomerID != ident.UserID {
		s.writeError(w, auth.ErrUnauthorized)
		return
	}
	s.writeJSON(w, http.StatusOK, sale)
}

func (s *Server) handleAdminListSales(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	sales, err := s.ledger.ListSales(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sales)
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		CustomerID int64                `json:"customer_id"`
		Method     money.Method         `json:"method"`
		Lines      []ledger.LineRequest `json:"lines"`
		Discount   decimal.Decimal      `json:"discount"`
		Received   decimal.Decimal      `json:"received"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	sale, err := s.ledger.CreateSale(r.Context(), req.CustomerID, req.Method,
		req.Lines, req.Discount, req.Received)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) handleEditSale(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
		ledger.EditRequest
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	sale, err := s.ledger.EditSale(r.Context(), req.ID, req.EditRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sale)
}

func (s *Server) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	sale, err := s.ledger.CancelSale(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sale)
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.ledger.DeleteSale(r.Context(), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": req.ID})
}

// ---- administración de catálogo ----

func (s *Server) handleAdminListBooks(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	books, err := s.catalog.ListBooks(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var b catalog.Book
	if err := decode(r, &b); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	id, err := s.catalog.CreateBook(r.Context(), &b)
	if err != nil {
		s.writeError(w, err)
		return
	}
	b.ID = id
	s.writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var b catalog.Book
	if err := decode(r, &b); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.catalog.UpdateBook(r.Context(), &b); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.catalog.DeleteBook(r.Context(), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": req.ID})
}

func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	authors, err := s.catalog.ListAuthors(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authors)
}

func (s *Server) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var a catalog.Author
	if err := decode(r, &a); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	id, err := s.catalog.CreateAuthor(r.Context(), &a)
	if err != nil {
		s.writeError(w, err)
		return
	}
	a.ID = id
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var a catalog.Author
	if err := decode(r, &a); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.catalog.UpdateAuthor(r.Context(), &a); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.catalog.DeleteAuthor(r.Context(), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": req.ID})
}

func (s *Server) handleListPublishers(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	pubs, err := s.catalog.ListPublishers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pubs)
}

func (s *Server) handleCreatePublisher(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var p catalog.Publisher
	if err := decode(r, &p); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	id, err := s.catalog.CreatePublisher(r.Context(), &p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p.ID = id
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePublisher(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var p catalog.Publisher
	if err := decode(r, &p); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.catalog.UpdatePublisher(r.Context(), &p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePublisher(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.catalog.DeletePublisher(r.Context(), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": req.ID})
}

// ---- contenidos ----

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var e content.Event
	if err := decode(r, &e); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	id, err := s.content.CreateEvent(r.Context(), &e)
	if err != nil {
		s.writeError(w, err)
		return
	}
	e.ID = id
	e.Active = true
	s.writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.content.DeleteEvent(r.Context(), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": req.ID})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	if err := auth.RequireAdmin(ident); err != nil {
		s.writeError(w, err)
		return
	}
	var p content.Post
	if err := decode(r, &p); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	p.AuthorID = ident.UserID
	id, err := s.content.CreatePost(r.Context(), &p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p.ID = id
	p.Active = true
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, "invalid body")
		return
	}
	if err := s.content.DeletePost(r.Context(), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": req.ID})
}

// ---- panel ----

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireAdmin(identity(r)); err != nil {
		s.writeError(w, err)
		return
	}
	ctx := r.Context()
	books, err := s.catalog.CountBooks(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sales, err := s.ledger.CountSales(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	customers, err := s.auth.CountCustomers(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.content.CountEvents(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	todayCount, todayRevenue, err := s.ledger.TodayStats(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	revF, _ := todayRevenue.Float64()
	s.log.Info().
		Str("revenue_today", humanize.CommafWithDigits(revF, 2)).
		Int64("sales_today", todayCount).
		Msg("stats requested")

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_books":     books,
		"total_sales":     sales,
		"total_customers": customers,
		"total_events":    events,
		"sales_today":     todayCount,
		"revenue_today":   todayRevenue,
	})
}
