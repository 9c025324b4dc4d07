package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/pkg/models"
)

const (
	localLayout   = "2006-01-02 15:04:05"
	maxUploadSize = 8 << 20
)

func readID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id parameter")
	}
	return id, nil
}

func readInt(qs url.Values, key string, def int) int {
	n, err := strconv.Atoi(qs.Get(key))
	if err != nil {
		return def
	}
	return n
}

// readJSON decodes a single JSON value, capped at 1 MB.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}

// dateWindow reads optional from/to query dates as inclusive UTC days.
func dateWindow(qs url.Values) (from, to time.Time, err error) {
	if s := qs.Get("from"); s != "" {
		if from, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, fmt.Errorf("from: %w", err)
		}
	}
	if s := qs.Get("to"); s != "" {
		if to, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, fmt.Errorf("to: %w", err)
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func (s *Server) writeList(w http.ResponseWriter, items []any, p pageInfo) {
	writeJSON(w, http.StatusOK, wrap(s.nextEnvelope(), items, p))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &in); err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	if !strings.EqualFold(in.Email, s.email) || in.Password != s.password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}
	tok, err := s.issueToken(s.email)
	if err != nil {
		InternalError(w, err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"token_type":   "Bearer",
		"user":         map[string]any{"id": 1, "email": s.email, "name": "Administrator"},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := bearer(r); tok != "" {
		s.mu.Lock()
		s.revoked[tok] = true
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderBook alternates between the two field-naming styles the backend
// has used over time.
func renderBook(b book, cats []category) map[string]any {
	m := map[string]any{
		"id":          b.ID,
		"author":      b.Author,
		"description": b.Description,
		"discount":    b.Discount,
	}
	if b.ID%2 == 0 {
		m["book_title"] = b.Title
		m["price"] = b.Price
		m["category_id"] = b.CategoryID
		m["created_at"] = b.CreatedAt.Format(time.RFC3339)
		if b.Image != "" {
			m["image"] = b.Image
		}
		if b.Document != "" {
			m["pdf"] = b.Document
		}
		return m
	}
	m["title"] = b.Title
	m["price"] = b.Price.InexactFloat64()
	for _, c := range cats {
		if c.ID == b.CategoryID {
			m["category"] = map[string]any{"id": c.ID, "name": c.Name}
		}
	}
	m["createdAt"] = b.CreatedAt.Format(localLayout)
	if b.Image != "" {
		m["cover"] = b.Image
	}
	if b.Document != "" {
		m["file"] = b.Document
	}
	return m
}

func sortBooks(books []book, key models.SortKey) {
	less := map[models.SortKey]func(a, b book) bool{
		models.SortCreatedDesc: func(a, b book) bool { return a.CreatedAt.After(b.CreatedAt) },
		models.SortCreatedAsc:  func(a, b book) bool { return a.CreatedAt.Before(b.CreatedAt) },
		models.SortAuthorAsc:   func(a, b book) bool { return strings.ToLower(a.Author) < strings.ToLower(b.Author) },
		models.SortAuthorDesc:  func(a, b book) bool { return strings.ToLower(a.Author) > strings.ToLower(b.Author) },
		models.SortTitleAsc:    func(a, b book) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) },
		models.SortTitleDesc:   func(a, b book) bool { return strings.ToLower(a.Title) > strings.ToLower(b.Title) },
	}[key]
	if less == nil {
		less = func(a, b book) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(books, func(i, j int) bool { return less(books[i], books[j]) })
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	page := max(1, readInt(qs, "page", 1))
	perPage := readInt(qs, "per_page", models.DefaultPageSize)
	if perPage < 1 || perPage > 100 {
		perPage = models.DefaultPageSize
	}
	search := strings.ToLower(strings.TrimSpace(qs.Get("search")))

	s.mu.Lock()
	var matched []book
	for _, b := range s.data.books {
		if search == "" || strings.Contains(strings.ToLower(b.Title), search) ||
			strings.Contains(strings.ToLower(b.Author), search) {
			matched = append(matched, b)
		}
	}
	cats := append([]category(nil), s.data.categories...)
	s.mu.Unlock()

	sortBooks(matched, models.SortKey(qs.Get("sort")))
	start := min((page-1)*perPage, len(matched))
	end := min(start+perPage, len(matched))
	items := make([]any, 0, end-start)
	for _, b := range matched[start:end] {
		items = append(items, renderBook(b, cats))
	}
	s.writeList(w, items, pageInfo{page: page, perPage: perPage, total: len(matched)})
}

// bookForm validates a multipart book submission. base supplies the
// values kept when a field is omitted on update.
func (s *Server) bookForm(r *http.Request, base book) (book, map[string]string) {
	errs := map[string]string{}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		errs["form"] = "The request could not be read."
		return base, errs
	}
	b := base
	b.Title = strings.TrimSpace(r.FormValue("book_title"))
	b.Author = strings.TrimSpace(r.FormValue("author"))
	b.Description = r.FormValue("description")
	if b.Title == "" {
		errs["book_title"] = "The book title field is required."
	}
	if b.Author == "" {
		errs["author"] = "The author field is required."
	}
	if p, err := decimal.NewFromString(r.FormValue("price")); err != nil || p.IsNegative() {
		errs["price"] = "The price must be a non-negative number."
	} else {
		b.Price = p
	}
	if d, err := strconv.ParseFloat(r.FormValue("discount"), 64); err != nil || d < 0 || d > 100 {
		errs["discount"] = "The discount must be between 0 and 100."
	} else {
		b.Discount = d
	}
	cat, err := strconv.ParseInt(r.FormValue("category_id"), 10, 64)
	s.mu.Lock()
	known := err == nil && s.data.categoryExists(cat)
	s.mu.Unlock()
	if !known {
		errs["category_id"] = "The selected category id is invalid."
	} else {
		b.CategoryID = cat
	}
	if r.MultipartForm != nil {
		if fh := r.MultipartForm.File["image"]; len(fh) > 0 {
			b.Image = "public/storage/covers/" + fh[0].Filename
		}
		if fh := r.MultipartForm.File["file"]; len(fh) > 0 {
			b.Document = "storage/pdfs/" + fh[0].Filename
		}
	}
	return b, errs
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	b, errs := s.bookForm(r, book{})
	if len(errs) > 0 {
		ValidationFailed(w, errs)
		return
	}
	s.mu.Lock()
	b.ID = s.data.id()
	b.CreatedAt = s.now().UTC()
	s.data.books = append(s.data.books, b)
	cats := s.data.categories
	s.mu.Unlock()
	s.logger.Info("book created", zap.Int64("id", b.ID), zap.String("title", b.Title))
	writeJSON(w, http.StatusCreated, map[string]any{"data": renderBook(b, cats)})
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := readID(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	s.mu.Lock()
	i, ok := s.data.bookByID(id)
	var current book
	if ok {
		current = s.data.books[i]
	}
	s.mu.Unlock()
	if !ok {
		NotFound(w, fmt.Sprintf("book %d does not exist", id), r.URL.Path)
		return
	}
	b, errs := s.bookForm(r, current)
	if len(errs) > 0 {
		ValidationFailed(w, errs)
		return
	}
	s.mu.Lock()
	if i, ok = s.data.bookByID(id); ok {
		s.data.books[i] = b
	}
	cats := s.data.categories
	s.mu.Unlock()
	if !ok {
		NotFound(w, fmt.Sprintf("book %d does not exist", id), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": renderBook(b, cats)})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := readID(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	s.mu.Lock()
	i, ok := s.data.bookByID(id)
	if ok {
		s.data.books = append(s.data.books[:i], s.data.books[i+1:]...)
	}
	s.mu.Unlock()
	if !ok {
		NotFound(w, fmt.Sprintf("book %d does not exist", id), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Book deleted"})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]any, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		items = append(items, map[string]any{"id": c.ID, "name": c.Name})
	}
	s.mu.Unlock()
	s.writeList(w, items, pageInfo{page: 1, perPage: max(1, len(items)), total: len(items)})
}

// renderPurchase alternates the old and new purchase row formats.
func renderPurchase(p purchase, title string) map[string]any {
	if p.ID%2 == 0 {
		return map[string]any{
			"id":         p.ID,
			"book_id":    p.BookID,
			"book_title": title,
			"quantity":   p.Quantity,
			"amount":     p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))),
			"created_at": p.CreatedAt.Format(time.RFC3339),
		}
	}
	return map[string]any{
		"id":            p.ID,
		"book":          map[string]any{"id": p.BookID, "title": title},
		"qty":           strconv.Itoa(p.Quantity),
		"unit_price":    p.UnitPrice.InexactFloat64(),
		"purchase_date": p.CreatedAt.Format(localLayout),
	}
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateWindow(r.URL.Query())
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	perPage := readInt(r.URL.Query(), "per_page", 0)

	s.mu.Lock()
	titles := make(map[int64]string, len(s.data.books))
	for _, b := range s.data.books {
		titles[b.ID] = b.Title
	}
	var items []any
	for _, p := range s.data.purchases {
		if inWindow(p.CreatedAt, from, to) {
			items = append(items, renderPurchase(p, titles[p.BookID]))
		}
	}
	s.mu.Unlock()

	total := len(items)
	if perPage > 0 && len(items) > perPage {
		items = items[:perPage]
	}
	s.writeList(w, nonNil(items), pageInfo{page: 1, perPage: max(1, perPage, len(items)), total: total})
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateWindow(r.URL.Query())
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	s.mu.Lock()
	var items []any
	for _, l := range s.data.loans {
		if !inWindow(l.BorrowDate, from, to) {
			continue
		}
		row := map[string]any{
			"id":          l.ID,
			"borrow_date": l.BorrowDate.Format(time.DateOnly),
			"due_date":    l.DueDate.Format(time.DateOnly),
			"book_status": l.Status,
		}
		if i, ok := s.data.userByID(l.UserID); ok {
			u := s.data.users[i]
			row["user"] = map[string]any{"id": u.ID, "name": u.Name, "email": u.Email}
		}
		if i, ok := s.data.bookByID(l.BookID); ok {
			b := s.data.books[i]
			row["book"] = map[string]any{"id": b.ID, "title": b.Title, "author": b.Author}
		}
		items = append(items, row)
	}
	s.mu.Unlock()
	s.writeList(w, nonNil(items), pageInfo{page: 1, perPage: max(1, len(items)), total: len(items)})
}

func (s *Server) handleCoupons(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]any, 0, len(s.data.coupons))
	for _, c := range s.data.coupons {
		key := "discount"
		if c.ID%2 == 1 {
			key = "percent"
		}
		items = append(items, map[string]any{"id": c.ID, "code": c.Code, key: c.Discount})
	}
	s.mu.Unlock()
	s.writeList(w, items, pageInfo{page: 1, perPage: max(1, len(items)), total: len(items)})
}

func (s *Server) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code     string  `json:"code"`
		Discount float64 `json:"discount"`
	}
	if err := readJSON(w, r, &in); err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	errs := map[string]string{}
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		errs["code"] = "The code field is required."
	}
	if in.Discount < 0 || in.Discount > 100 {
		errs["discount"] = "The discount must be between 0 and 100."
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.data.coupons {
		if strings.EqualFold(c.Code, in.Code) {
			errs["code"] = "The code has already been taken."
		}
	}
	if len(errs) > 0 {
		ValidationFailed(w, errs)
		return
	}
	c := coupon{ID: s.data.id(), Code: in.Code, Discount: in.Discount}
	s.data.coupons = append(s.data.coupons, c)
	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": c.ID, "code": c.Code, "discount": c.Discount}})
}

func renderUser(u user) map[string]any {
	return map[string]any{"id": u.ID, "name": u.Name, "email": u.Email, "balance": u.Balance}
}

func (s *Server) handleWalletUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]any, 0, len(s.data.users))
	for _, u := range s.data.users {
		items = append(items, renderUser(u))
	}
	s.mu.Unlock()
	s.writeList(w, items, pageInfo{page: 1, perPage: max(1, len(items)), total: len(items)})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := readID(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	s.mu.Lock()
	i, ok := s.data.userByID(id)
	var u user
	if ok {
		u = s.data.users[i]
	}
	s.mu.Unlock()
	if !ok {
		NotFound(w, fmt.Sprintf("user %d does not exist", id), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":     u.ID,
		"name":   u.Name,
		"email":  u.Email,
		"wallet": map[string]any{"balance": u.Balance},
	}})
}

func (s *Server) handlePoints(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]any, 0, len(s.data.points))
	for _, p := range s.data.points {
		items = append(items, map[string]any{
			"id":      p.ID,
			"user_id": p.UserID,
			"points":  p.Amount,
			"date":    p.CreatedAt.Format(time.RFC3339),
		})
	}
	s.mu.Unlock()
	s.writeList(w, items, pageInfo{page: 1, perPage: max(1, len(items)), total: len(items)})
}

func (s *Server) handleCreatePoints(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID int64           `json:"user_id"`
		Points decimal.Decimal `json:"points"`
		Date   string          `json:"date"`
	}
	if err := readJSON(w, r, &in); err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	at, err := time.Parse(time.RFC3339, in.Date)
	if err != nil {
		at = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.data.userByID(in.UserID)
	errs := map[string]string{}
	if !ok {
		errs["user_id"] = "The selected user id is invalid."
	}
	if !in.Points.IsPositive() {
		errs["points"] = "The points must be greater than 0."
	}
	if len(errs) > 0 {
		ValidationFailed(w, errs)
		return
	}
	c := credit{ID: s.data.id(), UserID: in.UserID, Amount: in.Points, CreatedAt: at.UTC()}
	s.data.points = append(s.data.points, c)
	s.data.users[i].Balance = s.data.users[i].Balance.Add(in.Points)
	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": c.ID, "user_id": c.UserID, "points": c.Amount}})
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	id, err := readID(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	var in struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := readJSON(w, r, &in); err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	if !in.Amount.IsPositive() {
		ValidationFailed(w, map[string]string{"amount": "The amount must be greater than 0."})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.data.userByID(id)
	if !ok {
		NotFound(w, fmt.Sprintf("user %d does not exist", id), r.URL.Path)
		return
	}
	s.data.topups = append(s.data.topups, credit{ID: s.data.id(), UserID: id, Amount: in.Amount, CreatedAt: s.now().UTC()})
	s.data.users[i].Balance = s.data.users[i].Balance.Add(in.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"data": renderUser(s.data.users[i])})
}

func (s *Server) handleTopUps(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if v := r.URL.Query().Get("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			BadRequest(w, "invalid userId", r.URL.Path)
			return
		}
		userID = id
	}
	s.mu.Lock()
	var items []any
	for _, t := range s.data.topups {
		if userID != 0 && t.UserID != userID {
			continue
		}
		items = append(items, map[string]any{
			"id":         t.ID,
			"userId":     t.UserID,
			"amount":     t.Amount,
			"created_at": t.CreatedAt.Format(time.RFC3339),
		})
	}
	s.mu.Unlock()
	s.writeList(w, nonNil(items), pageInfo{page: 1, perPage: max(1, len(items)), total: len(items)})
}

// handleNotifications always uses the endpoint's own list key.
func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := make([]any, 0, len(s.data.notifications))
	for _, n := range s.data.notifications {
		row := map[string]any{"id": n.ID, "created_at": n.CreatedAt.Format(time.RFC3339)}
		if n.ID%2 == 0 {
			row["title"], row["message"] = n.Title, n.Message
		} else {
			row["subject"], row["body"] = n.Title, n.Message
		}
		items = append(items, row)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := readID(r)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.data.notifications {
		if n.ID == id {
			s.data.notifications = append(s.data.notifications[:i], s.data.notifications[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	NotFound(w, fmt.Sprintf("notification %d does not exist", id), r.URL.Path)
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}
