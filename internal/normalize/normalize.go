// Package normalize maps loosely shaped API payloads onto the canonical
// entities in pkg/models. Every function here is pure: the same input
// always yields the same output, and malformed input degrades to documented
// defaults instead of errors.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HerbHall/libradesk/pkg/models"
)

// Normalizer converts raw decoded JSON (maps, slices, json.Number) into
// entities.
type Normalizer struct {
	aliases AliasTable
	loc     *time.Location
	resolve func(string) string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLocation sets the zone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithResolver fills CatalogItem display URLs using fn.
func WithResolver(fn func(string) string) Option {
	return func(n *Normalizer) { n.resolve = fn }
}

// New creates a Normalizer backed by the embedded alias table.
func New(opts ...Option) (*Normalizer, error) {
	t, err := Aliases()
	if err != nil {
		return nil, err
	}
	n := &Normalizer{aliases: t, loc: time.UTC}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Issues counts values that failed coercion in a batch.
type Issues struct {
	UnparsedDates int `json:"unparsed_dates"`
}

func (n *Normalizer) value(obj map[string]any, entity, field string) (any, bool) {
	return first(obj, n.aliases.Paths(entity, field))
}

func (n *Normalizer) str(obj map[string]any, entity, field string) string {
	v, _ := n.value(obj, entity, field)
	return toString(v)
}

func (n *Normalizer) integer(obj map[string]any, entity, field string) (int64, bool) {
	v, ok := n.value(obj, entity, field)
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// optID parses an identifier; negatives are treated as malformed.
func (n *Normalizer) optID(obj map[string]any, entity, field string) *int64 {
	if v, ok := n.integer(obj, entity, field); ok && v >= 0 {
		return &v
	}
	return nil
}

// timestamp returns the parsed instant (nil on failure) and whether a
// non-empty value was present at all.
func (n *Normalizer) timestamp(obj map[string]any, entity, field string) (*time.Time, bool) {
	v, ok := n.value(obj, entity, field)
	if !ok {
		return nil, false
	}
	s := toString(v)
	if s == "" {
		return nil, false
	}
	t, ok := ParseTimestamp(s, n.loc)
	if !ok {
		return nil, true
	}
	return &t, true
}

// Book maps one raw item to a CatalogItem.
func (n *Normalizer) Book(raw any) models.CatalogItem {
	obj := asObject(raw)
	if obj == nil {
		obj = map[string]any{}
	}
	var b models.CatalogItem
	if id := n.optID(obj, "book", "id"); id != nil {
		b.ID = *id
	}
	b.Title = n.str(obj, "book", "title")
	b.Author = n.str(obj, "book", "author")
	b.Description = n.str(obj, "book", "description")

	if v, ok := n.value(obj, "book", "price"); ok {
		if d, ok := toDecimal(v); ok && !d.IsNegative() {
			b.Price = decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	b.CategoryID = n.optID(obj, "book", "category_id")
	if v, ok := n.value(obj, "book", "discount"); ok {
		if f, ok := toFloat(v); ok && f >= 0 && f <= 100 {
			b.Discount = &f
		}
	}
	b.CreatedAt, _ = n.timestamp(obj, "book", "created_at")

	b.Image = n.str(obj, "book", "image")
	b.Document = n.str(obj, "book", "document")
	b.ImageURL = n.str(obj, "book", "image_url")
	b.DocumentURL = n.str(obj, "book", "document_url")

	if n.resolve != nil {
		b.ImageDisplay = n.display(b.ImageURL, b.Image)
		b.DocumentDisplay = n.display(b.DocumentURL, b.Document)
	}
	return b
}

// display prefers a pre-resolved URL over a raw path.
func (n *Normalizer) display(resolved, raw string) string {
	if resolved != "" {
		return n.resolve(resolved)
	}
	return n.resolve(raw)
}

// Books extracts and normalizes a book list response. page and perPage are
// the values that were requested and serve as metadata defaults.
func (n *Normalizer) Books(payload any, page, perPage int) ([]models.CatalogItem, models.ListMeta) {
	raw, meta := ExtractList(payload)
	items := make([]models.CatalogItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, n.Book(r))
	}
	return items, n.resolveMeta(meta, len(items), page, perPage)
}

// Transaction maps one raw purchase or loan row. The second result is false
// when a timestamp was present but could not be parsed.
func (n *Normalizer) Transaction(raw any) (models.TransactionRecord, bool) {
	obj := asObject(raw)
	if obj == nil {
		obj = map[string]any{}
	}
	var r models.TransactionRecord
	r.ID = n.optID(obj, "transaction", "id")
	r.BookID = n.optID(obj, "transaction", "book_id")

	r.Quantity = 1
	if v, ok := n.value(obj, "transaction", "quantity"); ok {
		r.Quantity = 0
		if f, ok := toFloat(v); ok && f >= 0 {
			r.Quantity = f
		}
	}

	r.Amount = decimal.Zero
	if v, ok := n.value(obj, "transaction", "amount"); ok {
		if d, ok := toDecimal(v); ok && !d.IsNegative() {
			r.Amount = d
		}
	} else if v, ok := n.value(obj, "transaction", "unit_price"); ok {
		if d, ok := toDecimal(v); ok && !d.IsNegative() {
			r.Amount = d.Mul(decimal.NewFromFloat(r.Quantity))
		}
	}

	r.BookTitle = n.str(obj, "transaction", "book_title")
	if r.BookTitle == "" && r.BookID != nil {
		r.BookTitle = fmt.Sprintf("Book %d", *r.BookID)
	}

	ts, present := n.timestamp(obj, "transaction", "created_at")
	r.CreatedAt = ts
	return r, !present || ts != nil
}

// Transactions extracts and normalizes a transaction list, counting
// timestamps that were present but unparseable.
func (n *Normalizer) Transactions(payload any) ([]models.TransactionRecord, Issues) {
	raw, _ := ExtractList(payload)
	out := make([]models.TransactionRecord, 0, len(raw))
	var issues Issues
	for _, r := range raw {
		rec, ok := n.Transaction(r)
		if !ok {
			issues.UnparsedDates++
		}
		out = append(out, rec)
	}
	return out, issues
}

// Loans normalizes the borrowed-books list.
func (n *Normalizer) Loans(payload any) []models.Loan {
	raw, _ := ExtractList(payload)
	out := make([]models.Loan, 0, len(raw))
	for _, r := range raw {
		obj := asObject(r)
		if obj == nil {
			continue
		}
		l := models.Loan{
			BorrowerName: n.str(obj, "loan", "borrower_name"),
			BookStatus:   n.str(obj, "loan", "book_status"),
			BookTitle:    n.str(obj, "loan", "book_title"),
			BookAuthor:   n.str(obj, "loan", "book_author"),
			UserName:     n.str(obj, "loan", "user_name"),
			UserEmail:    n.str(obj, "loan", "user_email"),
		}
		if id := n.optID(obj, "loan", "id"); id != nil {
			l.ID = *id
		}
		l.BorrowDate, _ = n.timestamp(obj, "loan", "borrow_date")
		l.DueDate, _ = n.timestamp(obj, "loan", "due_date")
		out = append(out, l)
	}
	return out
}

// Categories normalizes the category list; rows without an id are dropped.
func (n *Normalizer) Categories(payload any) []models.Category {
	raw, _ := ExtractList(payload)
	out := make([]models.Category, 0, len(raw))
	for _, r := range raw {
		obj := asObject(r)
		if obj == nil {
			continue
		}
		id := n.optID(obj, "category", "id")
		if id == nil {
			continue
		}
		out = append(out, models.Category{ID: *id, Name: n.str(obj, "category", "name")})
	}
	return out
}

// Coupons normalizes the coupon list.
func (n *Normalizer) Coupons(payload any) []models.Coupon {
	raw, _ := ExtractList(payload)
	out := make([]models.Coupon, 0, len(raw))
	for _, r := range raw {
		obj := asObject(r)
		if obj == nil {
			continue
		}
		c := models.Coupon{Code: n.str(obj, "coupon", "code")}
		if id := n.optID(obj, "coupon", "id"); id != nil {
			c.ID = *id
		}
		if v, ok := n.value(obj, "coupon", "discount"); ok {
			if f, ok := toFloat(v); ok && f >= 0 {
				c.Discount = f
			}
		}
		out = append(out, c)
	}
	return out
}

// WalletUser normalizes one user object (list row or /users/{id} body).
func (n *Normalizer) WalletUser(raw any) models.WalletUser {
	obj := asObject(raw)
	if obj == nil {
		obj = map[string]any{}
	}
	u := models.WalletUser{
		Name:    n.str(obj, "wallet_user", "name"),
		Email:   n.str(obj, "wallet_user", "email"),
		Balance: decimal.Zero,
	}
	if id := n.optID(obj, "wallet_user", "id"); id != nil {
		u.ID = *id
	}
	if v, ok := n.value(obj, "wallet_user", "balance"); ok {
		if d, ok := toDecimal(v); ok {
			u.Balance = d
		}
	}
	return u
}

// WalletUsers normalizes the user list.
func (n *Normalizer) WalletUsers(payload any) []models.WalletUser {
	raw, _ := ExtractList(payload, "users")
	out := make([]models.WalletUser, 0, len(raw))
	for _, r := range raw {
		out = append(out, n.WalletUser(r))
	}
	return out
}

// TopUps normalizes wallet top-up history.
func (n *Normalizer) TopUps(payload any) []models.TopUp {
	raw, _ := ExtractList(payload)
	out := make([]models.TopUp, 0, len(raw))
	for _, r := range raw {
		obj := asObject(r)
		if obj == nil {
			continue
		}
		t := models.TopUp{Points: decimal.Zero}
		if id := n.optID(obj, "topup", "id"); id != nil {
			t.ID = *id
		}
		if id := n.optID(obj, "topup", "user_id"); id != nil {
			t.UserID = *id
		}
		if v, ok := n.value(obj, "topup", "points"); ok {
			if d, ok := toDecimal(v); ok && !d.IsNegative() {
				t.Points = d
			}
		}
		t.CreatedAt, _ = n.timestamp(obj, "topup", "created_at")
		out = append(out, t)
	}
	return out
}

// Notifications normalizes the notification list, which the backend wraps
// under a "notifications" key.
func (n *Normalizer) Notifications(payload any) []models.Notification {
	raw, _ := ExtractList(payload, "notifications")
	out := make([]models.Notification, 0, len(raw))
	for _, r := range raw {
		obj := asObject(r)
		if obj == nil {
			continue
		}
		nt := models.Notification{
			Title:   n.str(obj, "notification", "title"),
			Message: n.str(obj, "notification", "message"),
		}
		if id := n.optID(obj, "notification", "id"); id != nil {
			nt.ID = *id
		}
		nt.CreatedAt, _ = n.timestamp(obj, "notification", "created_at")
		out = append(out, nt)
	}
	return out
}

// Admin normalizes the admin record returned by login.
func (n *Normalizer) Admin(raw any) models.Admin {
	obj := asObject(raw)
	if obj == nil {
		return models.Admin{}
	}
	a := models.Admin{
		Email: n.str(obj, "admin", "email"),
		Name:  n.str(obj, "admin", "name"),
	}
	if id := n.optID(obj, "admin", "id"); id != nil {
		a.ID = *id
	}
	return a
}
