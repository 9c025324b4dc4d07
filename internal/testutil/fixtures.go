package testutil

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HerbHall/libradesk/pkg/models"
)

var nextID atomic.Int64

// NewBook returns a CatalogItem with a fresh ID and sensible defaults.
// Options run in order after the defaults are set.
func NewBook(opts ...func(*models.CatalogItem)) models.CatalogItem {
	id := nextID.Add(1)
	cat := int64(1)
	b := models.CatalogItem{
		ID:         id,
		Title:      "Test Book",
		Author:     "Test Author",
		Price:      decimal.NewNullDecimal(decimal.NewFromInt(10)),
		CategoryID: &cat,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithTitle sets the book title.
func WithTitle(title string) func(*models.CatalogItem) {
	return func(b *models.CatalogItem) { b.Title = title }
}

// WithAuthor sets the book author.
func WithAuthor(author string) func(*models.CatalogItem) {
	return func(b *models.CatalogItem) { b.Author = author }
}

// WithPrice sets the price from a decimal string such as "12.50".
func WithPrice(p string) func(*models.CatalogItem) {
	return func(b *models.CatalogItem) {
		b.Price = decimal.NewNullDecimal(decimal.RequireFromString(p))
	}
}

// NewPurchase returns a TransactionRecord for one copy of bookID bought
// at the given instant.
func NewPurchase(bookID int64, at time.Time, opts ...func(*models.TransactionRecord)) models.TransactionRecord {
	id := nextID.Add(1)
	ts := at.UTC()
	r := models.TransactionRecord{
		ID:        &id,
		BookID:    &bookID,
		Amount:    decimal.NewFromInt(10),
		Quantity:  1,
		CreatedAt: &ts,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithAmount sets the record's total amount from a decimal string.
func WithAmount(a string) func(*models.TransactionRecord) {
	return func(r *models.TransactionRecord) { r.Amount = decimal.RequireFromString(a) }
}

// WithQuantity sets the number of units.
func WithQuantity(q float64) func(*models.TransactionRecord) {
	return func(r *models.TransactionRecord) { r.Quantity = q }
}

// WithBookTitle sets the denormalized title.
func WithBookTitle(title string) func(*models.TransactionRecord) {
	return func(r *models.TransactionRecord) { r.BookTitle = title }
}

// Undated clears the timestamp.
func Undated() func(*models.TransactionRecord) {
	return func(r *models.TransactionRecord) { r.CreatedAt = nil }
}
