package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is a book as the dashboard sees it after normalization.
// JSON tags use the backend's canonical field names, so an encoded item
// normalizes back to itself.
type CatalogItem struct {
	ID          int64               `json:"id"`
	Title       string              `json:"book_title"`
	Author      string              `json:"author"`
	Description string              `json:"description,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	CategoryID  *int64              `json:"category_id,omitempty"`
	Discount    *float64            `json:"discount,omitempty"`
	CreatedAt   *time.Time          `json:"created_at,omitempty"`

	// Raw stored paths as returned by the backend.
	Image    string `json:"image,omitempty"`
	Document string `json:"pdf,omitempty"`

	// URLs the backend already resolved, if any.
	ImageURL    string `json:"image_url,omitempty"`
	DocumentURL string `json:"pdf_url,omitempty"`

	// Dereferenceable URLs for display, filled by the resolver.
	ImageDisplay    string `json:"-"`
	DocumentDisplay string `json:"-"`
}

// Category is a catalog category offered by the book form.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BookDraft carries the fields submitted when creating or updating a book.
type BookDraft struct {
	Title        string
	Author       string
	Description  string
	Price        decimal.Decimal
	CategoryID   int64
	Discount     float64
	ImageName    string
	Image        []byte
	DocumentName string
	Document     []byte
}

// Draft validation errors.
var (
	ErrTitleRequired   = errors.New("title is required")
	ErrAuthorRequired  = errors.New("author is required")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrDiscountRange   = errors.New("discount must be between 0 and 100")
	ErrCategoryMissing = errors.New("category is required")
)

// Validate trims Title and Author and checks the fields the book form
// requires.
func (d *BookDraft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Author = strings.TrimSpace(d.Author)
	var errs []error
	if d.Title == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if d.Author == "" {
		errs = append(errs, ErrAuthorRequired)
	}
	if d.Price.IsNegative() {
		errs = append(errs, ErrNegativePrice)
	}
	if d.Discount < 0 || d.Discount > 100 {
		errs = append(errs, ErrDiscountRange)
	}
	if d.CategoryID <= 0 {
		errs = append(errs, ErrCategoryMissing)
	}
	return errors.Join(errs...)
}

// FromItem prefills a draft for editing an existing book.
func FromItem(it CatalogItem) BookDraft {
	d := BookDraft{
		Title:       it.Title,
		Author:      it.Author,
		Description: it.Description,
		CategoryID:  1,
	}
	if it.Price.Valid {
		d.Price = it.Price.Decimal
	}
	if it.CategoryID != nil {
		d.CategoryID = *it.CategoryID
	}
	if it.Discount != nil {
		d.Discount = *it.Discount
	}
	return d
}
