package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is a purchase (or, on the fallback path, a loan) event.
// Amount and Quantity are always finite and non-negative.
type TransactionRecord struct {
	ID        *int64          `json:"id,omitempty"`
	BookID    *int64          `json:"book_id,omitempty"`
	BookTitle string          `json:"book_title,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Quantity  float64         `json:"quantity"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// Loan is a borrowed-book entry shown in the users' loans view.
type Loan struct {
	ID           int64      `json:"id"`
	BorrowDate   *time.Time `json:"borrow_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	BorrowerName string     `json:"borrower_name,omitempty"`
	BookStatus   string     `json:"book_status,omitempty"`
	BookTitle    string     `json:"book_title,omitempty"`
	BookAuthor   string     `json:"book_author,omitempty"`
	UserName     string     `json:"user_name,omitempty"`
	UserEmail    string     `json:"user_email,omitempty"`
}
