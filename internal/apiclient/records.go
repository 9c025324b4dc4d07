package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/HerbHall/libradesk/internal/normalize"
	"github.com/HerbHall/libradesk/pkg/models"
)

// DateWindow is the from/to/per_page filter of the transaction endpoints.
// Dates are YYYY-MM-DD.
type DateWindow struct {
	From    string
	To      string
	PerPage int
}

func (w DateWindow) values() url.Values {
	v := url.Values{}
	if w.From != "" {
		v.Set("from", w.From)
	}
	if w.To != "" {
		v.Set("to", w.To)
	}
	if w.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(w.PerPage))
	}
	return v
}

// Purchases loads purchase records in the window.
func (c *Client) Purchases(ctx context.Context, w DateWindow) ([]models.TransactionRecord, normalize.Issues, error) {
	payload, err := c.do(ctx, request{
		endpoint: "purchases.list",
		method:   http.MethodGet,
		path:     "/Purchase/get",
		query:    w.values(),
	})
	if err != nil {
		return nil, normalize.Issues{}, fmt.Errorf("list purchases: %w", err)
	}
	recs, issues := c.norm.Transactions(payload)
	return recs, issues, nil
}

// LoanRecords loads borrowed-book rows as transaction records, for the
// statistics fallback.
func (c *Client) LoanRecords(ctx context.Context, w DateWindow) ([]models.TransactionRecord, normalize.Issues, error) {
	payload, err := c.do(ctx, request{
		endpoint: "loans.list",
		method:   http.MethodGet,
		path:     "/BorrowedBook/get",
		query:    w.values(),
	})
	if err != nil {
		return nil, normalize.Issues{}, fmt.Errorf("list loans: %w", err)
	}
	recs, issues := c.norm.Transactions(payload)
	return recs, issues, nil
}

// Loans lists borrowed books for the loans view.
func (c *Client) Loans(ctx context.Context) ([]models.Loan, error) {
	payload, err := c.do(ctx, request{
		endpoint: "loans.list",
		method:   http.MethodGet,
		path:     "/BorrowedBook/get",
	})
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return c.norm.Loans(payload), nil
}
