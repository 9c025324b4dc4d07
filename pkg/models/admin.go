package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Admin is the signed-in staff member.
type Admin struct {
	ID    int64  `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Coupon is a discount code.
type Coupon struct {
	ID       int64   `json:"id,omitempty"`
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
}

// WalletUser is a reader whose wallet can be topped up.
type WalletUser struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// TopUp is one wallet credit, expressed either in points or currency.
type TopUp struct {
	ID        int64           `json:"id,omitempty"`
	UserID    int64           `json:"user_id"`
	Points    decimal.Decimal `json:"points"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

// Notification is a message sent to the current user.
type Notification struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
