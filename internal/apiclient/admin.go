package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HerbHall/libradesk/internal/normalize"
	"github.com/HerbHall/libradesk/pkg/models"
)

// ErrNoToken is returned by Login when the backend accepted the request
// but sent no token.
var ErrNoToken = errors.New("login response carried no token")

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	Admin models.Admin
}

// Login exchanges credentials for a bearer token. The token is taken from
// access_token or token and the admin from user or admin; when neither is
// present the admin is just the email that logged in.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, ct, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, err
	}
	payload, err := c.do(ctx, request{
		endpoint:    "auth.login",
		method:      http.MethodPost,
		path:        "/login",
		body:        body,
		contentType: ct,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	obj := normalize.Single(payload)
	var res LoginResult
	for _, key := range []string{"access_token", "token"} {
		if s, ok := obj[key].(string); ok && s != "" {
			res.Token = s
			break
		}
	}
	if res.Token == "" {
		return LoginResult{}, ErrNoToken
	}
	for _, key := range []string{"user", "admin"} {
		if raw, ok := obj[key].(map[string]any); ok {
			res.Admin = c.norm.Admin(raw)
			break
		}
	}
	if res.Admin == (models.Admin{}) {
		res.Admin = models.Admin{Email: email}
	}
	return res, nil
}

// Logout invalidates the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, request{endpoint: "auth.logout", method: http.MethodPost, path: "/logout"}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Coupons lists discount coupons.
func (c *Client) Coupons(ctx context.Context) ([]models.Coupon, error) {
	payload, err := c.do(ctx, request{endpoint: "coupons.list", method: http.MethodGet, path: "/admin/coupons"})
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return c.norm.Coupons(payload), nil
}

// CreateCoupon adds a coupon granting discount percent.
func (c *Client) CreateCoupon(ctx context.Context, code string, discount float64) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("coupon code is required")
	}
	if discount < 0 || discount > 100 {
		return models.ErrDiscountRange
	}
	body, ct, err := jsonBody(map[string]any{"code": code, "discount": discount})
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, request{
		endpoint:    "coupons.create",
		method:      http.MethodPost,
		path:        "/admin/coupons",
		body:        body,
		contentType: ct,
	}); err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// WalletUsers lists users who can receive points.
func (c *Client) WalletUsers(ctx context.Context) ([]models.WalletUser, error) {
	payload, err := c.do(ctx, request{endpoint: "wallet.users", method: http.MethodGet, path: "/UserBook/get"})
	if err != nil {
		return nil, fmt.Errorf("list wallet users: %w", err)
	}
	return c.norm.WalletUsers(payload), nil
}

// PointHistory lists every points credit.
func (c *Client) PointHistory(ctx context.Context) ([]models.TopUp, error) {
	payload, err := c.do(ctx, request{endpoint: "wallet.points", method: http.MethodGet, path: "/Point/get"})
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	return c.norm.TopUps(payload), nil
}

// CreditPoints grants points to a user, stamped with at.
func (c *Client) CreditPoints(ctx context.Context, userID int64, points decimal.Decimal, at time.Time) error {
	if userID <= 0 {
		return errors.New("user is required")
	}
	if !points.IsPositive() {
		return errors.New("points must be positive")
	}
	body, ct, err := jsonBody(map[string]any{
		"user_id": userID,
		"points":  points,
		"date":    at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, request{
		endpoint:    "wallet.credit",
		method:      http.MethodPost,
		path:        "/Point/create",
		body:        body,
		contentType: ct,
	}); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	return nil
}

// WalletUser loads one user with their balance.
func (c *Client) WalletUser(ctx context.Context, id int64) (models.WalletUser, error) {
	payload, err := c.do(ctx, request{
		endpoint: "wallet.user",
		method:   http.MethodGet,
		path:     "/users/" + strconv.FormatInt(id, 10),
	})
	if err != nil {
		return models.WalletUser{}, fmt.Errorf("get user %d: %w", id, err)
	}
	u := c.norm.WalletUser(normalize.Single(payload))
	if u.ID == 0 {
		u.ID = id
	}
	return u, nil
}

// UserTopUps lists wallet top-ups of one user.
func (c *Client) UserTopUps(ctx context.Context, id int64) ([]models.TopUp, error) {
	payload, err := c.do(ctx, request{
		endpoint: "wallet.topups",
		method:   http.MethodGet,
		path:     "/admin/wallet/topups",
		query:    url.Values{"userId": {strconv.FormatInt(id, 10)}},
	})
	if err != nil {
		return nil, fmt.Errorf("list top-ups of user %d: %w", id, err)
	}
	return c.norm.TopUps(payload), nil
}

// TopUp adds amount to a user's wallet balance.
func (c *Client) TopUp(ctx context.Context, id int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	body, ct, err := jsonBody(map[string]any{"amount": amount})
	if err != nil {
		return err
	}
	if _, err := c.do(ctx, request{
		endpoint:    "wallet.topup",
		method:      http.MethodPost,
		path:        "/users/" + strconv.FormatInt(id, 10) + "/wallet/topup",
		body:        body,
		contentType: ct,
	}); err != nil {
		return fmt.Errorf("top up user %d: %w", id, err)
	}
	return nil
}

// Notifications lists admin notifications.
func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	payload, err := c.do(ctx, request{endpoint: "notifications.list", method: http.MethodGet, path: "/notification/get"})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return c.norm.Notifications(payload), nil
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	if _, err := c.do(ctx, request{
		endpoint: "notifications.delete",
		method:   http.MethodDelete,
		path:     "/notifications/" + strconv.FormatInt(id, 10),
	}); err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return nil
}
