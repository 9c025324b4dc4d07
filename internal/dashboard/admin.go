package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/mutation"
	"github.com/HerbHall/libradesk/internal/sequencer"
	"github.com/HerbHall/libradesk/pkg/models"
)

// Loans is the borrowed-books view.
type Loans struct {
	api   LoansAPI
	items *collection[models.Loan]
}

// LoansAPI is the part of the backend the loans view uses.
type LoansAPI interface {
	Loans(ctx context.Context) ([]models.Loan, error)
}

// NewLoans creates the loans view.
func NewLoans(api LoansAPI, o Options) *Loans {
	o = o.withDefaults()
	return &Loans{api: api, items: newCollection[models.Loan]("loans", o)}
}

// Name implements View.
func (l *Loans) Name() string { return "loans" }

// Open implements View.
func (l *Loans) Open(ctx context.Context) error {
	_, err := l.Reload(ctx)
	return err
}

// Close implements View.
func (l *Loans) Close() {}

// Reload fetches the loan list.
func (l *Loans) Reload(ctx context.Context) ([]models.Loan, error) {
	return l.items.load(ctx, l.api.Loans)
}

// Items returns the last applied list and load error.
func (l *Loans) Items() ([]models.Loan, error) { return l.items.snapshot() }

// CouponsAPI is the part of the backend the coupons view uses.
type CouponsAPI interface {
	Coupons(ctx context.Context) ([]models.Coupon, error)
	CreateCoupon(ctx context.Context, code string, discount float64) error
}

// Coupons is the discount-code view.
type Coupons struct {
	api    CouponsAPI
	items  *collection[models.Coupon]
	notify mutation.Notifier
	logger *zap.Logger
}

// NewCoupons creates the coupons view.
func NewCoupons(api CouponsAPI, o Options) *Coupons {
	o = o.withDefaults()
	return &Coupons{
		api:    api,
		items:  newCollection[models.Coupon]("coupons", o),
		notify: o.Notifier,
		logger: o.Logger.Named("coupons"),
	}
}

// Name implements View.
func (c *Coupons) Name() string { return "coupons" }

// Open implements View.
func (c *Coupons) Open(ctx context.Context) error {
	_, err := c.Reload(ctx)
	return err
}

// Close implements View.
func (c *Coupons) Close() {}

// Reload fetches the coupon list.
func (c *Coupons) Reload(ctx context.Context) ([]models.Coupon, error) {
	return c.items.load(ctx, c.api.Coupons)
}

// Items returns the last applied list and load error.
func (c *Coupons) Items() ([]models.Coupon, error) { return c.items.snapshot() }

// Add creates a coupon and reloads the list.
func (c *Coupons) Add(ctx context.Context, code string, discount float64) error {
	if err := c.api.CreateCoupon(ctx, code, discount); err != nil {
		c.logger.Error("create coupon failed", zap.String("code", code), zap.Error(err))
		if c.notify != nil {
			c.notify.Notify(ctx, fmt.Sprintf("Could not create coupon: %v", err))
		}
		return err
	}
	c.logger.Info("coupon created", zap.String("code", strings.TrimSpace(code)))
	if _, err := c.Reload(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// WalletAPI is the part of the backend the wallet view uses.
type WalletAPI interface {
	WalletUsers(ctx context.Context) ([]models.WalletUser, error)
	PointHistory(ctx context.Context) ([]models.TopUp, error)
	CreditPoints(ctx context.Context, userID int64, points decimal.Decimal, at time.Time) error
	WalletUser(ctx context.Context, id int64) (models.WalletUser, error)
	UserTopUps(ctx context.Context, id int64) ([]models.TopUp, error)
	TopUp(ctx context.Context, id int64, amount decimal.Decimal) error
}

// Credit validation errors.
var (
	ErrUserRequired   = errors.New("a user must be selected")
	ErrPointsRequired = errors.New("points must be greater than zero")
)

// Account is one user's balance and top-up history.
type Account struct {
	User   models.WalletUser `json:"user" yaml:"user"`
	TopUps []models.TopUp    `json:"topups" yaml:"topups"`
}

// Wallet is the points view: users, credit history and per-user accounts.
type Wallet struct {
	api     WalletAPI
	users   *collection[models.WalletUser]
	history *collection[models.TopUp]
	now     func() time.Time
	logger  *zap.Logger
}

// NewWallet creates the wallet view.
func NewWallet(api WalletAPI, o Options) *Wallet {
	o = o.withDefaults()
	return &Wallet{
		api:     api,
		users:   newCollection[models.WalletUser]("wallet_users", o),
		history: newCollection[models.TopUp]("wallet_history", o),
		now:     o.Now,
		logger:  o.Logger.Named("wallet"),
	}
}

// Name implements View.
func (w *Wallet) Name() string { return "wallet" }

// Open loads users and history.
func (w *Wallet) Open(ctx context.Context) error {
	_, uerr := w.Users(ctx)
	_, herr := w.History(ctx)
	return errors.Join(uerr, herr)
}

// Close implements View.
func (w *Wallet) Close() {}

// Users reloads the user list.
func (w *Wallet) Users(ctx context.Context) ([]models.WalletUser, error) {
	return w.users.load(ctx, w.api.WalletUsers)
}

// History reloads the credit history.
func (w *Wallet) History(ctx context.Context) ([]models.TopUp, error) {
	return w.history.load(ctx, w.api.PointHistory)
}

// Credit adds points to a user, then reloads history and balances.
func (w *Wallet) Credit(ctx context.Context, userID int64, points decimal.Decimal) error {
	if userID <= 0 {
		return ErrUserRequired
	}
	if !points.IsPositive() {
		return ErrPointsRequired
	}
	if err := w.api.CreditPoints(ctx, userID, points, w.now()); err != nil {
		return err
	}
	w.logger.Info("points credited", zap.Int64("user_id", userID), zap.String("points", points.String()))
	if _, err := w.History(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	if _, err := w.Users(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// Account loads one user's balance and top-ups.
func (w *Wallet) Account(ctx context.Context, id int64) (Account, error) {
	u, err := w.api.WalletUser(ctx, id)
	if err != nil {
		return Account{}, err
	}
	topups, err := w.api.UserTopUps(ctx, id)
	if err != nil {
		return Account{User: u}, err
	}
	return Account{User: u, TopUps: topups}, nil
}

// TopUp adds amount to a user's wallet and returns the refreshed account.
func (w *Wallet) TopUp(ctx context.Context, id int64, amount decimal.Decimal) (Account, error) {
	if id <= 0 {
		return Account{}, ErrUserRequired
	}
	if err := w.api.TopUp(ctx, id, amount); err != nil {
		return Account{}, err
	}
	w.logger.Info("wallet topped up", zap.Int64("user_id", id), zap.String("amount", amount.String()))
	return w.Account(ctx, id)
}

// NotificationsAPI is the part of the backend the notifications view uses.
type NotificationsAPI interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	DeleteNotification(ctx context.Context, id int64) error
}

// Notifications lists the admin's notifications and deletes them
// optimistically.
type Notifications struct {
	api   NotificationsAPI
	list  *sequencer.ListView[models.Notification]
	edits *mutation.Controller[models.Notification]
}

// NewNotifications creates the notifications view. The backend returns
// the whole list at once, so it is a single page.
func NewNotifications(api NotificationsAPI, o Options, extra ...sequencer.ViewOption) *Notifications {
	o = o.withDefaults()
	fetch := func(ctx context.Context, _ models.ListQueryState) (sequencer.Page[models.Notification], error) {
		items, err := api.Notifications(ctx)
		return sequencer.Page[models.Notification]{
			Items: items,
			Meta:  models.ListMeta{Page: 1, Total: len(items), TotalPages: 1},
		}, err
	}
	n := &Notifications{api: api}
	n.list = sequencer.NewListView(fetch, append(o.viewOptions("notifications"), extra...)...)
	n.edits = mutation.New[models.Notification](n.list,
		func(it models.Notification) int64 { return it.ID },
		o.mutationOptions("notification")...)
	return n
}

// Name implements View.
func (n *Notifications) Name() string { return "notifications" }

// Open implements View.
func (n *Notifications) Open(context.Context) error {
	n.list.Reload()
	return nil
}

// Close implements View.
func (n *Notifications) Close() { n.list.Close() }

// List returns the underlying list view.
func (n *Notifications) List() *sequencer.ListView[models.Notification] { return n.list }

// Delete removes a notification, restoring it if the backend refuses.
func (n *Notifications) Delete(ctx context.Context, id int64) error {
	return n.edits.Remove(ctx, id, func(ctx context.Context) error {
		return n.api.DeleteNotification(ctx, id)
	})
}
