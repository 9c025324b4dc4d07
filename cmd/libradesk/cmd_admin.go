package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/HerbHall/libradesk/internal/dashboard"
	"github.com/HerbHall/libradesk/pkg/models"
)

func runCoupons(args []string) error {
	verb, rest, err := subcommand("coupons", args, "list", "add")
	if err != nil {
		return err
	}
	fs, c := newFlagSet("coupons " + verb)
	code := fs.String("code", "", "coupon code (add)")
	discount := fs.Float64("discount", 0, "discount percent (add)")
	return withApp(fs, c, rest, func(ctx context.Context, a *app, _ []string) error {
		view := dashboard.NewCoupons(a.client, a.options())
		if verb == "add" {
			if err := view.Add(ctx, *code, *discount); err != nil {
				return err
			}
		} else if _, err := view.Reload(ctx); err != nil {
			return err
		}
		coupons, err := view.Items()
		if err != nil {
			return err
		}
		return a.out.print(coupons, func(w io.Writer) {
			row(w, "ID", "CODE", "DISCOUNT")
			for _, c := range coupons {
				row(w, c.ID, c.Code, strconv.FormatFloat(c.Discount, 'f', -1, 64)+"%")
			}
		})
	})
}

func runWallet(args []string) error {
	verb, rest, err := subcommand("wallet", args, "users", "history", "credit", "account", "topup")
	if err != nil {
		return err
	}
	fs, c := newFlagSet("wallet " + verb)
	user := fs.Int64("user", 0, "user id (credit, account, topup)")
	amount := fs.String("amount", "", "points to credit or amount to top up")
	return withApp(fs, c, rest, func(ctx context.Context, a *app, _ []string) error {
		view := dashboard.NewWallet(a.client, a.options())
		switch verb {
		case "users":
			users, err := view.Users(ctx)
			if err != nil {
				return err
			}
			return printUsers(a, users)
		case "history":
			history, err := view.History(ctx)
			if err != nil {
				return err
			}
			return printTopUps(a, history)
		case "account":
			if *user <= 0 {
				return dashboard.ErrUserRequired
			}
			acct, err := view.Account(ctx, *user)
			if err != nil {
				return err
			}
			return printAccount(a, acct)
		}

		n, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		if verb == "credit" {
			if err := view.Credit(ctx, *user, n); err != nil {
				return err
			}
			history, _ := view.History(ctx)
			return printTopUps(a, history)
		}
		acct, err := view.TopUp(ctx, *user, n)
		if err != nil {
			return err
		}
		return printAccount(a, acct)
	})
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("-amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("-amount: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, dashboard.ErrPointsRequired
	}
	return d, nil
}

func printUsers(a *app, users []models.WalletUser) error {
	return a.out.print(users, func(w io.Writer) {
		row(w, "ID", "NAME", "EMAIL", "BALANCE")
		for _, u := range users {
			row(w, u.ID, u.Name, u.Email, u.Balance.String())
		}
	})
}

func printTopUps(a *app, topups []models.TopUp) error {
	return a.out.print(topups, func(w io.Writer) {
		row(w, "ID", "USER", "POINTS", "DATE")
		for _, t := range topups {
			row(w, t.ID, t.UserID, t.Points.String(), stamp(t.CreatedAt))
		}
	})
}

func printAccount(a *app, acct dashboard.Account) error {
	return a.out.print(acct, func(w io.Writer) {
		fmt.Fprintf(w, "%s <%s>\tbalance %s\n\n", acct.User.Name, acct.User.Email, acct.User.Balance.String())
		row(w, "TOP-UP", "AMOUNT", "DATE")
		for _, t := range acct.TopUps {
			row(w, t.ID, t.Points.String(), stamp(t.CreatedAt))
		}
	})
}

func runNotifications(args []string) error {
	verb, rest, err := subcommand("notifications", args, "list", "delete")
	if err != nil {
		return err
	}
	fs, c := newFlagSet("notifications " + verb)
	id := fs.Int64("id", 0, "notification id (delete)")
	return withApp(fs, c, rest, func(ctx context.Context, a *app, _ []string) error {
		view := dashboard.NewNotifications(a.client, a.options())
		defer view.Close()
		if err := view.Open(ctx); err != nil {
			return err
		}
		view.List().Wait()
		if verb == "delete" {
			if *id <= 0 {
				return errors.New("-id is required")
			}
			if err := view.Delete(ctx, *id); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Deleted notification %d.\n", *id)
		}
		snap := view.List().Snapshot()
		if snap.Err != nil {
			return snap.Err
		}
		return a.out.print(snap.Items, func(w io.Writer) {
			row(w, "ID", "DATE", "TITLE", "MESSAGE")
			for _, n := range snap.Items {
				row(w, n.ID, stamp(n.CreatedAt), n.Title, n.Message)
			}
		})
	})
}
