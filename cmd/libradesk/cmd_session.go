package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/HerbHall/libradesk/internal/session"
	"github.com/HerbHall/libradesk/internal/version"
)

func runLogin(args []string) error {
	fs, c := newFlagSet("login")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password (read from stdin when empty)")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		if strings.TrimSpace(*email) == "" {
			return errors.New("-email is required")
		}
		pw := *password
		if pw == "" {
			var err error
			if pw, err = readLine(os.Stdin, "Password: "); err != nil {
				return err
			}
		}
		s, err := a.sessions.Login(ctx, a.client, *email, pw)
		if err != nil {
			return err
		}
		return printSession(a, s)
	})
}

func runLogout(args []string) error {
	fs, c := newFlagSet("logout")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		if err := a.sessions.Logout(ctx, a.client); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Signed out.")
		return nil
	})
}

func runWhoami(args []string) error {
	fs, c := newFlagSet("whoami")
	return withApp(fs, c, args, func(ctx context.Context, a *app, _ []string) error {
		s, err := a.sessions.Current(ctx)
		if err != nil {
			return err
		}
		return printSession(a, s)
	})
}

func printSession(a *app, s session.Session) error {
	return a.out.print(s, func(w io.Writer) {
		row(w, "EMAIL", "NAME", "SIGNED IN", "EXPIRES")
		expires := "never"
		if s.ExpiresAt != nil {
			expires = s.ExpiresAt.Local().Format(time.RFC1123)
		}
		row(w, orDash(s.Admin.Email), orDash(s.Admin.Name), s.CreatedAt.Local().Format(time.RFC1123), expires)
	})
}

func readLine(r io.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runVersion(args []string) error {
	fs, c := newFlagSet("version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := newPrinter(os.Stdout, c.output)
	if err != nil {
		return err
	}
	return out.print(version.Current(), func(w io.Writer) {
		fmt.Fprintln(w, version.Info())
	})
}
