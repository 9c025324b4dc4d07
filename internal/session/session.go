// Package session keeps the signed-in admin between CLI runs. The bearer
// token is sealed by the vault and stored in SQLite; the session supplies
// it to the API client as its CredentialSource.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/apiclient"
	"github.com/HerbHall/libradesk/internal/store"
	"github.com/HerbHall/libradesk/internal/vault"
	"github.com/HerbHall/libradesk/pkg/models"
)

var (
	// ErrNoSession means nobody is signed in.
	ErrNoSession = errors.New("not signed in")
	// ErrExpired means the stored token's exp claim has passed.
	ErrExpired = errors.New("session expired, sign in again")
)

// Session is the stored sign-in.
type Session struct {
	Admin     models.Admin `json:"admin" yaml:"admin"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	// ExpiresAt is read from the token's exp claim; nil for opaque tokens.
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	token     string
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Authenticator is the remote side of sign-in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (apiclient.LoginResult, error)
	Logout(ctx context.Context) error
}

var migrations = []store.Migration{{
	Version:     1,
	Description: "create session table",
	Up: func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE TABLE session (
				id         INTEGER PRIMARY KEY CHECK (id = 1),
				token      BLOB     NOT NULL,
				admin      TEXT     NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME
			)`)
		return err
	},
}}

// Manager loads, saves and clears the session. It is safe for concurrent
// use and caches the opened token.
type Manager struct {
	store  *store.Store
	vault  *vault.Vault
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached *Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithNow overrides the clock used for expiry checks.
func WithNow(fn func() time.Time) Option { return func(m *Manager) { m.now = fn } }

// NewManager migrates the session table and returns a Manager.
func NewManager(ctx context.Context, st *store.Store, v *vault.Vault, opts ...Option) (*Manager, error) {
	m := &Manager{store: st, vault: v, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(m)
	}
	if err := st.Migrate(ctx, "session", migrations); err != nil {
		return nil, err
	}
	return m, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens such as Sanctum's "id|secret" have no expiry.
func TokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.UTC()
	return &t
}

// Save stores a new sign-in, replacing any previous one.
func (m *Manager) Save(ctx context.Context, token string, admin models.Admin) (Session, error) {
	if token == "" {
		return Session{}, apiclient.ErrNoToken
	}
	sealed, err := m.vault.Seal([]byte(token))
	if err != nil {
		return Session{}, err
	}
	adminJSON, err := json.Marshal(admin)
	if err != nil {
		return Session{}, fmt.Errorf("encode admin: %w", err)
	}
	s := Session{Admin: admin, CreatedAt: m.now().UTC(), ExpiresAt: TokenExpiry(token), token: token}

	var expires any
	if s.ExpiresAt != nil {
		expires = *s.ExpiresAt
	}
	err = m.store.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session (id, token, admin, created_at, expires_at) VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				token = excluded.token, admin = excluded.admin,
				created_at = excluded.created_at, expires_at = excluded.expires_at`,
			sealed, string(adminJSON), s.CreatedAt, expires)
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.cached = &s
	m.mu.Unlock()
	m.logger.Info("session saved", zap.String("email", admin.Email), zap.Bool("expires", s.ExpiresAt != nil))
	return s, nil
}

// Current returns the stored session, or ErrNoSession. An expired session
// is returned together with ErrExpired.
func (m *Manager) Current(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached == nil {
		s, err := m.load(ctx)
		if err != nil {
			return Session{}, err
		}
		m.cached = &s
	}
	s := *m.cached
	if s.Expired(m.now()) {
		return s, ErrExpired
	}
	return s, nil
}

func (m *Manager) load(ctx context.Context) (Session, error) {
	var (
		sealed    []byte
		adminJSON string
		s         Session
		expires   sql.NullTime
	)
	err := m.store.DB().QueryRowContext(ctx,
		"SELECT token, admin, created_at, expires_at FROM session WHERE id = 1",
	).Scan(&sealed, &adminJSON, &s.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	tok, err := m.vault.Open(sealed)
	if err != nil {
		return Session{}, fmt.Errorf("open session token: %w", err)
	}
	if err := json.Unmarshal([]byte(adminJSON), &s.Admin); err != nil {
		return Session{}, fmt.Errorf("decode admin: %w", err)
	}
	if expires.Valid {
		t := expires.Time.UTC()
		s.ExpiresAt = &t
	}
	s.token = string(tok)
	return s, nil
}

// Token implements apiclient.CredentialSource. With no session the
// request goes out unauthenticated.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, err := m.Current(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		return "", nil
	case err != nil:
		return "", err
	}
	return s.token, nil
}

// Clear forgets the session locally.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.store.DB().ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.cached = nil
	return nil
}

// Login signs in remotely and stores the result. Any previous session is
// dropped first so its token is not sent with the login request.
func (m *Manager) Login(ctx context.Context, auth Authenticator, email, password string) (Session, error) {
	if err := m.Clear(ctx); err != nil {
		return Session{}, err
	}
	res, err := auth.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return m.Save(ctx, res.Token, res.Admin)
}

// Logout signs out remotely and always clears the local session. A
// remote failure is only logged.
func (m *Manager) Logout(ctx context.Context, auth Authenticator) error {
	if _, err := m.Current(ctx); errors.Is(err, ErrNoSession) {
		return nil
	}
	if err := auth.Logout(ctx); err != nil {
		m.logger.Warn("remote logout failed, clearing local session anyway", zap.Error(err))
	}
	return m.Clear(ctx)
}
