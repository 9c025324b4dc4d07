// Package mockapi is a fake library backend. It serves the REST endpoints
// the dashboard calls, rotates list envelopes between requests and adds
// latency jitter so out-of-order responses can be reproduced locally.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/libradesk/internal/version"
)

// Default admin credentials accepted by POST /api/login.
const (
	DefaultEmail    = "admin@example.com"
	DefaultPassword = "password"
)

// Server is the fake backend.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *zap.Logger
	now        func() time.Time

	envelopes []Envelope
	rotation  atomic.Uint64

	minLatency, maxLatency time.Duration
	rngMu                  sync.Mutex
	rng                    *rand.Rand

	requireAuth bool
	email       string
	password    string
	secret      []byte
	tokenTTL    time.Duration
	limiter     *rate.Limiter

	registry *prometheus.Registry
	requests *prometheus.CounterVec

	mu       sync.Mutex
	data     *dataset
	revoked  map[string]bool
	failures map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// WithEnvelopes sets the list envelope rotation.
func WithEnvelopes(envs ...Envelope) Option {
	return func(s *Server) {
		if len(envs) > 0 {
			s.envelopes = envs
		}
	}
}

// WithLatency delays every response by a random duration in [lo, hi].
func WithLatency(lo, hi time.Duration) Option {
	return func(s *Server) {
		s.minLatency, s.maxLatency = lo, max(lo, hi)
	}
}

// WithSeed makes seed data and latency jitter reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Server) { s.rng = rand.New(rand.NewPCG(seed, seed^0x5eed)) }
}

// WithNow sets the clock used for seed data and token expiry.
func WithNow(fn func() time.Time) Option { return func(s *Server) { s.now = fn } }

// WithoutAuth serves every route without a bearer token.
func WithoutAuth() Option { return func(s *Server) { s.requireAuth = false } }

// WithCredentials sets the admin email and password accepted by login.
func WithCredentials(email, password string) Option {
	return func(s *Server) { s.email, s.password = email, password }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option { return func(s *Server) { s.tokenTTL = d } }

// WithRateLimit answers 429 once rps requests per second (with burst) are
// exceeded.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
		}
	}
}

// New creates a Server with seeded data. Call Handler for tests or Start
// to listen on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		logger:      zap.NewNop(),
		now:         time.Now,
		envelopes:   AllEnvelopes,
		rng:         rand.New(rand.NewPCG(1, 0x5eed)),
		requireAuth: true,
		email:       DefaultEmail,
		password:    DefaultPassword,
		secret:      []byte("libradesk-mockapi"),
		tokenTTL:    24 * time.Hour,
		registry:    prometheus.NewRegistry(),
		revoked:     make(map[string]bool),
		failures:    make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libradesk",
		Subsystem: "mockapi",
		Name:      "requests_total",
		Help:      "Requests served by the fake backend.",
	}, []string{"route", "code"})
	s.registry.MustRegister(s.requests)

	s.rngMu.Lock()
	s.data = seed(s.rng, s.now())
	s.rngMu.Unlock()

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting mock API", zap.String("addr", s.httpServer.Addr),
		zap.Strings("envelopes", envelopeNames(s.envelopes)),
		zap.Duration("min_latency", s.minLatency), zap.Duration("max_latency", s.maxLatency))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down mock API")
	return s.httpServer.Shutdown(ctx)
}

// Fail makes every request to method and path (e.g. "GET",
// "/api/Purchase/get") answer with status until Restore is called.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Restore undoes Fail.
func (s *Server) Restore(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverPanic)
	r.Use(s.countRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.injectLatency)
		r.Use(s.rateLimit)
		r.Use(s.injectFailures)

		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/logout", s.handleLogout)

			r.Get("/Book/get", s.handleListBooks)
			r.Post("/Book/create", s.handleCreateBook)
			r.Post("/Book/update/{id}", s.handleUpdateBook)
			r.Post("/Book/delete/{id}", s.handleDeleteBook)
			r.Get("/Category/get", s.handleCategories)

			r.Get("/Purchase/get", s.handlePurchases)
			r.Get("/BorrowedBook/get", s.handleLoans)

			r.Get("/admin/coupons", s.handleCoupons)
			r.Post("/admin/coupons", s.handleCreateCoupon)

			r.Get("/UserBook/get", s.handleWalletUsers)
			r.Get("/Point/get", s.handlePoints)
			r.Post("/Point/create", s.handleCreatePoints)
			r.Get("/users/{id}", s.handleUser)
			r.Post("/users/{id}/wallet/topup", s.handleTopUp)
			r.Get("/admin/wallet/topups", s.handleTopUps)

			r.Get("/notification/get", s.handleNotifications)
			r.Delete("/notifications/{id}", s.handleDeleteNotification)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "no route for "+r.Method+" "+r.URL.Path, r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, Problem{
			Type:     ProblemTypeBadRequest,
			Title:    "Method Not Allowed",
			Status:   http.StatusMethodNotAllowed,
			Detail:   "the " + r.Method + " method is not supported for this resource",
			Instance: r.URL.Path,
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-LibraDesk-Version", version.Short())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "libradesk-mockapi",
		"version": version.Map(),
	})
}

// nextEnvelope returns the next shape in the rotation.
func (s *Server) nextEnvelope() Envelope {
	n := s.rotation.Add(1) - 1
	return s.envelopes[n%uint64(len(s.envelopes))]
}

func (s *Server) jitter() time.Duration {
	if s.maxLatency <= 0 {
		return 0
	}
	span := s.maxLatency - s.minLatency
	if span <= 0 {
		return s.minLatency
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.minLatency + time.Duration(s.rng.Int64N(int64(span)+1))
}

func envelopeNames(envs []Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = string(e)
	}
	return out
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
