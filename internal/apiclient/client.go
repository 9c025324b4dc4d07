// Package apiclient talks to the library backend's REST API. Every call
// carries the bearer token from an explicit CredentialSource, is rate
// limited and traced, and returns entities already normalized.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/libradesk/internal/normalize"
	"github.com/HerbHall/libradesk/internal/telemetry"
	"github.com/HerbHall/libradesk/internal/version"
)

// DefaultBaseURL is used when no API base is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// CredentialSource supplies the bearer token for each request. An empty
// token sends the request unauthenticated.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a CredentialSource that always returns itself.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Client is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	creds     CredentialSource
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	norm      *normalize.Normalizer
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithCredentials sets where bearer tokens come from.
func WithCredentials(cs CredentialSource) Option { return func(c *Client) { c.creds = cs } }

// WithRateLimit allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// WithMetrics records request counts and latency.
func WithMetrics(m *telemetry.Metrics) Option { return func(c *Client) { c.metrics = m } }

// WithNormalizer sets the normalizer used for responses.
func WithNormalizer(n *normalize.Normalizer) Option { return func(c *Client) { c.norm = n } }

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option { return func(c *Client) { c.tracer = t } }

// New creates a Client for baseURL, which must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("api base %q must be an absolute http(s) URL", baseURL)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 30 * time.Second},
		creds:     StaticToken(""),
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		tracer:    otel.Tracer("github.com/HerbHall/libradesk/internal/apiclient"),
		logger:    zap.NewNop(),
		userAgent: version.UserAgent(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.norm == nil {
		n, err := normalize.New()
		if err != nil {
			return nil, err
		}
		c.norm = n
	}
	return c, nil
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string { return c.base.String() }

// request describes one API call.
type request struct {
	endpoint    string // metric and span name
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// jsonBody encodes v for a request body.
func jsonBody(v any) (io.Reader, string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}

// do performs r and decodes the JSON response with UseNumber. An empty
// body decodes to nil.
func (c *Client) do(ctx context.Context, r request) (any, error) {
	ctx, span := c.tracer.Start(ctx, "api."+r.endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("api.path", r.path),
		),
	)
	defer span.End()

	start := time.Now()
	payload, code, err := c.roundTrip(ctx, r)
	if c.metrics != nil {
		c.metrics.Requests.WithLabelValues(r.endpoint, codeLabel(code)).Inc()
		c.metrics.RequestDuration.WithLabelValues(r.endpoint).Observe(time.Since(start).Seconds())
	}
	span.SetAttributes(attribute.Int("http.status_code", code))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("api request failed",
			zap.String("endpoint", r.endpoint),
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", code),
			zap.Error(err),
		)
		return nil, err
	}
	c.logger.Debug("api request",
		zap.String("endpoint", r.endpoint),
		zap.Int("status", code),
		zap.Duration("elapsed", time.Since(start)),
	)
	return payload, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) (any, int, error) {
	if c.limiter != nil {
		// Wait fails early when the deadline cannot be met, without
		// wrapping a context error.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}

	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	tok, err := c.creds.Token(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("credentials: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, mapTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, resp.StatusCode, mapTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		body, _ := decodeJSON(raw)
		return nil, resp.StatusCode, newStatusError(r.method, r.path, resp.StatusCode, body)
	}
	payload, err := decodeJSON(raw)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: decode response: %w", r.method, r.path, err)
	}
	return payload, resp.StatusCode, nil
}

func decodeJSON(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func codeLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}
