// Package upstream talks to the incident-garden backend REST API.
package upstream

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

	"github.com/bissquit/garden-console/internal/pkg/ctxlog"
	"github.com/bissquit/garden-console/internal/pkg/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 4 << 10
)

// ErrTokenExpired is returned before any request is sent with an expired JWT.
var ErrTokenExpired = errors.New("access token expired")

// Config holds backend client configuration.
type Config struct {
	BaseURL   string
	Token     string        // service token for reads, optional
	Timeout   time.Duration // per request
	RateLimit float64       // requests per second, 0 disables limiting
	RateBurst int
	CacheTTL  time.Duration // 0 disables the snapshot cache
	CacheSize int
}

// Client is a backend API client. It implements catalog.Source, events.Source
// and events.UpdateSubmitter.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *snapshotCache
	now        func() time.Time
}

// NewClient creates a new backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream: unsupported scheme %q", base.Scheme)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.RateBurst, 1)

	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		cache:      newSnapshotCache(cfg.CacheSize, cfg.CacheTTL),
		now:        time.Now,
	}, nil
}

// APIError is a non-2xx backend response, or a request refused locally
// because of its credentials.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	err        error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("backend %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// UpstreamStatus returns the backend status code.
func (e *APIError) UpstreamStatus() int { return e.StatusCode }

// Unwrap exposes the local cause, if any.
func (e *APIError) Unwrap() error { return e.err }

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// request describes one backend call. endpoint is the path template used as a
// metrics label.
type request struct {
	method   string
	path     string
	endpoint string
	query    url.Values
	body     any
	token    string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	token := r.token
	if token == "" {
		token = c.token
	}
	if token != "" && tokenExpired(token, c.now()) {
		return &APIError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: http.StatusUnauthorized,
			Message:    ErrTokenExpired.Error(),
			err:        ErrTokenExpired,
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	rawPath := c.baseURL.EscapedPath() + r.path
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return fmt.Errorf("build request path: %w", err)
	}
	u := *c.baseURL
	u.Path, u.RawPath = path, rawPath
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID(ctx))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(r.method, r.endpoint, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.UpstreamRequestDuration.WithLabelValues(r.method, r.endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	ctxlog.FromContext(ctx).Debug("backend request",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(r, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.endpoint, err)
	}
	return nil
}

func (c *Client) apiError(r request, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	apiErr := &APIError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// get decodes a {"data": ...} response into T.
func get[T any](ctx context.Context, c *Client, r request) (T, error) {
	r.method = http.MethodGet
	var env envelope[T]
	if err := c.do(ctx, r, &env); err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens and JWTs without exp are never treated as expired.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}

// requestID propagates the inbound request id, or mints one for CLI calls.
func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
