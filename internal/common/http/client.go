// Package http is the JSON REST client used by every API resource. It
// attaches the bearer token, rate-limits, guards the backend with a circuit
// breaker and normalizes every failure into an *errors.ApiError.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logger"
	"storefront/internal/common/metrics"
)

const maxBodyBytes = 8 << 20

// TokenSource yields the bearer token for the next request. An empty token
// means the request goes out unauthenticated.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// BreakerSettings configures the circuit breaker. Nil disables it.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenSource
	RateLimit  float64 // requests per second, 0 disables limiting
	Burst      int
	Breaker    *BreakerSettings
	Logger     logger.Logger
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     logger.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     opts.Tokens,
		logger:     log,
	}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	if opts.Breaker != nil {
		c.breaker = newBreaker(*opts.Breaker, log)
	}

	return c
}

func newBreaker(s BreakerSettings, log logger.Logger) *gobreaker.CircuitBreaker {
	name := s.Name
	if name == "" {
		name = "api"
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do sends one JSON request. It returns nil, an *errors.ApiError, or an
// error wrapping errors.ErrCanceled when ctx was cancelled.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resource := resourceOf(path)
	start := time.Now()

	status, err := c.execute(ctx, method, path, query, body, out)

	label := strconv.Itoa(status)
	switch {
	case apperrors.IsCanceled(err):
		label = "canceled"
	case status == 0 && err != nil:
		label = "error"
	}
	metrics.APIRequests.WithLabelValues(resource, method, label).Inc()
	metrics.APIRequestDuration.WithLabelValues(resource, method).Observe(time.Since(start).Seconds())

	if err != nil && !apperrors.IsCanceled(err) {
		c.logger.Debug("API request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": status,
			"error":  err.Error(),
		})
	}
	return err
}

func (c *Client) execute(ctx context.Context, method, path string, query url.Values, body, out interface{}) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, c.transportError(ctx, err)
		}
	}

	if c.breaker == nil {
		return c.roundTrip(ctx, method, path, query, body, out)
	}

	var (
		status int
		apiErr error
	)
	_, err := c.breaker.Execute(func() (interface{}, error) {
		status, apiErr = c.roundTrip(ctx, method, path, query, body, out)
		// Only transport failures and 5xx count against the backend.
		if apiErr != nil && !apperrors.IsCanceled(apiErr) && (status == 0 || status >= 500) {
			return nil, apiErr
		}
		return nil, nil
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, apperrors.Normalize(apperrors.NewCircuitOpenError(c.breaker.Name(), err))
	}
	return status, apiErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out interface{}) (int, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, c.transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeError(resp.StatusCode, raw)
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, apperrors.NewApiError(resp.StatusCode, "invalid response body", string(raw))
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Normalize(apperrors.NewEncodingError(err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperrors.NewApiError(0, fmt.Sprintf("build request: %v", err), nil)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Get(ctx)
		if err != nil {
			c.logger.Warn("Failed to read auth token, sending unauthenticated", map[string]interface{}{
				"error": err.Error(),
			})
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}

// transportError maps failures without a usable response. Cancellation by
// the caller is reported as ErrCanceled, never as an ApiError.
func (c *Client) transportError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.Canceled) || stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", apperrors.ErrCanceled, err)
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewApiError(0, "request timed out", nil)
	}
	return apperrors.NewApiError(0, err.Error(), nil)
}

func decodeError(status int, raw []byte) *apperrors.ApiError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return apperrors.NewApiError(status, "", nil)
	}

	var data interface{}
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return apperrors.NewApiError(status, "", string(trimmed))
	}

	message := ""
	if m, ok := data.(map[string]interface{}); ok {
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := m[key].(string); ok && s != "" {
				message = s
				break
			}
		}
	}
	return apperrors.NewApiError(status, message, data)
}

// resourceOf extracts the first path segment for metric labels.
func resourceOf(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}
