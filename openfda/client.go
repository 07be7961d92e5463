// Package openfda is a small client for the openFDA drug endpoints used by the dashboard:
// adverse event listing, enforcement (recall) listing and event search.
package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/metrics"
	"github.com/farmavigil/farmavigil-api/openfda/entities"
)

const (
	DefaultBaseURL    = "https://api.fda.gov"
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second

	eventPath       = "/drug/event.json"
	enforcementPath = "/drug/enforcement.json"
)

// ErrNoResults is returned when openFDA answers a query with NOT_FOUND.
// openFDA signals an empty search with a 404, which is not a failure for callers.
var ErrNoResults = errors.New("openfda: no matches found")

// StatusError is returned for non-2xx responses other than NOT_FOUND.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openfda: http %d", e.StatusCode)
	}
	return fmt.Sprintf("openfda: http %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client talks to openFDA with a fixed retry budget per call.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "farmavigil-api"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 60 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		userAgent:  opts.UserAgent,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		httpClient: httpClient,
	}
}

// Events fetches up to limit adverse event reports.
func (c *Client) Events(ctx context.Context, limit int) ([]entities.Event, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	events, err := fetch[entities.Event](ctx, c, "events", eventPath, query)
	if errors.Is(err, ErrNoResults) {
		return []entities.Event{}, nil
	}
	return events, err
}

// Enforcements fetches up to limit recall actions.
func (c *Client) Enforcements(ctx context.Context, limit int) ([]entities.Enforcement, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	enforcements, err := fetch[entities.Enforcement](ctx, c, "enforcements", enforcementPath, query)
	if errors.Is(err, ErrNoResults) {
		return []entities.Enforcement{}, nil
	}
	return enforcements, err
}

type listResponse[T any] struct {
	Results []T `json:"results"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// fetch performs a GET with retries. Attempt n failing waits n*retryDelay before the next one;
// the error of the final attempt is returned. NOT_FOUND is not retried.
func fetch[T any](ctx context.Context, c *Client, endpoint, path string, query url.Values) ([]T, error) {
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}
	target := c.baseURL + path + "?" + query.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		start := time.Now()
		results, err := fetchOnce[T](ctx, c, target)
		metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		switch {
		case err == nil:
			metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
			return results, nil
		case errors.Is(err, ErrNoResults):
			metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "empty").Inc()
			return nil, err
		}

		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		lastErr = err

		if ctx.Err() != nil || attempt == c.retries {
			break
		}

		logging.Debug("Retrying openFDA request", "endpoint", endpoint, "attempt", attempt, "error", err)
		metrics.UpstreamRetriesTotal.WithLabelValues(endpoint).Inc()

		select {
		case <-time.After(time.Duration(attempt) * c.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%s request failed after %d attempts: %w", endpoint, c.retries, lastErr)
}

func fetchOnce[T any](ctx context.Context, c *Client, target string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}

	var payload listResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Results == nil {
		return []T{}, nil
	}
	return payload.Results, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if resp.StatusCode == http.StatusNotFound && apiErr.Error.Code == "NOT_FOUND" {
			return ErrNoResults
		}
		if apiErr.Error.Message != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
	}

	return &StatusError{StatusCode: resp.StatusCode}
}
