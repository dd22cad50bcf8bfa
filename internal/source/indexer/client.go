package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/cache"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/circuitbreaker"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://indexer-grants-stack.gitcoin.co/data"
	sourceName     = "indexer"
	maxErrorBody   = 512
)

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d from %s: %s", e.Status, e.URL, e.Body)
}

func (e *HTTPStatusError) StatusCode() int {
	return e.Status
}

// Client reads the grants indexer's static JSON exports.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	scores     *cache.Memo[string, map[string]float64]
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithScoreTTL sets how long the passport score file is kept in memory.
func WithScoreTTL(ttl time.Duration) Option {
	return func(c *Client) { c.scores = cache.NewMemo[string, map[string]float64](1, ttl) }
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		scores:     cache.NewMemo[string, map[string]float64](1, 15*time.Minute),
		logger:     logger.With("component", "indexer_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return sourceName
}

// getJSON fetches url and decodes the body into out. kind labels metrics.
func (c *Client) getJSON(ctx context.Context, kind, url string, out any) error {
	started := time.Now()
	call := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.do(ctx, url, out)
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	ratelimit.RecordCall(sourceName, kind, started, err)
	if err != nil {
		c.logger.Debug("indexer request failed", "url", url, "error", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{URL: url, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
