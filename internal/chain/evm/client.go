package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/circuitbreaker"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

const maxErrorBody = 512

type Client struct {
	httpClient *http.Client
	rpcURL     string
	source     string
	requestID  atomic.Int64
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
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

// NewClient talks to one JSON-RPC endpoint. source labels metrics, e.g.
// "rpc_10".
func NewClient(rpcURL, source string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rpcURL:     rpcURL,
		source:     source,
		logger:     logger.With("component", "evm_rpc", "source", source),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(method string, params []interface{}) Request {
	id := int(c.requestID.Add(1))
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// guard applies the limiter and breaker and records the call.
func (c *Client) guard(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	started := time.Now()
	call := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	ratelimit.RecordCall(c.source, kind, started, err)
	return err
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.guard(ctx, method, func(ctx context.Context) error {
		respBody, err := c.post(ctx, c.newRequest(method, params))
		if err != nil {
			return err
		}
		var rpcResp Response
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}
		result = rpcResp.Result
		return nil
	})
	return result, err
}

func (c *Client) callBatch(ctx context.Context, requests []Request) ([]Response, error) {
	if len(requests) == 0 {
		return []Response{}, nil
	}

	var ordered []Response
	err := c.guard(ctx, "batch", func(ctx context.Context) error {
		respBody, err := c.post(ctx, requests)
		if err != nil {
			return err
		}
		var rpcResps []Response
		if err := json.Unmarshal(respBody, &rpcResps); err != nil {
			return fmt.Errorf("unmarshal batch response: %w", err)
		}

		responseByID := make(map[int]Response, len(rpcResps))
		for _, rpcResp := range rpcResps {
			responseByID[rpcResp.ID] = rpcResp
		}

		ordered = make([]Response, len(requests))
		for i, req := range requests {
			rpcResp, ok := responseByID[req.ID]
			if !ok {
				return fmt.Errorf("missing batch response id=%d method=%s", req.ID, req.Method)
			}
			ordered[i] = rpcResp
		}
		return nil
	})
	return ordered, err
}
