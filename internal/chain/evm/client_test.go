package evm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/retry"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(handler func(*http.Request) (*http.Response, error)) *Client {
	return NewClient("http://rpc.local", "rpc_test", slog.Default(),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(handler)}))
}

func jsonHTTPResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// blockServer answers eth_getBlockByNumber batches from a block->unix map.
func blockServer(t *testing.T, times map[int64]int64, batches *int) func(*http.Request) (*http.Response, error) {
	return func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var reqs []Request
		require.NoError(t, json.Unmarshal(body, &reqs))
		if batches != nil {
			*batches++
		}

		resps := make([]Response, 0, len(reqs))
		for _, req := range reqs {
			assert.Equal(t, "eth_getBlockByNumber", req.Method)
			num, err := ParseHexInt64(req.Params[0].(string))
			require.NoError(t, err)
			ts, ok := times[num]
			if !ok {
				resps = append(resps, Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`null`)})
				continue
			}
			block, _ := json.Marshal(Block{Number: formatHexInt64(num), Timestamp: formatHexInt64(ts)})
			resps = append(resps, Response{JSONRPC: "2.0", ID: req.ID, Result: block})
		}
		raw, err := json.Marshal(resps)
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(raw)), nil
	}
}

func TestCall_Success(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req Request
		require.NoError(t, json.Unmarshal(body, &req))

		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "eth_blockNumber", req.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := json.Marshal(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`"0x2a"`)})
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(raw)), nil
	})

	n, err := client.GetBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestCall_RPCErrorIsClassified(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		raw, err := json.Marshal(Response{JSONRPC: "2.0", ID: 1, Error: &RPCError{Code: -32005, Message: "limit exceeded"}})
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(raw)), nil
	})

	_, err := client.GetBlockByNumber(context.Background(), 5)
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32005, rpcErr.RPCCode())
	assert.True(t, retry.Classify(err).IsTransient())
}

func TestCall_HTTPError(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return jsonHTTPResponse(http.StatusBadGateway, "bad gateway"), nil
	})

	_, err := client.GetBlockNumber(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode())
	assert.Contains(t, err.Error(), "http status 502")
}

func TestParseHexInt64(t *testing.T) {
	value, err := ParseHexInt64("0x2a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	zero, err := ParseHexInt64("0x")
	require.NoError(t, err)
	assert.Zero(t, zero)

	_, err = ParseHexInt64("nope")
	require.Error(t, err)
}

func TestCallBatch_MissingResponse(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var reqs []Request
		require.NoError(t, json.Unmarshal(body, &reqs))

		raw, err := json.Marshal([]Response{{JSONRPC: "2.0", ID: reqs[0].ID, Result: json.RawMessage(`null`)}})
		require.NoError(t, err)
		return jsonHTTPResponse(http.StatusOK, string(raw)), nil
	})

	_, err := client.GetBlocksByNumber(context.Background(), []int64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing batch response")
}

func TestBlockTimes_BatchesAndSkipsUnknownBlocks(t *testing.T) {
	times := make(map[int64]int64)
	blocks := make([]int64, 0, 150)
	for i := int64(0); i < 150; i++ {
		blocks = append(blocks, 1000+i)
		if i != 7 {
			times[1000+i] = 1692100800 + 2*i
		}
	}
	batches := 0
	client := newTestClient(blockServer(t, times, &batches))

	got, err := client.BlockTimes(context.Background(), blocks)
	require.NoError(t, err)
	assert.Equal(t, 2, batches)
	assert.Len(t, got, 149)
	assert.NotContains(t, got, int64(1007))
	assert.True(t, got[1010].Equal(time.Date(2023, 8, 15, 12, 0, 20, 0, time.UTC)))
	assert.Equal(t, time.UTC, got[1010].Location())
}

func TestSource_UnknownChainIsNotFound(t *testing.T) {
	client := newTestClient(blockServer(t, map[int64]int64{5: 1692100800}, nil))
	src := NewSource(map[model.ChainID]*Client{model.ChainOptimism: client})

	got, err := src.BlockTimestamps(context.Background(), model.ChainOptimism, []int64{5})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = src.BlockTimestamps(context.Background(), model.ChainPGN, []int64{5})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
