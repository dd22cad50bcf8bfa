package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const blockBatchSize = 100

func (c *Client) GetBlockNumber(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	var hexNum string
	if err := json.Unmarshal(result, &hexNum); err != nil {
		return 0, fmt.Errorf("unmarshal block number: %w", err)
	}
	return ParseHexInt64(hexNum)
}

func (c *Client) GetBlockByNumber(ctx context.Context, blockNumber int64) (*Block, error) {
	result, err := c.call(ctx, "eth_getBlockByNumber", []interface{}{formatHexInt64(blockNumber), false})
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber(%d): %w", blockNumber, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var block Block
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &block, nil
}

// GetBlocksByNumber fetches headers in one batch call, in input order. Nil
// entries are blocks the node does not know.
func (c *Client) GetBlocksByNumber(ctx context.Context, blockNumbers []int64) ([]*Block, error) {
	if len(blockNumbers) == 0 {
		return []*Block{}, nil
	}

	requests := make([]Request, len(blockNumbers))
	for i, num := range blockNumbers {
		requests[i] = c.newRequest("eth_getBlockByNumber", []interface{}{formatHexInt64(num), false})
	}

	responses, err := c.callBatch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber batch: %w", err)
	}

	results := make([]*Block, len(blockNumbers))
	for i, resp := range responses {
		if resp.Error != nil {
			return nil, fmt.Errorf("eth_getBlockByNumber(%d): %w", blockNumbers[i], resp.Error)
		}
		if string(resp.Result) == "null" {
			continue
		}
		var block Block
		if err := json.Unmarshal(resp.Result, &block); err != nil {
			return nil, fmt.Errorf("unmarshal block %d: %w", blockNumbers[i], err)
		}
		results[i] = &block
	}
	return results, nil
}

// BlockTimes returns the UTC timestamp of every known block, batching
// requests. Unknown blocks are absent from the result.
func (c *Client) BlockTimes(ctx context.Context, blockNumbers []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(blockNumbers))
	for start := 0; start < len(blockNumbers); start += blockBatchSize {
		end := start + blockBatchSize
		if end > len(blockNumbers) {
			end = len(blockNumbers)
		}
		chunk := blockNumbers[start:end]
		blocks, err := c.GetBlocksByNumber(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for i, b := range blocks {
			if b == nil {
				continue
			}
			secs, err := ParseHexInt64(b.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("block %d timestamp: %w", chunk[i], err)
			}
			out[chunk[i]] = time.Unix(secs, 0).UTC()
		}
	}
	return out, nil
}

func ParseHexInt64(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex %q: %w", value, err)
	}
	return int64(parsed), nil
}

func formatHexInt64(value int64) string {
	return fmt.Sprintf("0x%x", value)
}
