package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// Source serves block timestamps from one RPC client per chain.
type Source struct {
	clients map[model.ChainID]*Client
}

func NewSource(clients map[model.ChainID]*Client) *Source {
	return &Source{clients: clients}
}

func (s *Source) Chains() []model.ChainID {
	out := make([]model.ChainID, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

// BlockTimestamps implements blocktime.Source.
func (s *Source) BlockTimestamps(ctx context.Context, chain model.ChainID, blocks []int64) (map[int64]time.Time, error) {
	client, ok := s.clients[chain]
	if !ok {
		return nil, fmt.Errorf("rpc endpoint for chain %s: %w", chain, model.ErrNotFound)
	}
	return client.BlockTimes(ctx, blocks)
}
