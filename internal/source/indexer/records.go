package indexer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// Donations implements ingest.DonationSource.
func (c *Client) Donations(ctx context.Context, key model.RoundKey) ([]model.Donation, error) {
	url := fmt.Sprintf("%s/%s/rounds/%s/votes.json", c.baseURL, key.ChainID, key.RoundID)
	var votes []vote
	if err := c.getJSON(ctx, string(model.FetchDonations), url, &votes); err != nil {
		return nil, err
	}

	out := make([]model.Donation, 0, len(votes))
	for _, v := range votes {
		d := model.Donation{
			ID:              v.ID,
			TransactionHash: v.Transaction,
			DonorAddress:    v.Voter,
			ProjectID:       v.ProjectID,
			ApplicationID:   string(v.ApplicationID),
			GrantAddress:    v.GrantAddress,
			RoundID:         key.RoundID,
			ChainID:         key.ChainID,
			TokenAddress:    v.Token,
			RawAmount:       string(v.Amount),
			BlockNumber:     int64(v.BlockNumber),
		}
		if v.AmountUSD != nil {
			amount, err := decimal.NewFromString(v.AmountUSD.String())
			if err != nil {
				return nil, fmt.Errorf("decode %s: vote %s amountUSD: %w", url, v.ID, err)
			}
			d.AmountUSD = decimal.NewNullDecimal(amount)
		}
		out = append(out, d)
	}
	return out, nil
}

// Applications implements ingest.DonationSource. Entries are returned as
// published; filtering of incomplete metadata happens during ingestion.
func (c *Client) Applications(ctx context.Context, key model.RoundKey) ([]model.Application, error) {
	url := fmt.Sprintf("%s/%s/rounds/%s/applications.json", c.baseURL, key.ChainID, key.RoundID)
	var apps []application
	if err := c.getJSON(ctx, string(model.FetchApplications), url, &apps); err != nil {
		return nil, err
	}

	out := make([]model.Application, 0, len(apps))
	for _, a := range apps {
		out = append(out, model.Application{
			ApplicationID:    string(a.ID),
			ProjectID:        a.ProjectID,
			RoundID:          key.RoundID,
			ChainID:          key.ChainID,
			Title:            a.Metadata.Application.Project.Title,
			Description:      a.Metadata.Application.Project.Description,
			GrantAddress:     a.Metadata.Application.Recipient,
			Status:           model.ProjectStatus(a.Status),
			AmountUSD:        a.AmountUSD,
			DonationCount:    int64(a.Votes),
			UniqueDonorCount: int64(a.UniqueContributors),
		})
	}
	return out, nil
}

// Rounds implements catalog.RoundSource.
func (c *Client) Rounds(ctx context.Context, chain model.ChainID) ([]model.Round, error) {
	url := fmt.Sprintf("%s/%s/rounds.json", c.baseURL, chain)
	var rounds []round
	if err := c.getJSON(ctx, string(model.FetchRounds), url, &rounds); err != nil {
		return nil, err
	}

	out := make([]model.Round, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, model.Round{
			RoundID:            strings.ToLower(r.ID),
			ChainID:            chain,
			RoundName:          r.RoundMetadata.Name,
			DonationsStartTime: r.RoundStartTime.Time,
			DonationsEndTime:   r.RoundEndTime.Time,
			MatchAmountUSD:     r.MatchAmountUSD,
			AmountUSD:          r.AmountUSD,
			UniqueContributors: int64(r.UniqueContributors),
		})
	}
	return out, nil
}

// Identities implements identity.Registry with passport scores. The score
// file is shared by all programs and cached for the configured TTL.
func (c *Client) Identities(ctx context.Context, addresses []string) (map[string]model.Identity, error) {
	scores, _, err := c.scores.Get(ctx, "passport", c.loadScores)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Identity)
	for _, addr := range addresses {
		key := strings.ToLower(addr)
		if score, ok := scores[key]; ok {
			out[key] = model.Identity{Address: key, Score: &score}
		}
	}
	return out, nil
}

func (c *Client) loadScores(ctx context.Context) (map[string]float64, error) {
	url := c.baseURL + "/passport_scores.json"
	var passports []passport
	if err := c.getJSON(ctx, string(model.FetchIdentities), url, &passports); err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(passports))
	for _, p := range passports {
		if p.Address == "" {
			continue
		}
		var score float64
		if p.Evidence != nil && p.Evidence.RawScore != "" {
			parsed, err := strconv.ParseFloat(string(p.Evidence.RawScore), 64)
			if err == nil {
				score = parsed
			}
		}
		scores[strings.ToLower(p.Address)] = score
	}
	return scores, nil
}
