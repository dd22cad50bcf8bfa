package identity

import (
	"context"
	"log/slog"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// Registry resolves donor addresses to display names and scores. Lookups
// are best-effort; a registry may return a subset of the addresses asked for.
type Registry interface {
	Identities(ctx context.Context, addresses []string) (map[string]model.Identity, error)
}

// Resolver replaces donor addresses with display identities.
type Resolver struct {
	registries []Registry
	logger     *slog.Logger
}

func NewResolver(logger *slog.Logger, registries ...Registry) *Resolver {
	return &Resolver{
		registries: registries,
		logger:     logger.With("component", "identity"),
	}
}

// Resolve returns a copy of donations with DonorIdentity set to the
// resolved name, or the canonical address when none is known, together with
// the merged identity table keyed by canonical address. A failing registry
// is logged and flagged; the remaining registries still apply.
func (r *Resolver) Resolve(ctx context.Context, donations []model.Donation, dq *model.DataQuality) ([]model.Donation, map[string]model.Identity) {
	seen := make(map[string]struct{})
	addresses := make([]string, 0)
	for _, d := range donations {
		addr := CanonicalAddress(d.DonorAddress)
		if _, ok := seen[addr]; ok || addr == "" {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}

	merged := make(map[string]model.Identity, len(addresses))
	for i, reg := range r.registries {
		if len(addresses) == 0 {
			break
		}
		found, err := reg.Identities(ctx, addresses)
		if err != nil {
			r.logger.Warn("identity registry unavailable", "registry", i, "error", err)
			dq.Note(model.QualityNote{Issue: model.IssueIdentityRegistryDown, Detail: err.Error()})
			continue
		}
		for addr, id := range found {
			key := CanonicalAddress(addr)
			cur := merged[key]
			cur.Address = key
			if cur.Name == "" {
				cur.Name = id.Name
			}
			if cur.Score == nil && id.Score != nil {
				score := *id.Score
				cur.Score = &score
			}
			merged[key] = cur
		}
	}

	out := make([]model.Donation, len(donations))
	for i, d := range donations {
		d.DonorAddress = CanonicalAddress(d.DonorAddress)
		d.DonorIdentity = d.DonorAddress
		if id, ok := merged[d.DonorAddress]; ok && id.Name != "" {
			d.DonorIdentity = id.Name
		}
		out[i] = d
	}
	return out, merged
}

// Scores flattens an identity table to address → score for identities
// that carry one.
func Scores(identities map[string]model.Identity) map[string]float64 {
	out := make(map[string]float64, len(identities))
	for addr, id := range identities {
		if id.Score != nil {
			out[addr] = *id.Score
		}
	}
	return out
}
