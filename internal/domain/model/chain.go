package model

import "time"

// ChainID is the decimal EVM chain id carried as a string, matching how the
// grants indexer keys its data directories.
type ChainID string

const (
	ChainEthereum  ChainID = "1"
	ChainOptimism  ChainID = "10"
	ChainFantom    ChainID = "250"
	ChainZkSync    ChainID = "324"
	ChainPGN       ChainID = "424"
	ChainPolygon   ChainID = "137"
	ChainBase      ChainID = "8453"
	ChainArbitrum  ChainID = "42161"
	ChainAvalanche ChainID = "43114"
)

func (c ChainID) String() string {
	return string(c)
}

var chainNames = map[ChainID]string{
	ChainEthereum:  "ethereum",
	ChainOptimism:  "optimism",
	ChainFantom:    "fantom",
	ChainZkSync:    "zksync",
	ChainPGN:       "pgn",
	ChainPolygon:   "polygon",
	ChainBase:      "base",
	ChainArbitrum:  "arbitrum",
	ChainAvalanche: "avalanche",
}

// Name returns a human label for the chain, or the raw id when unknown.
func (c ChainID) Name() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return string(c)
}

// DefaultBlockTime is the nominal block interval used when no calibration
// tuple is available for a chain.
func (c ChainID) DefaultBlockTime() time.Duration {
	if c == ChainEthereum {
		return 12 * time.Second
	}
	return 2 * time.Second
}

type RoundType string

const (
	RoundTypeProgram   RoundType = "program"
	RoundTypeEcosystem RoundType = "ecosystem"
)

type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "PENDING"
	ProjectStatusApproved  ProjectStatus = "APPROVED"
	ProjectStatusRejected  ProjectStatus = "REJECTED"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
	ProjectStatusInReview  ProjectStatus = "IN_REVIEW"
)
