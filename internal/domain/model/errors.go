package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ConfigurationError reports missing or invalid configuration, including a
// program that matches no catalog rows.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// FetchKind names the record set a fetch was retrieving.
type FetchKind string

const (
	FetchDonations    FetchKind = "donations"
	FetchApplications FetchKind = "applications"
	FetchRounds       FetchKind = "rounds"
	FetchTokens       FetchKind = "tokens"
	FetchBlockTimes   FetchKind = "block_times"
	FetchIdentities   FetchKind = "identities"
)

// FetchError identifies the upstream source and round/chain pair that failed.
type FetchError struct {
	Source  string
	Kind    FetchKind
	RoundID string
	ChainID ChainID
	Err     error
}

func (e *FetchError) Error() string {
	if e.RoundID == "" {
		return fmt.Sprintf("fetch %s from %s (chain %s): %v", e.Kind, e.Source, e.ChainID, e.Err)
	}
	return fmt.Sprintf("fetch %s from %s (round %s chain %s): %v", e.Kind, e.Source, e.RoundID, e.ChainID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Round returns the failing pair.
func (e *FetchError) Round() RoundKey {
	return RoundKey{RoundID: e.RoundID, ChainID: e.ChainID}
}
