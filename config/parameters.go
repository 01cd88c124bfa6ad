// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config carries the protocol constants the consensus core requires
// every honest node to agree on verbatim.
package config

import "github.com/luxfi/hashgraph/hgerrors"

// Parameters holds the protocol constants injected at Initialise.
type Parameters struct {
	// CoinRoundPeriod is C: every C-th voting round is a coin round.
	CoinRoundPeriod int64

	// PersistedRoundsWindow is W, the number of trailing decided rounds
	// whose witnesses and election state are retained for reconnect state
	// export (typically 3*C).
	PersistedRoundsWindow int64
}

// Mainnet returns the production protocol constants.
func Mainnet() Parameters {
	return Parameters{
		CoinRoundPeriod:       12,
		PersistedRoundsWindow: 36,
	}
}

// Testnet returns relaxed constants suitable for a smaller test network.
func Testnet() Parameters {
	return Parameters{
		CoinRoundPeriod:       6,
		PersistedRoundsWindow: 18,
	}
}

// Local returns constants tuned for fast single-process development runs.
func Local() Parameters {
	return Parameters{
		CoinRoundPeriod:       3,
		PersistedRoundsWindow: 9,
	}
}

// Validate checks that Parameters describes a legal protocol configuration.
func (p Parameters) Validate() error {
	if p.CoinRoundPeriod < 1 || p.PersistedRoundsWindow < 1 {
		return hgerrors.ErrInvalidParameters
	}
	return nil
}
