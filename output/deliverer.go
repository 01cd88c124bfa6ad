// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package output delivers finalised rounds to registered callbacks and
// enforces the ordering guarantees the core promises its consumers (C8):
// strictly increasing round numbers, and strictly increasing consensus
// order within a round. Callbacks run inline on the caller's goroutine, so
// a slow consumer applies backpressure straight back into AddEvent (§5).
package output

import (
	"github.com/luxfi/hashgraph/consensus"
	"github.com/luxfi/hashgraph/hgerrors"
)

// ConsensusRoundHandler receives one finalised round, in final order.
type ConsensusRoundHandler func(*consensus.ConsensusRound)

// MinGenerationHandler receives the expiry frontier after it advances:
// round is the round whose finalisation advanced it, minGeneration the new
// floor below which events may be purged.
type MinGenerationHandler func(round int64, minGeneration int64)

// Deliverer holds the callbacks a core was configured with and checks the
// ordering invariant on every delivery before invoking them.
type Deliverer struct {
	onRound  ConsensusRoundHandler
	onMinGen MinGenerationHandler

	haveLastRound bool
	lastRound     int64
	lastOrder     int64
}

// New returns a Deliverer with no callbacks registered; until
// OnConsensusRound / OnMinGenerationAdvanced are called, Deliver still
// checks and records the ordering but invokes nothing, and
// DeliverMinGeneration does nothing.
func New() *Deliverer {
	return &Deliverer{lastOrder: -1}
}

// OnConsensusRound registers the callback invoked once per finalised round.
func (d *Deliverer) OnConsensusRound(h ConsensusRoundHandler) {
	d.onRound = h
}

// OnMinGenerationAdvanced registers the callback invoked whenever expiry
// moves the retention floor forward.
func (d *Deliverer) OnMinGenerationAdvanced(h MinGenerationHandler) {
	d.onMinGen = h
}

// Deliver hands cr to the registered callback, after checking it continues
// the promised total order. A violation is a core bug, not a consequence
// of network input, so it is reported as a FatalError.
func (d *Deliverer) Deliver(cr *consensus.ConsensusRound) error {
	if d.haveLastRound && cr.Round <= d.lastRound {
		return &hgerrors.FatalError{
			Reason: hgerrors.ReasonInvariantViolation,
			Detail: "consensus round delivered out of order",
		}
	}
	for _, e := range cr.Events {
		if e.ConsensusOrder <= d.lastOrder {
			return &hgerrors.FatalError{
				Reason: hgerrors.ReasonInvariantViolation,
				Detail: "consensus order delivered out of order",
			}
		}
		d.lastOrder = e.ConsensusOrder
	}
	d.haveLastRound = true
	d.lastRound = cr.Round

	if d.onRound != nil {
		d.onRound(cr)
	}
	return nil
}

// DeliverMinGeneration invokes the registered min-generation callback, if
// any.
func (d *Deliverer) DeliverMinGeneration(round, minGeneration int64) {
	if d.onMinGen != nil {
		d.onMinGen(round, minGeneration)
	}
}
