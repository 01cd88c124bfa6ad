// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements round finalisation (C6): round-received
// assignment, the upper-median consensus timestamp, total-order tie-break,
// and the inductive running hash that lets two independent cores verify
// they processed the same history.
package consensus

import (
	"crypto/sha512"
	"sort"
	"time"

	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/graph"
	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/hashgraph/internal/wire"
	"github.com/luxfi/hashgraph/round"
	"github.com/luxfi/hashgraph/vote"
)

// ConsensusRound is the unit the core hands to package output: every event
// that received its round in this pass, already in final consensus order.
type ConsensusRound struct {
	Round              int64
	Judges             []event.Hash
	Events             []*event.Event
	MinRoundGeneration int64
}

// Finaliser turns a decided round into a ConsensusRound, advancing the
// running hash and the global consensus-order counter as it goes. It is not
// safe for concurrent use; the core drives it from its single state-machine
// goroutine (§5).
type Finaliser struct {
	graph *graph.Graph
	table *round.Table
	votes *vote.Engine

	runningHash   event.Hash
	nextOrder     int64
	lastTimestamp time.Time
}

// NewFinaliser constructs a Finaliser starting from the given running hash,
// order counter and last-emitted timestamp — the values the core was
// initialised with, either genesis zero values or a persisted checkpoint.
func NewFinaliser(g *graph.Graph, table *round.Table, votes *vote.Engine, runningHash event.Hash, nextOrder int64, lastTimestamp time.Time) *Finaliser {
	return &Finaliser{
		graph:         g,
		table:         table,
		votes:         votes,
		runningHash:   runningHash,
		nextOrder:     nextOrder,
		lastTimestamp: lastTimestamp,
	}
}

// RunningHash returns the current value of the inductive running hash.
func (f *Finaliser) RunningHash() event.Hash {
	return f.runningHash
}

// NextOrder returns the consensus order that will be assigned to the next
// finalised event.
func (f *Finaliser) NextOrder() int64 {
	return f.nextOrder
}

// TryFinalise attempts to finalise round r. It reports ok=false if r's
// election is not yet fully decided. A decided round with no judges is a
// protocol invariant violation (§4.6) and is reported as a FatalError
// rather than silently skipped.
func (f *Finaliser) TryFinalise(r int64) (*ConsensusRound, bool, error) {
	if !f.votes.IsRoundDecided(r) {
		return nil, false, nil
	}

	judges := f.votes.Judges(r)
	if len(judges) == 0 {
		return nil, false, &hgerrors.FatalError{
			Reason: hgerrors.ReasonInvariantViolation,
			Detail: "round decided with zero judges",
		}
	}

	var received []*event.Event
	for _, e := range f.graph.Unreceived() {
		if f.isAncestorOfEveryJudge(e.Hash, judges) {
			e.RoundReceived = r
			received = append(received, e)
		}
	}

	// Raw medians are computed against the prior, not-yet-advanced
	// lastTimestamp for every candidate before any ordering decision: the
	// non-decreasing bump below must run in final consensus order, not in
	// the arbitrary order Unreceived() produced these candidates.
	rawMedian := make(map[event.Hash]time.Time, len(received))
	for _, e := range received {
		rawMedian[e.Hash] = f.rawMedianTimestamp(e.Hash, judges)
	}

	whiten := whitenRound(f.runningHash, r)
	sort.Slice(received, func(i, j int) bool {
		a, b := received[i], received[j]
		ta, tb := rawMedian[a.Hash], rawMedian[b.Hash]
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		wa, wb := xorHash(a.Hash, whiten), xorHash(b.Hash, whiten)
		if wa != wb {
			return wa.Less(wb)
		}
		return a.Hash.Less(b.Hash)
	})

	for _, e := range received {
		ts := rawMedian[e.Hash]
		if !ts.After(f.lastTimestamp) {
			ts = f.lastTimestamp.Add(time.Nanosecond)
		}
		f.lastTimestamp = ts
		e.ConsensusTimestamp = ts

		e.ConsensusOrder = f.nextOrder
		f.nextOrder++
		f.runningHash = f.advanceRunningHash(e)
	}

	return &ConsensusRound{
		Round:              r,
		Judges:             judges,
		Events:             received,
		MinRoundGeneration: f.table.MinGeneration(r, f.graph),
	}, true, nil
}

// isAncestorOfEveryJudge reports whether x is an ancestor of every judge of
// the round being finalised — the round-received condition of §4.6.
func (f *Finaliser) isAncestorOfEveryJudge(x event.Hash, judges []event.Hash) bool {
	for _, w := range judges {
		if !f.graph.IsAncestor(x, w) {
			return false
		}
	}
	return true
}

// rawMedianTimestamp computes the upper median, across judges, of the
// creation time of each judge's earliest self-ancestor that still descends
// from x. The non-decreasing bump (§4.6) is applied afterwards, once final
// consensus order is known.
func (f *Finaliser) rawMedianTimestamp(x event.Hash, judges []event.Hash) time.Time {
	times := make([]time.Time, 0, len(judges))
	for _, w := range judges {
		times = append(times, f.earliestSelfAncestorDescendantOf(w, x))
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times[len(times)/2]
}

// earliestSelfAncestorDescendantOf walks w's self-parent chain backward as
// long as each ancestor still descends from x, returning the creation time
// of the last (earliest) one that does.
func (f *Finaliser) earliestSelfAncestorDescendantOf(w, x event.Hash) time.Time {
	candidate, ok := f.graph.Get(w)
	if !ok {
		return time.Time{}
	}
	for candidate.SelfParent != nil && f.graph.IsAncestor(x, candidate.SelfParent.Hash) {
		parent, ok := f.graph.Get(candidate.SelfParent.Hash)
		if !ok {
			break
		}
		candidate = parent
	}
	return candidate.CreationTime
}

// whitenRound derives the tie-break mask for round r from the running hash
// as it stood before the round was finalised, so the mask cannot be
// predicted before the prior round closes.
func whitenRound(priorRunningHash event.Hash, r int64) event.Hash {
	p := wire.NewPacker(56)
	p.PackBytes(priorRunningHash[:])
	p.PackInt64(r)
	return event.Hash(sha512.Sum384(p.Bytes))
}

func xorHash(a, b event.Hash) event.Hash {
	var out event.Hash
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// advanceRunningHash folds e into the running hash: H_n =
// SHA384(H_{n-1} || eventHash || consensusOrderBE || tsSecBE || tsNanosBE).
func (f *Finaliser) advanceRunningHash(e *event.Event) event.Hash {
	p := wire.NewPacker(48 + 48 + 8 + 8 + 4)
	p.PackBytes(f.runningHash[:])
	p.PackBytes(e.Hash[:])
	p.PackInt64(e.ConsensusOrder)
	p.PackInt64(e.ConsensusTimestamp.Unix())
	p.PackInt32(int32(e.ConsensusTimestamp.Nanosecond()))
	return event.Hash(sha512.Sum384(p.Bytes))
}
