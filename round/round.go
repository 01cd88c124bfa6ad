// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package round implements the round table (C4): per-round witness
// bookkeeping, generation bounds, and the round-created assignment rule of
// §4.3. Election progress itself (virtual voting) lives in package vote,
// which consults a Table for witness membership.
package round

import (
	"sort"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/graph"
	"golang.org/x/exp/maps"
)

// Info is the per-round data the table maintains.
type Info struct {
	Round int64

	// witnessesByCreator lists, per creator, all witness events of this
	// round. Normally length 1; a forked creator may contribute more.
	witnessesByCreator map[addressbook.NodeID][]event.Hash
	allWitnesses       []event.Hash // insertion order, deduplicated

	// Decided and Judges are not written by the table or by the core; a
	// round's decision and its judges come from vote.Engine (IsRoundDecided,
	// Judges).
	Decided bool
	Judges  []event.Hash
}

// Witnesses returns every witness of this round, in insertion order.
func (ri *Info) Witnesses() []event.Hash {
	return append([]event.Hash(nil), ri.allWitnesses...)
}

// WitnessesOf returns the witnesses of this round created by creator.
func (ri *Info) WitnessesOf(creator addressbook.NodeID) []event.Hash {
	return ri.witnessesByCreator[creator]
}

// Table holds Info for every round the core currently tracks.
type Table struct {
	rounds map[int64]*Info
}

// New returns an empty Table.
func New() *Table {
	return &Table{rounds: make(map[int64]*Info)}
}

// Round returns (creating if necessary) the Info for r.
func (t *Table) Round(r int64) *Info {
	ri, ok := t.rounds[r]
	if !ok {
		ri = &Info{
			Round:              r,
			witnessesByCreator: make(map[addressbook.NodeID][]event.Hash),
		}
		t.rounds[r] = ri
	}
	return ri
}

// Has reports whether round r has been created in this table.
func (t *Table) Has(r int64) bool {
	_, ok := t.rounds[r]
	return ok
}

// Delete drops round r entirely, used by expiry once it is far enough in
// the past that no reconnect export needs it (§6 persisted-state window).
func (t *Table) Delete(r int64) {
	delete(t.rounds, r)
}

// AddWitness registers e as a witness of round r.
func (t *Table) AddWitness(r int64, e *event.Event) {
	ri := t.Round(r)
	for _, h := range ri.witnessesByCreator[e.CreatorID] {
		if h == e.Hash {
			return
		}
	}
	ri.witnessesByCreator[e.CreatorID] = append(ri.witnessesByCreator[e.CreatorID], e.Hash)
	ri.allWitnesses = append(ri.allWitnesses, e.Hash)
}

// MinGeneration returns the minimum generation among round r's witnesses,
// as recorded in the graph supplied by the caller (the graph owns
// generations).
func (t *Table) MinGeneration(r int64, g *graph.Graph) int64 {
	ri, ok := t.rounds[r]
	if !ok {
		return 0
	}
	var min int64 = -1
	for _, h := range ri.allWitnesses {
		e, ok := g.Get(h)
		if !ok {
			continue
		}
		if min == -1 || e.Generation < min {
			min = e.Generation
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

// SortedWitnesses returns a round's witnesses sorted by hash (creator id
// plays no part in the order), giving a deterministic iteration order for judge selection and
// election bookkeeping regardless of admission order.
func (t *Table) SortedWitnesses(r int64) []event.Hash {
	ri, ok := t.rounds[r]
	if !ok {
		return nil
	}
	out := append([]event.Hash(nil), ri.allWitnesses...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// RoundCreated computes roundCreated(e) per §4.3: the round one past
// rp = max(selfParent.roundCreated, otherParent.roundCreated) if e strongly
// sees a supermajority-of-stake set of round-rp witnesses, else rp itself.
// selfParentRound and otherParentRound must be the already-assigned
// roundCreated of e's parents (treating a missing parent as round 1).
func (t *Table) RoundCreated(g *graph.Graph, ab *addressbook.AddressBook, e *event.Event, selfParentRound, otherParentRound int64) int64 {
	rp := selfParentRound
	if otherParentRound > rp {
		rp = otherParentRound
	}
	if rp == 0 {
		rp = 1
	}

	ri, ok := t.rounds[rp]
	if !ok {
		return rp
	}

	seenCreators := map[addressbook.NodeID]bool{}
	for creator, witnesses := range ri.witnessesByCreator {
		for _, w := range witnesses {
			if g.StronglySees(ab, e.Hash, w) {
				seenCreators[creator] = true
				break
			}
		}
	}

	var sum uint64
	for creator := range seenCreators {
		sum += ab.Stake(creator)
	}
	if ab.IsSupermajority(sum) {
		return rp + 1
	}
	return rp
}

// Rounds returns every round number currently tracked, ascending: the
// range a state snapshot or reconnect export needs to walk.
func (t *Table) Rounds() []int64 {
	rs := maps.Keys(t.rounds)
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return rs
}

// IsWitness reports whether e is the first event of its creator in its
// round (invariant 3, §3): either it has no self-parent, or its
// self-parent's round is strictly below its own.
func IsWitness(e *event.Event, selfParentRound int64) bool {
	if e.SelfParent == nil {
		return true
	}
	return selfParentRound < e.RoundCreated
}
