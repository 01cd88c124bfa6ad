// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vote implements the famous-witness election (C5): virtual voting
// across election rounds, including the coin-round escape. The see and
// strongly-see predicates it runs on live in package graph, since the round
// table also needs them to assign roundCreated.
package vote

import (
	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/config"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/graph"
	"github.com/luxfi/hashgraph/round"
)

// Election tracks the virtual-voting state of a single witness.
type Election struct {
	Witness event.Hash
	Round   int64
	Decided bool
	Fame    event.Tri

	// votesByRound[r][v] is the vote cast by witness v (of round r) in
	// this election.
	votesByRound map[int64]map[event.Hash]bool
}

// Engine runs elections for every witness opened on it, driven by
// Progress as new witnesses are admitted.
type Engine struct {
	graph     *graph.Graph
	ab        *addressbook.AddressBook
	table     *round.Table
	params    config.Parameters
	elections map[event.Hash]*Election
	// pendingByRound indexes undecided elections by their own round, so
	// IsRoundDecided doesn't have to scan every election ever opened.
	pendingByRound map[int64]map[event.Hash]bool

	onCoinRound func()
}

// NewEngine constructs an Engine over the given graph, address book, round
// table and protocol parameters.
func NewEngine(g *graph.Graph, ab *addressbook.AddressBook, table *round.Table, params config.Parameters) *Engine {
	return &Engine{
		graph:          g,
		ab:             ab,
		table:          table,
		params:         params,
		elections:      make(map[event.Hash]*Election),
		pendingByRound: make(map[int64]map[event.Hash]bool),
	}
}

// OpenElection begins an election for witness w. w must not already have an
// open or decided election.
func (en *Engine) OpenElection(w *event.Event) {
	if _, exists := en.elections[w.Hash]; exists {
		return
	}
	el := &Election{
		Witness:      w.Hash,
		Round:        w.RoundCreated,
		Fame:         event.Undecided,
		votesByRound: make(map[int64]map[event.Hash]bool),
	}
	en.elections[w.Hash] = el
	if en.pendingByRound[el.Round] == nil {
		en.pendingByRound[el.Round] = make(map[event.Hash]bool)
	}
	en.pendingByRound[el.Round][w.Hash] = true
}

// OnCoinRoundEntered registers a callback invoked every time a vote is cast
// in a coin round, across every election. It exists for metrics; no voting
// decision depends on whether one is registered.
func (en *Engine) OnCoinRoundEntered(h func()) {
	en.onCoinRound = h
}

// Election returns the election state for witness w, if one has been
// opened.
func (en *Engine) Election(w event.Hash) (*Election, bool) {
	el, ok := en.elections[w]
	return el, ok
}

// Progress casts v's vote (v must be a witness) in every still-open
// election of an earlier round, and reports which witnesses just became
// decided as a result. It must be called once per newly admitted witness,
// in the order witnesses are classified (any order is fine across rounds
// that are themselves already decided: a decided election is skipped).
func (en *Engine) Progress(v *event.Event) []event.Hash {
	var newlyDecided []event.Hash

	for r, pending := range en.pendingByRound {
		if r >= v.RoundCreated {
			continue
		}
		for wHash := range pending {
			el := en.elections[wHash]
			if el.Decided {
				continue
			}
			if en.castVote(el, v) {
				newlyDecided = append(newlyDecided, wHash)
				delete(pending, wHash)
			}
		}
	}
	return newlyDecided
}

// castVote records v's vote in el and reports whether el just decided.
func (en *Engine) castVote(el *Election, v *event.Event) bool {
	d := v.RoundCreated - el.Round
	if d < 1 {
		return false
	}

	if el.votesByRound[v.RoundCreated] == nil {
		el.votesByRound[v.RoundCreated] = make(map[event.Hash]bool)
	}

	if d == 1 {
		vote := en.graph.Sees(v.Hash, el.Witness)
		el.votesByRound[v.RoundCreated][v.Hash] = vote
		return false // d=1 only ever votes; §4.5
	}

	yesStake, noStake := en.tally(el, v)
	isCoin := d%en.params.CoinRoundPeriod == 0

	if isCoin {
		var myVote bool
		switch {
		case en.ab.IsSupermajority(yesStake):
			myVote = true
		case en.ab.IsSupermajority(noStake):
			myVote = false
		default:
			myVote = coinFlip(v.Hash)
		}
		el.votesByRound[v.RoundCreated][v.Hash] = myVote
		if en.onCoinRound != nil {
			en.onCoinRound()
		}
		return false // coin rounds never decide
	}

	majority := yesStake >= noStake // ties vote YES
	el.votesByRound[v.RoundCreated][v.Hash] = majority

	winning := yesStake
	if noStake > winning {
		winning = noStake
	}
	if en.ab.IsSupermajority(winning) {
		el.Decided = true
		if majority {
			el.Fame = event.Yes
		} else {
			el.Fame = event.No
		}
		return true
	}
	return false
}

// tally sums the stake behind yes/no votes cast by round-(v.RoundCreated-1)
// witnesses that v strongly sees.
func (en *Engine) tally(el *Election, v *event.Event) (yesStake, noStake uint64) {
	prevRound := v.RoundCreated - 1
	prevVotes := el.votesByRound[prevRound]
	if prevVotes == nil {
		return 0, 0
	}
	for _, w := range en.table.Round(prevRound).Witnesses() {
		if !en.graph.StronglySees(en.ab, v.Hash, w) {
			continue
		}
		vote, ok := prevVotes[w]
		if !ok {
			continue
		}
		we, ok := en.graph.Get(w)
		if !ok {
			continue
		}
		stake := en.ab.Stake(we.CreatorID)
		if vote {
			yesStake += stake
		} else {
			noStake += stake
		}
	}
	return yesStake, noStake
}

// coinFlip reads the low bit of the last byte of h, the "designated bit"
// of §4.5's coin-round escape.
func coinFlip(h event.Hash) bool {
	return h[len(h)-1]&1 == 1
}

// IsRoundDecided reports whether every witness of round r has a decided
// election.
func (en *Engine) IsRoundDecided(r int64) bool {
	witnesses := en.table.Round(r).Witnesses()
	if len(witnesses) == 0 {
		return false
	}
	for _, w := range witnesses {
		el, ok := en.elections[w]
		if !ok || !el.Decided {
			return false
		}
	}
	return true
}

// Forget discards the election state of round r's witnesses. The core
// calls this once r falls outside the persisted-rounds window, right
// before dropping r's table entry too (§4.7): without it, elections and
// their per-round vote tallies would accumulate for the life of the
// process.
func (en *Engine) Forget(r int64) {
	if !en.table.Has(r) {
		return
	}
	for _, w := range en.table.Round(r).Witnesses() {
		delete(en.elections, w)
	}
	delete(en.pendingByRound, r)
}

// Fame returns the decided fame of witness w, or event.Undecided if it has
// no election yet or is still undecided.
func (en *Engine) Fame(w event.Hash) event.Tri {
	el, ok := en.elections[w]
	if !ok {
		return event.Undecided
	}
	return el.Fame
}

// Judges returns, per creator, the lexicographically smallest hash among
// that creator's YES-decided witnesses in round r (§4.5): a forked creator
// contributes at most one judge even with multiple famous witnesses.
func (en *Engine) Judges(r int64) []event.Hash {
	ri := en.table.Round(r)
	byCreator := make(map[addressbook.NodeID]event.Hash)
	hasJudge := make(map[addressbook.NodeID]bool)

	for _, w := range ri.Witnesses() {
		if en.Fame(w) != event.Yes {
			continue
		}
		we, ok := en.graph.Get(w)
		if !ok {
			continue
		}
		cur, ok := byCreator[we.CreatorID]
		if !ok || w.Less(cur) {
			byCreator[we.CreatorID] = w
			hasJudge[we.CreatorID] = true
		}
	}

	var judges []event.Hash
	for creator, w := range byCreator {
		if hasJudge[creator] {
			judges = append(judges, w)
		}
	}
	return judges
}
