// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package graph implements the in-memory DAG index (C3): ancestor and
// self-ancestor reachability, reverse child edges for voting traversal, and
// fork detection, plus expiry of events below the current generation
// frontier.
package graph

import (
	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/hashgraph/internal/set"
)

// Graph is the DAG index. It owns no consensus logic of its own; it answers
// reachability and linkage questions for the round table and the election
// machinery to build on.
type Graph struct {
	events map[event.Hash]*event.Event

	childrenOf     map[event.Hash][]event.Hash
	selfChildrenOf map[event.Hash][]event.Hash

	// byCreator lists every event by that creator in admission order. Under
	// a fork this is not a single chain; HasFork and CreatorEventsVisibleTo
	// handle the resulting ambiguity explicitly rather than assuming one.
	byCreator map[addressbook.NodeID][]event.Hash
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		events:         make(map[event.Hash]*event.Event),
		childrenOf:     make(map[event.Hash][]event.Hash),
		selfChildrenOf: make(map[event.Hash][]event.Hash),
		byCreator:      make(map[addressbook.NodeID][]event.Hash),
	}
}

// AddEvent links e into the graph. Both named parents must already be
// present, or ErrUnknownParent is returned (§4.2): the caller is
// responsible for buffering e until its parents arrive.
func (g *Graph) AddEvent(e *event.Event) error {
	if _, exists := g.events[e.Hash]; exists {
		return hgerrors.ErrDuplicateEvent
	}
	if e.SelfParent != nil {
		if _, ok := g.events[e.SelfParent.Hash]; !ok {
			return hgerrors.ErrUnknownParent
		}
	}
	if e.OtherParent != nil {
		if _, ok := g.events[e.OtherParent.Hash]; !ok {
			return hgerrors.ErrUnknownParent
		}
	}

	g.events[e.Hash] = e
	if e.SelfParent != nil {
		g.childrenOf[e.SelfParent.Hash] = append(g.childrenOf[e.SelfParent.Hash], e.Hash)
		g.selfChildrenOf[e.SelfParent.Hash] = append(g.selfChildrenOf[e.SelfParent.Hash], e.Hash)
	}
	if e.OtherParent != nil && (e.SelfParent == nil || e.OtherParent.Hash != e.SelfParent.Hash) {
		g.childrenOf[e.OtherParent.Hash] = append(g.childrenOf[e.OtherParent.Hash], e.Hash)
	}
	g.byCreator[e.CreatorID] = append(g.byCreator[e.CreatorID], e.Hash)
	return nil
}

// Get returns the event with the given hash.
func (g *Graph) Get(h event.Hash) (*event.Event, bool) {
	e, ok := g.events[h]
	return e, ok
}

// ChildrenOf returns the reverse parent edges (both self- and
// other-parent) pointing at h.
func (g *Graph) ChildrenOf(h event.Hash) []event.Hash {
	return g.childrenOf[h]
}

// SelfChildrenOf returns the reverse self-parent edges pointing at h.
func (g *Graph) SelfChildrenOf(h event.Hash) []event.Hash {
	return g.selfChildrenOf[h]
}

// ByCreator returns every event by creator, in admission order.
func (g *Graph) ByCreator(creator addressbook.NodeID) []event.Hash {
	return g.byCreator[creator]
}

// parentsOf returns the (up to two) parent hashes of h.
func (g *Graph) parentsOf(h event.Hash) []event.Hash {
	e, ok := g.events[h]
	if !ok {
		return nil
	}
	var out []event.Hash
	if e.SelfParent != nil {
		out = append(out, e.SelfParent.Hash)
	}
	if e.OtherParent != nil {
		out = append(out, e.OtherParent.Hash)
	}
	return out
}

// Ancestors returns every event reachable from d through any parent edge,
// including d itself (reflexive, per §4.2).
func (g *Graph) Ancestors(d event.Hash) set.Set[event.Hash] {
	visited := set.New[event.Hash](16)
	stack := []event.Hash{d}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Contains(h) {
			continue
		}
		visited.Add(h)
		stack = append(stack, g.parentsOf(h)...)
	}
	return visited
}

// SelfAncestors returns every event reachable from d through self-parent
// edges only, including d itself.
func (g *Graph) SelfAncestors(d event.Hash) set.Set[event.Hash] {
	visited := set.New[event.Hash](8)
	h := d
	for {
		visited.Add(h)
		e, ok := g.events[h]
		if !ok || e.SelfParent == nil {
			break
		}
		h = e.SelfParent.Hash
	}
	return visited
}

// IsAncestor reports whether a is an ancestor of d (reflexive).
func (g *Graph) IsAncestor(a, d event.Hash) bool {
	if a == d {
		return true
	}
	return g.Ancestors(d).Contains(a)
}

// IsSelfAncestor reports whether a is a self-ancestor of d (reflexive).
func (g *Graph) IsSelfAncestor(a, d event.Hash) bool {
	if a == d {
		return true
	}
	return g.SelfAncestors(d).Contains(a)
}

// HasFork reports whether creator has produced two events neither of which
// is a self-ancestor of the other.
func (g *Graph) HasFork(creator addressbook.NodeID) bool {
	evs := g.byCreator[creator]
	for i := 0; i < len(evs); i++ {
		for j := i + 1; j < len(evs); j++ {
			if !g.IsSelfAncestor(evs[i], evs[j]) && !g.IsSelfAncestor(evs[j], evs[i]) {
				return true
			}
		}
	}
	return false
}

// CreatorEventsVisibleTo returns the distinct events by creator that are
// ancestors of x. Under normal (fork-free) operation this has at most one
// element; a fork by creator can make it have more, which is exactly the
// condition sees() must detect and reject.
func (g *Graph) CreatorEventsVisibleTo(x event.Hash, creator addressbook.NodeID) []event.Hash {
	ancestors := g.Ancestors(x)
	var out []event.Hash
	for _, h := range g.byCreator[creator] {
		if ancestors.Contains(h) {
			out = append(out, h)
		}
	}
	return out
}

// Expire removes finalised events whose generation is below
// minRoundGeneration, reclaiming their reverse-edge and byCreator entries
// (§4.7). Events that are not yet finalised (RoundReceived == 0) are never
// expired, even if their generation is low, since a pending vote may still
// need them.
func (g *Graph) Expire(minRoundGeneration int64) {
	for h, e := range g.events {
		if e.RoundReceived == 0 {
			continue
		}
		if e.Generation >= minRoundGeneration {
			continue
		}
		delete(g.events, h)
		delete(g.childrenOf, h)
		delete(g.selfChildrenOf, h)
	}
	for creator, evs := range g.byCreator {
		kept := evs[:0:0]
		for _, h := range evs {
			if _, ok := g.events[h]; ok {
				kept = append(kept, h)
			}
		}
		g.byCreator[creator] = kept
	}
}

// Len returns the number of events currently held.
func (g *Graph) Len() int {
	return len(g.events)
}

// Unreceived returns every event that has not yet been assigned a round
// received, for the finaliser to test against each newly decided round.
func (g *Graph) Unreceived() []*event.Event {
	var out []*event.Event
	for _, e := range g.events {
		if e.RoundReceived == 0 {
			out = append(out, e)
		}
	}
	return out
}

// Sees reports whether y is an ancestor of x and there is no fork by
// creator(y) visible among x's ancestors (§4.4). A creator may legally have
// several of its own events visible to x, provided they form a single
// self-ancestor chain; a fork is two such events where neither is a
// self-ancestor of the other. Both x and y must already be in the graph.
func (g *Graph) Sees(x, y event.Hash) bool {
	if !g.IsAncestor(y, x) {
		return false
	}
	ey, ok := g.events[y]
	if !ok {
		return false
	}
	return !g.forkVisibleTo(x, ey.CreatorID)
}

// forkVisibleTo reports whether two of creator's events, both ancestors of
// x, are mutually non-self-ancestors — i.e. a fork is visible to x.
func (g *Graph) forkVisibleTo(x event.Hash, creator addressbook.NodeID) bool {
	visible := g.CreatorEventsVisibleTo(x, creator)
	for i := 0; i < len(visible); i++ {
		for j := i + 1; j < len(visible); j++ {
			if !g.IsSelfAncestor(visible[i], visible[j]) && !g.IsSelfAncestor(visible[j], visible[i]) {
				return true
			}
		}
	}
	return false
}

// StronglySees reports whether x strongly sees y: x sees y, and the
// creators z of events such that x sees z and z sees y carry supermajority
// stake per ab (§4.4). This is a deterministic, side-effect-free
// computation; implementations may cache it, but the result never depends
// on admission order.
func (g *Graph) StronglySees(ab AddressBook, x, y event.Hash) bool {
	if !g.Sees(x, y) {
		return false
	}

	contributing := map[addressbook.NodeID]bool{}
	for z := range g.Ancestors(x) {
		ez, ok := g.events[z]
		if !ok || contributing[ez.CreatorID] {
			continue
		}
		if g.Sees(x, z) && g.Sees(z, y) {
			contributing[ez.CreatorID] = true
		}
	}

	var sum uint64
	for creator := range contributing {
		sum += ab.Stake(creator)
	}
	return ab.IsSupermajority(sum)
}

// AddressBook is the narrow read-only view of C1 that graph-level
// reachability predicates need: per-node stake and the supermajority
// threshold. The concrete addressbook.AddressBook satisfies it.
type AddressBook interface {
	Stake(id addressbook.NodeID) uint64
	IsSupermajority(sumOfStakes uint64) bool
}
