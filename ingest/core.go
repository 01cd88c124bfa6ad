// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ingest wires the graph, round table, election engine and
// finaliser into the single AddEvent pipeline (C7): admission, round and
// witness classification, election progress, round finalisation, and
// expiry. It runs entirely on the caller's goroutine (§5); the caller is
// responsible for serialising calls.
package ingest

import (
	"time"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/config"
	"github.com/luxfi/hashgraph/consensus"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/graph"
	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/hashgraph/metrics"
	"github.com/luxfi/hashgraph/output"
	"github.com/luxfi/hashgraph/round"
	"github.com/luxfi/hashgraph/vote"
	"github.com/luxfi/log"
)

// Core runs the consensus state machine over one address book.
type Core struct {
	ab     *addressbook.AddressBook
	params config.Parameters
	graph  *graph.Graph
	table  *round.Table
	votes  *vote.Engine
	fin    *consensus.Finaliser
	out    *output.Deliverer

	metrics metrics.Metrics
	log     log.Logger

	minRoundGeneration int64
	nextRoundToTry     int64
	currentRound       int64
}

// New constructs a Core at genesis: empty graph, round 1, zero running
// hash, zero consensus order.
func New(ab *addressbook.AddressBook, params config.Parameters, out *output.Deliverer, m metrics.Metrics, logger log.Logger) (*Core, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	g := graph.New()
	table := round.New()
	votes := vote.NewEngine(g, ab, table, params)
	votes.OnCoinRoundEntered(func() { m.CoinRoundsEntered().Inc() })
	fin := consensus.NewFinaliser(g, table, votes, event.Hash{}, 0, time.Time{})

	return &Core{
		ab:                 ab,
		params:             params,
		graph:              g,
		table:              table,
		votes:              votes,
		fin:                fin,
		out:                out,
		metrics:            m,
		log:                logger,
		minRoundGeneration: 0,
		nextRoundToTry:     1,
		currentRound:       0,
	}, nil
}

// Resume constructs a Core from a persisted checkpoint: a running hash,
// consensus-order counter and last-emitted timestamp produced by a prior
// run, plus the minimum generation it had already advanced to.
func Resume(ab *addressbook.AddressBook, params config.Parameters, out *output.Deliverer, m metrics.Metrics, logger log.Logger, runningHash event.Hash, nextOrder int64, lastTimestamp time.Time, startingRound, minRoundGeneration int64) (*Core, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	g := graph.New()
	table := round.New()
	votes := vote.NewEngine(g, ab, table, params)
	votes.OnCoinRoundEntered(func() { m.CoinRoundsEntered().Inc() })
	fin := consensus.NewFinaliser(g, table, votes, runningHash, nextOrder, lastTimestamp)

	return &Core{
		ab:                 ab,
		params:             params,
		graph:              g,
		table:              table,
		votes:              votes,
		fin:                fin,
		out:                out,
		metrics:            m,
		log:                logger,
		minRoundGeneration: minRoundGeneration,
		nextRoundToTry:     startingRound,
		currentRound:       startingRound - 1,
	}, nil
}

// AddEvent admits e into the graph and runs every consensus step it
// unblocks: witness classification, election progress, round finalisation
// and expiry. A duplicate event is treated as a successful no-op, per
// hgerrors.ErrDuplicateEvent. Rejections are checked in the order §4.8
// specifies: an unknown parent outranks staleness, since the caller must
// buffer and retry an unknown-parent event regardless of generation.
func (c *Core) AddEvent(e *event.Event) error {
	if err := c.checkParentsKnown(e); err != nil {
		c.metrics.EventsRejected().Inc()
		return err
	}

	if e.Generation < c.minRoundGeneration {
		c.metrics.EventsRejected().Inc()
		return hgerrors.ErrStaleEvent
	}

	if err := c.graph.AddEvent(e); err != nil {
		if err == hgerrors.ErrDuplicateEvent {
			return nil
		}
		c.metrics.EventsRejected().Inc()
		return err
	}
	c.metrics.EventsAdmitted().Inc()

	selfParentRound, otherParentRound := c.parentRounds(e)
	e.RoundCreated = c.table.RoundCreated(c.graph, c.ab, e, selfParentRound, otherParentRound)
	e.IsWitness = round.IsWitness(e, selfParentRound)
	if e.RoundCreated > c.currentRound {
		c.currentRound = e.RoundCreated
		c.metrics.CurrentRound().Set(float64(c.currentRound))
	}

	if e.IsWitness {
		c.table.AddWitness(e.RoundCreated, e)
		c.votes.OpenElection(e)
		c.metrics.ElectionsOpened().Inc()

		for _, decidedHash := range c.votes.Progress(e) {
			if c.votes.Fame(decidedHash) == event.Yes {
				c.metrics.ElectionsDecidedYes().Inc()
			} else {
				c.metrics.ElectionsDecidedNo().Inc()
			}
		}
	}

	return c.finaliseReady()
}

// finaliseReady finalises every round, in order, whose election has
// become fully decided, delivering each and advancing the expiry frontier.
func (c *Core) finaliseReady() error {
	for {
		cr, ok, err := c.fin.TryFinalise(c.nextRoundToTry)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		c.metrics.RoundsFinalised().Inc()
		c.metrics.EventsFinalised().Add(float64(len(cr.Events)))

		if err := c.out.Deliver(cr); err != nil {
			return err
		}

		if cr.MinRoundGeneration > c.minRoundGeneration {
			c.minRoundGeneration = cr.MinRoundGeneration
			c.graph.Expire(c.minRoundGeneration)
			expiredRound := cr.Round - c.params.PersistedRoundsWindow
			c.votes.Forget(expiredRound)
			c.table.Delete(expiredRound)
			c.metrics.MinRoundGeneration().Set(float64(c.minRoundGeneration))
			c.out.DeliverMinGeneration(cr.Round, c.minRoundGeneration)
		}

		c.nextRoundToTry++
	}
}

// checkParentsKnown reports ErrUnknownParent if either named parent is not
// yet in the graph, without mutating it; e's own presence (the duplicate
// case) is left to graph.AddEvent.
func (c *Core) checkParentsKnown(e *event.Event) error {
	if e.SelfParent != nil {
		if _, ok := c.graph.Get(e.SelfParent.Hash); !ok {
			return hgerrors.ErrUnknownParent
		}
	}
	if e.OtherParent != nil {
		if _, ok := c.graph.Get(e.OtherParent.Hash); !ok {
			return hgerrors.ErrUnknownParent
		}
	}
	return nil
}

// parentRounds returns the roundCreated of e's parents, treating a missing
// parent as round 1 (the genesis round).
func (c *Core) parentRounds(e *event.Event) (selfParentRound, otherParentRound int64) {
	selfParentRound, otherParentRound = 1, 1
	if e.SelfParent != nil {
		if sp, ok := c.graph.Get(e.SelfParent.Hash); ok {
			selfParentRound = sp.RoundCreated
		}
	}
	if e.OtherParent != nil {
		if op, ok := c.graph.Get(e.OtherParent.Hash); ok {
			otherParentRound = op.RoundCreated
		}
	}
	return selfParentRound, otherParentRound
}

// MinRoundGeneration returns the current expiry frontier.
func (c *Core) MinRoundGeneration() int64 {
	return c.minRoundGeneration
}

// Graph exposes the underlying DAG index for read-only inspection (state
// snapshots, diagnostics).
func (c *Core) Graph() *graph.Graph {
	return c.graph
}

// Table exposes the round table for read-only inspection.
func (c *Core) Table() *round.Table {
	return c.table
}

// Votes exposes the election engine for read-only inspection.
func (c *Core) Votes() *vote.Engine {
	return c.votes
}

// CurrentRound returns the highest round created assigned so far.
func (c *Core) CurrentRound() int64 {
	return c.currentRound
}

// RunningHash returns the current value of the inductive running hash.
func (c *Core) RunningHash() event.Hash {
	return c.fin.RunningHash()
}

// NextConsensusOrder returns the consensus order that will be assigned to
// the next finalised event.
func (c *Core) NextConsensusOrder() int64 {
	return c.fin.NextOrder()
}
