// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashgraph is the public entry point of the consensus core: it
// wires the address book, graph, round table, election engine, finaliser
// and delivery layer into one state machine and exposes Initialise,
// AddEvent, the consensus-round and min-generation callbacks, a point-in
// time state snapshot, and the fatal-error channel that halts the core.
package hashgraph

import (
	"errors"
	"time"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/config"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/hashgraph/ingest"
	hgmetrics "github.com/luxfi/hashgraph/metrics"
	"github.com/luxfi/hashgraph/output"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrHalted is returned by AddEvent once a FatalError has been reported on
// FatalErrors(): the core refuses every subsequent mutating call.
var ErrHalted = errors.New("hashgraph: core halted after fatal error")

// WitnessProgress is one witness's election state, as of the moment a
// State snapshot was taken.
type WitnessProgress struct {
	Witness event.Hash
	Round   int64
	Decided bool
	Fame    event.Tri
}

// State is a point-in-time snapshot of the core, for diagnostics and
// reconnect export.
type State struct {
	CurrentRound       int64
	MinRoundGeneration int64
	NextConsensusOrder int64
	RunningHash        event.Hash
	EventCount         int
	Witnesses          []WitnessProgress
}

// Hashgraph is a running consensus core over one address book.
type Hashgraph struct {
	core *ingest.Core
	out  *output.Deliverer
	log  log.Logger

	fatal  chan hgerrors.FatalError
	halted bool
}

// Initialise constructs a Hashgraph at genesis. registerer may be nil, in
// which case metrics are collected but never exposed. logger may be nil,
// in which case logging is a no-op.
func Initialise(ab *addressbook.AddressBook, params config.Parameters, registerer prometheus.Registerer, logger log.Logger) (*Hashgraph, error) {
	m, logger, err := buildAmbient(registerer, logger)
	if err != nil {
		return nil, err
	}

	out := output.New()
	core, err := ingest.New(ab, params, out, m, logger)
	if err != nil {
		return nil, err
	}

	return &Hashgraph{
		core:  core,
		out:   out,
		log:   logger,
		fatal: make(chan hgerrors.FatalError, 1),
	}, nil
}

// Resume constructs a Hashgraph from a persisted checkpoint: the running
// hash, consensus-order counter, last-emitted timestamp, the round to
// resume finalising from, and the expiry frontier already reached.
func Resume(
	ab *addressbook.AddressBook,
	params config.Parameters,
	registerer prometheus.Registerer,
	logger log.Logger,
	runningHash event.Hash,
	nextConsensusOrder int64,
	lastTimestamp time.Time,
	startingRound int64,
	minRoundGeneration int64,
) (*Hashgraph, error) {
	m, logger, err := buildAmbient(registerer, logger)
	if err != nil {
		return nil, err
	}

	out := output.New()
	core, err := ingest.Resume(ab, params, out, m, logger, runningHash, nextConsensusOrder, lastTimestamp, startingRound, minRoundGeneration)
	if err != nil {
		return nil, err
	}

	return &Hashgraph{
		core:  core,
		out:   out,
		log:   logger,
		fatal: make(chan hgerrors.FatalError, 1),
	}, nil
}

func buildAmbient(registerer prometheus.Registerer, logger log.Logger) (hgmetrics.Metrics, log.Logger, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if registerer == nil {
		return hgmetrics.NewNoOp(), logger, nil
	}
	m, err := hgmetrics.New("hashgraph", registerer)
	if err != nil {
		return nil, nil, err
	}
	return m, logger, nil
}

// OnConsensusRound registers the callback invoked once per finalised
// round, in final consensus order.
func (hg *Hashgraph) OnConsensusRound(h output.ConsensusRoundHandler) {
	hg.out.OnConsensusRound(h)
}

// OnMinGenerationAdvanced registers the callback invoked whenever expiry
// moves the retention floor forward.
func (hg *Hashgraph) OnMinGenerationAdvanced(h output.MinGenerationHandler) {
	hg.out.OnMinGenerationAdvanced(h)
}

// FatalErrors returns the channel a FatalError is sent on if the core
// detects it can no longer continue. The channel is buffered to one; a
// second fatal error, were one possible after the core halts, would never
// be observed, since AddEvent refuses to run the core further.
func (hg *Hashgraph) FatalErrors() <-chan hgerrors.FatalError {
	return hg.fatal
}

// DrainFatalErrors collects every fatal error currently buffered on the
// channel into one aggregated error, or nil if there is none. A shutdown
// path that wants to log everything the core ever reported at once, rather
// than one error per channel read, calls this instead of FatalErrors.
func (hg *Hashgraph) DrainFatalErrors() error {
	var errs hgerrors.Errs
	for {
		select {
		case fatal := <-hg.fatal:
			errs.Add(&fatal)
		default:
			return errs.Err()
		}
	}
}

// AddEvent admits e and runs every consensus step it unblocks. Once the
// core has halted on a fatal error, every subsequent call returns
// ErrHalted without touching the graph.
func (hg *Hashgraph) AddEvent(e *event.Event) error {
	if hg.halted {
		return ErrHalted
	}

	err := hg.core.AddEvent(e)
	var fatal *hgerrors.FatalError
	if errors.As(err, &fatal) {
		hg.halted = true
		hg.log.Error("hashgraph core halted",
			zap.String("reason", fatal.Reason.String()),
			zap.String("detail", fatal.Detail),
		)
		select {
		case hg.fatal <- *fatal:
		default:
		}
	}
	return err
}

// CurrentState returns a snapshot of the core's progress, including
// per-witness election state for every round still tracked (i.e. not yet
// expired past the persisted-rounds window).
func (hg *Hashgraph) CurrentState() State {
	table := hg.core.Table()
	votes := hg.core.Votes()

	var progress []WitnessProgress
	for _, r := range table.Rounds() {
		for _, w := range table.Round(r).Witnesses() {
			el, ok := votes.Election(w)
			wp := WitnessProgress{Witness: w, Round: r}
			if ok {
				wp.Decided = el.Decided
				wp.Fame = el.Fame
			}
			progress = append(progress, wp)
		}
	}

	return State{
		CurrentRound:       hg.core.CurrentRound(),
		MinRoundGeneration: hg.core.MinRoundGeneration(),
		NextConsensusOrder: hg.core.NextConsensusOrder(),
		RunningHash:        hg.core.RunningHash(),
		EventCount:         hg.core.Graph().Len(),
		Witnesses:          progress,
	}
}
