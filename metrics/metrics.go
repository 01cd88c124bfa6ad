// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the core's prometheus instrumentation: event
// admission outcomes, election and round-finalisation throughput, and the
// current expiry frontier.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the prometheus instrumentation surface of a running core.
type Metrics interface {
	EventsAdmitted() prometheus.Counter
	EventsRejected() prometheus.Counter

	ElectionsOpened() prometheus.Counter
	ElectionsDecidedYes() prometheus.Counter
	ElectionsDecidedNo() prometheus.Counter
	CoinRoundsEntered() prometheus.Counter

	RoundsFinalised() prometheus.Counter
	EventsFinalised() prometheus.Counter

	MinRoundGeneration() prometheus.Gauge
	CurrentRound() prometheus.Gauge
}

// New builds and registers a Metrics on registerer under namespace.
func New(namespace string, registerer prometheus.Registerer) (Metrics, error) {
	m := &metrics{
		eventsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_admitted",
			Help:      "Number of events accepted into the graph.",
		}),
		eventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected",
			Help:      "Number of events rejected by AddEvent.",
		}),
		electionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elections_opened",
			Help:      "Number of famous-witness elections opened.",
		}),
		electionsDecidedYes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elections_decided_yes",
			Help:      "Number of elections that decided the witness famous.",
		}),
		electionsDecidedNo: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elections_decided_no",
			Help:      "Number of elections that decided the witness not famous.",
		}),
		coinRoundsEntered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coin_rounds_entered",
			Help:      "Number of coin-round votes cast across all elections.",
		}),
		roundsFinalised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_finalised",
			Help:      "Number of rounds assigned a full set of judges.",
		}),
		eventsFinalised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_finalised",
			Help:      "Number of events assigned a round received and consensus order.",
		}),
		minRoundGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "min_round_generation",
			Help:      "Lowest event generation that must still be retained.",
		}),
		currentRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_round",
			Help:      "Highest round created seen so far.",
		}),
	}

	collectors := []prometheus.Collector{
		m.eventsAdmitted, m.eventsRejected,
		m.electionsOpened, m.electionsDecidedYes, m.electionsDecidedNo, m.coinRoundsEntered,
		m.roundsFinalised, m.eventsFinalised,
		m.minRoundGeneration, m.currentRound,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type metrics struct {
	eventsAdmitted prometheus.Counter
	eventsRejected prometheus.Counter

	electionsOpened      prometheus.Counter
	electionsDecidedYes  prometheus.Counter
	electionsDecidedNo   prometheus.Counter
	coinRoundsEntered    prometheus.Counter

	roundsFinalised prometheus.Counter
	eventsFinalised prometheus.Counter

	minRoundGeneration prometheus.Gauge
	currentRound       prometheus.Gauge
}

func (m *metrics) EventsAdmitted() prometheus.Counter     { return m.eventsAdmitted }
func (m *metrics) EventsRejected() prometheus.Counter     { return m.eventsRejected }
func (m *metrics) ElectionsOpened() prometheus.Counter    { return m.electionsOpened }
func (m *metrics) ElectionsDecidedYes() prometheus.Counter { return m.electionsDecidedYes }
func (m *metrics) ElectionsDecidedNo() prometheus.Counter { return m.electionsDecidedNo }
func (m *metrics) CoinRoundsEntered() prometheus.Counter  { return m.coinRoundsEntered }
func (m *metrics) RoundsFinalised() prometheus.Counter    { return m.roundsFinalised }
func (m *metrics) EventsFinalised() prometheus.Counter    { return m.eventsFinalised }
func (m *metrics) MinRoundGeneration() prometheus.Gauge   { return m.minRoundGeneration }
func (m *metrics) CurrentRound() prometheus.Gauge         { return m.currentRound }
