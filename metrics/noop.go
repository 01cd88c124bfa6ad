// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewNoOp returns a Metrics backed by unregistered collectors, for tests
// and callers that don't want a prometheus registry wired up.
func NewNoOp() Metrics {
	return &metrics{
		eventsAdmitted:       prometheus.NewCounter(prometheus.CounterOpts{Name: "events_admitted"}),
		eventsRejected:       prometheus.NewCounter(prometheus.CounterOpts{Name: "events_rejected"}),
		electionsOpened:      prometheus.NewCounter(prometheus.CounterOpts{Name: "elections_opened"}),
		electionsDecidedYes:  prometheus.NewCounter(prometheus.CounterOpts{Name: "elections_decided_yes"}),
		electionsDecidedNo:   prometheus.NewCounter(prometheus.CounterOpts{Name: "elections_decided_no"}),
		coinRoundsEntered:    prometheus.NewCounter(prometheus.CounterOpts{Name: "coin_rounds_entered"}),
		roundsFinalised:      prometheus.NewCounter(prometheus.CounterOpts{Name: "rounds_finalised"}),
		eventsFinalised:      prometheus.NewCounter(prometheus.CounterOpts{Name: "events_finalised"}),
		minRoundGeneration:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "min_round_generation"}),
		currentRound:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "current_round"}),
	}
}
