package consensus

import (
	"testing"
	"time"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/config"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/graph"
	"github.com/luxfi/hashgraph/round"
	"github.com/luxfi/hashgraph/vote"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func oneNodeAB(t *testing.T) *addressbook.AddressBook {
	t.Helper()
	ab, err := addressbook.New([]addressbook.Entry{{ID: ids.GenerateTestNodeID(), Stake: 1}})
	require.NoError(t, err)
	return ab
}

// decideFirstWitness builds base -> e1(witness, round 1) -> e2(round 2) ->
// e3(round 3), runs the virtual-voting engine until e1 is decided famous,
// and returns everything a finaliser needs.
func decideFirstWitness(t *testing.T) (*graph.Graph, *round.Table, *vote.Engine, *event.Event, *event.Event) {
	t.Helper()
	g := graph.New()
	ab := oneNodeAB(t)
	table := round.New()
	en := vote.NewEngine(g, ab, table, config.Parameters{CoinRoundPeriod: 100, PersistedRoundsWindow: 10})

	b := event.New(0, nil, nil, time.Unix(-1, 0), nil)
	require.NoError(t, g.AddEvent(b))

	w := event.New(0, &event.Ref{Hash: b.Hash, Generation: b.Generation}, nil, time.Unix(0, 0), nil)
	w.RoundCreated = 1
	require.NoError(t, g.AddEvent(w))
	table.AddWitness(1, w)
	en.OpenElection(w)

	e2 := event.New(0, &event.Ref{Hash: w.Hash, Generation: w.Generation}, nil, time.Unix(1, 0), nil)
	e2.RoundCreated = 2
	require.NoError(t, g.AddEvent(e2))
	table.AddWitness(2, e2)
	require.Empty(t, en.Progress(e2))

	e3 := event.New(0, &event.Ref{Hash: e2.Hash, Generation: e2.Generation}, nil, time.Unix(2, 0), nil)
	e3.RoundCreated = 3
	require.NoError(t, g.AddEvent(e3))
	table.AddWitness(3, e3)
	decided := en.Progress(e3)
	require.Equal(t, []event.Hash{w.Hash}, decided)

	return g, table, en, b, w
}

func TestTryFinaliseNotYetDecided(t *testing.T) {
	g := graph.New()
	ab := oneNodeAB(t)
	table := round.New()
	en := vote.NewEngine(g, ab, table, config.Parameters{CoinRoundPeriod: 100, PersistedRoundsWindow: 10})
	f := NewFinaliser(g, table, en, event.Hash{}, 0, time.Time{})

	cr, ok, err := f.TryFinalise(1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, cr)
}

func TestTryFinaliseAssignsRoundReceivedAndOrder(t *testing.T) {
	g, table, en, base, w := decideFirstWitness(t)
	f := NewFinaliser(g, table, en, event.Hash{}, 0, time.Time{})

	cr, ok, err := f.TryFinalise(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), cr.Round)
	require.Equal(t, []event.Hash{w.Hash}, cr.Judges)

	// base and w both descend into w; e2/e3 are w's descendants, not its
	// ancestors, so only base and w receive round 1.
	require.Len(t, cr.Events, 2)
	require.Equal(t, base.Hash, cr.Events[0].Hash)
	require.Equal(t, w.Hash, cr.Events[1].Hash)

	require.Equal(t, int64(1), base.RoundReceived)
	require.Equal(t, int64(1), w.RoundReceived)
	require.Equal(t, int64(0), base.ConsensusOrder)
	require.Equal(t, int64(1), w.ConsensusOrder)
	require.True(t, base.ConsensusTimestamp.Before(w.ConsensusTimestamp))
	require.NotEqual(t, event.Hash{}, f.RunningHash())
	require.Equal(t, int64(2), f.NextOrder())
}

func TestRunningHashIsDeterministicAcrossEquivalentRuns(t *testing.T) {
	g1, table1, en1, _, _ := decideFirstWitness(t)
	f1 := NewFinaliser(g1, table1, en1, event.Hash{}, 0, time.Time{})
	_, ok, err := f1.TryFinalise(1)
	require.NoError(t, err)
	require.True(t, ok)

	g2, table2, en2, _, _ := decideFirstWitness(t)
	f2 := NewFinaliser(g2, table2, en2, event.Hash{}, 0, time.Time{})
	_, ok, err = f2.TryFinalise(1)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, f1.RunningHash(), f2.RunningHash())
}

// fourJudgeAB returns a 5-member address book: one creator for the
// received candidate, four for the judges.
func fourJudgeAB(t *testing.T) *addressbook.AddressBook {
	t.Helper()
	entries := make([]addressbook.Entry, 5)
	for i := range entries {
		entries[i] = addressbook.Entry{ID: ids.GenerateTestNodeID(), Stake: 1}
	}
	ab, err := addressbook.New(entries)
	require.NoError(t, err)
	return ab
}

func TestTryFinaliseMedianAcrossFourJudgesPicksUpperMiddle(t *testing.T) {
	g := graph.New()
	ab := fourJudgeAB(t)
	table := round.New()
	en := vote.NewEngine(g, ab, table, config.Parameters{CoinRoundPeriod: 100, PersistedRoundsWindow: 10})

	base := event.New(addressbook.NodeID(0), nil, nil, time.Unix(0, 0), nil)
	require.NoError(t, g.AddEvent(base))

	judgeTimes := []int64{10, 20, 30, 40}
	for i, ts := range judgeTimes {
		w := event.New(addressbook.NodeID(i+1), nil, &event.Ref{Hash: base.Hash, Generation: base.Generation}, time.Unix(ts, 0), nil)
		w.RoundCreated = 5
		require.NoError(t, g.AddEvent(w))
		table.AddWitness(5, w)
		en.OpenElection(w)
		el, ok := en.Election(w.Hash)
		require.True(t, ok)
		el.Decided = true
		el.Fame = event.Yes
	}
	require.True(t, en.IsRoundDecided(5))

	f := NewFinaliser(g, table, en, event.Hash{}, 0, time.Time{})
	cr, ok, err := f.TryFinalise(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cr.Judges, 4)

	require.Len(t, cr.Events, 1)
	require.Equal(t, base.Hash, cr.Events[0].Hash)
	// Upper median of {10,20,30,40} is the third-smallest value (30), not
	// the average of the two middle values (25).
	require.Equal(t, time.Unix(30, 0), base.ConsensusTimestamp)
}

// buildOrderedRun constructs one base event, two sibling events descending
// from it, and a witness descending from both siblings, admitting the four
// to a fresh graph in the given order (a permutation of 0=base, 1=sibling
// one, 2=sibling two, 3=witness). Every permutation that respects parents-
// before-children is legal; the events are content-addressed, so the same
// construction run twice produces two independent objects with identical
// hashes.
func buildOrderedRun(t *testing.T, order []int) (*graph.Graph, *round.Table, *vote.Engine) {
	t.Helper()
	g := graph.New()
	ab := fourJudgeAB(t)
	table := round.New()
	en := vote.NewEngine(g, ab, table, config.Parameters{CoinRoundPeriod: 100, PersistedRoundsWindow: 10})

	base := event.New(addressbook.NodeID(0), nil, nil, time.Unix(0, 0), nil)
	sib1 := event.New(addressbook.NodeID(1), nil, &event.Ref{Hash: base.Hash, Generation: base.Generation}, time.Unix(100, 0), nil)
	sib2 := event.New(addressbook.NodeID(2), nil, &event.Ref{Hash: base.Hash, Generation: base.Generation}, time.Unix(50, 0), nil)
	w := event.New(addressbook.NodeID(3),
		&event.Ref{Hash: sib1.Hash, Generation: sib1.Generation},
		&event.Ref{Hash: sib2.Hash, Generation: sib2.Generation},
		time.Unix(200, 0), nil)
	w.RoundCreated = 5

	byIndex := map[int]*event.Event{0: base, 1: sib1, 2: sib2, 3: w}
	for _, i := range order {
		require.NoError(t, g.AddEvent(byIndex[i]))
	}

	table.AddWitness(5, w)
	en.OpenElection(w)
	el, ok := en.Election(w.Hash)
	require.True(t, ok)
	el.Decided = true
	el.Fame = event.Yes

	return g, table, en
}

func TestRunningHashMatchesAcrossDifferentAdmissionOrders(t *testing.T) {
	gA, tableA, enA := buildOrderedRun(t, []int{0, 1, 2, 3})
	fA := NewFinaliser(gA, tableA, enA, event.Hash{}, 0, time.Time{})
	crA, ok, err := fA.TryFinalise(5)
	require.NoError(t, err)
	require.True(t, ok)

	gB, tableB, enB := buildOrderedRun(t, []int{0, 2, 1, 3})
	fB := NewFinaliser(gB, tableB, enB, event.Hash{}, 0, time.Time{})
	crB, ok, err := fB.TryFinalise(5)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, crA.Events, 4)
	require.Len(t, crB.Events, 4)
	for i := range crA.Events {
		require.Equal(t, crA.Events[i].Hash, crB.Events[i].Hash)
	}
	require.Equal(t, fA.RunningHash(), fB.RunningHash())
}

func TestNonDecreasingTimestampBump(t *testing.T) {
	g, table, en, base, w := decideFirstWitness(t)
	// Force both candidates' raw medians behind an already-advanced
	// lastTimestamp, so both must be bumped strictly forward in order.
	future := w.CreationTime.Add(time.Hour)
	f := NewFinaliser(g, table, en, event.Hash{}, 0, future)

	cr, ok, err := f.TryFinalise(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cr.Events, 2)
	require.True(t, base.ConsensusTimestamp.After(future))
	require.True(t, w.ConsensusTimestamp.After(base.ConsensusTimestamp))
}
