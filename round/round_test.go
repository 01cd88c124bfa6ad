package round

import (
	"testing"
	"time"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/graph"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func newAB(t *testing.T, n int) *addressbook.AddressBook {
	t.Helper()
	entries := make([]addressbook.Entry, n)
	for i := range entries {
		entries[i] = addressbook.Entry{ID: ids.GenerateTestNodeID(), Stake: 1}
	}
	ab, err := addressbook.New(entries)
	require.NoError(t, err)
	return ab
}

func TestIsWitnessNoSelfParent(t *testing.T) {
	e := event.New(0, nil, nil, time.Unix(0, 0), nil)
	require.True(t, IsWitness(e, 0))
}

func TestIsWitnessRoundAdvance(t *testing.T) {
	e := &event.Event{RoundCreated: 2}
	require.True(t, IsWitness(e, 1))
	require.False(t, IsWitness(e, 2))
}

func TestMinGenerationAcrossWitnesses(t *testing.T) {
	g := graph.New()
	table := New()

	e0 := event.New(0, nil, nil, time.Unix(0, 0), nil)
	require.NoError(t, g.AddEvent(e0))
	e1 := event.New(1, nil, nil, time.Unix(0, 0), []byte("x"))
	require.NoError(t, g.AddEvent(e1))

	table.AddWitness(1, e0)
	table.AddWitness(1, e1)

	require.Equal(t, int64(1), table.MinGeneration(1, g))
}

func TestRoundCreatedAdvancesOnSupermajority(t *testing.T) {
	g := graph.New()
	ab := newAB(t, 4)
	table := New()

	// Four round-1 witnesses, one per creator.
	roots := make([]*event.Event, 4)
	for i := 0; i < 4; i++ {
		roots[i] = event.New(addressbook.NodeID(i), nil, nil, time.Unix(0, 0), nil)
		require.NoError(t, g.AddEvent(roots[i]))
		roots[i].RoundCreated = 1
		table.AddWitness(1, roots[i])
	}

	// e strongly sees all four round-1 witnesses: two passes of a chain
	// through every creator, so each root reaches e through events of all
	// four creators.
	last := append([]*event.Event(nil), roots...)
	var prev *event.Event
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < 4; i++ {
			var other *event.Ref
			if prev != nil {
				other = &event.Ref{Hash: prev.Hash, Generation: prev.Generation}
			}
			e := event.New(addressbook.NodeID(i), &event.Ref{Hash: last[i].Hash, Generation: last[i].Generation}, other, time.Unix(int64(pass*4+i+1), 0), nil)
			require.NoError(t, g.AddEvent(e))
			last[i] = e
			prev = e
		}
	}

	r := table.RoundCreated(g, ab, prev, 1, 1)
	require.Equal(t, int64(2), r)
}
