package hashgraph

import (
	"testing"
	"time"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/config"
	"github.com/luxfi/hashgraph/consensus"
	"github.com/luxfi/hashgraph/event"
	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func oneNodeAB(t *testing.T) *addressbook.AddressBook {
	t.Helper()
	ab, err := addressbook.New([]addressbook.Entry{{ID: ids.GenerateTestNodeID(), Stake: 1}})
	require.NoError(t, err)
	return ab
}

func TestInitialiseRejectsInvalidParameters(t *testing.T) {
	_, err := Initialise(oneNodeAB(t), config.Parameters{}, nil, nil)
	require.Error(t, err)
}

func TestAddEventFinalisesFirstWitnessAndUpdatesState(t *testing.T) {
	hg, err := Initialise(oneNodeAB(t), config.Local(), nil, nil)
	require.NoError(t, err)

	var delivered []*consensus.ConsensusRound
	hg.OnConsensusRound(func(cr *consensus.ConsensusRound) { delivered = append(delivered, cr) })

	var minGens []int64
	hg.OnMinGenerationAdvanced(func(_ int64, minGen int64) { minGens = append(minGens, minGen) })

	e1 := event.New(0, nil, nil, time.Unix(0, 0), nil)
	require.NoError(t, hg.AddEvent(e1))

	e2 := event.New(0, &event.Ref{Hash: e1.Hash, Generation: e1.Generation}, nil, time.Unix(1, 0), nil)
	require.NoError(t, hg.AddEvent(e2))

	e3 := event.New(0, &event.Ref{Hash: e2.Hash, Generation: e2.Generation}, nil, time.Unix(2, 0), nil)
	require.NoError(t, hg.AddEvent(e3))

	require.Len(t, delivered, 1)
	require.Equal(t, int64(1), delivered[0].Round)
	require.Len(t, minGens, 1)

	st := hg.CurrentState()
	require.Equal(t, int64(3), st.CurrentRound)
	require.Equal(t, int64(1), st.NextConsensusOrder)
	require.Equal(t, 3, st.EventCount)
	require.NotEmpty(t, st.Witnesses)

	found := false
	for _, wp := range st.Witnesses {
		if wp.Witness == e1.Hash {
			found = true
			require.True(t, wp.Decided)
			require.Equal(t, event.Yes, wp.Fame)
			require.Equal(t, int64(1), wp.Round)
		}
	}
	require.True(t, found)
}

func TestAddEventAfterHaltReturnsErrHalted(t *testing.T) {
	hg, err := Initialise(oneNodeAB(t), config.Local(), nil, nil)
	require.NoError(t, err)

	hg.halted = true
	e := event.New(0, nil, nil, time.Unix(0, 0), nil)
	err = hg.AddEvent(e)
	require.ErrorIs(t, err, ErrHalted)
}

func TestDrainFatalErrorsEmptyIsNil(t *testing.T) {
	hg, err := Initialise(oneNodeAB(t), config.Local(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, hg.DrainFatalErrors())
}

func TestDrainFatalErrorsAggregatesBufferedErrors(t *testing.T) {
	hg, err := Initialise(oneNodeAB(t), config.Local(), nil, nil)
	require.NoError(t, err)

	hg.fatal <- hgerrors.FatalError{Reason: hgerrors.ReasonInvariantViolation, Detail: "first"}

	err = hg.DrainFatalErrors()
	require.Error(t, err)
	require.Contains(t, err.Error(), "first")
}
