package addressbook

import (
	"testing"

	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func entries(stakes ...uint64) []Entry {
	out := make([]Entry, len(stakes))
	for i, s := range stakes {
		out[i] = Entry{ID: ids.GenerateTestNodeID(), Stake: s}
	}
	return out
}

func TestEmptyAddressBookFails(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, hgerrors.ErrInvalidAddressBook)
}

func TestSupermajorityBoundary(t *testing.T) {
	cases := []struct {
		name    string
		stakes  []uint64
		sum     uint64
		isSuper bool
	}{
		{"three equal, two of three", []uint64{1, 1, 1}, 2, false},
		{"three equal, one of three", []uint64{1, 1, 1}, 1, false},
		{"four equal, three of four", []uint64{1, 1, 1, 1}, 3, true},
		{"four equal, two of four", []uint64{1, 1, 1, 1}, 2, false},
		{"skewed, majority holder alone", []uint64{10, 10, 10, 1}, 10, false},
		{"skewed, two majority holders", []uint64{10, 10, 10, 1}, 20, false},
		{"skewed, two majority holders plus the minority", []uint64{10, 10, 10, 1}, 21, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ab, err := New(entries(c.stakes...))
			require.NoError(t, err)
			require.Equal(t, c.isSuper, ab.IsSupermajority(c.sum))
		})
	}
}

func TestTotalStakeAndSize(t *testing.T) {
	ab, err := New(entries(1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, 3, ab.Size())
	require.Equal(t, uint64(6), ab.TotalStake())
}
