// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package addressbook implements the fixed, per-epoch set of weighted nodes
// the consensus core runs over (C1 in the design).
package addressbook

import (
	"github.com/luxfi/hashgraph/hgerrors"
	"github.com/luxfi/hashgraph/internal/safemath"
	"github.com/luxfi/ids"
)

// NodeID identifies a member of the address book. It is a dense index in
// [0, N) rather than a cryptographic identity; the mapping from ids.NodeID
// to this dense index is established once, at AddressBook construction.
type NodeID int32

// Entry is one member of the address book.
type Entry struct {
	ID    ids.NodeID
	Stake uint64
}

// AddressBook is the fixed, ordered set of nodes with non-negative stakes
// and a derived supermajority threshold. It never changes for the lifetime
// of an epoch; membership changes are outside the consensus core.
type AddressBook struct {
	entries    []Entry
	index      map[ids.NodeID]NodeID
	totalStake uint64
	thirdStake uint64 // floor(2*total/3), used by IsSupermajority
}

// New builds an AddressBook from entries, in the order given. The position
// of an entry in the slice is its NodeID.
func New(entries []Entry) (*AddressBook, error) {
	if len(entries) == 0 {
		return nil, hgerrors.ErrInvalidAddressBook
	}

	ab := &AddressBook{
		entries: append([]Entry(nil), entries...),
		index:   make(map[ids.NodeID]NodeID, len(entries)),
	}

	var total uint64
	for i, e := range entries {
		sum, err := safemath.Add64(total, e.Stake)
		if err != nil {
			return nil, hgerrors.ErrInvalidAddressBook
		}
		total = sum
		ab.index[e.ID] = NodeID(i)
	}

	ab.totalStake = total
	ab.thirdStake = (2 * total) / 3
	return ab, nil
}

// Size returns N, the number of nodes in the address book.
func (ab *AddressBook) Size() int {
	return len(ab.entries)
}

// Stake returns the stake of node id.
func (ab *AddressBook) Stake(id NodeID) uint64 {
	if int(id) < 0 || int(id) >= len(ab.entries) {
		return 0
	}
	return ab.entries[id].Stake
}

// TotalStake returns the sum of all stakes.
func (ab *AddressBook) TotalStake() uint64 {
	return ab.totalStake
}

// NodeIDOf returns the dense index for a cryptographic node identity.
func (ab *AddressBook) NodeIDOf(id ids.NodeID) (NodeID, bool) {
	n, ok := ab.index[id]
	return n, ok
}

// IsSupermajority reports whether sumOfStakes is strictly greater than
// floor(2*totalStake/3), i.e. a supermajority per §3.
func (ab *AddressBook) IsSupermajority(sumOfStakes uint64) bool {
	return sumOfStakes > ab.thirdStake
}
