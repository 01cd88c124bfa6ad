// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package event implements the immutable unit of the hashgraph DAG (C2) and
// its bit-exact on-wire encoding (§6).
package event

import (
	"crypto/sha512"
	"time"

	"github.com/luxfi/hashgraph/addressbook"
	"github.com/luxfi/hashgraph/internal/wire"
)

// Hash is a SHA-384 digest: the base hash of an event, and the running hash
// of the consensus stream.
type Hash [48]byte

// IsZero reports whether h is the all-zero hash used to mean "no parent".
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Less gives Hash a total order, used by the consensus-order tie-break and
// by judge selection ("lowest hash wins").
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// Tri is a three-valued logic used for fame: a witness starts undecided and
// is decided yes or no exactly once.
type Tri int8

const (
	Undecided Tri = iota
	No
	Yes
)

// Ref names a parent by hash and the generation it carried, so the graph
// can validate linkage without a second lookup.
type Ref struct {
	Hash       Hash
	Generation int64
}

// Event is the immutable unit of the DAG. The fields above the "derived"
// comment are fixed at construction and hashed; the fields below are
// written by the consensus core and are immutable only after
// ConsensusOrder is assigned (invariant 6, §3).
type Event struct {
	CreatorID    addressbook.NodeID
	SelfParent   *Ref
	OtherParent  *Ref
	CreationTime time.Time
	Transactions [][]byte

	Hash      Hash
	Signature []byte

	Generation int64

	// --- derived by the core ---
	RoundCreated       int64
	IsWitness          bool
	Fame               Tri
	IsJudge            bool
	RoundReceived      int64 // 0 means not yet finalised
	ConsensusTimestamp time.Time
	ConsensusOrder     int64 // -1 means not yet assigned
}

// New builds an event from its fixed fields, computing Generation and Hash.
// Signature must be attached by the caller (signing is a collaborator
// concern; the core never verifies it).
func New(creator addressbook.NodeID, selfParent, otherParent *Ref, creationTime time.Time, txs [][]byte) *Event {
	e := &Event{
		CreatorID:      creator,
		SelfParent:     selfParent,
		OtherParent:    otherParent,
		CreationTime:   creationTime,
		Transactions:   txs,
		RoundReceived:  0,
		ConsensusOrder: -1,
	}
	e.Generation = computeGeneration(selfParent, otherParent)
	e.Hash = e.computeBaseHash()
	return e
}

func computeGeneration(selfParent, otherParent *Ref) int64 {
	if selfParent == nil && otherParent == nil {
		return 1
	}
	var sg, og int64
	if selfParent != nil {
		sg = selfParent.Generation
	}
	if otherParent != nil {
		og = otherParent.Generation
	}
	if sg > og {
		return sg + 1
	}
	return og + 1
}

// computeBaseHash hashes every field preceding Hash itself, using the same
// byte layout as Encode (minus the signature), per §6.
func (e *Event) computeBaseHash() Hash {
	p := encodeUnsigned(e)
	return Hash(sha512.Sum384(p.Bytes))
}

func encodeUnsigned(e *Event) *wire.Packer {
	p := wire.NewPacker(128)
	p.PackInt64(int64(e.CreatorID))

	if e.SelfParent != nil {
		p.PackBytes(e.SelfParent.Hash[:])
		p.PackInt64(e.SelfParent.Generation)
	} else {
		p.PackBytes(make([]byte, 48))
		p.PackInt64(-1)
	}

	if e.OtherParent != nil {
		p.PackBytes(e.OtherParent.Hash[:])
		p.PackInt64(e.OtherParent.Generation)
	} else {
		p.PackBytes(make([]byte, 48))
		p.PackInt64(-1)
	}

	p.PackInt64(e.CreationTime.Unix())
	p.PackInt32(int32(e.CreationTime.Nanosecond()))

	p.PackInt32(int32(len(e.Transactions)))
	for _, tx := range e.Transactions {
		p.PackInt32(int32(len(tx)))
		p.PackBytes(tx)
	}
	return p
}

// Encode produces the bit-exact on-wire representation of §6: the unsigned
// fields, the base hash (implicitly, as Hash is derived from them), and the
// length-prefixed signature.
func (e *Event) Encode() []byte {
	p := encodeUnsigned(e)
	p.PackInt32(int32(len(e.Signature)))
	p.PackBytes(e.Signature)
	return p.Bytes
}

// Decode parses an event from its wire representation and recomputes Hash.
func Decode(b []byte) (*Event, error) {
	u := wire.NewUnpacker(b)

	e := &Event{RoundReceived: 0, ConsensusOrder: -1}
	e.CreatorID = addressbook.NodeID(u.UnpackInt64())

	spHash := u.UnpackBytes(48)
	spGen := u.UnpackInt64()
	if spGen >= 0 {
		var h Hash
		copy(h[:], spHash)
		e.SelfParent = &Ref{Hash: h, Generation: spGen}
	}

	opHash := u.UnpackBytes(48)
	opGen := u.UnpackInt64()
	if opGen >= 0 {
		var h Hash
		copy(h[:], opHash)
		e.OtherParent = &Ref{Hash: h, Generation: opGen}
	}

	secs := u.UnpackInt64()
	nanos := u.UnpackInt32()
	e.CreationTime = time.Unix(secs, int64(nanos)).UTC()

	txCount := u.UnpackInt32()
	for i := int32(0); i < txCount; i++ {
		n := u.UnpackInt32()
		e.Transactions = append(e.Transactions, u.UnpackBytes(int(n)))
	}

	sigLen := u.UnpackInt32()
	e.Signature = u.UnpackBytes(int(sigLen))

	if u.Err != nil {
		return nil, u.Err
	}

	e.Generation = computeGeneration(e.SelfParent, e.OtherParent)
	e.Hash = e.computeBaseHash()
	return e, nil
}

// IsFirstOfCreator reports whether e has no self-parent, the base case of
// the witness predicate (invariant 3, §3).
func (e *Event) IsFirstOfCreator() bool {
	return e.SelfParent == nil
}
