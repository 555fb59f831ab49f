// Package keylet computes the addressable locations of market state entries.
// A keylet combines an entry type with a 256-bit key derived from a space
// identifier and the entry's identifying fields, so every entry has exactly
// one address and distinct entry kinds can never collide.
package keylet

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// Type identifies the kind of entry a keylet addresses.
type Type uint16

const (
	TypeDAORoot Type = iota + 1
	TypeQueue
	TypeProposal
	TypePool
	TypeReservation
	TypeEscrow
)

// Space identifiers for keylet generation.
const (
	spaceDAORoot     uint16 = 'D'
	spaceQueue       uint16 = 'Q'
	spaceProposal    uint16 = 'p'
	spacePool        uint16 = 'm'
	spaceReservation uint16 = 'r'
	spaceEscrow      uint16 = 'u'
)

// Keylet is an addressable location in market state.
type Keylet struct {
	Type Type
	Key  [32]byte
}

// indexHash computes a keylet key by hashing the space and provided data.
func indexHash(space uint16, data ...[]byte) [32]byte {
	var spaceBytes [2]byte
	binary.BigEndian.PutUint16(spaceBytes[:], space)

	h := sha256.New()
	h.Write(spaceBytes[:])
	for _, d := range data {
		h.Write(d)
	}

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func u64be(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DAORoot returns the keylet for a DAO's root entry.
func DAORoot(daoID uint64) Keylet {
	return Keylet{
		Type: TypeDAORoot,
		Key:  indexHash(spaceDAORoot, u64be(daoID)),
	}
}

// Queue returns the keylet for a DAO's proposal queue.
func Queue(daoID uint64) Keylet {
	return Keylet{
		Type: TypeQueue,
		Key:  indexHash(spaceQueue, u64be(daoID)),
	}
}

// Proposal returns the keylet for a live proposal entry.
func Proposal(proposalID uint64) Keylet {
	return Keylet{
		Type: TypeProposal,
		Key:  indexHash(spaceProposal, u64be(proposalID)),
	}
}

// Pool returns the keylet for one outcome pool of a market.
func Pool(marketID uint64, outcome uint8) Keylet {
	return Keylet{
		Type: TypePool,
		Key:  indexHash(spacePool, u64be(marketID), []byte{outcome}),
	}
}

// Reservation returns the keylet for a recreation reservation, keyed by the
// parent proposal id.
func Reservation(parentProposalID uint64) Keylet {
	return Keylet{
		Type: TypeReservation,
		Key:  indexHash(spaceReservation, u64be(parentProposalID)),
	}
}

// Escrow returns the keylet for a proposal's subsidy escrow.
func Escrow(proposalID uint64) Keylet {
	return Keylet{
		Type: TypeEscrow,
		Key:  indexHash(spaceEscrow, u64be(proposalID)),
	}
}

// MarketAccount derives the 20-byte pseudo-account that custodies a market's
// pooled funds: RIPEMD160(SHA256(key)). No key pair hashes to it, so the
// account can never sign.
func MarketAccount(k Keylet) [20]byte {
	inner := sha256.Sum256(k.Key[:])
	outer := ripemd160.New()
	outer.Write(inner[:])

	var id [20]byte
	copy(id[:], outer.Sum(nil))
	return id
}
