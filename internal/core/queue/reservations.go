package queue

import "errors"

const (
	// DefaultReservationWindowMS is the recreation window when the DAO does
	// not override it.
	DefaultReservationWindowMS uint64 = 30 * 24 * 60 * 60 * 1000

	// MaxReservationWindowMS caps any override at 90 days.
	MaxReservationWindowMS uint64 = 90 * 24 * 60 * 60 * 1000
)

var (
	// ErrReservationExpired rejects recreation after the window closes.
	ErrReservationExpired = errors.New("queue: reservation expired")

	// ErrReservationNotFound indicates no reservation for the parent id.
	ErrReservationNotFound = errors.New("queue: reservation not found")

	// ErrInsufficientFee rejects recreation below the original fee. There is
	// no discount for recreations.
	ErrInsufficientFee = errors.New("queue: recreation fee below original")
)

// Reservation is a time-bounded right to re-submit an evicted or high-value
// proposal by paying its fee again. It exists because evicting a proposal
// that had begun spawning nth-order children must not destroy the chain's
// addressability: children reference the parent id, and the reservation keeps
// that id re-admittable.
type Reservation struct {
	// ParentProposalID keys the reservation; it is the only way to address
	// one.
	ParentProposalID uint64

	// ChainDepth is how deep this proposal sits in an nth-order chain.
	ChainDepth uint8

	// ParentOutcome is the outcome of the parent this chain hangs off.
	ParentOutcome uint8

	OriginalFee uint64
	Proposer    [20]byte

	RecreationExpiresAt uint64

	// RecreationCount is informational; there is no recreation limit, only
	// the time bound.
	RecreationCount uint32

	// ChildPayloads embeds the chained child-proposal payloads so a
	// recreated parent can re-spawn them.
	ChildPayloads []Data
}

// ReservationBook holds reservations by parent proposal id. Expired entries
// are inert but not purged; storage reclamation is not this layer's job.
type ReservationBook struct {
	byParent map[uint64]*Reservation
}

// NewReservationBook creates an empty book.
func NewReservationBook() *ReservationBook {
	return &ReservationBook{byParent: make(map[uint64]*Reservation)}
}

// Create registers a reservation with the given window, clamped to the
// 90-day maximum. A zero window selects the default.
func (b *ReservationBook) Create(r *Reservation, nowMS, windowMS uint64) *Reservation {
	if windowMS == 0 {
		windowMS = DefaultReservationWindowMS
	}
	if windowMS > MaxReservationWindowMS {
		windowMS = MaxReservationWindowMS
	}
	r.RecreationExpiresAt = nowMS + windowMS
	b.byParent[r.ParentProposalID] = r
	return r
}

// Get returns the reservation for a parent proposal id.
func (b *ReservationBook) Get(parentProposalID uint64) (*Reservation, bool) {
	r, ok := b.byParent[parentProposalID]
	return r, ok
}

// Redeem validates a recreation attempt: the window must be open and the
// full current fee (at least the original) must be paid again. On success
// the recreation counter advances and the reservation stays addressable for
// further recreations until it expires.
func (b *ReservationBook) Redeem(parentProposalID, fee, nowMS uint64) (*Reservation, error) {
	r, ok := b.byParent[parentProposalID]
	if !ok {
		return nil, ErrReservationNotFound
	}
	if nowMS > r.RecreationExpiresAt {
		return nil, ErrReservationExpired
	}
	if fee < r.OriginalFee {
		return nil, ErrInsufficientFee
	}
	r.RecreationCount++
	return r, nil
}
