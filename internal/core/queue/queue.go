// Package queue implements the bounded proposal priority queue. Pending
// proposals are ranked by (fee desc, submission time asc) and capacity is
// split into two classes: a reserved block of slots for DAO-funded proposals
// and the remainder for proposer-funded ones. When a class is full, a
// newcomer with a higher fee evicts that class's lowest-priority resident;
// evictions never cross classes, so proposer-funded traffic cannot starve
// the DAO-reserved slots.
package queue

import (
	"errors"
	"sort"
)

const (
	// StaleAfterMS is the resident age after which anyone may evict a
	// proposal (fee slashed, bond returned).
	StaleAfterMS uint64 = 24 * 60 * 60 * 1000
)

var (
	// ErrFeeTooLow rejects a newcomer whose fee does not beat the lowest
	// resident of its class in a full queue. An expected steady-state
	// outcome, not a bug; the caller refunds the fee.
	ErrFeeTooLow = errors.New("queue: fee too low for a full queue")

	// ErrNotFound indicates the proposal is not resident.
	ErrNotFound = errors.New("queue: proposal not found")

	// ErrNotStale rejects a staleness eviction before the expiry window.
	ErrNotStale = errors.New("queue: proposal not yet stale")

	// ErrFeeNotIncreased rejects a fee update that does not raise priority.
	ErrFeeNotIncreased = errors.New("queue: fee update must increase fee")

	// ErrDuplicate rejects a proposal id already resident.
	ErrDuplicate = errors.New("queue: proposal already queued")

	// ErrBadCapacity rejects a queue whose reserved slots exceed capacity.
	ErrBadCapacity = errors.New("queue: invalid capacity split")

	// ErrZeroFee rejects a proposal with no fee.
	ErrZeroFee = errors.New("queue: zero fee")
)

// Data carries the proposal payload needed to fund a market on activation.
type Data struct {
	Title        string
	Metadata     string
	OutcomeCount uint8
}

// QueuedProposal is one pending proposal.
type QueuedProposal struct {
	ProposalID uint64
	DAOID      uint64

	// Fee is the priority key, held by the fee manager while resident.
	Fee uint64

	// UsesDAOLiquidity selects the capacity class the proposal competes in.
	UsesDAOLiquidity bool

	Proposer [20]byte
	Data     Data

	// Bond is returned to the proposer even when the fee is slashed.
	Bond uint64

	// IntentKey links a proposal into a cross-proposal intent chain.
	IntentKey string

	// ChainDepth and ParentOutcome place the proposal in an nth-order chain:
	// depth 0 is a root, a deeper proposal hangs off one outcome of its
	// parent. Children embeds the payloads of child proposals spawned under
	// this one, so an eviction can preserve the whole chain in a reservation.
	ChainDepth    uint8
	ParentOutcome uint8
	Children      []Data

	TimestampMS uint64
}

// Eviction reports the displaced resident so the caller can refund its fee,
// return its bond, and reserve its chain in the same call.
type Eviction struct {
	ProposalID       uint64
	Proposer         [20]byte
	Fee              uint64
	Bond             uint64
	UsesDAOLiquidity bool
	ChainDepth       uint8
	ParentOutcome    uint8
	Children         []Data
}

// ProposalQueue is the bounded two-tier queue for one DAO.
type ProposalQueue struct {
	DAOID uint64

	// TotalCapacity bounds total residents; DAOLiquiditySlots of it are
	// reserved for DAO-funded proposals.
	TotalCapacity     int
	DAOLiquiditySlots int

	// residents is kept sorted by fee desc, timestamp asc.
	residents []*QueuedProposal
}

// New creates a queue. Reserved slots must not exceed total capacity.
func New(daoID uint64, totalCapacity, daoLiquiditySlots int) (*ProposalQueue, error) {
	if totalCapacity <= 0 || daoLiquiditySlots < 0 || daoLiquiditySlots > totalCapacity {
		return nil, ErrBadCapacity
	}
	return &ProposalQueue{
		DAOID:             daoID,
		TotalCapacity:     totalCapacity,
		DAOLiquiditySlots: daoLiquiditySlots,
	}, nil
}

// Len returns the resident count.
func (q *ProposalQueue) Len() int {
	return len(q.residents)
}

// classCapacity returns the slot budget for a capacity class.
func (q *ProposalQueue) classCapacity(usesDAOLiquidity bool) int {
	if usesDAOLiquidity {
		return q.DAOLiquiditySlots
	}
	return q.TotalCapacity - q.DAOLiquiditySlots
}

// classCount returns the resident count of a capacity class.
func (q *ProposalQueue) classCount(usesDAOLiquidity bool) int {
	n := 0
	for _, r := range q.residents {
		if r.UsesDAOLiquidity == usesDAOLiquidity {
			n++
		}
	}
	return n
}

// higherPriority reports whether a outranks b: fee desc, then FIFO on ties.
func higherPriority(a, b *QueuedProposal) bool {
	if a.Fee != b.Fee {
		return a.Fee > b.Fee
	}
	return a.TimestampMS < b.TimestampMS
}

// Get returns a resident by id.
func (q *ProposalQueue) Get(proposalID uint64) (*QueuedProposal, bool) {
	for _, r := range q.residents {
		if r.ProposalID == proposalID {
			return r, true
		}
	}
	return nil, false
}

// Insert admits p, evicting the lowest-priority resident of p's own class
// when that class is full. The returned eviction, if any, happened in this
// same call: the caller must refund its fee before returning. A nil eviction
// with a nil error means a free slot existed.
func (q *ProposalQueue) Insert(p *QueuedProposal) (*Eviction, error) {
	if p.Fee == 0 {
		return nil, ErrZeroFee
	}
	if _, ok := q.Get(p.ProposalID); ok {
		return nil, ErrDuplicate
	}

	var evicted *Eviction
	if q.classCount(p.UsesDAOLiquidity) >= q.classCapacity(p.UsesDAOLiquidity) {
		victim := q.lowestInClass(p.UsesDAOLiquidity)
		if victim == nil || !higherPriority(p, victim) {
			return nil, ErrFeeTooLow
		}
		q.remove(victim.ProposalID)
		evicted = &Eviction{
			ProposalID:       victim.ProposalID,
			Proposer:         victim.Proposer,
			Fee:              victim.Fee,
			Bond:             victim.Bond,
			UsesDAOLiquidity: victim.UsesDAOLiquidity,
			ChainDepth:       victim.ChainDepth,
			ParentOutcome:    victim.ParentOutcome,
			Children:         victim.Children,
		}
	}

	q.residents = append(q.residents, p)
	q.reorder()
	return evicted, nil
}

// lowestInClass finds the eviction candidate: worst fee, then youngest.
func (q *ProposalQueue) lowestInClass(usesDAOLiquidity bool) *QueuedProposal {
	var worst *QueuedProposal
	for _, r := range q.residents {
		if r.UsesDAOLiquidity != usesDAOLiquidity {
			continue
		}
		if worst == nil || higherPriority(worst, r) {
			worst = r
		}
	}
	return worst
}

// TryActivateNext pops the highest-priority resident for promotion to a live
// proposal. Liquidity and capital checks belong to the caller.
func (q *ProposalQueue) TryActivateNext() (*QueuedProposal, bool) {
	if len(q.residents) == 0 {
		return nil, false
	}
	top := q.residents[0]
	q.residents = q.residents[1:]
	return top, true
}

// EvictStale removes a resident older than StaleAfterMS. Permissionless: the
// caller slashes the fee and returns the bond.
func (q *ProposalQueue) EvictStale(proposalID, nowMS uint64) (*QueuedProposal, error) {
	r, ok := q.Get(proposalID)
	if !ok {
		return nil, ErrNotFound
	}
	if nowMS < r.TimestampMS+StaleAfterMS {
		return nil, ErrNotStale
	}
	q.remove(proposalID)
	return r, nil
}

// UpdateProposalFee re-ranks a resident in place. Raise-only, so it can never
// trigger an eviction.
func (q *ProposalQueue) UpdateProposalFee(proposalID, newFee uint64) error {
	r, ok := q.Get(proposalID)
	if !ok {
		return ErrNotFound
	}
	if newFee <= r.Fee {
		return ErrFeeNotIncreased
	}
	r.Fee = newFee
	q.reorder()
	return nil
}

func (q *ProposalQueue) remove(proposalID uint64) {
	for i, r := range q.residents {
		if r.ProposalID == proposalID {
			q.residents = append(q.residents[:i], q.residents[i+1:]...)
			return
		}
	}
}

func (q *ProposalQueue) reorder() {
	sort.SliceStable(q.residents, func(i, j int) bool {
		return higherPriority(q.residents[i], q.residents[j])
	})
}

// Residents returns a snapshot in priority order, for the RPC surface.
func (q *ProposalQueue) Residents() []*QueuedProposal {
	out := make([]*QueuedProposal, len(q.residents))
	copy(out, q.residents)
	return out
}
