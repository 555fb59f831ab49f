package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeProposalEvictStale, func() Transaction { return &ProposalEvictStale{} })
}

// ProposalEvictStale removes a queue resident older than the staleness
// window. Permissionless: anyone may submit it. The resident's fee is
// slashed to the DAO, its bond returns to the proposer, and a recreation
// reservation keeps the id re-admittable.
type ProposalEvictStale struct {
	DAOID      uint64
	ProposalID uint64
}

func (t *ProposalEvictStale) TxType() Type { return TypeProposalEvictStale }

func (t *ProposalEvictStale) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	return nil
}

func (t *ProposalEvictStale) Apply(ctx *ApplyContext) Result {
	q, res := ctx.loadQueue(t.DAOID)
	if !res.IsSuccess() {
		return res
	}
	now := ctx.Now()
	evicted, err := q.EvictStale(t.ProposalID, now)
	if err != nil {
		return errResult(err)
	}
	if res := ctx.createReservation(&queue.Reservation{
		ParentProposalID: evicted.ProposalID,
		ChainDepth:       evicted.ChainDepth,
		ParentOutcome:    evicted.ParentOutcome,
		OriginalFee:      evicted.Fee,
		Proposer:         evicted.Proposer,
		ChildPayloads:    evicted.Children,
	}, now, 0); !res.IsSuccess() {
		return res
	}
	if res := ctx.saveQueue(q); !res.IsSuccess() {
		return res
	}

	// Custody moves only after every staged write has succeeded.
	slashed := ctx.Fees.Slash(t.ProposalID)
	ctx.emit(events.ProposalEvicted{
		ProposalID:   t.ProposalID,
		Reason:       "stale",
		FeeSlashed:   slashed,
		BondReturned: evicted.Bond,
		TimestampMS:  now,
	})
	return TesSUCCESS
}
