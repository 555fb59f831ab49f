package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeProposalSubmit, func() Transaction { return &ProposalSubmit{} })
}

// ProposalSubmit admits a proposal into a DAO's queue, depositing its
// priority fee. When the proposal's capacity class is full it must outbid
// that class's lowest resident; the displaced resident is refunded and left
// a recreation reservation inside the same transaction. A submission is
// "high value" when it sets an explicit reservation window or its fee
// reaches the DAO threshold; high-value proposals get a reservation at
// admission, before any eviction could strand their chain.
type ProposalSubmit struct {
	ProposalID       uint64
	DAOID            uint64
	Fee              uint64
	UsesDAOLiquidity bool
	Proposer         [20]byte
	Title            string
	Metadata         string
	OutcomeCount     uint8
	Bond             uint64
	IntentKey        string

	// ChainDepth and ParentOutcome place the proposal in an nth-order
	// chain; Children embeds the payloads of child proposals it spawns.
	ChainDepth    uint8
	ParentOutcome uint8
	Children      []queue.Data

	// ReservationWindowMS, when set, is the explicit high-value override
	// period. Capped at 90 days.
	ReservationWindowMS uint64
}

func (t *ProposalSubmit) TxType() Type { return TypeProposalSubmit }

func (t *ProposalSubmit) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	if t.Fee == 0 {
		return malformed(TemBAD_FEE, "priority fee must be positive")
	}
	if t.OutcomeCount < 2 {
		return malformed(TemBAD_OUTCOME, "need at least two outcomes, got %d", t.OutcomeCount)
	}
	for i, child := range t.Children {
		if child.OutcomeCount < 2 {
			return malformed(TemBAD_OUTCOME, "child %d needs at least two outcomes, got %d", i, child.OutcomeCount)
		}
	}
	return nil
}

func (t *ProposalSubmit) Apply(ctx *ApplyContext) Result {
	if t.ChainDepth > ctx.Params.MaxProposalChainDepth {
		return TecCHAIN_TOO_DEEP
	}
	q, res := ctx.loadQueue(t.DAOID)
	if !res.IsSuccess() {
		return res
	}
	return admitProposal(ctx, q, &queue.QueuedProposal{
		ProposalID:       t.ProposalID,
		DAOID:            t.DAOID,
		Fee:              t.Fee,
		UsesDAOLiquidity: t.UsesDAOLiquidity,
		Proposer:         t.Proposer,
		Data: queue.Data{
			Title:        t.Title,
			Metadata:     t.Metadata,
			OutcomeCount: t.OutcomeCount,
		},
		Bond:          t.Bond,
		IntentKey:     t.IntentKey,
		ChainDepth:    t.ChainDepth,
		ParentOutcome: t.ParentOutcome,
		Children:      t.Children,
	}, t.ReservationWindowMS)
}

// highValue reports whether an admitted proposal earns a reservation without
// an eviction: an explicit override window, or a fee at the DAO threshold.
func highValue(ctx *ApplyContext, p *queue.QueuedProposal, overrideWindowMS uint64) bool {
	if overrideWindowMS > 0 {
		return true
	}
	threshold := ctx.Params.HighValueFeeThreshold
	return threshold > 0 && p.Fee >= threshold
}

// admitProposal runs the shared admission path for submissions and
// recreations: class-aware insertion, reservations for the displaced
// resident and for high-value newcomers, then fee custody. Custody moves
// last so a failed staged write never leaves fees out of step with the
// rolled-back ledger.
func admitProposal(ctx *ApplyContext, q *queue.ProposalQueue, p *queue.QueuedProposal, overrideWindowMS uint64) Result {
	now := ctx.Now()
	p.TimestampMS = now

	evicted, err := q.Insert(p)
	if err != nil {
		return errResult(err)
	}
	if evicted != nil {
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
	}
	if highValue(ctx, p, overrideWindowMS) {
		if res := ctx.createReservation(&queue.Reservation{
			ParentProposalID: p.ProposalID,
			ChainDepth:       p.ChainDepth,
			ParentOutcome:    p.ParentOutcome,
			OriginalFee:      p.Fee,
			Proposer:         p.Proposer,
			ChildPayloads:    p.Children,
		}, now, overrideWindowMS); !res.IsSuccess() {
			return res
		}
	}
	if res := ctx.saveQueue(q); !res.IsSuccess() {
		return res
	}

	if err := ctx.Fees.Deposit(p.ProposalID, p.Fee); err != nil {
		return TecUNFUNDED
	}
	if evicted != nil {
		refunded := ctx.Fees.Refund(evicted.ProposalID)
		ctx.emit(events.ProposalEvicted{
			ProposalID:   evicted.ProposalID,
			Reason:       "outbid",
			FeeRefunded:  refunded,
			BondReturned: evicted.Bond,
			TimestampMS:  now,
		})
	}
	ctx.emit(events.ProposalQueued{
		ProposalID:       p.ProposalID,
		DAOID:            p.DAOID,
		Fee:              p.Fee,
		UsesDAOLiquidity: p.UsesDAOLiquidity,
		TimestampMS:      now,
	})
	return TesSUCCESS
}
