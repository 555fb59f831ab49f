package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
)

func init() {
	Register(TypeProposalRecreate, func() Transaction { return &ProposalRecreate{} })
}

// ProposalRecreate re-submits an evicted proposal under its reserved id.
// The reservation window must be open and the full current fee (at least the
// original) is paid again; there is no recreation-count limit.
type ProposalRecreate struct {
	DAOID            uint64
	ProposalID       uint64
	Fee              uint64
	UsesDAOLiquidity bool
	Title            string
	Metadata         string
	OutcomeCount     uint8
}

func (t *ProposalRecreate) TxType() Type { return TypeProposalRecreate }

func (t *ProposalRecreate) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	if t.Fee == 0 {
		return malformed(TemBAD_FEE, "recreation fee must be positive")
	}
	if t.OutcomeCount < 2 {
		return malformed(TemBAD_OUTCOME, "need at least two outcomes, got %d", t.OutcomeCount)
	}
	return nil
}

func (t *ProposalRecreate) Apply(ctx *ApplyContext) Result {
	reservation, res := ctx.loadReservation(t.ProposalID)
	if !res.IsSuccess() {
		return res
	}
	now := ctx.Now()
	if now > reservation.RecreationExpiresAt {
		return TecRESERVATION_EXPIRED
	}
	if t.Fee < reservation.OriginalFee {
		return TecINSUFFICIENT_FEE
	}
	reservation.RecreationCount++
	if res := ctx.saveReservation(reservation); !res.IsSuccess() {
		return res
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
		Proposer:         reservation.Proposer,
		Data: queue.Data{
			Title:        t.Title,
			Metadata:     t.Metadata,
			OutcomeCount: t.OutcomeCount,
		},
		ChainDepth:    reservation.ChainDepth,
		ParentOutcome: reservation.ParentOutcome,
		Children:      reservation.ChildPayloads,
	}, 0)
}
