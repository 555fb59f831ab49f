package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
)

func init() {
	Register(TypeProposalChainRecreate, func() Transaction { return &ProposalChainRecreate{} })
}

// ChainChildSeed funds one embedded child payload of a recreated chain: a
// fresh proposal id, its own priority fee, and the parent outcome it hangs
// off.
type ChainChildSeed struct {
	ProposalID    uint64
	Fee           uint64
	ParentOutcome uint8
}

// ProposalChainRecreate re-admits an evicted proposal together with the
// child proposals embedded in its reservation. The parent pays the full
// current fee like a plain recreation; every child needs its own seed, and
// the whole chain is admitted atomically: one child failing its class's
// admission aborts the entire recreation.
type ProposalChainRecreate struct {
	DAOID            uint64
	ProposalID       uint64
	Fee              uint64
	UsesDAOLiquidity bool
	Title            string
	Metadata         string
	OutcomeCount     uint8

	ChildSeeds []ChainChildSeed
}

func (t *ProposalChainRecreate) TxType() Type { return TypeProposalChainRecreate }

func (t *ProposalChainRecreate) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	if t.Fee == 0 {
		return malformed(TemBAD_FEE, "recreation fee must be positive")
	}
	if t.OutcomeCount < 2 {
		return malformed(TemBAD_OUTCOME, "need at least two outcomes, got %d", t.OutcomeCount)
	}
	for i, seed := range t.ChildSeeds {
		if seed.ProposalID == 0 {
			return malformed(TemINVALID, "child %d needs a proposal id", i)
		}
		if seed.Fee == 0 {
			return malformed(TemBAD_FEE, "child %d needs a positive fee", i)
		}
	}
	return nil
}

func (t *ProposalChainRecreate) Apply(ctx *ApplyContext) Result {
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
	if len(t.ChildSeeds) != len(reservation.ChildPayloads) {
		return TemINVALID
	}
	if reservation.ChainDepth+1 > ctx.Params.MaxProposalChainDepth && len(t.ChildSeeds) > 0 {
		return TecCHAIN_TOO_DEEP
	}
	reservation.RecreationCount++
	if res := ctx.saveReservation(reservation); !res.IsSuccess() {
		return res
	}

	q, res := ctx.loadQueue(t.DAOID)
	if !res.IsSuccess() {
		return res
	}
	if res := admitProposal(ctx, q, &queue.QueuedProposal{
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
	}, 0); !res.IsSuccess() {
		return res
	}

	for i, payload := range reservation.ChildPayloads {
		seed := t.ChildSeeds[i]
		if int(seed.ParentOutcome) >= int(t.OutcomeCount) {
			return TemBAD_OUTCOME
		}
		if res := admitProposal(ctx, q, &queue.QueuedProposal{
			ProposalID:       seed.ProposalID,
			DAOID:            t.DAOID,
			Fee:              seed.Fee,
			UsesDAOLiquidity: t.UsesDAOLiquidity,
			Proposer:         reservation.Proposer,
			Data:             payload,
			ChainDepth:       reservation.ChainDepth + 1,
			ParentOutcome:    seed.ParentOutcome,
		}, 0); !res.IsSuccess() {
			return res
		}
	}
	return TesSUCCESS
}
