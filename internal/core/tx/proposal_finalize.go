package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeProposalFinalize, func() Transaction { return &ProposalFinalize{} })
}

// ProposalFinalize closes a proposal's trading window: a final observation
// at the current spot price is written to every outcome oracle, the outcome
// TWAPs are compared, and the winner is the best outcome beating the
// baseline (outcome 0) by the pass threshold. The winning pool is emptied
// and any undistributed subsidy is swept out of the escrow.
type ProposalFinalize struct {
	ProposalID uint64
}

func (t *ProposalFinalize) TxType() Type { return TypeProposalFinalize }

func (t *ProposalFinalize) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	return nil
}

func (t *ProposalFinalize) Apply(ctx *ApplyContext) Result {
	proposal, res := ctx.loadProposal(t.ProposalID)
	if !res.IsSuccess() {
		return res
	}
	if proposal.State != state.ProposalStateTrading {
		return TecNOT_TRADING
	}
	now := ctx.Now()
	if now < proposal.TradingEndAt {
		return TecTOO_SOON
	}

	twaps := make([]uint64, proposal.Data.OutcomeCount)
	for i := uint8(0); i < proposal.Data.OutcomeCount; i++ {
		pool, res := ctx.loadPool(t.ProposalID, i)
		if !res.IsSuccess() {
			return res
		}
		spot, err := pool.SpotPrice()
		if err != nil {
			return errResult(err)
		}
		if err := pool.Oracle.WriteObservation(now, spot); err != nil {
			return errResult(err)
		}
		twap, err := pool.Oracle.TWAP(now)
		if err != nil {
			return errResult(err)
		}
		twaps[i] = twap
		if res := ctx.savePool(pool); !res.IsSuccess() {
			return res
		}
	}

	winner := market.SelectWinner(twaps, ctx.Params.PassThresholdBps)

	winningPool, res := ctx.loadPool(t.ProposalID, winner)
	if !res.IsSuccess() {
		return res
	}
	winningPool.Empty()
	if res := ctx.savePool(winningPool); !res.IsSuccess() {
		return res
	}

	if proposal.HasEscrow {
		escrow, res := ctx.loadEscrow(t.ProposalID)
		if !res.IsSuccess() {
			return res
		}
		remainder := escrow.Finalize()
		if res := ctx.saveEscrow(escrow); !res.IsSuccess() {
			return res
		}
		ctx.emit(events.SubsidyFinalized{
			ProposalID:  t.ProposalID,
			Remainder:   remainder,
			TimestampMS: now,
		})
	}

	proposal.Winner = winner
	proposal.FinalTwaps = twaps
	proposal.State = state.ProposalStateFailed
	if winner != 0 {
		proposal.State = state.ProposalStatePassed
	}
	if res := ctx.saveProposal(proposal); !res.IsSuccess() {
		return res
	}

	ctx.emit(events.ProposalFinalized{
		ProposalID:  t.ProposalID,
		Winner:      winner,
		Passed:      proposal.State == state.ProposalStatePassed,
		Twaps:       twaps,
		TimestampMS: now,
	})
	return TesSUCCESS
}
