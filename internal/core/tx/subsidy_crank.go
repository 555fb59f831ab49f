package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeSubsidyCrank, func() Transaction { return &SubsidyCrank{} })
}

// SubsidyCrank releases one escrow installment into every outcome pool of a
// live proposal as pending LP reward, paying the cranker's keeper fee.
// Permissionless and rate-limited by the escrow itself.
type SubsidyCrank struct {
	ProposalID uint64
}

func (t *SubsidyCrank) TxType() Type { return TypeSubsidyCrank }

func (t *SubsidyCrank) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	return nil
}

func (t *SubsidyCrank) Apply(ctx *ApplyContext) Result {
	proposal, res := ctx.loadProposal(t.ProposalID)
	if !res.IsSuccess() {
		return res
	}
	if proposal.State != state.ProposalStateTrading {
		return TecNOT_TRADING
	}
	escrow, res := ctx.loadEscrow(t.ProposalID)
	if !res.IsSuccess() {
		return res
	}
	now := ctx.Now()
	cranked, err := escrow.Crank(now)
	if err != nil {
		return errResult(err)
	}

	for _, id := range escrow.AMMIDs {
		pool, res := ctx.loadPool(t.ProposalID, uint8(id))
		if !res.IsSuccess() {
			return res
		}
		if err := pool.AddSubsidy(cranked.PerPoolAmount); err != nil {
			return errResult(err)
		}
		if res := ctx.savePool(pool); !res.IsSuccess() {
			return res
		}
	}
	if res := ctx.saveEscrow(escrow); !res.IsSuccess() {
		return res
	}

	ctx.emit(events.SubsidyCranked{
		ProposalID:    t.ProposalID,
		PerPoolAmount: cranked.PerPoolAmount,
		KeeperFee:     cranked.KeeperFee,
		CranksLeft:    cranked.CranksLeft,
		TimestampMS:   now,
	})
	return TesSUCCESS
}
