package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
	"github.com/futarchy-labs/futarchyd/internal/core/oracle"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/core/subsidy"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeProposalActivate, func() Transaction { return &ProposalActivate{} })
}

// ProposalActivate promotes the highest-priority queue resident into a live
// conditional market: one funded pool per outcome, an optional subsidy
// escrow, and a proposal entry tracking the trading window. The priority fee
// is spent to the DAO here.
type ProposalActivate struct {
	DAOID         uint64
	AssetPerPool  uint64
	StablePerPool uint64
	SubsidyAmount uint64
}

func (t *ProposalActivate) TxType() Type { return TypeProposalActivate }

func (t *ProposalActivate) Validate() error {
	if t.AssetPerPool == 0 || t.StablePerPool == 0 {
		return malformed(TemBAD_AMOUNT, "pool funding must be positive")
	}
	return nil
}

func (t *ProposalActivate) Apply(ctx *ApplyContext) Result {
	if t.AssetPerPool < ctx.Params.MinAssetLiquidity || t.StablePerPool < ctx.Params.MinStableLiquidity {
		return TecUNFUNDED
	}
	q, res := ctx.loadQueue(t.DAOID)
	if !res.IsSuccess() {
		return res
	}
	top, ok := q.TryActivateNext()
	if !ok {
		return TecNO_ENTRY
	}
	now := ctx.Now()

	ocfg := oracle.Config{
		InitialPrice: ctx.Params.TwapInitialObservation,
		CapStep:      ctx.Params.TwapCapStep,
		StartDelayMS: ctx.Params.TwapStartDelayMS,
	}
	for i := uint8(0); i < top.Data.OutcomeCount; i++ {
		pool, err := amm.New(top.ProposalID, i, ctx.Params.AMMFeeBps, ocfg, now)
		if err != nil {
			return errResult(err)
		}
		if _, err := pool.Deposit(t.AssetPerPool, t.StablePerPool, now); err != nil {
			return errResult(err)
		}
		if err := ctx.View.Insert(keylet.Pool(pool.MarketID, pool.OutcomeIdx), state.SerializePool(pool)); err != nil {
			return TefINTERNAL
		}
	}

	hasEscrow := t.SubsidyAmount > 0
	if hasEscrow {
		ids := make([]uint64, top.Data.OutcomeCount)
		for i := range ids {
			ids[i] = uint64(i)
		}
		escrow, err := subsidy.New(top.ProposalID, t.DAOID, ids, t.SubsidyAmount,
			ctx.Params.SubsidyCranks, ctx.Params.KeeperFeePerCrank)
		if err != nil {
			return errResult(err)
		}
		if res := ctx.saveEscrow(escrow); !res.IsSuccess() {
			return res
		}
	}

	ctx.Fees.Slash(top.ProposalID)

	entry := &state.ProposalEntry{
		ProposalID:   top.ProposalID,
		DAOID:        top.DAOID,
		Proposer:     top.Proposer,
		Data:         top.Data,
		State:        state.ProposalStateTrading,
		HasEscrow:    hasEscrow,
		ActivatedAt:  now,
		TradingEndAt: now + ctx.Params.TradingPeriodMS,
	}
	if res := ctx.saveProposal(entry); !res.IsSuccess() {
		return res
	}
	if res := ctx.saveQueue(q); !res.IsSuccess() {
		return res
	}

	ctx.emit(events.ProposalActivated{
		ProposalID:   entry.ProposalID,
		MarketID:     entry.ProposalID,
		OutcomeCount: entry.Data.OutcomeCount,
		TradingEndAt: entry.TradingEndAt,
		TimestampMS:  now,
	})
	return TesSUCCESS
}
