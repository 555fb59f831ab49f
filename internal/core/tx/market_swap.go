package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeMarketSwap, func() Transaction { return &MarketSwap{} })
}

// MarketSwap trades against one outcome pool of a live proposal.
type MarketSwap struct {
	MarketID      uint64
	Outcome       uint8
	AssetToStable bool
	AmountIn      uint64
	MinOut        uint64
}

func (t *MarketSwap) TxType() Type { return TypeMarketSwap }

func (t *MarketSwap) Validate() error {
	if t.AmountIn == 0 {
		return malformed(TemBAD_AMOUNT, "swap amount must be positive")
	}
	return nil
}

// tradingPool loads a live proposal's outcome pool, rejecting markets that
// are not in the trading state.
func tradingPool(ctx *ApplyContext, marketID uint64, outcome uint8) (*amm.Pool, Result) {
	proposal, res := ctx.loadProposal(marketID)
	if !res.IsSuccess() {
		return nil, res
	}
	if proposal.State != state.ProposalStateTrading {
		return nil, TecNOT_TRADING
	}
	if outcome >= proposal.Data.OutcomeCount {
		return nil, TemBAD_OUTCOME
	}
	return ctx.loadPool(marketID, outcome)
}

func (t *MarketSwap) Apply(ctx *ApplyContext) Result {
	pool, res := tradingPool(ctx, t.MarketID, t.Outcome)
	if !res.IsSuccess() {
		return res
	}
	now := ctx.Now()

	var swap *amm.SwapResult
	var err error
	if t.AssetToStable {
		swap, err = pool.SwapAssetToStable(t.AmountIn, t.MinOut, now)
	} else {
		swap, err = pool.SwapStableToAsset(t.AmountIn, t.MinOut, now)
	}
	if err != nil {
		return errResult(err)
	}
	if res := ctx.savePool(pool); !res.IsSuccess() {
		return res
	}

	ctx.emit(events.Swap{
		MarketID:      t.MarketID,
		OutcomeIdx:    t.Outcome,
		AssetToStable: t.AssetToStable,
		AmountIn:      swap.AmountIn,
		AmountOut:     swap.AmountOut,
		FeeTotal:      swap.FeeTotal,
		FeeProtocol:   swap.FeeProtocol,
		TimestampMS:   now,
	})
	return TesSUCCESS
}
