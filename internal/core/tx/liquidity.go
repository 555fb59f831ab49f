package tx

import (
	"github.com/futarchy-labs/futarchyd/internal/events"
)

func init() {
	Register(TypeLiquidityDeposit, func() Transaction { return &LiquidityDeposit{} })
	Register(TypeLiquidityWithdraw, func() Transaction { return &LiquidityWithdraw{} })
}

// LiquidityDeposit adds liquidity to one outcome pool of a live proposal.
type LiquidityDeposit struct {
	MarketID uint64
	Outcome  uint8
	AssetIn  uint64
	StableIn uint64
}

func (t *LiquidityDeposit) TxType() Type { return TypeLiquidityDeposit }

func (t *LiquidityDeposit) Validate() error {
	if t.AssetIn == 0 || t.StableIn == 0 {
		return malformed(TemBAD_AMOUNT, "deposit amounts must be positive")
	}
	return nil
}

func (t *LiquidityDeposit) Apply(ctx *ApplyContext) Result {
	pool, res := tradingPool(ctx, t.MarketID, t.Outcome)
	if !res.IsSuccess() {
		return res
	}
	now := ctx.Now()
	deposited, err := pool.Deposit(t.AssetIn, t.StableIn, now)
	if err != nil {
		return errResult(err)
	}
	if res := ctx.savePool(pool); !res.IsSuccess() {
		return res
	}
	ctx.emit(events.LiquidityAdded{
		MarketID:     t.MarketID,
		OutcomeIdx:   t.Outcome,
		AssetAmount:  deposited.AssetAmount,
		StableAmount: deposited.StableAmount,
		LPAmount:     deposited.LPAmount,
		TimestampMS:  now,
	})
	return TesSUCCESS
}

// LiquidityWithdraw burns LP shares of one outcome pool for a proportional
// slice of its reserves.
type LiquidityWithdraw struct {
	MarketID uint64
	Outcome  uint8
	LPAmount uint64
}

func (t *LiquidityWithdraw) TxType() Type { return TypeLiquidityWithdraw }

func (t *LiquidityWithdraw) Validate() error {
	if t.LPAmount == 0 {
		return malformed(TemBAD_AMOUNT, "lp amount must be positive")
	}
	return nil
}

func (t *LiquidityWithdraw) Apply(ctx *ApplyContext) Result {
	pool, res := tradingPool(ctx, t.MarketID, t.Outcome)
	if !res.IsSuccess() {
		return res
	}
	now := ctx.Now()
	withdrawn, err := pool.Withdraw(t.LPAmount, now)
	if err != nil {
		return errResult(err)
	}
	if res := ctx.savePool(pool); !res.IsSuccess() {
		return res
	}
	ctx.emit(events.LiquidityRemoved{
		MarketID:     t.MarketID,
		OutcomeIdx:   t.Outcome,
		AssetAmount:  withdrawn.AssetAmount,
		StableAmount: withdrawn.StableAmount,
		LPAmount:     withdrawn.LPAmount,
		TimestampMS:  now,
	})
	return TesSUCCESS
}
