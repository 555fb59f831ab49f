package amm

import (
	"github.com/futarchy-labs/futarchyd/internal/core/fpmath"
)

// LiquidityResult reports a completed liquidity operation for event emission.
type LiquidityResult struct {
	AssetAmount  uint64
	StableAmount uint64
	LPAmount     uint64
}

// Deposit adds liquidity. The first deposit bootstraps LPSupply to
// sqrt(asset*stable) and permanently locks MinimumLiquidity of it. Follow-on
// deposits must match the reserve ratio within RatioToleranceBps and are
// minted min(byAsset, byStable) so imbalanced deposits are never overpaid.
func (p *Pool) Deposit(assetIn, stableIn, nowMS uint64) (*LiquidityResult, error) {
	if assetIn == 0 || stableIn == 0 {
		return nil, ErrZeroAmount
	}

	if p.LPSupply == 0 {
		lp := fpmath.Sqrt(fpmath.Mul64(assetIn, stableIn))
		if lp <= MinimumLiquidity {
			return nil, ErrInsufficientLiquidity
		}
		p.AssetReserve = assetIn
		p.StableReserve = stableIn
		p.LPSupply = lp
		if _, err := p.SpotPrice(); err != nil {
			return nil, err
		}
		// Seed the oracle with the bootstrap price.
		if err := p.observe(nowMS); err != nil {
			return nil, err
		}
		return &LiquidityResult{
			AssetAmount:  assetIn,
			StableAmount: stableIn,
			LPAmount:     lp - MinimumLiquidity,
		}, nil
	}

	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return nil, ErrPoolEmpty
	}

	lpFromAsset, err := fpmath.MulDiv(assetIn, p.LPSupply, p.AssetReserve)
	if err != nil {
		return nil, ErrOverflow
	}
	lpFromStable, err := fpmath.MulDiv(stableIn, p.LPSupply, p.StableReserve)
	if err != nil {
		return nil, ErrOverflow
	}
	if !fpmath.WithinBps(lpFromAsset, lpFromStable, RatioToleranceBps) {
		return nil, ErrInvalidLiquidityRatio
	}
	minted := min(lpFromAsset, lpFromStable)
	if minted == 0 {
		return nil, ErrZeroAmount
	}

	if err := p.observe(nowMS); err != nil {
		return nil, err
	}

	newAsset, err := fpmath.CheckedAdd(p.AssetReserve, assetIn)
	if err != nil {
		return nil, ErrOverflow
	}
	newStable, err := fpmath.CheckedAdd(p.StableReserve, stableIn)
	if err != nil {
		return nil, ErrOverflow
	}
	newSupply, err := fpmath.CheckedAdd(p.LPSupply, minted)
	if err != nil {
		return nil, ErrOverflow
	}
	p.AssetReserve = newAsset
	p.StableReserve = newStable
	p.LPSupply = newSupply

	return &LiquidityResult{AssetAmount: assetIn, StableAmount: stableIn, LPAmount: minted}, nil
}

// Withdraw burns lpAmount shares for a strictly proportional slice of both
// reserves. The locked MinimumLiquidity can never be withdrawn, so the pool
// retains a residual k until it is intentionally emptied at finalization.
func (p *Pool) Withdraw(lpAmount, nowMS uint64) (*LiquidityResult, error) {
	if lpAmount == 0 {
		return nil, ErrZeroAmount
	}
	if p.LPSupply == 0 || p.AssetReserve == 0 || p.StableReserve == 0 {
		return nil, ErrPoolEmpty
	}
	if lpAmount > p.LPSupply-MinimumLiquidity {
		return nil, ErrInsufficientLiquidity
	}

	assetOut, err := fpmath.MulDiv(lpAmount, p.AssetReserve, p.LPSupply)
	if err != nil {
		return nil, ErrOverflow
	}
	stableOut, err := fpmath.MulDiv(lpAmount, p.StableReserve, p.LPSupply)
	if err != nil {
		return nil, ErrOverflow
	}
	if assetOut == 0 && stableOut == 0 {
		return nil, ErrZeroAmount
	}

	if err := p.observe(nowMS); err != nil {
		return nil, err
	}

	p.AssetReserve -= assetOut
	p.StableReserve -= stableOut
	p.LPSupply -= lpAmount

	return &LiquidityResult{AssetAmount: assetOut, StableAmount: stableOut, LPAmount: lpAmount}, nil
}

// Empty drains the pool at proposal finalization, returning the remaining
// reserves. Only the market coordinator calls this, after the winning
// outcome is decided.
func (p *Pool) Empty() (assetOut, stableOut uint64) {
	assetOut = p.AssetReserve
	stableOut = p.StableReserve
	p.AssetReserve = 0
	p.StableReserve = 0
	p.LPSupply = 0
	return assetOut, stableOut
}

// AddSubsidy credits a subsidy drip as pending LP reward. The reward pot is
// outside the reserves: it must never move k or the spot price.
func (p *Pool) AddSubsidy(amount uint64) error {
	sum, err := fpmath.CheckedAdd(p.PendingLPReward, amount)
	if err != nil {
		return ErrOverflow
	}
	p.PendingLPReward = sum
	return nil
}

// TakeProtocolFees withdraws and resets the accumulated protocol fee share.
func (p *Pool) TakeProtocolFees() uint64 {
	out := p.ProtocolFeesStable
	p.ProtocolFeesStable = 0
	return out
}
