// Package amm implements the constant-product liquidity pool that trades one
// conditional outcome token against the stable coin. One pool exists per
// outcome of a live proposal's market; each pool exclusively owns its TWAP
// oracle and writes an observation with the pre-trade price before every
// state change.
package amm

import (
	"errors"

	"github.com/futarchy-labs/futarchyd/internal/core/fpmath"
	"github.com/futarchy-labs/futarchyd/internal/core/oracle"
)

const (
	// MinimumLiquidity is the LP share amount permanently locked by the
	// first deposit, the standard first-depositor / div-by-zero mitigation.
	MinimumLiquidity uint64 = 1000

	// MaxPrice bounds the spot price so downstream fixed-point math cannot
	// overflow: at most 1e6 stable units per asset unit at the 1e12 scale.
	MaxPrice uint64 = 1_000_000 * 1_000_000_000_000

	// ProtocolFeeShareBps is the protocol's cut of the total swap fee; the
	// remaining 80% stays in the pool as LP reward.
	ProtocolFeeShareBps uint64 = 2_000

	// RatioToleranceBps is the maximum deviation from the reserve ratio a
	// follow-on deposit may have.
	RatioToleranceBps uint64 = 10
)

var (
	ErrPoolEmpty             = errors.New("amm: pool is empty")
	ErrZeroAmount            = errors.New("amm: zero amount")
	ErrExcessiveSlippage     = errors.New("amm: output below minimum")
	ErrOverflow              = errors.New("amm: arithmetic overflow")
	ErrInvalidLiquidityRatio = errors.New("amm: deposit ratio outside tolerance")
	ErrPriceTooHigh          = errors.New("amm: price above safety ceiling")
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
	ErrInvalidFee            = errors.New("amm: fee must be below fee scale")
)

// Pool is a constant-product market for one outcome of one proposal. Protocol
// fees and pending LP rewards are accounted outside the reserves and never
// participate in pricing.
type Pool struct {
	MarketID   uint64
	OutcomeIdx uint8

	AssetReserve  uint64
	StableReserve uint64

	// FeeBps is the total swap fee in basis points of fpmath.FeeScale.
	FeeBps uint64

	// Oracle is exclusively owned by this pool.
	Oracle *oracle.Oracle

	// ProtocolFeesStable accumulates the protocol's fee share. Swap fees are
	// always denominated on the stable leg.
	ProtocolFeesStable uint64

	// LPSupply is the total of outstanding LP shares, including the
	// permanently locked MinimumLiquidity.
	LPSupply uint64

	// PendingLPReward holds subsidy drips awaiting distribution to LPs.
	// Never part of the reserves; never moves k or the price.
	PendingLPReward uint64
}

// SwapResult reports a completed swap for event emission.
type SwapResult struct {
	AmountIn    uint64
	AmountOut   uint64
	FeeTotal    uint64
	FeeProtocol uint64
	PriceBefore uint64
}

// New creates an empty pool with its owned oracle.
func New(marketID uint64, outcomeIdx uint8, feeBps uint64, oracleCfg oracle.Config, nowMS uint64) (*Pool, error) {
	if feeBps >= fpmath.FeeScale {
		return nil, ErrInvalidFee
	}
	orc, err := oracle.New(oracleCfg, nowMS)
	if err != nil {
		return nil, err
	}
	return &Pool{
		MarketID:   marketID,
		OutcomeIdx: outcomeIdx,
		FeeBps:     feeBps,
		Oracle:     orc,
	}, nil
}

// SpotPrice returns stable * BasisPoints / asset, the instantaneous price.
func (p *Pool) SpotPrice() (uint64, error) {
	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return 0, ErrPoolEmpty
	}
	price, err := fpmath.MulDiv(p.StableReserve, fpmath.BasisPoints, p.AssetReserve)
	if err != nil {
		return 0, ErrPriceTooHigh
	}
	if price > MaxPrice {
		return 0, ErrPriceTooHigh
	}
	return price, nil
}

// K returns the 128-bit constant product of the reserves.
func (p *Pool) K() fpmath.Uint128 {
	return fpmath.Mul64(p.AssetReserve, p.StableReserve)
}

// observe writes the current pre-change spot price into the oracle.
func (p *Pool) observe(nowMS uint64) error {
	price, err := p.SpotPrice()
	if err != nil {
		return err
	}
	return p.Oracle.WriteObservation(nowMS, price)
}

// quote computes the gross constant-product output for amountIn against the
// given reserve pair, widening through 128 bits.
func quote(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	denom, err := fpmath.CheckedAdd(reserveIn, amountIn)
	if err != nil {
		return 0, ErrOverflow
	}
	out, err := fpmath.MulDiv(amountIn, reserveOut, denom)
	if err != nil {
		return 0, ErrOverflow
	}
	return out, nil
}

// splitFee divides a total fee into the LP share (stays in the pool) and the
// protocol share (leaves the reserves).
func splitFee(total uint64) (lp, protocol uint64) {
	protocol = fpmath.FeeAmount(total, ProtocolFeeShareBps)
	return total - protocol, protocol
}

// SwapAssetToStable sells outcome tokens into the pool. The fee is taken on
// the output (stable) leg. The oracle observation uses the pre-trade price so
// a trade never contaminates its own observation's weight.
func (p *Pool) SwapAssetToStable(amountIn, minAmountOut, nowMS uint64) (*SwapResult, error) {
	if amountIn == 0 {
		return nil, ErrZeroAmount
	}
	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return nil, ErrPoolEmpty
	}
	priceBefore, err := p.SpotPrice()
	if err != nil {
		return nil, err
	}

	grossOut, err := quote(amountIn, p.AssetReserve, p.StableReserve)
	if err != nil {
		return nil, err
	}
	if grossOut >= p.StableReserve {
		return nil, ErrInsufficientLiquidity
	}
	feeTotal := fpmath.FeeAmount(grossOut, p.FeeBps)
	_, feeProtocol := splitFee(feeTotal)
	amountOut := grossOut - feeTotal
	if amountOut < minAmountOut {
		return nil, ErrExcessiveSlippage
	}

	if err := p.Oracle.WriteObservation(nowMS, priceBefore); err != nil {
		return nil, err
	}

	newAsset, err := fpmath.CheckedAdd(p.AssetReserve, amountIn)
	if err != nil {
		return nil, ErrOverflow
	}
	// amountOut and the protocol share leave the pool; the LP fee share
	// remains in the stable reserve and grows k.
	p.AssetReserve = newAsset
	p.StableReserve -= amountOut + feeProtocol
	p.ProtocolFeesStable = fpmath.SaturatingAdd(p.ProtocolFeesStable, feeProtocol)

	if _, err := p.SpotPrice(); err != nil {
		return nil, err
	}
	return &SwapResult{
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		FeeTotal:    feeTotal,
		FeeProtocol: feeProtocol,
		PriceBefore: priceBefore,
	}, nil
}

// SwapStableToAsset buys outcome tokens from the pool. The fee is taken on
// the input (stable) leg, keeping fee accounting on the stable side for both
// directions.
func (p *Pool) SwapStableToAsset(amountIn, minAmountOut, nowMS uint64) (*SwapResult, error) {
	if amountIn == 0 {
		return nil, ErrZeroAmount
	}
	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return nil, ErrPoolEmpty
	}
	priceBefore, err := p.SpotPrice()
	if err != nil {
		return nil, err
	}

	feeTotal := fpmath.FeeAmount(amountIn, p.FeeBps)
	feeLP, feeProtocol := splitFee(feeTotal)
	netIn := amountIn - feeTotal

	amountOut, err := quote(netIn, p.StableReserve, p.AssetReserve)
	if err != nil {
		return nil, err
	}
	if amountOut >= p.AssetReserve {
		return nil, ErrInsufficientLiquidity
	}
	if amountOut < minAmountOut {
		return nil, ErrExcessiveSlippage
	}

	if err := p.Oracle.WriteObservation(nowMS, priceBefore); err != nil {
		return nil, err
	}

	newStable, err := fpmath.CheckedAdd(p.StableReserve, netIn+feeLP)
	if err != nil {
		return nil, ErrOverflow
	}
	p.StableReserve = newStable
	p.AssetReserve -= amountOut
	p.ProtocolFeesStable = fpmath.SaturatingAdd(p.ProtocolFeesStable, feeProtocol)

	if _, err := p.SpotPrice(); err != nil {
		return nil, err
	}
	return &SwapResult{
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		FeeTotal:    feeTotal,
		FeeProtocol: feeProtocol,
		PriceBefore: priceBefore,
	}, nil
}

// SimulateSwap quotes a swap without mutating the pool. Used by the RPC
// surface and by activation-time sanity checks.
func (p *Pool) SimulateSwap(amountIn uint64, assetToStable bool) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrZeroAmount
	}
	if p.AssetReserve == 0 || p.StableReserve == 0 {
		return 0, ErrPoolEmpty
	}
	if assetToStable {
		grossOut, err := quote(amountIn, p.AssetReserve, p.StableReserve)
		if err != nil {
			return 0, err
		}
		return grossOut - fpmath.FeeAmount(grossOut, p.FeeBps), nil
	}
	netIn := amountIn - fpmath.FeeAmount(amountIn, p.FeeBps)
	return quote(netIn, p.StableReserve, p.AssetReserve)
}
