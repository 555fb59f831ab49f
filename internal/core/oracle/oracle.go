// Package oracle implements the crankless time-weighted-average-price oracle
// attached to every outcome pool. The oracle updates opportunistically on
// every pool mutation rather than via a separate crank transaction: the pool
// writes an observation before each state change, and governance reads the
// TWAP synchronously in the same unit of work.
//
// Manipulation defense: raw observed prices are never accumulated directly.
// Each observation is capped relative to the previous window's realized TWAP
// so that a single trade, however large, can move the accumulator anchor by
// at most CapStep per window.
package oracle

import (
	"errors"

	"github.com/futarchy-labs/futarchyd/internal/core/fpmath"
)

const (
	// WindowDurationMS is the TWAP window length. Window boundaries advance
	// in exact multiples of this.
	WindowDurationMS uint64 = 60_000

	// MaxStartDelayMS bounds TwapStartDelay below one week.
	MaxStartDelayMS uint64 = 7 * 24 * 60 * 60 * 1000
)

var (
	// ErrTimestampRegression indicates an observation older than the last write.
	ErrTimestampRegression = errors.New("oracle: timestamp regression")

	// ErrStaleTwap indicates a TWAP read not preceded by a write at the same
	// timestamp. The oracle never extrapolates forward.
	ErrStaleTwap = errors.New("oracle: stale TWAP read")

	// ErrNotStarted indicates a TWAP read before any post-delay observation.
	ErrNotStarted = errors.New("oracle: accumulation not started")

	// ErrBadConfig indicates an invalid cap step or start delay.
	ErrBadConfig = errors.New("oracle: invalid configuration")
)

// Oracle is the per-pool TWAP accumulator. One oracle is exclusively owned by
// exactly one liquidity pool and lives as long as the pool does.
type Oracle struct {
	// LastPrice is the capped price of the most recent observation. Raw
	// prices are never stored.
	LastPrice uint64

	// LastTimestamp is the timestamp (ms) of the most recent accepted write.
	// It never regresses.
	LastTimestamp uint64

	// TotalCumulativePrice integrates capped price x elapsed ms since the
	// delay threshold. Monotonically non-decreasing.
	TotalCumulativePrice fpmath.Uint256

	// LastWindowEndCumulativePrice snapshots TotalCumulativePrice at the most
	// recently closed window boundary.
	LastWindowEndCumulativePrice fpmath.Uint256

	// LastWindowEnd is the timestamp of the most recently closed window
	// boundary. Advances in multiples of WindowDurationMS.
	LastWindowEnd uint64

	// LastWindowTwap is the realized TWAP of the last closed window; the
	// anchor that observation capping is measured against.
	LastWindowTwap uint64

	// TwapStartDelay delays accumulation after MarketStartTime, so the
	// market has time to converge before its prices count.
	TwapStartDelay uint64

	// TwapCapStep is the maximum absolute price move one window admits.
	TwapCapStep uint64

	// MarketStartTime is the pool creation timestamp (ms).
	MarketStartTime uint64

	// TwapInitializationPrice seeds LastWindowTwap before the first window
	// closes.
	TwapInitializationPrice uint64

	started bool
}

// Config carries the oracle parameters validated by the DAO layer.
type Config struct {
	InitialPrice uint64
	CapStep      uint64
	StartDelayMS uint64
}

// New creates an oracle for a pool created at startTimeMS.
func New(cfg Config, startTimeMS uint64) (*Oracle, error) {
	if cfg.CapStep == 0 || cfg.StartDelayMS >= MaxStartDelayMS {
		return nil, ErrBadConfig
	}
	return &Oracle{
		LastPrice:               cfg.InitialPrice,
		LastWindowTwap:          cfg.InitialPrice,
		TwapInitializationPrice: cfg.InitialPrice,
		TwapCapStep:             cfg.CapStep,
		TwapStartDelay:          cfg.StartDelayMS,
		MarketStartTime:         startTimeMS,
	}, nil
}

// accumulationStart is the timestamp accumulation begins at.
func (o *Oracle) accumulationStart() uint64 {
	return fpmath.SaturatingAdd(o.MarketStartTime, o.TwapStartDelay)
}

// Started reports whether a post-delay observation has been recorded.
func (o *Oracle) Started() bool {
	return o.started
}

// MarkStarted restores the started flag when rehydrating a persisted oracle.
func (o *Oracle) MarkStarted() {
	o.started = true
}

// cappedPrice clamps price against the window anchor. The allowed move is
// CapStep*(windowsCrossed+1), additive and saturating, so a long idle gap
// still only admits one step per elapsed window.
func (o *Oracle) cappedPrice(price uint64, windowsCrossed uint64) uint64 {
	steps := fpmath.SaturatingAdd(windowsCrossed, 1)
	maxMove, err := fpmath.CheckedMul(o.TwapCapStep, steps)
	if err != nil {
		maxMove = fpmath.MaxUint64
	}
	anchor := o.LastWindowTwap
	if price > anchor {
		return min(price, fpmath.SaturatingAdd(anchor, maxMove))
	}
	return max(price, fpmath.SaturatingSub(anchor, maxMove))
}

// WriteObservation records a price observation at timestampMS. It is called
// before every pool state change with the pre-change spot price. Writes
// before the start delay are no-ops; a zero elapsed interval is a no-op;
// regressed timestamps abort.
func (o *Oracle) WriteObservation(timestampMS, price uint64) error {
	start := o.accumulationStart()
	if timestampMS < start {
		return nil
	}

	if !o.started {
		// First post-delay observation: snap the clock to the threshold so
		// the pre-delay interval never enters the accumulator.
		o.started = true
		o.LastTimestamp = start
		o.LastWindowEnd = start
	}

	if timestampMS < o.LastTimestamp {
		return ErrTimestampRegression
	}
	if timestampMS == o.LastTimestamp {
		// Duplicate-timestamp write; also guards zero-length accumulation.
		return nil
	}

	windowsCrossed := (timestampMS - o.LastWindowEnd) / WindowDurationMS
	capped := o.cappedPrice(price, windowsCrossed)

	// Accumulate window by window so each boundary snapshots its realized
	// TWAP before the remainder continues at the same capped price.
	for o.LastWindowEnd+WindowDurationMS <= timestampMS {
		boundary := o.LastWindowEnd + WindowDurationMS
		if err := o.accumulate(capped, boundary-o.LastTimestamp); err != nil {
			return err
		}
		o.LastTimestamp = boundary

		windowCum, err := o.TotalCumulativePrice.Sub(o.LastWindowEndCumulativePrice)
		if err != nil {
			return err
		}
		twap256, _ := windowCum.Div64(WindowDurationMS)
		twap, err := twap256.To64()
		if err != nil {
			return err
		}
		o.LastWindowTwap = twap
		o.LastWindowEnd = boundary
		o.LastWindowEndCumulativePrice = o.TotalCumulativePrice
	}

	if timestampMS > o.LastTimestamp {
		if err := o.accumulate(capped, timestampMS-o.LastTimestamp); err != nil {
			return err
		}
		o.LastTimestamp = timestampMS
	}

	o.LastPrice = capped
	return nil
}

// accumulate adds capped price x elapsed ms into the running register.
func (o *Oracle) accumulate(price, elapsedMS uint64) error {
	sum, err := o.TotalCumulativePrice.AddU128(fpmath.Mul64(price, elapsedMS))
	if err != nil {
		return err
	}
	o.TotalCumulativePrice = sum
	return nil
}

// TWAP returns the time-weighted average price across the full accumulation
// period. It must be read in the same timestamp as the most recent write;
// the oracle refuses to extrapolate a stale accumulator forward.
func (o *Oracle) TWAP(nowMS uint64) (uint64, error) {
	if !o.started {
		return 0, ErrNotStarted
	}
	if nowMS != o.LastTimestamp {
		return 0, ErrStaleTwap
	}
	period := o.LastTimestamp - o.accumulationStart()
	if period == 0 {
		return 0, ErrNotStarted
	}
	q, _ := o.TotalCumulativePrice.Div64(period)
	return q.To64()
}
