// Package subsidy implements the liquidity-subsidy escrow embedded in a live
// proposal. The escrow drips its balance into the proposal's outcome pools
// over a fixed number of keeper cranks; because it is owned by the proposal
// object it cannot outlive the proposal or be orphaned from it.
package subsidy

import "errors"

const (
	// MinCrankIntervalMS rate-limits cranks to one per five minutes.
	MinCrankIntervalMS uint64 = 5 * 60 * 1000
)

var (
	ErrCrankTooSoon      = errors.New("subsidy: crank before minimum interval")
	ErrNoCranksRemaining = errors.New("subsidy: all cranks completed")
	ErrNoPools           = errors.New("subsidy: no pools on allow-list")
	ErrZeroSubsidy       = errors.New("subsidy: zero subsidy amount")
	ErrExhausted         = errors.New("subsidy: balance exhausted")
)

// Escrow drips a subsidy into allow-listed outcome pools.
type Escrow struct {
	ProposalID uint64
	DAOID      uint64

	// AMMIDs is the allow-list of pool ids the subsidy drips into.
	AMMIDs []uint64

	SubsidyBalance uint64
	TotalSubsidy   uint64

	CranksCompleted uint32
	TotalCranks     uint32

	// KeeperFeePerCrank compensates whoever turns the crank.
	KeeperFeePerCrank uint64

	LastCrankTime uint64
}

// CrankResult reports one completed crank. PerPoolAmount is credited to each
// allow-listed pool as pending LP reward; the caller pays KeeperFee to the
// cranker in the same call.
type CrankResult struct {
	PerPoolAmount uint64
	KeeperFee     uint64
	CranksLeft    uint32
}

// New creates an escrow funded with amount, to be dripped over totalCranks.
func New(proposalID, daoID uint64, ammIDs []uint64, amount uint64, totalCranks uint32, keeperFeePerCrank uint64) (*Escrow, error) {
	if amount == 0 || totalCranks == 0 {
		return nil, ErrZeroSubsidy
	}
	if len(ammIDs) == 0 {
		return nil, ErrNoPools
	}
	ids := make([]uint64, len(ammIDs))
	copy(ids, ammIDs)
	return &Escrow{
		ProposalID:        proposalID,
		DAOID:             daoID,
		AMMIDs:            ids,
		SubsidyBalance:    amount,
		TotalSubsidy:      amount,
		TotalCranks:       totalCranks,
		KeeperFeePerCrank: keeperFeePerCrank,
	}, nil
}

// Crank releases one installment: remaining balance divided by remaining
// cranks, split evenly across the allow-listed pools. Strictly rate-limited.
func (e *Escrow) Crank(nowMS uint64) (*CrankResult, error) {
	if e.CranksCompleted >= e.TotalCranks {
		return nil, ErrNoCranksRemaining
	}
	if e.LastCrankTime != 0 && nowMS < e.LastCrankTime+MinCrankIntervalMS {
		return nil, ErrCrankTooSoon
	}
	if e.SubsidyBalance == 0 {
		return nil, ErrExhausted
	}

	keeperFee := e.KeeperFeePerCrank
	if keeperFee > e.SubsidyBalance {
		keeperFee = e.SubsidyBalance
	}
	available := e.SubsidyBalance - keeperFee

	cranksLeft := uint64(e.TotalCranks - e.CranksCompleted)
	installment := available / cranksLeft
	perPool := installment / uint64(len(e.AMMIDs))

	e.SubsidyBalance -= keeperFee + perPool*uint64(len(e.AMMIDs))
	e.CranksCompleted++
	e.LastCrankTime = nowMS

	return &CrankResult{
		PerPoolAmount: perPool,
		KeeperFee:     keeperFee,
		CranksLeft:    e.TotalCranks - e.CranksCompleted,
	}, nil
}

// Allowed reports whether a pool id is on the allow-list.
func (e *Escrow) Allowed(ammID uint64) bool {
	for _, id := range e.AMMIDs {
		if id == ammID {
			return true
		}
	}
	return false
}

// Finalize sweeps the undistributed remainder back to the caller when the
// owning proposal is finalized.
func (e *Escrow) Finalize() uint64 {
	out := e.SubsidyBalance
	e.SubsidyBalance = 0
	e.CranksCompleted = e.TotalCranks
	return out
}
