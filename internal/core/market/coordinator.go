// Package market ties the proposal queue, the outcome pools, and the subsidy
// escrow into one per-DAO lifecycle: submit, admit, activate, trade,
// finalize. Funds custody and DAO governance stay behind the FeeManager and
// DAOConfig collaborators; this package only moves market state.
package market

import (
	"errors"
	"fmt"

	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/fpmath"
	"github.com/futarchy-labs/futarchyd/internal/core/oracle"
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/core/subsidy"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

var (
	ErrUnknownProposal     = errors.New("market: unknown proposal")
	ErrNotTrading          = errors.New("market: proposal not in trading state")
	ErrTradingNotOver      = errors.New("market: trading period not over")
	ErrBadOutcome          = errors.New("market: outcome index out of range")
	ErrTooFewOutcomes      = errors.New("market: proposal needs at least two outcomes")
	ErrInsufficientFunding = errors.New("market: pool funding below DAO minimum")
	ErrQueueEmpty          = errors.New("market: no proposal ready for activation")
	ErrNoSubsidy           = errors.New("market: proposal carries no subsidy escrow")
	ErrBadParams           = errors.New("market: invalid DAO market parameters")
)

// State is a live proposal's lifecycle stage.
type State uint8

const (
	StateTrading State = iota
	StatePassed
	StateFailed
)

// Proposal is an activated proposal with its conditional market. Pool index 0
// is the baseline ("keep the status quo") outcome every other outcome must
// beat by the pass threshold.
type Proposal struct {
	ID       uint64
	DAOID    uint64
	Proposer [20]byte
	Data     queue.Data
	State    State

	Pools  []*amm.Pool
	Escrow *subsidy.Escrow

	ActivatedAt  uint64
	TradingEndAt uint64

	// Winner and FinalTwaps are set at finalization.
	Winner     uint8
	FinalTwaps []uint64
}

// Coordinator runs one DAO's proposal market entirely in memory. It is the
// embeddable library surface: callers that want the market semantics without
// a ledger (simulations, tools, tests) drive it directly. The daemon does not
// use it; there the same lifecycle runs through the tx transactors against
// staged ledger state.
type Coordinator struct {
	daoID  uint64
	params Params

	clock Clock
	fees  FeeManager
	sink  events.Sink

	queue *queue.ProposalQueue
	book  *queue.ReservationBook
	live  map[uint64]*Proposal
}

// NewCoordinator resolves the DAO's parameters and builds an empty market.
func NewCoordinator(daoID uint64, cfg DAOConfig, clock Clock, fees FeeManager, sink events.Sink) (*Coordinator, error) {
	params, err := cfg.MarketParams(daoID)
	if err != nil {
		return nil, fmt.Errorf("resolving params for dao %d: %w", daoID, err)
	}
	if params.TradingPeriodMS <= params.TwapStartDelayMS {
		return nil, fmt.Errorf("%w: trading period must exceed the twap start delay", ErrBadParams)
	}
	q, err := queue.New(daoID, params.QueueCapacity, params.DAOLiquiditySlots)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Coordinator{
		daoID:  daoID,
		params: params,
		clock:  clock,
		fees:   fees,
		sink:   sink,
		queue:  q,
		book:   queue.NewReservationBook(),
		live:   make(map[uint64]*Proposal),
	}, nil
}

// Queue exposes the resident queue for the read surface.
func (c *Coordinator) Queue() *queue.ProposalQueue { return c.queue }

// Reservation returns the recreation reservation for a proposal id, if any.
func (c *Coordinator) Reservation(proposalID uint64) (*queue.Reservation, bool) {
	return c.book.Get(proposalID)
}

// Proposal returns a live (or finalized) proposal.
func (c *Coordinator) Proposal(proposalID uint64) (*Proposal, bool) {
	p, ok := c.live[proposalID]
	return p, ok
}

// Submit deposits the proposal fee and admits the proposal into the queue.
// A rejection refunds the fee before returning; an eviction refunds the
// displaced resident's fee and leaves it a recreation reservation, all
// within this call.
func (c *Coordinator) Submit(p *queue.QueuedProposal) error {
	if p.Data.OutcomeCount < 2 {
		return ErrTooFewOutcomes
	}
	now := c.clock.Now()
	p.TimestampMS = now

	if err := c.fees.Deposit(p.ProposalID, p.Fee); err != nil {
		return err
	}
	ev, err := c.queue.Insert(p)
	if err != nil {
		c.fees.Refund(p.ProposalID)
		return err
	}
	if ev != nil {
		refunded := c.fees.Refund(ev.ProposalID)
		c.book.Create(&queue.Reservation{
			ParentProposalID: ev.ProposalID,
			ChainDepth:       ev.ChainDepth,
			ParentOutcome:    ev.ParentOutcome,
			OriginalFee:      ev.Fee,
			Proposer:         ev.Proposer,
			ChildPayloads:    ev.Children,
		}, now, c.params.RecreationWindowMS)
		c.sink.Emit(events.ProposalEvicted{
			ProposalID:   ev.ProposalID,
			Reason:       "outbid",
			FeeRefunded:  refunded,
			BondReturned: ev.Bond,
			TimestampMS:  now,
		})
	}
	if t := c.params.HighValueFeeThreshold; t > 0 && p.Fee >= t {
		c.book.Create(&queue.Reservation{
			ParentProposalID: p.ProposalID,
			ChainDepth:       p.ChainDepth,
			ParentOutcome:    p.ParentOutcome,
			OriginalFee:      p.Fee,
			Proposer:         p.Proposer,
			ChildPayloads:    p.Children,
		}, now, c.params.RecreationWindowMS)
	}
	c.sink.Emit(events.ProposalQueued{
		ProposalID:       p.ProposalID,
		DAOID:            p.DAOID,
		Fee:              p.Fee,
		UsesDAOLiquidity: p.UsesDAOLiquidity,
		TimestampMS:      now,
	})
	return nil
}

// BumpFee raises a resident proposal's fee, depositing only the difference.
func (c *Coordinator) BumpFee(proposalID, newFee uint64) error {
	r, ok := c.queue.Get(proposalID)
	if !ok {
		return queue.ErrNotFound
	}
	if newFee <= r.Fee {
		return queue.ErrFeeNotIncreased
	}
	if err := c.fees.Deposit(proposalID, newFee-r.Fee); err != nil {
		return err
	}
	return c.queue.UpdateProposalFee(proposalID, newFee)
}

// EvictStale removes a resident older than the staleness window. The fee is
// slashed to the DAO; a recreation reservation keeps the id re-admittable.
func (c *Coordinator) EvictStale(proposalID uint64) error {
	now := c.clock.Now()
	r, err := c.queue.EvictStale(proposalID, now)
	if err != nil {
		return err
	}
	slashed := c.fees.Slash(proposalID)
	c.book.Create(&queue.Reservation{
		ParentProposalID: r.ProposalID,
		ChainDepth:       r.ChainDepth,
		ParentOutcome:    r.ParentOutcome,
		OriginalFee:      r.Fee,
		Proposer:         r.Proposer,
		ChildPayloads:    r.Children,
	}, now, c.params.RecreationWindowMS)
	c.sink.Emit(events.ProposalEvicted{
		ProposalID:   proposalID,
		Reason:       "stale",
		FeeSlashed:   slashed,
		BondReturned: r.Bond,
		TimestampMS:  now,
	})
	return nil
}

// Recreate re-submits an evicted proposal under its reserved id. The full
// current fee is paid again; the reservation stays open until it expires.
func (c *Coordinator) Recreate(proposalID, fee uint64, usesDAOLiquidity bool, data queue.Data) error {
	res, err := c.book.Redeem(proposalID, fee, c.clock.Now())
	if err != nil {
		return err
	}
	return c.Submit(&queue.QueuedProposal{
		ProposalID:       proposalID,
		DAOID:            c.daoID,
		Fee:              fee,
		UsesDAOLiquidity: usesDAOLiquidity,
		Proposer:         res.Proposer,
		Data:             data,
		ChainDepth:       res.ChainDepth,
		ParentOutcome:    res.ParentOutcome,
		Children:         res.ChildPayloads,
	})
}

// Activate promotes the highest-priority resident into a live conditional
// market: one pool per outcome, each funded with the given amounts, plus an
// optional subsidy escrow. The proposal fee is spent to the DAO here.
func (c *Coordinator) Activate(assetPerPool, stablePerPool, subsidyAmount uint64) (*Proposal, error) {
	if assetPerPool < c.params.MinAssetLiquidity || stablePerPool < c.params.MinStableLiquidity {
		return nil, ErrInsufficientFunding
	}
	top, ok := c.queue.TryActivateNext()
	if !ok {
		return nil, ErrQueueEmpty
	}
	now := c.clock.Now()

	ocfg := oracle.Config{
		InitialPrice: c.params.TwapInitialObservation,
		CapStep:      c.params.TwapCapStep,
		StartDelayMS: c.params.TwapStartDelayMS,
	}
	pools := make([]*amm.Pool, top.Data.OutcomeCount)
	for i := range pools {
		pool, err := amm.New(top.ProposalID, uint8(i), c.params.AMMFeeBps, ocfg, now)
		if err != nil {
			return nil, err
		}
		if _, err := pool.Deposit(assetPerPool, stablePerPool, now); err != nil {
			return nil, fmt.Errorf("funding outcome %d: %w", i, err)
		}
		pools[i] = pool
	}

	var escrow *subsidy.Escrow
	if subsidyAmount > 0 {
		ids := make([]uint64, len(pools))
		for i := range ids {
			ids[i] = uint64(i)
		}
		var err error
		escrow, err = subsidy.New(top.ProposalID, c.daoID, ids, subsidyAmount, c.params.SubsidyCranks, c.params.KeeperFeePerCrank)
		if err != nil {
			return nil, err
		}
	}

	c.fees.Slash(top.ProposalID)

	p := &Proposal{
		ID:           top.ProposalID,
		DAOID:        top.DAOID,
		Proposer:     top.Proposer,
		Data:         top.Data,
		State:        StateTrading,
		Pools:        pools,
		Escrow:       escrow,
		ActivatedAt:  now,
		TradingEndAt: now + c.params.TradingPeriodMS,
	}
	c.live[p.ID] = p

	c.sink.Emit(events.ProposalActivated{
		ProposalID:   p.ID,
		MarketID:     p.ID,
		OutcomeCount: top.Data.OutcomeCount,
		TradingEndAt: p.TradingEndAt,
		TimestampMS:  now,
	})
	return p, nil
}

func (c *Coordinator) tradingPool(proposalID uint64, outcome uint8) (*Proposal, *amm.Pool, error) {
	p, ok := c.live[proposalID]
	if !ok {
		return nil, nil, ErrUnknownProposal
	}
	if p.State != StateTrading {
		return nil, nil, ErrNotTrading
	}
	if int(outcome) >= len(p.Pools) {
		return nil, nil, ErrBadOutcome
	}
	return p, p.Pools[outcome], nil
}

// Swap trades against one outcome pool of a live proposal.
func (c *Coordinator) Swap(proposalID uint64, outcome uint8, assetToStable bool, amountIn, minOut uint64) (*amm.SwapResult, error) {
	_, pool, err := c.tradingPool(proposalID, outcome)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()

	var res *amm.SwapResult
	if assetToStable {
		res, err = pool.SwapAssetToStable(amountIn, minOut, now)
	} else {
		res, err = pool.SwapStableToAsset(amountIn, minOut, now)
	}
	if err != nil {
		return nil, err
	}
	c.sink.Emit(events.Swap{
		MarketID:      proposalID,
		OutcomeIdx:    outcome,
		AssetToStable: assetToStable,
		AmountIn:      res.AmountIn,
		AmountOut:     res.AmountOut,
		FeeTotal:      res.FeeTotal,
		FeeProtocol:   res.FeeProtocol,
		TimestampMS:   now,
	})
	return res, nil
}

// AddLiquidity deposits into one outcome pool of a live proposal.
func (c *Coordinator) AddLiquidity(proposalID uint64, outcome uint8, assetIn, stableIn uint64) (*amm.LiquidityResult, error) {
	_, pool, err := c.tradingPool(proposalID, outcome)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	res, err := pool.Deposit(assetIn, stableIn, now)
	if err != nil {
		return nil, err
	}
	c.sink.Emit(events.LiquidityAdded{
		MarketID:     proposalID,
		OutcomeIdx:   outcome,
		AssetAmount:  res.AssetAmount,
		StableAmount: res.StableAmount,
		LPAmount:     res.LPAmount,
		TimestampMS:  now,
	})
	return res, nil
}

// RemoveLiquidity withdraws from one outcome pool of a live proposal.
func (c *Coordinator) RemoveLiquidity(proposalID uint64, outcome uint8, lpAmount uint64) (*amm.LiquidityResult, error) {
	_, pool, err := c.tradingPool(proposalID, outcome)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	res, err := pool.Withdraw(lpAmount, now)
	if err != nil {
		return nil, err
	}
	c.sink.Emit(events.LiquidityRemoved{
		MarketID:     proposalID,
		OutcomeIdx:   outcome,
		AssetAmount:  res.AssetAmount,
		StableAmount: res.StableAmount,
		LPAmount:     res.LPAmount,
		TimestampMS:  now,
	})
	return res, nil
}

// CrankSubsidy releases one escrow installment into every outcome pool.
func (c *Coordinator) CrankSubsidy(proposalID uint64) (*subsidy.CrankResult, error) {
	p, ok := c.live[proposalID]
	if !ok {
		return nil, ErrUnknownProposal
	}
	if p.State != StateTrading {
		return nil, ErrNotTrading
	}
	if p.Escrow == nil {
		return nil, ErrNoSubsidy
	}
	now := c.clock.Now()
	res, err := p.Escrow.Crank(now)
	if err != nil {
		return nil, err
	}
	for _, pool := range p.Pools {
		if err := pool.AddSubsidy(res.PerPoolAmount); err != nil {
			return nil, err
		}
	}
	c.sink.Emit(events.SubsidyCranked{
		ProposalID:    proposalID,
		PerPoolAmount: res.PerPoolAmount,
		KeeperFee:     res.KeeperFee,
		CranksLeft:    res.CranksLeft,
		TimestampMS:   now,
	})
	return res, nil
}

// Finalize closes trading: a final observation is written to every oracle at
// the current spot price, the outcome TWAPs are compared, and the winner is
// the best outcome beating the baseline by the pass threshold. The winning
// pool is emptied and any subsidy remainder is returned.
func (c *Coordinator) Finalize(proposalID uint64) (*Proposal, error) {
	p, ok := c.live[proposalID]
	if !ok {
		return nil, ErrUnknownProposal
	}
	if p.State != StateTrading {
		return nil, ErrNotTrading
	}
	now := c.clock.Now()
	if now < p.TradingEndAt {
		return nil, ErrTradingNotOver
	}

	twaps := make([]uint64, len(p.Pools))
	for i, pool := range p.Pools {
		spot, err := pool.SpotPrice()
		if err != nil {
			return nil, fmt.Errorf("outcome %d: %w", i, err)
		}
		if err := pool.Oracle.WriteObservation(now, spot); err != nil {
			return nil, fmt.Errorf("outcome %d: %w", i, err)
		}
		twap, err := pool.Oracle.TWAP(now)
		if err != nil {
			return nil, fmt.Errorf("outcome %d: %w", i, err)
		}
		twaps[i] = twap
	}

	winner := SelectWinner(twaps, c.params.PassThresholdBps)

	p.State = StateFailed
	if winner != 0 {
		p.State = StatePassed
	}
	p.Winner = winner
	p.FinalTwaps = twaps
	p.Pools[winner].Empty()

	if p.Escrow != nil {
		remainder := p.Escrow.Finalize()
		c.sink.Emit(events.SubsidyFinalized{
			ProposalID:  proposalID,
			Remainder:   remainder,
			TimestampMS: now,
		})
	}

	c.sink.Emit(events.ProposalFinalized{
		ProposalID:  proposalID,
		Winner:      winner,
		Passed:      p.State == StatePassed,
		Twaps:       twaps,
		TimestampMS: now,
	})
	return p, nil
}

// SelectWinner picks the highest-TWAP outcome that beats the baseline
// (outcome 0) by thresholdBps. Outcome 0 wins when nothing clears the bar.
func SelectWinner(twaps []uint64, thresholdBps uint64) uint8 {
	winner := uint8(0)
	best := uint64(0)
	bar := fpmath.Mul64(twaps[0], fpmath.FeeScale+thresholdBps)
	for i := 1; i < len(twaps); i++ {
		scaled := fpmath.Mul64(twaps[i], fpmath.FeeScale)
		if scaled.Cmp(bar) > 0 && twaps[i] > best {
			winner = uint8(i)
			best = twaps[i]
		}
	}
	return winner
}
