package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

type fakeClock struct{ now uint64 }

func (c *fakeClock) Now() uint64 { return c.now }

type fakeFees struct {
	held    map[uint64]uint64
	refunds map[uint64]uint64
	slashes map[uint64]uint64
}

func newFakeFees() *fakeFees {
	return &fakeFees{
		held:    make(map[uint64]uint64),
		refunds: make(map[uint64]uint64),
		slashes: make(map[uint64]uint64),
	}
}

func (f *fakeFees) Deposit(id, amount uint64) error {
	f.held[id] += amount
	return nil
}

func (f *fakeFees) Refund(id uint64) uint64 {
	a := f.held[id]
	delete(f.held, id)
	f.refunds[id] += a
	return a
}

func (f *fakeFees) Slash(id uint64) uint64 {
	a := f.held[id]
	delete(f.held, id)
	f.slashes[id] += a
	return a
}

type fixedConfig Params

func (c fixedConfig) MarketParams(uint64) (Params, error) { return Params(c), nil }

type captureSink struct{ evs []events.Event }

func (s *captureSink) Emit(ev events.Event) { s.evs = append(s.evs, ev) }

func (s *captureSink) ofType(t events.Type) []events.Event {
	var out []events.Event
	for _, ev := range s.evs {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

func testParams() Params {
	return Params{
		QueueCapacity:          4,
		DAOLiquiditySlots:      1,
		AMMFeeBps:              30,
		TwapStartDelayMS:       60_000,
		TwapCapStep:            1_000_000_000_000,
		TwapInitialObservation: 1_000_000_000_000,
		PassThresholdBps:       300,
		TradingPeriodMS:        300_000,
		MinAssetLiquidity:      100_000,
		MinStableLiquidity:     100_000,
		SubsidyCranks:          2,
	}
}

type fixture struct {
	c     *Coordinator
	clock *fakeClock
	fees  *fakeFees
	sink  *captureSink
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	f := &fixture{clock: &fakeClock{}, fees: newFakeFees(), sink: &captureSink{}}
	c, err := NewCoordinator(1, fixedConfig(params), f.clock, f.fees, f.sink)
	require.NoError(t, err)
	f.c = c
	return f
}

func pending(id, fee uint64, dao bool) *queue.QueuedProposal {
	var proposer [20]byte
	proposer[0] = byte(id)
	return &queue.QueuedProposal{
		ProposalID:       id,
		DAOID:            1,
		Fee:              fee,
		UsesDAOLiquidity: dao,
		Proposer:         proposer,
		Data:             queue.Data{Title: "raise the fee", OutcomeCount: 2},
	}
}

func TestNewCoordinatorRejectsShortTradingPeriod(t *testing.T) {
	params := testParams()
	params.TradingPeriodMS = params.TwapStartDelayMS
	_, err := NewCoordinator(1, fixedConfig(params), &fakeClock{}, newFakeFees(), nil)
	assert.ErrorIs(t, err, ErrBadParams)
}

func TestSubmitHoldsFee(t *testing.T) {
	f := newFixture(t, testParams())

	require.NoError(t, f.c.Submit(pending(1, 100, false)))
	assert.Equal(t, uint64(100), f.fees.held[1])
	assert.Len(t, f.sink.ofType(events.TypeProposalQueued), 1)
}

func TestSubmitRejectionRefundsInSameCall(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newFixture(t, params)

	require.NoError(t, f.c.Submit(pending(1, 100, false)))
	err := f.c.Submit(pending(2, 50, false))
	assert.ErrorIs(t, err, queue.ErrFeeTooLow)
	assert.Equal(t, uint64(50), f.fees.refunds[2])
	assert.Empty(t, f.fees.held[2])
}

func TestSubmitEvictionRefundsAndReserves(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newFixture(t, params)

	require.NoError(t, f.c.Submit(pending(1, 100, false)))
	require.NoError(t, f.c.Submit(pending(2, 200, false)))

	assert.Equal(t, uint64(100), f.fees.refunds[1])

	res, ok := f.c.Reservation(1)
	require.True(t, ok)
	assert.Equal(t, uint64(100), res.OriginalFee)

	evs := f.sink.ofType(events.TypeProposalEvicted)
	require.Len(t, evs, 1)
	assert.Equal(t, "outbid", evs[0].(events.ProposalEvicted).Reason)
}

func TestSubmitEvictionKeepsChainAndBond(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newFixture(t, params)

	victim := pending(1, 100, false)
	victim.Bond = 55
	victim.ChainDepth = 1
	victim.ParentOutcome = 1
	victim.Children = []queue.Data{{Title: "child", OutcomeCount: 2}}
	require.NoError(t, f.c.Submit(victim))
	require.NoError(t, f.c.Submit(pending(2, 200, false)))

	res, ok := f.c.Reservation(1)
	require.True(t, ok)
	assert.Equal(t, uint8(1), res.ChainDepth)
	assert.Equal(t, uint8(1), res.ParentOutcome)
	require.Len(t, res.ChildPayloads, 1)

	evs := f.sink.ofType(events.TypeProposalEvicted)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(55), evs[0].(events.ProposalEvicted).BondReturned)

	// Recreation restores the chain metadata from the reservation.
	require.NoError(t, f.c.Recreate(1, 250, false, queue.Data{Title: "again", OutcomeCount: 2}))
	p, ok := f.c.Queue().Get(1)
	require.True(t, ok)
	assert.Equal(t, uint8(1), p.ChainDepth)
	assert.Len(t, p.Children, 1)
}

func TestSubmitHighValueFeeReserves(t *testing.T) {
	params := testParams()
	params.HighValueFeeThreshold = 150
	f := newFixture(t, params)

	require.NoError(t, f.c.Submit(pending(1, 100, false)))
	_, ok := f.c.Reservation(1)
	assert.False(t, ok, "below the threshold no reservation is granted")

	require.NoError(t, f.c.Submit(pending(2, 150, false)))
	res, ok := f.c.Reservation(2)
	require.True(t, ok)
	assert.Equal(t, uint64(150), res.OriginalFee)
}

func TestSubmitRejectsSingleOutcome(t *testing.T) {
	f := newFixture(t, testParams())
	p := pending(1, 100, false)
	p.Data.OutcomeCount = 1
	assert.ErrorIs(t, f.c.Submit(p), ErrTooFewOutcomes)
}

func TestBumpFeeDepositsOnlyDelta(t *testing.T) {
	f := newFixture(t, testParams())
	require.NoError(t, f.c.Submit(pending(1, 100, false)))

	require.NoError(t, f.c.BumpFee(1, 250))
	assert.Equal(t, uint64(250), f.fees.held[1])

	assert.ErrorIs(t, f.c.BumpFee(1, 250), queue.ErrFeeNotIncreased)
	assert.ErrorIs(t, f.c.BumpFee(9, 500), queue.ErrNotFound)
}

func TestEvictStaleSlashesAndReserves(t *testing.T) {
	f := newFixture(t, testParams())
	require.NoError(t, f.c.Submit(pending(1, 100, false)))

	f.clock.now = queue.StaleAfterMS - 1
	assert.ErrorIs(t, f.c.EvictStale(1), queue.ErrNotStale)

	f.clock.now = queue.StaleAfterMS
	require.NoError(t, f.c.EvictStale(1))
	assert.Equal(t, uint64(100), f.fees.slashes[1])

	_, ok := f.c.Reservation(1)
	assert.True(t, ok)
}

func TestRecreateRequiresFullFee(t *testing.T) {
	f := newFixture(t, testParams())
	require.NoError(t, f.c.Submit(pending(1, 100, false)))
	f.clock.now = queue.StaleAfterMS
	require.NoError(t, f.c.EvictStale(1))

	err := f.c.Recreate(1, 99, false, queue.Data{Title: "again", OutcomeCount: 2})
	assert.ErrorIs(t, err, queue.ErrInsufficientFee)

	require.NoError(t, f.c.Recreate(1, 100, false, queue.Data{Title: "again", OutcomeCount: 2}))
	_, ok := f.c.Queue().Get(1)
	assert.True(t, ok)
}

func activated(t *testing.T, f *fixture, subsidyAmount uint64) *Proposal {
	t.Helper()
	require.NoError(t, f.c.Submit(pending(1, 100, false)))
	p, err := f.c.Activate(1_000_000, 1_000_000, subsidyAmount)
	require.NoError(t, err)
	return p
}

func TestActivateBuildsOutcomePools(t *testing.T) {
	f := newFixture(t, testParams())
	p := activated(t, f, 0)

	assert.Equal(t, StateTrading, p.State)
	require.Len(t, p.Pools, 2)
	for _, pool := range p.Pools {
		assert.Equal(t, uint64(1_000_000), pool.AssetReserve)
		assert.Equal(t, uint64(1_000_000), pool.StableReserve)
	}
	assert.Equal(t, f.clock.now+testParams().TradingPeriodMS, p.TradingEndAt)

	// The fee is spent to the DAO on activation.
	assert.Equal(t, uint64(100), f.fees.slashes[1])
	assert.Len(t, f.sink.ofType(events.TypeProposalActivated), 1)
}

func TestActivateEnforcesFundingFloor(t *testing.T) {
	f := newFixture(t, testParams())
	require.NoError(t, f.c.Submit(pending(1, 100, false)))

	_, err := f.c.Activate(99_999, 1_000_000, 0)
	assert.ErrorIs(t, err, ErrInsufficientFunding)

	_, ok := f.c.Queue().Get(1)
	assert.True(t, ok, "rejected activation must leave the proposal queued")
}

func TestActivateEmptyQueue(t *testing.T) {
	f := newFixture(t, testParams())
	_, err := f.c.Activate(1_000_000, 1_000_000, 0)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestSwapRouting(t *testing.T) {
	f := newFixture(t, testParams())
	activated(t, f, 0)
	f.clock.now = 120_000

	res, err := f.c.Swap(1, 1, true, 10_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(9871), res.AmountOut)

	_, err = f.c.Swap(9, 0, true, 10_000, 0)
	assert.ErrorIs(t, err, ErrUnknownProposal)
	_, err = f.c.Swap(1, 5, true, 10_000, 0)
	assert.ErrorIs(t, err, ErrBadOutcome)

	evs := f.sink.ofType(events.TypeSwap)
	require.Len(t, evs, 1)
	assert.Equal(t, uint8(1), evs[0].(events.Swap).OutcomeIdx)
}

func TestLiquidityRouting(t *testing.T) {
	f := newFixture(t, testParams())
	activated(t, f, 0)
	f.clock.now = 120_000

	add, err := f.c.AddLiquidity(1, 0, 100_000, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), add.LPAmount)

	rem, err := f.c.RemoveLiquidity(1, 0, 50_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), rem.AssetAmount)

	assert.Len(t, f.sink.ofType(events.TypeLiquidityAdded), 1)
	assert.Len(t, f.sink.ofType(events.TypeLiquidityRemoved), 1)
}

func TestCrankSubsidyFeedsEveryPool(t *testing.T) {
	f := newFixture(t, testParams())
	p := activated(t, f, 1_000_000)
	f.clock.now = 600_000

	res, err := f.c.CrankSubsidy(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000), res.PerPoolAmount) // 1M / 2 cranks / 2 pools
	for _, pool := range p.Pools {
		assert.Equal(t, uint64(250_000), pool.PendingLPReward)
	}

	t.Run("NoEscrow", func(t *testing.T) {
		f2 := newFixture(t, testParams())
		activated(t, f2, 0)
		_, err := f2.c.CrankSubsidy(1)
		assert.ErrorIs(t, err, ErrNoSubsidy)
	})
}

func TestFinalizeBeforeTradingEnd(t *testing.T) {
	f := newFixture(t, testParams())
	activated(t, f, 0)
	f.clock.now = 299_999

	_, err := f.c.Finalize(1)
	assert.ErrorIs(t, err, ErrTradingNotOver)
}

// With no trades every outcome carries the same TWAP, so nothing beats the
// baseline and the proposal fails.
func TestFinalizeNoTradesFails(t *testing.T) {
	f := newFixture(t, testParams())
	activated(t, f, 0)
	f.clock.now = 300_000

	p, err := f.c.Finalize(1)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, p.State)
	assert.Equal(t, uint8(0), p.Winner)
	assert.Equal(t, p.FinalTwaps[0], p.FinalTwaps[1])

	_, err = f.c.Finalize(1)
	assert.ErrorIs(t, err, ErrNotTrading)
}

func TestFinalizePassWhenOutcomeBeatsBaseline(t *testing.T) {
	f := newFixture(t, testParams())
	p := activated(t, f, 500_000)

	// Bid outcome 1 up early so its TWAP clears the 3% threshold.
	f.clock.now = 120_000
	_, err := f.c.CrankSubsidy(1)
	require.NoError(t, err)
	_, err = f.c.Swap(1, 1, false, 500_000, 0)
	require.NoError(t, err)

	f.clock.now = 300_000
	got, err := f.c.Finalize(1)
	require.NoError(t, err)
	assert.Equal(t, StatePassed, got.State)
	assert.Equal(t, uint8(1), got.Winner)
	assert.Greater(t, got.FinalTwaps[1], got.FinalTwaps[0])

	// The winning pool is drained; the baseline pool keeps its reserves.
	assert.Zero(t, p.Pools[1].AssetReserve)
	assert.NotZero(t, p.Pools[0].AssetReserve)

	// One of two cranks ran, so half the subsidy comes back at finalization.
	evs := f.sink.ofType(events.TypeSubsidyFinalized)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(250_000), evs[0].(events.SubsidyFinalized).Remainder)

	fin := f.sink.ofType(events.TypeProposalFinalized)
	require.Len(t, fin, 1)
	assert.True(t, fin[0].(events.ProposalFinalized).Passed)
}

func TestSelectWinner(t *testing.T) {
	cases := []struct {
		name      string
		twaps     []uint64
		threshold uint64
		want      uint8
	}{
		{"AllEqual", []uint64{100, 100, 100}, 0, 0},
		{"ClearWinner", []uint64{100, 200, 150}, 0, 1},
		{"ThresholdBlocks", []uint64{100, 102}, 300, 0},
		{"ThresholdCleared", []uint64{100, 104}, 300, 1},
		{"ExactBarLoses", []uint64{10_000, 10_300}, 300, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SelectWinner(tc.twaps, tc.threshold))
		})
	}
}
