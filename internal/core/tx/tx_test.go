package tx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

type fakeClock struct{ now uint64 }

func (c *fakeClock) Now() uint64 { return c.now }

type fakeFees struct {
	held    map[uint64]uint64
	refunds map[uint64]uint64
	slashes map[uint64]uint64

	depositErr error
}

func newFakeFees() *fakeFees {
	return &fakeFees{
		held:    make(map[uint64]uint64),
		refunds: make(map[uint64]uint64),
		slashes: make(map[uint64]uint64),
	}
}

func (f *fakeFees) Deposit(id, amount uint64) error {
	if f.depositErr != nil {
		return f.depositErr
	}
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

func testParams() market.Params {
	return market.Params{
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
		MaxProposalChainDepth:  8,
	}
}

type engineFixture struct {
	engine *Engine
	view   *MemoryView
	clock  *fakeClock
	fees   *fakeFees
	sink   *captureSink
}

func newEngineFixture(params market.Params) *engineFixture {
	f := &engineFixture{
		view:  NewMemoryView(),
		clock: &fakeClock{},
		fees:  newFakeFees(),
		sink:  &captureSink{},
	}
	f.engine = NewEngine(f.view, f.clock, f.fees, f.sink, params)
	return f
}

// apply requires the transaction to land with tesSUCCESS.
func (f *engineFixture) apply(t *testing.T, tx Transaction) {
	t.Helper()
	res := f.engine.Apply(tx)
	require.Equal(t, TesSUCCESS, res.Result, "%s: %s", tx.TxType(), res.Message)
	require.True(t, res.Applied)
}

func submitTx(id, fee uint64, dao bool) *ProposalSubmit {
	var proposer [20]byte
	proposer[0] = byte(id)
	return &ProposalSubmit{
		ProposalID:       id,
		DAOID:            1,
		Fee:              fee,
		UsesDAOLiquidity: dao,
		Proposer:         proposer,
		Title:            "raise the fee",
		OutcomeCount:     2,
	}
}

// readQueue parses the committed queue entry straight from the base view.
func (f *engineFixture) readQueue(t *testing.T) *queue.ProposalQueue {
	t.Helper()
	data, err := f.view.Read(keylet.Queue(1))
	require.NoError(t, err)
	require.NotNil(t, data)
	q, err := state.ParseQueue(data)
	require.NoError(t, err)
	return q
}

func (f *engineFixture) readProposal(t *testing.T, id uint64) *state.ProposalEntry {
	t.Helper()
	data, err := f.view.Read(keylet.Proposal(id))
	require.NoError(t, err)
	require.NotNil(t, data)
	p, err := state.ParseProposal(data)
	require.NoError(t, err)
	return p
}

func (f *engineFixture) readReservation(t *testing.T, id uint64) *queue.Reservation {
	t.Helper()
	data, err := f.view.Read(keylet.Reservation(id))
	require.NoError(t, err)
	require.NotNil(t, data)
	r, err := state.ParseReservation(data)
	require.NoError(t, err)
	return r
}

func TestRegistryKnowsEveryType(t *testing.T) {
	want := []Type{
		TypeProposalSubmit, TypeProposalFeeBump, TypeProposalEvictStale,
		TypeProposalRecreate, TypeProposalChainRecreate, TypeProposalActivate,
		TypeProposalFinalize, TypeMarketSwap, TypeLiquidityDeposit,
		TypeLiquidityWithdraw, TypeSubsidyCrank, TypeProtocolFeeWithdraw,
	}
	for _, typ := range want {
		tx, err := NewTransaction(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, tx.TxType())
	}
	assert.Len(t, RegisteredTypes(), len(want))

	_, err := NewTransaction("NoSuchTransaction")
	assert.Error(t, err)
}

func TestValidateMapsToTemCodes(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		want Result
	}{
		{"MissingProposalID", &ProposalSubmit{Fee: 1, OutcomeCount: 2}, TemINVALID},
		{"ZeroFee", &ProposalSubmit{ProposalID: 1, OutcomeCount: 2}, TemBAD_FEE},
		{"SingleOutcome", &ProposalSubmit{ProposalID: 1, Fee: 1, OutcomeCount: 1}, TemBAD_OUTCOME},
		{"ZeroSwap", &MarketSwap{MarketID: 1}, TemBAD_AMOUNT},
		{"ZeroDeposit", &LiquidityDeposit{MarketID: 1, AssetIn: 5}, TemBAD_AMOUNT},
		{"ZeroWithdraw", &LiquidityWithdraw{MarketID: 1}, TemBAD_AMOUNT},
		{"ZeroActivationFunding", &ProposalActivate{DAOID: 1}, TemBAD_AMOUNT},
	}
	f := newEngineFixture(testParams())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.engine.Apply(tc.tx)
			assert.Equal(t, tc.want, res.Result)
			assert.False(t, res.Applied, "malformed transactions must not apply")
		})
	}
}

func TestSubmitCommitsQueueAndHoldsFee(t *testing.T) {
	f := newEngineFixture(testParams())

	f.apply(t, submitTx(1, 100, false))

	q := f.readQueue(t)
	_, ok := q.Get(1)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), f.fees.held[1])
	assert.Len(t, f.sink.ofType(events.TypeProposalQueued), 1)
}

func TestSubmitRejectionRollsBackAndRefunds(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newEngineFixture(params)

	f.apply(t, submitTx(1, 100, false))
	before, err := f.view.Read(keylet.Queue(1))
	require.NoError(t, err)

	res := f.engine.Apply(submitTx(2, 50, false))
	assert.Equal(t, TecQUEUE_FULL, res.Result)

	// Custody moves only after the staged writes succeed, so a rejected
	// submission never deposits, and the committed queue entry is untouched.
	assert.Empty(t, f.fees.refunds[2])
	assert.Empty(t, f.fees.held[2])
	after, err := f.view.Read(keylet.Queue(1))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSubmitOutbidRefundsAndReserves(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newEngineFixture(params)

	f.apply(t, submitTx(1, 100, false))
	f.apply(t, submitTx(2, 200, false))

	assert.Equal(t, uint64(100), f.fees.refunds[1])

	q := f.readQueue(t)
	_, ok := q.Get(1)
	assert.False(t, ok)
	_, ok = q.Get(2)
	assert.True(t, ok)

	exists, err := f.view.Exists(keylet.Reservation(1))
	require.NoError(t, err)
	assert.True(t, exists)

	evs := f.sink.ofType(events.TypeProposalEvicted)
	require.Len(t, evs, 1)
	assert.Equal(t, "outbid", evs[0].(events.ProposalEvicted).Reason)
}

func TestFeeBumpDepositsOnlyDelta(t *testing.T) {
	f := newEngineFixture(testParams())
	f.apply(t, submitTx(1, 100, false))

	f.apply(t, &ProposalFeeBump{DAOID: 1, ProposalID: 1, NewFee: 250})
	assert.Equal(t, uint64(250), f.fees.held[1])

	res := f.engine.Apply(&ProposalFeeBump{DAOID: 1, ProposalID: 1, NewFee: 250})
	assert.Equal(t, TecFEE_NOT_INCREASED, res.Result)
	assert.Equal(t, uint64(250), f.fees.held[1], "failed bump must not deposit")

	res = f.engine.Apply(&ProposalFeeBump{DAOID: 1, ProposalID: 9, NewFee: 500})
	assert.Equal(t, TecNO_ENTRY, res.Result)
}

func TestEvictStaleSlashesAndReserves(t *testing.T) {
	f := newEngineFixture(testParams())
	f.apply(t, submitTx(1, 100, false))

	f.clock.now = queue.StaleAfterMS - 1
	res := f.engine.Apply(&ProposalEvictStale{DAOID: 1, ProposalID: 1})
	assert.Equal(t, TecTOO_SOON, res.Result)

	f.clock.now = queue.StaleAfterMS
	f.apply(t, &ProposalEvictStale{DAOID: 1, ProposalID: 1})
	assert.Equal(t, uint64(100), f.fees.slashes[1])

	exists, err := f.view.Exists(keylet.Reservation(1))
	require.NoError(t, err)
	assert.True(t, exists)

	evs := f.sink.ofType(events.TypeProposalEvicted)
	require.Len(t, evs, 1)
	assert.Equal(t, "stale", evs[0].(events.ProposalEvicted).Reason)
}

func TestRecreateRequiresFullFeeWithinWindow(t *testing.T) {
	f := newEngineFixture(testParams())
	f.apply(t, submitTx(1, 100, false))
	f.clock.now = queue.StaleAfterMS
	f.apply(t, &ProposalEvictStale{DAOID: 1, ProposalID: 1})

	recreate := &ProposalRecreate{
		DAOID: 1, ProposalID: 1, Fee: 99, Title: "again", OutcomeCount: 2,
	}
	res := f.engine.Apply(recreate)
	assert.Equal(t, TecINSUFFICIENT_FEE, res.Result)

	recreate.Fee = 100
	f.apply(t, recreate)
	_, ok := f.readQueue(t).Get(1)
	assert.True(t, ok)

	t.Run("ExpiredReservation", func(t *testing.T) {
		f := newEngineFixture(testParams())
		f.apply(t, submitTx(1, 100, false))
		f.clock.now = queue.StaleAfterMS
		f.apply(t, &ProposalEvictStale{DAOID: 1, ProposalID: 1})

		f.clock.now += queue.DefaultReservationWindowMS + 1
		res := f.engine.Apply(&ProposalRecreate{
			DAOID: 1, ProposalID: 1, Fee: 100, Title: "again", OutcomeCount: 2,
		})
		assert.Equal(t, TecRESERVATION_EXPIRED, res.Result)
	})

	t.Run("NoReservation", func(t *testing.T) {
		f := newEngineFixture(testParams())
		res := f.engine.Apply(&ProposalRecreate{
			DAOID: 1, ProposalID: 7, Fee: 100, Title: "again", OutcomeCount: 2,
		})
		assert.Equal(t, TecNO_ENTRY, res.Result)
	})
}

func activate(t *testing.T, f *engineFixture, subsidy uint64) {
	t.Helper()
	f.apply(t, submitTx(1, 100, false))
	f.apply(t, &ProposalActivate{
		DAOID:         1,
		AssetPerPool:  1_000_000,
		StablePerPool: 1_000_000,
		SubsidyAmount: subsidy,
	})
}

func TestActivateCreatesPoolsAndProposalEntry(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 0)

	entry := f.readProposal(t, 1)
	assert.Equal(t, state.ProposalStateTrading, entry.State)
	assert.False(t, entry.HasEscrow)
	assert.Equal(t, testParams().TradingPeriodMS, entry.TradingEndAt)

	for outcome := uint8(0); outcome < 2; outcome++ {
		data, err := f.view.Read(keylet.Pool(1, outcome))
		require.NoError(t, err)
		require.NotNil(t, data)
		pool, err := state.ParsePool(data)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), pool.AssetReserve)
		assert.Equal(t, uint64(1_000_000), pool.StableReserve)
	}

	// The activated proposal left the queue and its fee went to the DAO.
	_, ok := f.readQueue(t).Get(1)
	assert.False(t, ok)
	assert.Equal(t, uint64(100), f.fees.slashes[1])
	assert.Len(t, f.sink.ofType(events.TypeProposalActivated), 1)
}

func TestActivateEnforcesFundingFloor(t *testing.T) {
	f := newEngineFixture(testParams())
	f.apply(t, submitTx(1, 100, false))

	res := f.engine.Apply(&ProposalActivate{
		DAOID: 1, AssetPerPool: 99_999, StablePerPool: 1_000_000,
	})
	assert.Equal(t, TecUNFUNDED, res.Result)

	// The rejected activation must leave the proposal queued.
	_, ok := f.readQueue(t).Get(1)
	assert.True(t, ok)
	exists, err := f.view.Exists(keylet.Proposal(1))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestActivateEmptyQueue(t *testing.T) {
	f := newEngineFixture(testParams())
	res := f.engine.Apply(&ProposalActivate{
		DAOID: 1, AssetPerPool: 1_000_000, StablePerPool: 1_000_000,
	})
	assert.Equal(t, TecNO_ENTRY, res.Result)
}

func TestSwapAgainstCommittedPool(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 0)
	f.clock.now = 120_000

	f.apply(t, &MarketSwap{MarketID: 1, Outcome: 1, AssetToStable: true, AmountIn: 10_000})

	evs := f.sink.ofType(events.TypeSwap)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(9871), evs[0].(events.Swap).AmountOut)

	res := f.engine.Apply(&MarketSwap{MarketID: 9, Outcome: 0, AssetToStable: true, AmountIn: 10_000})
	assert.Equal(t, TecNO_ENTRY, res.Result)
	res = f.engine.Apply(&MarketSwap{MarketID: 1, Outcome: 5, AssetToStable: true, AmountIn: 10_000})
	assert.Equal(t, TemBAD_OUTCOME, res.Result)
}

func TestSlippageRollsBackPool(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 0)
	f.clock.now = 120_000

	before, err := f.view.Read(keylet.Pool(1, 0))
	require.NoError(t, err)

	res := f.engine.Apply(&MarketSwap{
		MarketID: 1, Outcome: 0, AssetToStable: true, AmountIn: 10_000, MinOut: 10_000,
	})
	assert.Equal(t, TecSLIPPAGE, res.Result)

	after, err := f.view.Read(keylet.Pool(1, 0))
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed swap must leave the pool entry untouched")
}

func TestLiquidityDepositAndWithdraw(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 0)
	f.clock.now = 120_000

	f.apply(t, &LiquidityDeposit{MarketID: 1, Outcome: 0, AssetIn: 100_000, StableIn: 100_000})
	evs := f.sink.ofType(events.TypeLiquidityAdded)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(100_000), evs[0].(events.LiquidityAdded).LPAmount)

	f.apply(t, &LiquidityWithdraw{MarketID: 1, Outcome: 0, LPAmount: 50_000})
	rem := f.sink.ofType(events.TypeLiquidityRemoved)
	require.Len(t, rem, 1)
	assert.Equal(t, uint64(50_000), rem[0].(events.LiquidityRemoved).AssetAmount)
}

func TestSubsidyCrankFeedsEveryPool(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 1_000_000)
	f.clock.now = 120_000

	f.apply(t, &SubsidyCrank{ProposalID: 1})

	evs := f.sink.ofType(events.TypeSubsidyCranked)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(250_000), evs[0].(events.SubsidyCranked).PerPoolAmount)

	for outcome := uint8(0); outcome < 2; outcome++ {
		data, err := f.view.Read(keylet.Pool(1, outcome))
		require.NoError(t, err)
		pool, err := state.ParsePool(data)
		require.NoError(t, err)
		assert.Equal(t, uint64(250_000), pool.PendingLPReward)
	}

	t.Run("RateLimited", func(t *testing.T) {
		res := f.engine.Apply(&SubsidyCrank{ProposalID: 1})
		assert.Equal(t, TecTOO_SOON, res.Result)
	})

	t.Run("NoEscrow", func(t *testing.T) {
		f2 := newEngineFixture(testParams())
		activate(t, f2, 0)
		res := f2.engine.Apply(&SubsidyCrank{ProposalID: 1})
		assert.Equal(t, TecNO_ENTRY, res.Result)
	})
}

func TestFinalizeBeforeTradingEnd(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 0)
	f.clock.now = 299_999

	res := f.engine.Apply(&ProposalFinalize{ProposalID: 1})
	assert.Equal(t, TecTOO_SOON, res.Result)
}

func TestFinalizeNoTradesFails(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 0)
	f.clock.now = 300_000

	f.apply(t, &ProposalFinalize{ProposalID: 1})

	entry := f.readProposal(t, 1)
	assert.Equal(t, state.ProposalStateFailed, entry.State)
	assert.Equal(t, uint8(0), entry.Winner)
	assert.Equal(t, entry.FinalTwaps[0], entry.FinalTwaps[1])

	res := f.engine.Apply(&ProposalFinalize{ProposalID: 1})
	assert.Equal(t, TecNOT_TRADING, res.Result)
}

// The full lifecycle over one committed view: submit, activate with subsidy,
// crank, bid outcome 1 above the baseline, finalize as passed.
func TestFullLifecyclePasses(t *testing.T) {
	f := newEngineFixture(testParams())
	activate(t, f, 500_000)

	f.clock.now = 120_000
	f.apply(t, &SubsidyCrank{ProposalID: 1})
	f.apply(t, &MarketSwap{MarketID: 1, Outcome: 1, AssetToStable: false, AmountIn: 500_000})

	f.clock.now = 300_000
	f.apply(t, &ProposalFinalize{ProposalID: 1})

	entry := f.readProposal(t, 1)
	assert.Equal(t, state.ProposalStatePassed, entry.State)
	assert.Equal(t, uint8(1), entry.Winner)
	require.Len(t, entry.FinalTwaps, 2)
	assert.Greater(t, entry.FinalTwaps[1], entry.FinalTwaps[0])

	// The winning pool is drained; the baseline pool keeps its reserves.
	data, err := f.view.Read(keylet.Pool(1, 1))
	require.NoError(t, err)
	winning, err := state.ParsePool(data)
	require.NoError(t, err)
	assert.Zero(t, winning.AssetReserve)

	data, err = f.view.Read(keylet.Pool(1, 0))
	require.NoError(t, err)
	baseline, err := state.ParsePool(data)
	require.NoError(t, err)
	assert.NotZero(t, baseline.AssetReserve)

	// One of two cranks ran, so half the subsidy comes back at finalization.
	evs := f.sink.ofType(events.TypeSubsidyFinalized)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(250_000), evs[0].(events.SubsidyFinalized).Remainder)

	fin := f.sink.ofType(events.TypeProposalFinalized)
	require.Len(t, fin, 1)
	assert.True(t, fin[0].(events.ProposalFinalized).Passed)

	// Post-finalization trading is rejected.
	res := f.engine.Apply(&MarketSwap{MarketID: 1, Outcome: 0, AssetToStable: true, AmountIn: 1_000})
	assert.Equal(t, TecNOT_TRADING, res.Result)
}

func TestProtocolFeeWithdraw(t *testing.T) {
	params := testParams()
	params.Admin = [20]byte{0xAD}
	f := newEngineFixture(params)
	activate(t, f, 0)
	f.clock.now = 120_000
	f.apply(t, &MarketSwap{MarketID: 1, Outcome: 1, AssetToStable: true, AmountIn: 10_000})

	withdraw := &ProtocolFeeWithdraw{MarketID: 1, Outcome: 1, Account: [20]byte{0xAD}}

	res := f.engine.Apply(&ProtocolFeeWithdraw{MarketID: 1, Outcome: 1, Account: [20]byte{0x01}})
	assert.Equal(t, TecNO_PERMISSION, res.Result)

	res = f.engine.Apply(&ProtocolFeeWithdraw{MarketID: 1, Outcome: 0, Account: [20]byte{0xAD}})
	assert.Equal(t, TecUNFUNDED, res.Result, "no trades on outcome 0, nothing to collect")

	f.apply(t, withdraw)
	data, err := f.view.Read(keylet.Pool(1, 1))
	require.NoError(t, err)
	pool, err := state.ParsePool(data)
	require.NoError(t, err)
	assert.Zero(t, pool.ProtocolFeesStable)

	res = f.engine.Apply(withdraw)
	assert.Equal(t, TecUNFUNDED, res.Result, "accumulator resets after collection")
}

// chainedSubmit is a depth-1 proposal hanging off its parent's outcome 1,
// carrying two embedded child payloads.
func chainedSubmit(id, fee uint64) *ProposalSubmit {
	sub := submitTx(id, fee, false)
	sub.ChainDepth = 1
	sub.ParentOutcome = 1
	sub.Children = []queue.Data{
		{Title: "child a", OutcomeCount: 2},
		{Title: "child b", OutcomeCount: 3},
	}
	return sub
}

func TestSubmitHighValueFeeReservesAtAdmission(t *testing.T) {
	params := testParams()
	params.HighValueFeeThreshold = 150
	f := newEngineFixture(params)

	f.apply(t, submitTx(1, 100, false))
	exists, err := f.view.Exists(keylet.Reservation(1))
	require.NoError(t, err)
	assert.False(t, exists, "below the threshold no reservation is granted")

	f.apply(t, submitTx(2, 150, false))
	res := f.readReservation(t, 2)
	assert.Equal(t, uint64(150), res.OriginalFee)
	assert.Equal(t, queue.DefaultReservationWindowMS, res.RecreationExpiresAt)
}

func TestSubmitExplicitWindowReservesAtAdmission(t *testing.T) {
	f := newEngineFixture(testParams())
	sub := submitTx(1, 100, false)
	sub.ReservationWindowMS = 5_000
	f.apply(t, sub)

	res := f.readReservation(t, 1)
	assert.Equal(t, uint64(5_000), res.RecreationExpiresAt)

	t.Run("CappedAtMax", func(t *testing.T) {
		f := newEngineFixture(testParams())
		sub := submitTx(1, 100, false)
		sub.ReservationWindowMS = queue.MaxReservationWindowMS + 1
		f.apply(t, sub)
		assert.Equal(t, queue.MaxReservationWindowMS, f.readReservation(t, 1).RecreationExpiresAt)
	})
}

func TestOutbidReservationKeepsChain(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newEngineFixture(params)

	f.apply(t, chainedSubmit(1, 100))
	f.apply(t, submitTx(2, 200, false))

	res := f.readReservation(t, 1)
	assert.Equal(t, uint8(1), res.ChainDepth)
	assert.Equal(t, uint8(1), res.ParentOutcome)
	require.Len(t, res.ChildPayloads, 2)
	assert.Equal(t, "child a", res.ChildPayloads[0].Title)

	// Recreation carries the chain metadata back into the queue.
	f.apply(t, &ProposalRecreate{
		DAOID: 1, ProposalID: 1, Fee: 250, Title: "again", OutcomeCount: 2,
	})
	p, ok := f.readQueue(t).Get(1)
	require.True(t, ok)
	assert.Equal(t, uint8(1), p.ChainDepth)
	assert.Equal(t, uint8(1), p.ParentOutcome)
	assert.Len(t, p.Children, 2)
}

func TestChainRecreateRespawnsChildren(t *testing.T) {
	f := newEngineFixture(testParams())
	f.apply(t, chainedSubmit(1, 100))
	f.clock.now = queue.StaleAfterMS
	f.apply(t, &ProposalEvictStale{DAOID: 1, ProposalID: 1})

	recreate := &ProposalChainRecreate{
		DAOID: 1, ProposalID: 1, Fee: 100, Title: "again", OutcomeCount: 2,
		ChildSeeds: []ChainChildSeed{
			{ProposalID: 11, Fee: 50, ParentOutcome: 1},
			{ProposalID: 12, Fee: 60, ParentOutcome: 0},
		},
	}

	t.Run("SeedCountMustMatch", func(t *testing.T) {
		short := *recreate
		short.ChildSeeds = recreate.ChildSeeds[:1]
		res := f.engine.Apply(&short)
		assert.Equal(t, TemINVALID, res.Result)
	})

	t.Run("SeedOutcomeOutOfRange", func(t *testing.T) {
		bad := *recreate
		bad.ChildSeeds = []ChainChildSeed{
			{ProposalID: 11, Fee: 50, ParentOutcome: 5},
			{ProposalID: 12, Fee: 60, ParentOutcome: 0},
		}
		res := f.engine.Apply(&bad)
		assert.Equal(t, TemBAD_OUTCOME, res.Result)
	})

	f.apply(t, recreate)

	q := f.readQueue(t)
	parent, ok := q.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint8(1), parent.ChainDepth)
	assert.Len(t, parent.Children, 2)

	child, ok := q.Get(11)
	require.True(t, ok)
	assert.Equal(t, uint8(2), child.ChainDepth)
	assert.Equal(t, uint8(1), child.ParentOutcome)
	assert.Equal(t, "child a", child.Data.Title)
	assert.Equal(t, uint64(50), f.fees.held[11])

	child, ok = q.Get(12)
	require.True(t, ok)
	assert.Equal(t, "child b", child.Data.Title)
}

func TestChainDepthLimit(t *testing.T) {
	f := newEngineFixture(testParams())
	deep := submitTx(1, 100, false)
	deep.ChainDepth = 9
	res := f.engine.Apply(deep)
	assert.Equal(t, TecCHAIN_TOO_DEEP, res.Result)

	t.Run("RecreateAtLimit", func(t *testing.T) {
		params := testParams()
		params.MaxProposalChainDepth = 1
		f := newEngineFixture(params)
		f.apply(t, chainedSubmit(1, 100))
		f.clock.now = queue.StaleAfterMS
		f.apply(t, &ProposalEvictStale{DAOID: 1, ProposalID: 1})

		res := f.engine.Apply(&ProposalChainRecreate{
			DAOID: 1, ProposalID: 1, Fee: 100, Title: "again", OutcomeCount: 2,
			ChildSeeds: []ChainChildSeed{
				{ProposalID: 11, Fee: 50, ParentOutcome: 1},
				{ProposalID: 12, Fee: 60, ParentOutcome: 0},
			},
		})
		assert.Equal(t, TecCHAIN_TOO_DEEP, res.Result)
	})
}

func TestEvictionReturnsBond(t *testing.T) {
	params := testParams()
	params.QueueCapacity = 2
	params.DAOLiquiditySlots = 1
	f := newEngineFixture(params)

	bonded := submitTx(1, 100, false)
	bonded.Bond = 55
	f.apply(t, bonded)
	f.apply(t, submitTx(2, 200, false))

	evs := f.sink.ofType(events.TypeProposalEvicted)
	require.Len(t, evs, 1)
	assert.Equal(t, uint64(55), evs[0].(events.ProposalEvicted).BondReturned)

	t.Run("Stale", func(t *testing.T) {
		f := newEngineFixture(testParams())
		bonded := submitTx(1, 100, false)
		bonded.Bond = 55
		f.apply(t, bonded)
		f.clock.now = queue.StaleAfterMS
		f.apply(t, &ProposalEvictStale{DAOID: 1, ProposalID: 1})

		evs := f.sink.ofType(events.TypeProposalEvicted)
		require.Len(t, evs, 1)
		ev := evs[0].(events.ProposalEvicted)
		assert.Equal(t, uint64(100), ev.FeeSlashed)
		assert.Equal(t, uint64(55), ev.BondReturned)
	})
}

func TestDepositFailureLeavesNoTrace(t *testing.T) {
	f := newEngineFixture(testParams())
	f.fees.depositErr = errors.New("custody offline")

	res := f.engine.Apply(submitTx(1, 100, false))
	assert.Equal(t, TecUNFUNDED, res.Result)

	data, err := f.view.Read(keylet.Queue(1))
	require.NoError(t, err)
	assert.Nil(t, data, "the staged queue write must not commit")

	t.Run("OutbidVictimKeepsCustody", func(t *testing.T) {
		params := testParams()
		params.QueueCapacity = 2
		params.DAOLiquiditySlots = 1
		f := newEngineFixture(params)
		f.apply(t, submitTx(1, 100, false))

		f.fees.depositErr = errors.New("custody offline")
		res := f.engine.Apply(submitTx(2, 200, false))
		assert.Equal(t, TecUNFUNDED, res.Result)

		assert.Equal(t, uint64(100), f.fees.held[1], "the displaced resident's fee stays held")
		assert.Empty(t, f.fees.refunds[1])
		_, ok := f.readQueue(t).Get(1)
		assert.True(t, ok, "the rolled-back eviction leaves the resident in place")
	})
}

func TestProtocolFeeWithdrawValidation(t *testing.T) {
	f := newEngineFixture(testParams())
	res := f.engine.Apply(&ProtocolFeeWithdraw{MarketID: 1})
	assert.Equal(t, TemINVALID, res.Result)
}
