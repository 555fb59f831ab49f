package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/oracle"
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/core/subsidy"
)

func testPool(t *testing.T) *amm.Pool {
	t.Helper()
	cfg := oracle.Config{InitialPrice: 1_000_000_000_000, CapStep: 1_000_000_000_000}
	p, err := amm.New(7, 1, 30, cfg, 0)
	require.NoError(t, err)
	_, err = p.Deposit(1_000_000, 1_000_000, 0)
	require.NoError(t, err)
	return p
}

// A rehydrated pool must behave exactly like the original: same quotes, and
// an oracle that keeps accumulating from where it left off.
func TestPoolSurvivesPersistence(t *testing.T) {
	original := testPool(t)
	_, err := original.SwapAssetToStable(10_000, 0, 60_000)
	require.NoError(t, err)

	restored, err := ParsePool(SerializePool(original))
	require.NoError(t, err)

	assert.Equal(t, original.AssetReserve, restored.AssetReserve)
	assert.Equal(t, original.StableReserve, restored.StableReserve)
	assert.Equal(t, original.LPSupply, restored.LPSupply)
	assert.Equal(t, original.Oracle.LastTimestamp, restored.Oracle.LastTimestamp)
	assert.Equal(t, original.Oracle.Started(), restored.Oracle.Started())

	a, err := original.SwapStableToAsset(25_000, 0, 120_000)
	require.NoError(t, err)
	b, err := restored.SwapStableToAsset(25_000, 0, 120_000)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ta, err := original.Oracle.TWAP(120_000)
	require.NoError(t, err)
	tb, err := restored.Oracle.TWAP(120_000)
	require.NoError(t, err)
	assert.Equal(t, ta, tb)
}

func TestQueueRoundTripPreservesOrder(t *testing.T) {
	q, err := queue.New(1, 5, 1)
	require.NoError(t, err)
	for i, fee := range []uint64{100, 300, 200} {
		var proposer [20]byte
		proposer[0] = byte(i + 1)
		_, err := q.Insert(&queue.QueuedProposal{
			ProposalID:    uint64(i + 1),
			DAOID:         1,
			Fee:           fee,
			Proposer:      proposer,
			Data:          queue.Data{Title: "t", Metadata: "m", OutcomeCount: 2},
			Bond:          7,
			IntentKey:     "chain-a",
			ChainDepth:    1,
			ParentOutcome: 1,
			Children:      []queue.Data{{Title: "child", OutcomeCount: 2}},
			TimestampMS:   uint64(i),
		})
		require.NoError(t, err)
	}

	restored, err := ParseQueue(SerializeQueue(q))
	require.NoError(t, err)

	want := q.Residents()
	got := restored.Residents()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestReservationRoundTrip(t *testing.T) {
	res := &queue.Reservation{
		ParentProposalID:    9,
		ChainDepth:          2,
		ParentOutcome:       1,
		OriginalFee:         500,
		RecreationExpiresAt: 1_000_000,
		RecreationCount:     3,
		ChildPayloads: []queue.Data{
			{Title: "child", OutcomeCount: 2},
		},
	}
	got, err := ParseReservation(SerializeReservation(res))
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

// A rehydrated escrow keeps its crank schedule.
func TestEscrowRoundTripContinuesCranking(t *testing.T) {
	e, err := subsidy.New(1, 1, []uint64{0, 1}, 1_000_000, 4, 0)
	require.NoError(t, err)
	_, err = e.Crank(subsidy.MinCrankIntervalMS)
	require.NoError(t, err)

	restored, err := ParseEscrow(SerializeEscrow(e))
	require.NoError(t, err)
	assert.Equal(t, e, restored)

	_, err = restored.Crank(subsidy.MinCrankIntervalMS + 1)
	assert.ErrorIs(t, err, subsidy.ErrCrankTooSoon)

	res, err := restored.Crank(2 * subsidy.MinCrankIntervalMS)
	require.NoError(t, err)
	assert.Equal(t, uint64(125_000), res.PerPoolAmount)
}

func TestProposalEntryRoundTrip(t *testing.T) {
	p := &ProposalEntry{
		ProposalID:   4,
		DAOID:        1,
		Data:         queue.Data{Title: "upgrade", Metadata: "ipfs://x", OutcomeCount: 2},
		State:        ProposalStatePassed,
		HasEscrow:    true,
		ActivatedAt:  10,
		TradingEndAt: 20,
		Winner:       1,
		FinalTwaps:   []uint64{100, 140},
	}
	got, err := ParseProposal(SerializeProposal(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMalformedEntriesRejected(t *testing.T) {
	data := SerializePool(testPool(t))

	t.Run("Truncated", func(t *testing.T) {
		_, err := ParsePool(data[:len(data)-3])
		assert.ErrorIs(t, err, ErrShortEntry)
	})

	t.Run("Trailing", func(t *testing.T) {
		_, err := ParsePool(append(append([]byte{}, data...), 0xFF))
		assert.ErrorIs(t, err, ErrTrailingBytes)
	})

	t.Run("BadVersion", func(t *testing.T) {
		bad := append([]byte{}, data...)
		bad[0] = 99
		_, err := ParsePool(bad)
		assert.ErrorIs(t, err, ErrBadVersion)
	})
}
