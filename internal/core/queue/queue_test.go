package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

func proposal(id, fee uint64, dao bool, ts uint64) *QueuedProposal {
	return &QueuedProposal{
		ProposalID:       id,
		DAOID:            1,
		Fee:              fee,
		UsesDAOLiquidity: dao,
		Proposer:         addr(byte(id)),
		Data:             Data{Title: "p", OutcomeCount: 2},
		TimestampMS:      ts,
	}
}

func TestNewValidatesCapacity(t *testing.T) {
	_, err := New(1, 0, 0)
	assert.ErrorIs(t, err, ErrBadCapacity)
	_, err = New(1, 2, 3)
	assert.ErrorIs(t, err, ErrBadCapacity)
}

func TestInsertOrdering(t *testing.T) {
	q, err := New(1, 5, 0)
	require.NoError(t, err)

	for _, p := range []*QueuedProposal{
		proposal(1, 100, false, 10),
		proposal(2, 300, false, 20),
		proposal(3, 100, false, 5), // same fee as 1, earlier
	} {
		ev, err := q.Insert(p)
		require.NoError(t, err)
		assert.Nil(t, ev)
	}

	res := q.Residents()
	require.Len(t, res, 3)
	assert.Equal(t, uint64(2), res[0].ProposalID) // highest fee
	assert.Equal(t, uint64(3), res[1].ProposalID) // FIFO among equal fees
	assert.Equal(t, uint64(1), res[2].ProposalID)
}

func TestInsertValidation(t *testing.T) {
	q, _ := New(1, 2, 0)

	_, err := q.Insert(proposal(1, 0, false, 0))
	assert.ErrorIs(t, err, ErrZeroFee)

	_, err = q.Insert(proposal(1, 10, false, 0))
	require.NoError(t, err)
	_, err = q.Insert(proposal(1, 20, false, 1))
	assert.ErrorIs(t, err, ErrDuplicate)
}

// Capacity 2 (1 DAO slot, 1 proposer slot). A second
// proposer-funded insert with a lower fee is rejected; the resident stays.
func TestFullClassRejectsLowerFee(t *testing.T) {
	q, err := New(1, 2, 1)
	require.NoError(t, err)

	ev, err := q.Insert(proposal(1, 100, false, 0))
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = q.Insert(proposal(2, 50, false, 1))
	assert.ErrorIs(t, err, ErrFeeTooLow)

	res := q.Residents()
	require.Len(t, res, 1)
	assert.Equal(t, uint64(1), res[0].ProposalID)
}

func TestFullClassEvictsLowestSameClass(t *testing.T) {
	q, err := New(1, 3, 1)
	require.NoError(t, err)

	// Fill both proposer slots and the DAO slot.
	_, err = q.Insert(proposal(1, 100, false, 0))
	require.NoError(t, err)
	_, err = q.Insert(proposal(2, 200, false, 1))
	require.NoError(t, err)
	_, err = q.Insert(proposal(3, 10, true, 2)) // DAO-funded, lowest fee overall
	require.NoError(t, err)

	// A proposer-funded newcomer must evict the worst proposer-funded
	// resident, never the cheaper DAO-funded one.
	ev, err := q.Insert(proposal(4, 150, false, 3))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, uint64(1), ev.ProposalID)
	assert.Equal(t, uint64(100), ev.Fee)
	assert.False(t, ev.UsesDAOLiquidity)

	_, ok := q.Get(3)
	assert.True(t, ok, "DAO-funded resident must survive")
	assert.Equal(t, 3, q.Len())
}

// The eviction report carries everything the caller needs to refund, return
// the bond, and reserve the displaced chain.
func TestEvictionCarriesBondAndChain(t *testing.T) {
	q, err := New(1, 1, 0)
	require.NoError(t, err)

	victim := proposal(1, 100, false, 0)
	victim.Bond = 55
	victim.ChainDepth = 1
	victim.ParentOutcome = 1
	victim.Children = []Data{{Title: "child", OutcomeCount: 2}}
	_, err = q.Insert(victim)
	require.NoError(t, err)

	ev, err := q.Insert(proposal(2, 200, false, 1))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, uint64(55), ev.Bond)
	assert.Equal(t, uint8(1), ev.ChainDepth)
	assert.Equal(t, uint8(1), ev.ParentOutcome)
	require.Len(t, ev.Children, 1)
	assert.Equal(t, "child", ev.Children[0].Title)
}

func TestCapacityNeverExceeded(t *testing.T) {
	q, err := New(1, 4, 2)
	require.NoError(t, err)

	fee := uint64(1)
	for i := uint64(1); i <= 50; i++ {
		fee += i
		_, err := q.Insert(proposal(i, fee, i%2 == 0, i))
		if err != nil {
			assert.ErrorIs(t, err, ErrFeeTooLow)
		}
		assert.LessOrEqual(t, q.Len(), 4)
		assert.LessOrEqual(t, q.classCount(true), 2)
		assert.LessOrEqual(t, q.classCount(false), 2)
	}
}

func TestTryActivateNext(t *testing.T) {
	q, _ := New(1, 5, 0)

	_, ok := q.TryActivateNext()
	assert.False(t, ok)

	q.Insert(proposal(1, 100, false, 0))
	q.Insert(proposal(2, 300, false, 1))

	top, ok := q.TryActivateNext()
	require.True(t, ok)
	assert.Equal(t, uint64(2), top.ProposalID)
	assert.Equal(t, 1, q.Len())
}

func TestEvictStale(t *testing.T) {
	q, _ := New(1, 5, 0)
	q.Insert(proposal(1, 100, false, 1000))

	_, err := q.EvictStale(1, 1000+StaleAfterMS-1)
	assert.ErrorIs(t, err, ErrNotStale)

	r, err := q.EvictStale(1, 1000+StaleAfterMS)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.ProposalID)
	assert.Equal(t, 0, q.Len())

	_, err = q.EvictStale(1, 1000+StaleAfterMS)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProposalFee(t *testing.T) {
	q, _ := New(1, 5, 0)
	q.Insert(proposal(1, 100, false, 0))
	q.Insert(proposal(2, 300, false, 1))

	assert.ErrorIs(t, q.UpdateProposalFee(1, 100), ErrFeeNotIncreased)
	assert.ErrorIs(t, q.UpdateProposalFee(9, 500), ErrNotFound)

	require.NoError(t, q.UpdateProposalFee(1, 400))
	res := q.Residents()
	assert.Equal(t, uint64(1), res[0].ProposalID)
	assert.Equal(t, 2, q.Len())
}

func TestReservationRedeem(t *testing.T) {
	b := NewReservationBook()
	r := b.Create(&Reservation{
		ParentProposalID: 7,
		OriginalFee:      100,
		Proposer:         addr(7),
	}, 1000, 0)
	assert.Equal(t, uint64(1000)+DefaultReservationWindowMS, r.RecreationExpiresAt)

	t.Run("BeforeExpiryFullFee", func(t *testing.T) {
		got, err := b.Redeem(7, 100, r.RecreationExpiresAt)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), got.RecreationCount)

		// No recreation-count limit: redeem again.
		_, err = b.Redeem(7, 150, r.RecreationExpiresAt)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), r.RecreationCount)
	})

	t.Run("FeeDiscountRejected", func(t *testing.T) {
		_, err := b.Redeem(7, 99, 2000)
		assert.ErrorIs(t, err, ErrInsufficientFee)
	})

	t.Run("AfterExpiry", func(t *testing.T) {
		_, err := b.Redeem(7, 100, r.RecreationExpiresAt+1)
		assert.ErrorIs(t, err, ErrReservationExpired)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := b.Redeem(8, 100, 0)
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})
}

func TestReservationWindowClamp(t *testing.T) {
	b := NewReservationBook()
	r := b.Create(&Reservation{ParentProposalID: 1}, 0, MaxReservationWindowMS*2)
	assert.Equal(t, MaxReservationWindowMS, r.RecreationExpiresAt)
}
