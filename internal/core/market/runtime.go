package market

import (
	"sync"
	"time"
)

// SystemClock reads wall-clock time in unix milliseconds.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().UnixMilli())
}

// AccountingFeeManager is an in-memory fee custodian. It tracks held fees
// per proposal and accumulates refunded and slashed totals; actual fund
// movement belongs to the host's token layer.
type AccountingFeeManager struct {
	mu       sync.Mutex
	held     map[uint64]uint64
	refunded uint64
	slashed  uint64
}

// NewAccountingFeeManager creates an empty custodian.
func NewAccountingFeeManager() *AccountingFeeManager {
	return &AccountingFeeManager{held: make(map[uint64]uint64)}
}

func (m *AccountingFeeManager) Deposit(proposalID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[proposalID] += amount
	return nil
}

func (m *AccountingFeeManager) Refund(proposalID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	amount := m.held[proposalID]
	delete(m.held, proposalID)
	m.refunded += amount
	return amount
}

func (m *AccountingFeeManager) Slash(proposalID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	amount := m.held[proposalID]
	delete(m.held, proposalID)
	m.slashed += amount
	return amount
}

// Held returns the fee currently in custody for a proposal.
func (m *AccountingFeeManager) Held(proposalID uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[proposalID]
}

// Totals returns the lifetime refunded and slashed sums.
func (m *AccountingFeeManager) Totals() (refunded, slashed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunded, m.slashed
}
