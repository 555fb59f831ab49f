package server

import (
	"sync"

	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/core/tx"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

// Node is the RPC surface's view of the market core: a transaction engine
// over a ledger view plus direct reads of committed entries. A mutex
// serializes transaction application with queries, so handlers never observe
// a half-committed state.
type Node struct {
	mu     sync.Mutex
	view   tx.LedgerView
	engine *tx.Engine
	clock  market.Clock
	params market.Params
	daoID  uint64
	hub    *events.Hub
}

// NewNode wires an engine and its ledger view into an RPC backend.
func NewNode(view tx.LedgerView, clock market.Clock, fees market.FeeManager, hub *events.Hub, params market.Params, daoID uint64) *Node {
	var sink events.Sink = events.NopSink{}
	if hub != nil {
		sink = hub
	}
	return &Node{
		view:   view,
		engine: tx.NewEngine(view, clock, fees, sink, params),
		clock:  clock,
		params: params,
		daoID:  daoID,
		hub:    hub,
	}
}

// DAOID returns the DAO this node serves by default.
func (n *Node) DAOID() uint64 { return n.daoID }

// Params returns the node's market parameters.
func (n *Node) Params() market.Params { return n.params }

// Hub returns the node's event hub, nil when events are disabled.
func (n *Node) Hub() *events.Hub { return n.hub }

// Submit applies one transaction against the ledger.
func (n *Node) Submit(t tx.Transaction) tx.ApplyResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Apply(t)
}

// QueueInfo returns a DAO's proposal queue, or nil when the DAO has none.
func (n *Node) QueueInfo(daoID uint64) (*queue.ProposalQueue, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := n.view.Read(keylet.Queue(daoID))
	if err != nil || data == nil {
		return nil, err
	}
	return state.ParseQueue(data)
}

// ProposalInfo returns an activated proposal, or nil when unknown.
func (n *Node) ProposalInfo(proposalID uint64) (*state.ProposalEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := n.view.Read(keylet.Proposal(proposalID))
	if err != nil || data == nil {
		return nil, err
	}
	return state.ParseProposal(data)
}

// PoolInfo returns one outcome pool, or nil when unknown.
func (n *Node) PoolInfo(marketID uint64, outcome uint8) (*amm.Pool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := n.view.Read(keylet.Pool(marketID, outcome))
	if err != nil || data == nil {
		return nil, err
	}
	return state.ParsePool(data)
}

// TWAP reads a pool and evaluates its oracle at the current time.
func (n *Node) TWAP(marketID uint64, outcome uint8) (uint64, bool, error) {
	pool, err := n.PoolInfo(marketID, outcome)
	if err != nil || pool == nil {
		return 0, false, err
	}
	twap, err := pool.Oracle.TWAP(n.clock.Now())
	if err != nil {
		return 0, true, err
	}
	return twap, true, nil
}

// ReservationInfo returns a recreation reservation, or nil when none exists.
func (n *Node) ReservationInfo(parentProposalID uint64) (*queue.Reservation, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := n.view.Read(keylet.Reservation(parentProposalID))
	if err != nil || data == nil {
		return nil, err
	}
	return state.ParseReservation(data)
}
