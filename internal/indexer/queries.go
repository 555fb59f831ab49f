package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ProposalRow is the indexed lifecycle state of one proposal.
type ProposalRow struct {
	ProposalID  uint64
	DAOID       uint64
	Status      string
	Fee         uint64
	Winner      uint8
	QueuedAt    uint64
	ActivatedAt uint64
	FinalizedAt uint64
}

// SwapRow is one indexed trade.
type SwapRow struct {
	MarketID      uint64
	OutcomeIdx    uint8
	AssetToStable bool
	AmountIn      uint64
	AmountOut     uint64
	FeeTotal      uint64
	FeeProtocol   uint64
	TimestampMS   uint64
}

// StoredEvent is one row of the append-only event log.
type StoredEvent struct {
	Type        string
	TimestampMS uint64
	Payload     json.RawMessage
}

// GetProposal returns the indexed proposal, or nil when it was never seen.
func (idx *Indexer) GetProposal(ctx context.Context, proposalID uint64) (*ProposalRow, error) {
	if idx.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT proposal_id, dao_id, status, fee, winner, queued_at, activated_at, finalized_at
		FROM proposals WHERE proposal_id = ?`

	var row ProposalRow
	var id, dao, fee, queued, activated, finalized int64
	err := idx.db.QueryRowContext(ctx, idx.rebind(query), int64(proposalID)).Scan(
		&id, &dao, &row.Status, &fee, &row.Winner, &queued, &activated, &finalized)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("indexer: query proposal: %w", err)
	}

	row.ProposalID = uint64(id)
	row.DAOID = uint64(dao)
	row.Fee = uint64(fee)
	row.QueuedAt = uint64(queued)
	row.ActivatedAt = uint64(activated)
	row.FinalizedAt = uint64(finalized)
	return &row, nil
}

// RecentSwaps returns a market's trades, newest first.
func (idx *Indexer) RecentSwaps(ctx context.Context, marketID uint64, limit int) ([]SwapRow, error) {
	if idx.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT market_id, outcome_idx, asset_to_stable, amount_in, amount_out, fee_total, fee_protocol, timestamp_ms
		FROM swaps WHERE market_id = ? ORDER BY timestamp_ms DESC LIMIT ?`

	rows, err := idx.db.QueryContext(ctx, idx.rebind(query), int64(marketID), limit)
	if err != nil {
		return nil, fmt.Errorf("indexer: query swaps: %w", err)
	}
	defer rows.Close()

	var results []SwapRow
	for rows.Next() {
		var row SwapRow
		var market, amountIn, amountOut, feeTotal, feeProtocol, ts int64
		if err := rows.Scan(&market, &row.OutcomeIdx, &row.AssetToStable,
			&amountIn, &amountOut, &feeTotal, &feeProtocol, &ts); err != nil {
			return nil, fmt.Errorf("indexer: scan swap: %w", err)
		}
		row.MarketID = uint64(market)
		row.AmountIn = uint64(amountIn)
		row.AmountOut = uint64(amountOut)
		row.FeeTotal = uint64(feeTotal)
		row.FeeProtocol = uint64(feeProtocol)
		row.TimestampMS = uint64(ts)
		results = append(results, row)
	}
	return results, rows.Err()
}

// EventsByProposal returns a proposal's event history in insertion order.
func (idx *Indexer) EventsByProposal(ctx context.Context, proposalID uint64) ([]StoredEvent, error) {
	if idx.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT type, timestamp_ms, payload FROM events WHERE proposal_id = ? ORDER BY id ASC`

	rows, err := idx.db.QueryContext(ctx, idx.rebind(query), int64(proposalID))
	if err != nil {
		return nil, fmt.Errorf("indexer: query events: %w", err)
	}
	defer rows.Close()

	var results []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var ts int64
		var payload string
		if err := rows.Scan(&ev.Type, &ts, &payload); err != nil {
			return nil, fmt.Errorf("indexer: scan event: %w", err)
		}
		ev.TimestampMS = uint64(ts)
		ev.Payload = json.RawMessage(payload)
		results = append(results, ev)
	}
	return results, rows.Err()
}

// EventCount returns the total number of indexed events.
func (idx *Indexer) EventCount(ctx context.Context) (int64, error) {
	if idx.db == nil {
		return 0, ErrClosed
	}

	var count int64
	err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("indexer: count events: %w", err)
	}
	return count, nil
}
