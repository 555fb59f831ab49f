// Package indexer persists market events into a relational database for
// querying. It speaks database/sql and supports the sqlite driver for
// embedded deployments and postgres for shared ones. Every event lands in an
// append-only event log; swaps and proposal lifecycle changes additionally
// maintain dedicated tables for the query surface.
package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/futarchy-labs/futarchyd/internal/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrClosed is returned when operating on a closed indexer.
var ErrClosed = errors.New("indexer: database is closed")

// Config selects the driver and connection.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// DSN is the driver connection string. For sqlite this is a file path
	// or ":memory:".
	DSN string

	MaxOpenConns int
	MaxIdleConns int
}

// Indexer writes events to the relational store.
type Indexer struct {
	db     *sql.DB
	driver string
}

// Open connects, verifies the connection, and bootstraps the schema.
func Open(ctx context.Context, cfg Config) (*Indexer, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("indexer: ping: %w", err)
	}

	idx := &Indexer{db: db, driver: cfg.Driver}
	if err := idx.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("indexer: schema: %w", err)
	}
	return idx, nil
}

// Close releases the database connection.
func (idx *Indexer) Close() error {
	if idx.db == nil {
		return nil
	}
	err := idx.db.Close()
	idx.db = nil
	return err
}

// rebind rewrites ? placeholders to $n for postgres.
func (idx *Indexer) rebind(query string) string {
	if idx.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (idx *Indexer) initSchema(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if idx.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
			id %s,
			type TEXT NOT NULL,
			proposal_id BIGINT NOT NULL DEFAULT 0,
			market_id BIGINT NOT NULL DEFAULT 0,
			timestamp_ms BIGINT NOT NULL,
			payload TEXT NOT NULL
		)`, serial),

		`CREATE TABLE IF NOT EXISTS swaps (
			market_id BIGINT NOT NULL,
			outcome_idx INTEGER NOT NULL,
			asset_to_stable BOOLEAN NOT NULL,
			amount_in BIGINT NOT NULL,
			amount_out BIGINT NOT NULL,
			fee_total BIGINT NOT NULL,
			fee_protocol BIGINT NOT NULL,
			timestamp_ms BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS proposals (
			proposal_id BIGINT PRIMARY KEY,
			dao_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			fee BIGINT NOT NULL DEFAULT 0,
			winner INTEGER NOT NULL DEFAULT 0,
			queued_at BIGINT NOT NULL DEFAULT 0,
			activated_at BIGINT NOT NULL DEFAULT 0,
			finalized_at BIGINT NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_proposal ON events(proposal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_swaps_market ON swaps(market_id, timestamp_ms)`,
	}

	for _, query := range queries {
		if _, err := idx.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// eventIDs extracts the proposal and market correlation ids from a payload.
func eventIDs(ev events.Event) (proposalID, marketID, timestampMS uint64) {
	switch e := ev.(type) {
	case events.ProposalQueued:
		return e.ProposalID, 0, e.TimestampMS
	case events.ProposalEvicted:
		return e.ProposalID, 0, e.TimestampMS
	case events.ProposalActivated:
		return e.ProposalID, e.MarketID, e.TimestampMS
	case events.ProposalFinalized:
		return e.ProposalID, e.ProposalID, e.TimestampMS
	case events.Swap:
		return e.MarketID, e.MarketID, e.TimestampMS
	case events.LiquidityAdded:
		return e.MarketID, e.MarketID, e.TimestampMS
	case events.LiquidityRemoved:
		return e.MarketID, e.MarketID, e.TimestampMS
	case events.SubsidyCranked:
		return e.ProposalID, e.ProposalID, e.TimestampMS
	case events.SubsidyFinalized:
		return e.ProposalID, e.ProposalID, e.TimestampMS
	}
	return 0, 0, 0
}

// IndexEvent writes one event to the log and updates the derived tables.
func (idx *Indexer) IndexEvent(ctx context.Context, ev events.Event) error {
	if idx.db == nil {
		return ErrClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("indexer: encode payload: %w", err)
	}
	proposalID, marketID, ts := eventIDs(ev)

	_, err = idx.db.ExecContext(ctx,
		idx.rebind(`INSERT INTO events (type, proposal_id, market_id, timestamp_ms, payload) VALUES (?, ?, ?, ?, ?)`),
		string(ev.EventType()), int64(proposalID), int64(marketID), int64(ts), string(payload))
	if err != nil {
		return fmt.Errorf("indexer: insert event: %w", err)
	}

	switch e := ev.(type) {
	case events.ProposalQueued:
		return idx.upsertProposal(ctx, e)
	case events.ProposalEvicted:
		return idx.setProposalStatus(ctx, e.ProposalID, "evicted_"+e.Reason, 0, 0, 0)
	case events.ProposalActivated:
		return idx.setProposalStatus(ctx, e.ProposalID, "trading", 0, e.TimestampMS, 0)
	case events.ProposalFinalized:
		status := "failed"
		if e.Passed {
			status = "passed"
		}
		return idx.setProposalStatus(ctx, e.ProposalID, status, e.Winner, 0, e.TimestampMS)
	case events.Swap:
		_, err := idx.db.ExecContext(ctx,
			idx.rebind(`INSERT INTO swaps (market_id, outcome_idx, asset_to_stable, amount_in, amount_out, fee_total, fee_protocol, timestamp_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			int64(e.MarketID), e.OutcomeIdx, e.AssetToStable, int64(e.AmountIn),
			int64(e.AmountOut), int64(e.FeeTotal), int64(e.FeeProtocol), int64(e.TimestampMS))
		if err != nil {
			return fmt.Errorf("indexer: insert swap: %w", err)
		}
	}
	return nil
}

func (idx *Indexer) upsertProposal(ctx context.Context, e events.ProposalQueued) error {
	query := `INSERT INTO proposals (proposal_id, dao_id, status, fee, queued_at)
		VALUES (?, ?, 'queued', ?, ?)
		ON CONFLICT (proposal_id) DO UPDATE SET
		status = 'queued',
		fee = excluded.fee,
		queued_at = excluded.queued_at`
	_, err := idx.db.ExecContext(ctx, idx.rebind(query),
		int64(e.ProposalID), int64(e.DAOID), int64(e.Fee), int64(e.TimestampMS))
	if err != nil {
		return fmt.Errorf("indexer: upsert proposal: %w", err)
	}
	return nil
}

func (idx *Indexer) setProposalStatus(ctx context.Context, proposalID uint64, status string, winner uint8, activatedAt, finalizedAt uint64) error {
	query := `UPDATE proposals SET status = ?, winner = ?,
		activated_at = CASE WHEN ? > 0 THEN ? ELSE activated_at END,
		finalized_at = CASE WHEN ? > 0 THEN ? ELSE finalized_at END
		WHERE proposal_id = ?`
	_, err := idx.db.ExecContext(ctx, idx.rebind(query),
		status, winner,
		int64(activatedAt), int64(activatedAt),
		int64(finalizedAt), int64(finalizedAt),
		int64(proposalID))
	if err != nil {
		return fmt.Errorf("indexer: update proposal: %w", err)
	}
	return nil
}

// Run consumes a hub subscription until the context ends or the subscription
// closes. Indexing failures are returned and stop the loop.
func (idx *Indexer) Run(ctx context.Context, sub *events.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := idx.IndexEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
}
