// Package events defines the structured events emitted by the market core,
// a CBOR journal codec for durable event logs, and an in-process fan-out hub
// feeding the websocket subscription surface and the indexer.
package events

// Type discriminates event payloads in the journal and over subscriptions.
type Type string

const (
	TypeProposalQueued    Type = "proposal_queued"
	TypeProposalEvicted   Type = "proposal_evicted"
	TypeProposalActivated Type = "proposal_activated"
	TypeProposalFinalized Type = "proposal_finalized"
	TypeSwap              Type = "swap"
	TypeLiquidityAdded    Type = "liquidity_added"
	TypeLiquidityRemoved  Type = "liquidity_removed"
	TypeSubsidyCranked    Type = "subsidy_cranked"
	TypeSubsidyFinalized  Type = "subsidy_finalized"
)

// Event is implemented by every concrete event payload.
type Event interface {
	EventType() Type
}

type ProposalQueued struct {
	ProposalID       uint64 `json:"proposal_id"`
	DAOID            uint64 `json:"dao_id"`
	Fee              uint64 `json:"fee"`
	UsesDAOLiquidity bool   `json:"uses_dao_liquidity"`
	TimestampMS      uint64 `json:"timestamp_ms"`
}

func (ProposalQueued) EventType() Type { return TypeProposalQueued }

// ProposalEvicted reports both outbid and staleness evictions; FeeRefunded
// and FeeSlashed are mutually exclusive. BondReturned is the bond handed
// back to the proposer either way.
type ProposalEvicted struct {
	ProposalID   uint64 `json:"proposal_id"`
	Reason       string `json:"reason"`
	FeeRefunded  uint64 `json:"fee_refunded"`
	FeeSlashed   uint64 `json:"fee_slashed"`
	BondReturned uint64 `json:"bond_returned"`
	TimestampMS  uint64 `json:"timestamp_ms"`
}

func (ProposalEvicted) EventType() Type { return TypeProposalEvicted }

type ProposalActivated struct {
	ProposalID   uint64 `json:"proposal_id"`
	MarketID     uint64 `json:"market_id"`
	OutcomeCount uint8  `json:"outcome_count"`
	TradingEndAt uint64 `json:"trading_end_at"`
	TimestampMS  uint64 `json:"timestamp_ms"`
}

func (ProposalActivated) EventType() Type { return TypeProposalActivated }

type ProposalFinalized struct {
	ProposalID  uint64   `json:"proposal_id"`
	Winner      uint8    `json:"winner"`
	Passed      bool     `json:"passed"`
	Twaps       []uint64 `json:"twaps"`
	TimestampMS uint64   `json:"timestamp_ms"`
}

func (ProposalFinalized) EventType() Type { return TypeProposalFinalized }

type Swap struct {
	MarketID      uint64 `json:"market_id"`
	OutcomeIdx    uint8  `json:"outcome_idx"`
	AssetToStable bool   `json:"asset_to_stable"`
	AmountIn      uint64 `json:"amount_in"`
	AmountOut     uint64 `json:"amount_out"`
	FeeTotal      uint64 `json:"fee_total"`
	FeeProtocol   uint64 `json:"fee_protocol"`
	TimestampMS   uint64 `json:"timestamp_ms"`
}

func (Swap) EventType() Type { return TypeSwap }

type LiquidityAdded struct {
	MarketID     uint64 `json:"market_id"`
	OutcomeIdx   uint8  `json:"outcome_idx"`
	AssetAmount  uint64 `json:"asset_amount"`
	StableAmount uint64 `json:"stable_amount"`
	LPAmount     uint64 `json:"lp_amount"`
	TimestampMS  uint64 `json:"timestamp_ms"`
}

func (LiquidityAdded) EventType() Type { return TypeLiquidityAdded }

type LiquidityRemoved struct {
	MarketID     uint64 `json:"market_id"`
	OutcomeIdx   uint8  `json:"outcome_idx"`
	AssetAmount  uint64 `json:"asset_amount"`
	StableAmount uint64 `json:"stable_amount"`
	LPAmount     uint64 `json:"lp_amount"`
	TimestampMS  uint64 `json:"timestamp_ms"`
}

func (LiquidityRemoved) EventType() Type { return TypeLiquidityRemoved }

type SubsidyCranked struct {
	ProposalID    uint64 `json:"proposal_id"`
	PerPoolAmount uint64 `json:"per_pool_amount"`
	KeeperFee     uint64 `json:"keeper_fee"`
	CranksLeft    uint32 `json:"cranks_left"`
	TimestampMS   uint64 `json:"timestamp_ms"`
}

func (SubsidyCranked) EventType() Type { return TypeSubsidyCranked }

type SubsidyFinalized struct {
	ProposalID  uint64 `json:"proposal_id"`
	Remainder   uint64 `json:"remainder"`
	TimestampMS uint64 `json:"timestamp_ms"`
}

func (SubsidyFinalized) EventType() Type { return TypeSubsidyFinalized }

// Sink receives emitted events. Emission is fire-and-forget: a slow consumer
// must never stall a state transition.
type Sink interface {
	Emit(Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}
