package server

import (
	"encoding/json"
	"fmt"

	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/core/tx"
	"github.com/futarchy-labs/futarchyd/internal/version"
)

// registerAllMethods installs every RPC method on the registry.
func registerAllMethods(registry *MethodRegistry, node *Node) {
	registry.Register("ping", &pingHandler{})
	registry.Register("server_info", &serverInfoHandler{node: node, registry: registry})
	registry.Register("submit", &submitHandler{node: node})
	registry.Register("queue_info", &queueInfoHandler{node: node})
	registry.Register("proposal_info", &proposalInfoHandler{node: node})
	registry.Register("pool_info", &poolInfoHandler{node: node})
	registry.Register("simulate_swap", &simulateSwapHandler{node: node})
	registry.Register("twap", &twapHandler{node: node})
	registry.Register("reservation_info", &reservationInfoHandler{node: node})
}

// pingHandler implements the ping method
type pingHandler struct{}

func (h *pingHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return map[string]interface{}{}, nil
}

func (h *pingHandler) RequiredRole() Role          { return RoleGuest }
func (h *pingHandler) SupportedApiVersions() []int { return nil }

// serverInfoHandler implements the server_info method
type serverInfoHandler struct {
	node     *Node
	registry *MethodRegistry
}

func (h *serverInfoHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	p := h.node.Params()

	txTypes := make([]string, 0)
	for _, t := range tx.RegisteredTypes() {
		txTypes = append(txTypes, string(t))
	}

	return map[string]interface{}{
		"info": map[string]interface{}{
			"build_version":       version.Version,
			"dao_id":              h.node.DAOID(),
			"queue_capacity":      p.QueueCapacity,
			"dao_liquidity_slots": p.DAOLiquiditySlots,
			"amm_fee_bps":         p.AMMFeeBps,
			"pass_threshold_bps":  p.PassThresholdBps,
			"trading_period_ms":   p.TradingPeriodMS,
			"transaction_types":   txTypes,
			"methods":             h.registry.List(),
		},
	}, nil
}

func (h *serverInfoHandler) RequiredRole() Role          { return RoleGuest }
func (h *serverInfoHandler) SupportedApiVersions() []int { return nil }

// submitHandler implements the submit method
type submitHandler struct {
	node *Node
}

type submitParams struct {
	TxType string          `json:"tx_type"`
	Tx     json.RawMessage `json:"tx"`
}

func (h *submitHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var request submitParams
	if params == nil {
		return nil, RpcErrorMissingField("tx_type")
	}
	if err := json.Unmarshal(params, &request); err != nil {
		return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
	}
	if request.TxType == "" {
		return nil, RpcErrorMissingField("tx_type")
	}

	transaction, err := tx.NewTransaction(tx.Type(request.TxType))
	if err != nil {
		return nil, RpcErrorInvalidParams(err.Error())
	}
	if len(request.Tx) > 0 {
		if err := json.Unmarshal(request.Tx, transaction); err != nil {
			return nil, RpcErrorInvalidParams("Invalid transaction fields: " + err.Error())
		}
	}

	result := h.node.Submit(transaction)
	return map[string]interface{}{
		"engine_result":         result.Result.String(),
		"engine_result_code":    int(result.Result),
		"engine_result_message": result.Message,
		"applied":               result.Applied,
		"tx_hash":               fmt.Sprintf("%X", result.TxHash),
	}, nil
}

func (h *submitHandler) RequiredRole() Role          { return RoleGuest }
func (h *submitHandler) SupportedApiVersions() []int { return nil }

// queueInfoHandler implements the queue_info method
type queueInfoHandler struct {
	node *Node
}

type queueInfoParams struct {
	DAOID *uint64 `json:"dao_id"`
}

func (h *queueInfoHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	daoID := h.node.DAOID()
	if params != nil {
		var request queueInfoParams
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
		if request.DAOID != nil {
			daoID = *request.DAOID
		}
	}

	q, err := h.node.QueueInfo(daoID)
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}
	if q == nil {
		return nil, RpcErrorObjectNotFound(fmt.Sprintf("No queue for DAO %d", daoID))
	}

	residents := q.Residents()
	proposals := make([]map[string]interface{}, 0, len(residents))
	for _, p := range residents {
		proposals = append(proposals, map[string]interface{}{
			"proposal_id":        p.ProposalID,
			"fee":                p.Fee,
			"uses_dao_liquidity": p.UsesDAOLiquidity,
			"proposer":           fmt.Sprintf("%X", p.Proposer),
			"title":              p.Data.Title,
			"outcome_count":      p.Data.OutcomeCount,
			"queued_at":          p.TimestampMS,
		})
	}

	return map[string]interface{}{
		"dao_id":              q.DAOID,
		"total_capacity":      q.TotalCapacity,
		"dao_liquidity_slots": q.DAOLiquiditySlots,
		"proposals":           proposals,
	}, nil
}

func (h *queueInfoHandler) RequiredRole() Role          { return RoleGuest }
func (h *queueInfoHandler) SupportedApiVersions() []int { return nil }

// proposalInfoHandler implements the proposal_info method
type proposalInfoHandler struct {
	node *Node
}

type proposalInfoParams struct {
	ProposalID uint64 `json:"proposal_id"`
}

func proposalStateName(s uint8) string {
	switch s {
	case state.ProposalStateTrading:
		return "trading"
	case state.ProposalStatePassed:
		return "passed"
	case state.ProposalStateFailed:
		return "failed"
	}
	return "unknown"
}

func (h *proposalInfoHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var request proposalInfoParams
	if params != nil {
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
	}
	if request.ProposalID == 0 {
		return nil, RpcErrorMissingField("proposal_id")
	}

	entry, err := h.node.ProposalInfo(request.ProposalID)
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}
	if entry == nil {
		return nil, RpcErrorObjectNotFound(fmt.Sprintf("Proposal %d not found", request.ProposalID))
	}

	return map[string]interface{}{
		"proposal_id":    entry.ProposalID,
		"dao_id":         entry.DAOID,
		"proposer":       fmt.Sprintf("%X", entry.Proposer),
		"title":          entry.Data.Title,
		"metadata":       entry.Data.Metadata,
		"outcome_count":  entry.Data.OutcomeCount,
		"state":          proposalStateName(entry.State),
		"has_escrow":     entry.HasEscrow,
		"activated_at":   entry.ActivatedAt,
		"trading_end_at": entry.TradingEndAt,
		"winner":         entry.Winner,
		"final_twaps":    entry.FinalTwaps,
	}, nil
}

func (h *proposalInfoHandler) RequiredRole() Role          { return RoleGuest }
func (h *proposalInfoHandler) SupportedApiVersions() []int { return nil }

// poolInfoHandler implements the pool_info method
type poolInfoHandler struct {
	node *Node
}

type poolParams struct {
	MarketID uint64 `json:"market_id"`
	Outcome  uint8  `json:"outcome"`
}

func poolResponse(pool *amm.Pool) map[string]interface{} {
	response := map[string]interface{}{
		"market_id":            pool.MarketID,
		"outcome_idx":          pool.OutcomeIdx,
		"asset_reserve":        pool.AssetReserve,
		"stable_reserve":       pool.StableReserve,
		"fee_bps":              pool.FeeBps,
		"lp_supply":            pool.LPSupply,
		"protocol_fees_stable": pool.ProtocolFeesStable,
		"pending_lp_reward":    pool.PendingLPReward,
	}
	if spot, err := pool.SpotPrice(); err == nil {
		response["spot_price"] = spot
	}
	return response
}

func (h *poolInfoHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var request poolParams
	if params != nil {
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
	}
	if request.MarketID == 0 {
		return nil, RpcErrorMissingField("market_id")
	}

	pool, err := h.node.PoolInfo(request.MarketID, request.Outcome)
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}
	if pool == nil {
		return nil, RpcErrorObjectNotFound(fmt.Sprintf("No pool for market %d outcome %d", request.MarketID, request.Outcome))
	}
	return poolResponse(pool), nil
}

func (h *poolInfoHandler) RequiredRole() Role          { return RoleGuest }
func (h *poolInfoHandler) SupportedApiVersions() []int { return nil }

// simulateSwapHandler implements the simulate_swap method
type simulateSwapHandler struct {
	node *Node
}

type simulateSwapParams struct {
	MarketID      uint64 `json:"market_id"`
	Outcome       uint8  `json:"outcome"`
	AssetToStable bool   `json:"asset_to_stable"`
	AmountIn      uint64 `json:"amount_in"`
}

func (h *simulateSwapHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var request simulateSwapParams
	if params != nil {
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
	}
	if request.MarketID == 0 {
		return nil, RpcErrorMissingField("market_id")
	}
	if request.AmountIn == 0 {
		return nil, RpcErrorMissingField("amount_in")
	}

	pool, err := h.node.PoolInfo(request.MarketID, request.Outcome)
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}
	if pool == nil {
		return nil, RpcErrorObjectNotFound(fmt.Sprintf("No pool for market %d outcome %d", request.MarketID, request.Outcome))
	}

	amountOut, err := pool.SimulateSwap(request.AmountIn, request.AssetToStable)
	if err != nil {
		return nil, RpcErrorInvalidParams(err.Error())
	}

	return map[string]interface{}{
		"market_id":       request.MarketID,
		"outcome_idx":     request.Outcome,
		"asset_to_stable": request.AssetToStable,
		"amount_in":       request.AmountIn,
		"amount_out":      amountOut,
	}, nil
}

func (h *simulateSwapHandler) RequiredRole() Role          { return RoleGuest }
func (h *simulateSwapHandler) SupportedApiVersions() []int { return nil }

// twapHandler implements the twap method
type twapHandler struct {
	node *Node
}

func (h *twapHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var request poolParams
	if params != nil {
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
	}
	if request.MarketID == 0 {
		return nil, RpcErrorMissingField("market_id")
	}

	twap, found, err := h.node.TWAP(request.MarketID, request.Outcome)
	if !found {
		if err != nil {
			return nil, RpcErrorInternal(err.Error())
		}
		return nil, RpcErrorObjectNotFound(fmt.Sprintf("No pool for market %d outcome %d", request.MarketID, request.Outcome))
	}
	if err != nil {
		return nil, NewRpcError(RpcGENERAL, "twapUnavailable", "twapUnavailable", err.Error())
	}

	return map[string]interface{}{
		"market_id":   request.MarketID,
		"outcome_idx": request.Outcome,
		"twap":        twap,
	}, nil
}

func (h *twapHandler) RequiredRole() Role          { return RoleGuest }
func (h *twapHandler) SupportedApiVersions() []int { return nil }

// reservationInfoHandler implements the reservation_info method
type reservationInfoHandler struct {
	node *Node
}

func (h *reservationInfoHandler) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var request proposalInfoParams
	if params != nil {
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid parameters: " + err.Error())
		}
	}
	if request.ProposalID == 0 {
		return nil, RpcErrorMissingField("proposal_id")
	}

	res, err := h.node.ReservationInfo(request.ProposalID)
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}
	if res == nil {
		return nil, RpcErrorObjectNotFound(fmt.Sprintf("No reservation for proposal %d", request.ProposalID))
	}

	return map[string]interface{}{
		"parent_proposal_id":    res.ParentProposalID,
		"chain_depth":           res.ChainDepth,
		"parent_outcome":        res.ParentOutcome,
		"original_fee":          res.OriginalFee,
		"proposer":              fmt.Sprintf("%X", res.Proposer),
		"recreation_expires_at": res.RecreationExpiresAt,
		"recreation_count":      res.RecreationCount,
		"child_count":           len(res.ChildPayloads),
	}, nil
}

func (h *reservationInfoHandler) RequiredRole() Role          { return RoleGuest }
func (h *reservationInfoHandler) SupportedApiVersions() []int { return nil }
