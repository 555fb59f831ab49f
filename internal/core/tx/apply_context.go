package tx

import (
	"errors"

	"github.com/futarchy-labs/futarchyd/internal/core/amm"
	"github.com/futarchy-labs/futarchyd/internal/core/ledger/keylet"
	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/core/oracle"
	"github.com/futarchy-labs/futarchyd/internal/core/queue"
	"github.com/futarchy-labs/futarchyd/internal/core/state"
	"github.com/futarchy-labs/futarchyd/internal/core/subsidy"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

// ApplyContext carries everything a transactor needs to apply itself. View is
// a staged table over the engine's base view, so a non-tes result discards
// every write.
type ApplyContext struct {
	View   LedgerView
	Clock  market.Clock
	Fees   market.FeeManager
	Events events.Sink
	Params market.Params
	TxHash [32]byte
}

// Now returns the engine clock reading for this transaction.
func (ctx *ApplyContext) Now() uint64 {
	return ctx.Clock.Now()
}

// emit sends an event if a sink is wired.
func (ctx *ApplyContext) emit(ev events.Event) {
	if ctx.Events != nil {
		ctx.Events.Emit(ev)
	}
}

// errResult maps a domain error to its result code.
func errResult(err error) Result {
	switch {
	case err == nil:
		return TesSUCCESS

	// queue
	case errors.Is(err, queue.ErrFeeTooLow):
		return TecQUEUE_FULL
	case errors.Is(err, queue.ErrDuplicate):
		return TecDUPLICATE
	case errors.Is(err, queue.ErrNotFound):
		return TecNO_ENTRY
	case errors.Is(err, queue.ErrNotStale):
		return TecTOO_SOON
	case errors.Is(err, queue.ErrFeeNotIncreased):
		return TecFEE_NOT_INCREASED
	case errors.Is(err, queue.ErrZeroFee):
		return TemBAD_FEE
	case errors.Is(err, queue.ErrReservationExpired):
		return TecRESERVATION_EXPIRED
	case errors.Is(err, queue.ErrReservationNotFound):
		return TecNO_ENTRY
	case errors.Is(err, queue.ErrInsufficientFee):
		return TecINSUFFICIENT_FEE

	// amm
	case errors.Is(err, amm.ErrZeroAmount):
		return TemBAD_AMOUNT
	case errors.Is(err, amm.ErrInvalidFee):
		return TemBAD_FEE
	case errors.Is(err, amm.ErrExcessiveSlippage):
		return TecSLIPPAGE
	case errors.Is(err, amm.ErrPoolEmpty):
		return TecPOOL_EMPTY
	case errors.Is(err, amm.ErrInvalidLiquidityRatio):
		return TecBAD_RATIO
	case errors.Is(err, amm.ErrPriceTooHigh):
		return TecPRICE_LIMIT
	case errors.Is(err, amm.ErrInsufficientLiquidity):
		return TecUNFUNDED

	// subsidy
	case errors.Is(err, subsidy.ErrCrankTooSoon):
		return TecTOO_SOON
	case errors.Is(err, subsidy.ErrNoCranksRemaining), errors.Is(err, subsidy.ErrExhausted):
		return TecUNFUNDED
	case errors.Is(err, subsidy.ErrZeroSubsidy), errors.Is(err, subsidy.ErrNoPools):
		return TemBAD_AMOUNT

	// oracle
	case errors.Is(err, oracle.ErrNotStarted), errors.Is(err, oracle.ErrStaleTwap):
		return TerPRE_TRADING
	}
	return TecINTERNAL
}

// writeEntry inserts or updates depending on whether the entry exists.
func writeEntry(view LedgerView, k keylet.Keylet, data []byte) error {
	exists, err := view.Exists(k)
	if err != nil {
		return err
	}
	if exists {
		return view.Update(k, data)
	}
	return view.Insert(k, data)
}

// loadQueue reads a DAO's proposal queue, creating an empty one sized from
// the engine parameters on first use.
func (ctx *ApplyContext) loadQueue(daoID uint64) (*queue.ProposalQueue, Result) {
	data, err := ctx.View.Read(keylet.Queue(daoID))
	if err != nil {
		return nil, TefINTERNAL
	}
	if data == nil {
		q, err := queue.New(daoID, ctx.Params.QueueCapacity, ctx.Params.DAOLiquiditySlots)
		if err != nil {
			return nil, TefINTERNAL
		}
		return q, TesSUCCESS
	}
	q, err := state.ParseQueue(data)
	if err != nil {
		return nil, TefINTERNAL
	}
	return q, TesSUCCESS
}

func (ctx *ApplyContext) saveQueue(q *queue.ProposalQueue) Result {
	if err := writeEntry(ctx.View, keylet.Queue(q.DAOID), state.SerializeQueue(q)); err != nil {
		return TefINTERNAL
	}
	return TesSUCCESS
}

// loadPool reads one outcome pool; a missing pool is TecNO_ENTRY.
func (ctx *ApplyContext) loadPool(marketID uint64, outcome uint8) (*amm.Pool, Result) {
	data, err := ctx.View.Read(keylet.Pool(marketID, outcome))
	if err != nil {
		return nil, TefINTERNAL
	}
	if data == nil {
		return nil, TecNO_ENTRY
	}
	p, err := state.ParsePool(data)
	if err != nil {
		return nil, TefINTERNAL
	}
	return p, TesSUCCESS
}

func (ctx *ApplyContext) savePool(p *amm.Pool) Result {
	if err := writeEntry(ctx.View, keylet.Pool(p.MarketID, p.OutcomeIdx), state.SerializePool(p)); err != nil {
		return TefINTERNAL
	}
	return TesSUCCESS
}

// loadProposal reads an activated proposal entry; missing is TecNO_ENTRY.
func (ctx *ApplyContext) loadProposal(proposalID uint64) (*state.ProposalEntry, Result) {
	data, err := ctx.View.Read(keylet.Proposal(proposalID))
	if err != nil {
		return nil, TefINTERNAL
	}
	if data == nil {
		return nil, TecNO_ENTRY
	}
	p, err := state.ParseProposal(data)
	if err != nil {
		return nil, TefINTERNAL
	}
	return p, TesSUCCESS
}

func (ctx *ApplyContext) saveProposal(p *state.ProposalEntry) Result {
	if err := writeEntry(ctx.View, keylet.Proposal(p.ProposalID), state.SerializeProposal(p)); err != nil {
		return TefINTERNAL
	}
	return TesSUCCESS
}

// loadEscrow reads a proposal's subsidy escrow; missing is TecNO_ENTRY.
func (ctx *ApplyContext) loadEscrow(proposalID uint64) (*subsidy.Escrow, Result) {
	data, err := ctx.View.Read(keylet.Escrow(proposalID))
	if err != nil {
		return nil, TefINTERNAL
	}
	if data == nil {
		return nil, TecNO_ENTRY
	}
	e, err := state.ParseEscrow(data)
	if err != nil {
		return nil, TefINTERNAL
	}
	return e, TesSUCCESS
}

func (ctx *ApplyContext) saveEscrow(e *subsidy.Escrow) Result {
	if err := writeEntry(ctx.View, keylet.Escrow(e.ProposalID), state.SerializeEscrow(e)); err != nil {
		return TefINTERNAL
	}
	return TesSUCCESS
}

// loadReservation reads a recreation reservation; missing is TecNO_ENTRY.
func (ctx *ApplyContext) loadReservation(parentProposalID uint64) (*queue.Reservation, Result) {
	data, err := ctx.View.Read(keylet.Reservation(parentProposalID))
	if err != nil {
		return nil, TefINTERNAL
	}
	if data == nil {
		return nil, TecNO_ENTRY
	}
	r, err := state.ParseReservation(data)
	if err != nil {
		return nil, TefINTERNAL
	}
	return r, TesSUCCESS
}

func (ctx *ApplyContext) saveReservation(r *queue.Reservation) Result {
	if err := writeEntry(ctx.View, keylet.Reservation(r.ParentProposalID), state.SerializeReservation(r)); err != nil {
		return TefINTERNAL
	}
	return TesSUCCESS
}

// createReservation grants a proposal a recreation window, preserving its
// chain metadata so nth-order children stay addressable. A zero window
// selects the DAO default; any window is capped at 90 days.
func (ctx *ApplyContext) createReservation(res *queue.Reservation, nowMS, windowMS uint64) Result {
	if windowMS == 0 {
		windowMS = ctx.Params.RecreationWindowMS
	}
	if windowMS == 0 {
		windowMS = queue.DefaultReservationWindowMS
	}
	if windowMS > queue.MaxReservationWindowMS {
		windowMS = queue.MaxReservationWindowMS
	}
	res.RecreationExpiresAt = nowMS + windowMS
	return ctx.saveReservation(res)
}
