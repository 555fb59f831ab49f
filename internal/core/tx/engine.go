package tx

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/futarchy-labs/futarchyd/internal/core/market"
	"github.com/futarchy-labs/futarchyd/internal/events"
)

// MalformedError carries the tem code for a static validation failure.
type MalformedError struct {
	Code Result
	Msg  string
}

func (e *MalformedError) Error() string {
	return e.Code.String() + ": " + e.Msg
}

// malformed builds a Validate error with its tem code attached.
func malformed(code Result, format string, args ...any) error {
	return &MalformedError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Engine applies transactions against a ledger view. Each Apply stages its
// writes in a state table and commits only on tesSUCCESS, so every
// transaction is all-or-nothing.
type Engine struct {
	view   LedgerView
	clock  market.Clock
	fees   market.FeeManager
	events events.Sink
	params market.Params
}

// NewEngine creates a transaction engine.
func NewEngine(view LedgerView, clock market.Clock, fees market.FeeManager, sink events.Sink, params market.Params) *Engine {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Engine{
		view:   view,
		clock:  clock,
		fees:   fees,
		events: sink,
		params: params,
	}
}

// ApplyResult reports one processed transaction.
type ApplyResult struct {
	Result  Result
	Applied bool
	TxHash  [32]byte
	Message string
}

// hashTransaction derives the transaction's identity hash from its type and
// field representation. Used for event correlation, not authentication.
func hashTransaction(t Transaction) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%+v", t.TxType(), t)))
}

// Apply validates and applies one transaction.
func (e *Engine) Apply(t Transaction) ApplyResult {
	txHash := hashTransaction(t)

	if err := t.Validate(); err != nil {
		var m *MalformedError
		code := TemINVALID
		if errors.As(err, &m) {
			code = m.Code
		}
		return ApplyResult{Result: code, TxHash: txHash, Message: err.Error()}
	}

	table := newStateTable(e.view)
	ctx := &ApplyContext{
		View:   table,
		Clock:  e.clock,
		Fees:   e.fees,
		Events: e.events,
		Params: e.params,
		TxHash: txHash,
	}

	result := t.Apply(ctx)
	if result.IsSuccess() {
		if err := table.commit(); err != nil {
			return ApplyResult{Result: TefINTERNAL, TxHash: txHash, Message: err.Error()}
		}
	}

	return ApplyResult{
		Result:  result,
		Applied: result.IsApplied(),
		TxHash:  txHash,
		Message: result.String(),
	}
}
