package tx

import (
	"fmt"
	"sort"
)

// Type identifies a transaction kind.
type Type string

const (
	TypeProposalSubmit        Type = "ProposalSubmit"
	TypeProposalFeeBump       Type = "ProposalFeeBump"
	TypeProposalEvictStale    Type = "ProposalEvictStale"
	TypeProposalRecreate      Type = "ProposalRecreate"
	TypeProposalChainRecreate Type = "ProposalChainRecreate"
	TypeProposalActivate      Type = "ProposalActivate"
	TypeProposalFinalize      Type = "ProposalFinalize"
	TypeMarketSwap            Type = "MarketSwap"
	TypeLiquidityDeposit      Type = "LiquidityDeposit"
	TypeLiquidityWithdraw     Type = "LiquidityWithdraw"
	TypeSubsidyCrank          Type = "SubsidyCrank"
	TypeProtocolFeeWithdraw   Type = "ProtocolFeeWithdraw"
)

// Transaction is a market state transition. Validate checks static form only;
// everything that depends on ledger state belongs in Apply.
type Transaction interface {
	TxType() Type
	Validate() error
	Apply(ctx *ApplyContext) Result
}

// registry maps transaction types to factories.
var registry = map[Type]func() Transaction{}

// Register installs a transaction factory. Called from init functions.
func Register(t Type, factory func() Transaction) {
	if _, dup := registry[t]; dup {
		panic(fmt.Sprintf("tx: duplicate registration for %q", t))
	}
	registry[t] = factory
}

// NewTransaction creates an empty transaction of the given type.
func NewTransaction(t Type) (Transaction, error) {
	factory, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("tx: unknown transaction type %q", t)
	}
	return factory(), nil
}

// RegisteredTypes lists all known transaction types, sorted.
func RegisteredTypes() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
