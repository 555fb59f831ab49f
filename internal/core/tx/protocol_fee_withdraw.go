package tx

func init() {
	Register(TypeProtocolFeeWithdraw, func() Transaction { return &ProtocolFeeWithdraw{} })
}

// ProtocolFeeWithdraw collects the protocol share of accumulated swap fees
// from one outcome pool. Only the configured admin identity may collect;
// the accumulator resets to zero on success.
type ProtocolFeeWithdraw struct {
	MarketID uint64
	Outcome  uint8
	Account  [20]byte
}

func (t *ProtocolFeeWithdraw) TxType() Type { return TypeProtocolFeeWithdraw }

func (t *ProtocolFeeWithdraw) Validate() error {
	if t.Account == ([20]byte{}) {
		return malformed(TemINVALID, "withdraw account must be set")
	}
	return nil
}

func (t *ProtocolFeeWithdraw) Apply(ctx *ApplyContext) Result {
	if t.Account != ctx.Params.Admin {
		return TecNO_PERMISSION
	}
	pool, res := ctx.loadPool(t.MarketID, t.Outcome)
	if !res.IsSuccess() {
		return res
	}
	if pool.TakeProtocolFees() == 0 {
		return TecUNFUNDED
	}
	return ctx.savePool(pool)
}
