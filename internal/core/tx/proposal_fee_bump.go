package tx

func init() {
	Register(TypeProposalFeeBump, func() Transaction { return &ProposalFeeBump{} })
}

// ProposalFeeBump raises a resident proposal's priority fee. Raise-only: it
// re-ranks the proposal upward and can never trigger an eviction.
type ProposalFeeBump struct {
	DAOID      uint64
	ProposalID uint64
	NewFee     uint64
}

func (t *ProposalFeeBump) TxType() Type { return TypeProposalFeeBump }

func (t *ProposalFeeBump) Validate() error {
	if t.ProposalID == 0 {
		return malformed(TemINVALID, "proposal id is required")
	}
	if t.NewFee == 0 {
		return malformed(TemBAD_FEE, "new fee must be positive")
	}
	return nil
}

func (t *ProposalFeeBump) Apply(ctx *ApplyContext) Result {
	q, res := ctx.loadQueue(t.DAOID)
	if !res.IsSuccess() {
		return res
	}
	resident, ok := q.Get(t.ProposalID)
	if !ok {
		return TecNO_ENTRY
	}
	oldFee := resident.Fee
	if err := q.UpdateProposalFee(t.ProposalID, t.NewFee); err != nil {
		return errResult(err)
	}
	// Only the difference is deposited; the original fee is already held.
	if err := ctx.Fees.Deposit(t.ProposalID, t.NewFee-oldFee); err != nil {
		return TecUNFUNDED
	}
	return ctx.saveQueue(q)
}
