package tx

// Result represents a transaction result code.
type Result int

// Result codes are organized by category, mirroring the convention of
// ledger engines: tes (success), tec (failed but applied, fee claimed),
// tem (malformed, never applied), ter (retry later), tef (internal failure).
const (
	// tesSUCCESS (0)
	TesSUCCESS Result = 0

	// tec codes (100-199): the transaction failed against current state.
	TecQUEUE_FULL          Result = 100
	TecSLIPPAGE            Result = 101
	TecUNFUNDED            Result = 102
	TecNO_ENTRY            Result = 103
	TecDUPLICATE           Result = 104
	TecTOO_SOON            Result = 105
	TecFEE_NOT_INCREASED   Result = 106
	TecRESERVATION_EXPIRED Result = 107
	TecINSUFFICIENT_FEE    Result = 108
	TecBAD_RATIO           Result = 109
	TecPRICE_LIMIT         Result = 110
	TecNOT_TRADING         Result = 111
	TecPOOL_EMPTY          Result = 112
	TecNO_PERMISSION       Result = 113
	TecCHAIN_TOO_DEEP      Result = 114
	TecINTERNAL            Result = 144

	// tem codes (-299 to -200): the transaction is malformed.
	TemMALFORMED   Result = -299
	TemBAD_AMOUNT  Result = -298
	TemBAD_FEE     Result = -297
	TemBAD_OUTCOME Result = -296
	TemINVALID     Result = -277

	// ter codes (-99 to -1): retry in a later round.
	TerRETRY       Result = -99
	TerPRE_TRADING Result = -92

	// tef codes (-199 to -100): engine-internal failure.
	TefFAILURE  Result = -199
	TefINTERNAL Result = -192
)

// String returns the canonical code name.
func (r Result) String() string {
	switch r {
	case TesSUCCESS:
		return "tesSUCCESS"
	case TecQUEUE_FULL:
		return "tecQUEUE_FULL"
	case TecSLIPPAGE:
		return "tecSLIPPAGE"
	case TecUNFUNDED:
		return "tecUNFUNDED"
	case TecNO_ENTRY:
		return "tecNO_ENTRY"
	case TecDUPLICATE:
		return "tecDUPLICATE"
	case TecTOO_SOON:
		return "tecTOO_SOON"
	case TecFEE_NOT_INCREASED:
		return "tecFEE_NOT_INCREASED"
	case TecRESERVATION_EXPIRED:
		return "tecRESERVATION_EXPIRED"
	case TecINSUFFICIENT_FEE:
		return "tecINSUFFICIENT_FEE"
	case TecBAD_RATIO:
		return "tecBAD_RATIO"
	case TecPRICE_LIMIT:
		return "tecPRICE_LIMIT"
	case TecNOT_TRADING:
		return "tecNOT_TRADING"
	case TecPOOL_EMPTY:
		return "tecPOOL_EMPTY"
	case TecNO_PERMISSION:
		return "tecNO_PERMISSION"
	case TecCHAIN_TOO_DEEP:
		return "tecCHAIN_TOO_DEEP"
	case TecINTERNAL:
		return "tecINTERNAL"
	case TemMALFORMED:
		return "temMALFORMED"
	case TemBAD_AMOUNT:
		return "temBAD_AMOUNT"
	case TemBAD_FEE:
		return "temBAD_FEE"
	case TemBAD_OUTCOME:
		return "temBAD_OUTCOME"
	case TemINVALID:
		return "temINVALID"
	case TerRETRY:
		return "terRETRY"
	case TerPRE_TRADING:
		return "terPRE_TRADING"
	case TefFAILURE:
		return "tefFAILURE"
	case TefINTERNAL:
		return "tefINTERNAL"
	}
	return "unknown"
}

// IsSuccess reports tesSUCCESS.
func (r Result) IsSuccess() bool {
	return r == TesSUCCESS
}

// IsTec reports a claimed-cost failure.
func (r Result) IsTec() bool {
	return r >= 100 && r < 200
}

// IsTem reports a malformed transaction.
func (r Result) IsTem() bool {
	return r <= -200 && r > -300
}

// IsApplied reports whether the transaction left a ledger trace: success
// applies its effects, tec claims the fee without them.
func (r Result) IsApplied() bool {
	return r.IsSuccess() || r.IsTec()
}
